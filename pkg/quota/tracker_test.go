package quota

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memQuotaStore struct {
	mu     sync.Mutex
	counts map[string]int
}

func newMemQuotaStore() *memQuotaStore {
	return &memQuotaStore{counts: make(map[string]int)}
}

func (s *memQuotaStore) key(userID int, day time.Time) string {
	return fmt.Sprintf("%d/%s", userID, day.Format("2006-01-02"))
}

func (s *memQuotaStore) IncrementDailyCount(_ context.Context, userID int, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[s.key(userID, day)]++
	return nil
}

func (s *memQuotaStore) DailyCounts(_ context.Context, userIDs []int, day time.Time) (map[int]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int)
	for _, id := range userIDs {
		if n, ok := s.counts[s.key(id, day)]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (s *memQuotaStore) PurgeBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func intPtr(v int) *int { return &v }

func TestDayTruncatesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*60*60)
	// 23:30 local on March 9 is already March 10 in UTC.
	at := time.Date(2026, 3, 9, 23, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), Day(at))
}

func TestIncrementAndCounts(t *testing.T) {
	store := newMemQuotaStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tr := NewTrackerAt(store, func() time.Time { return now })

	ctx := context.Background()
	require.NoError(t, tr.Increment(ctx, 1))
	require.NoError(t, tr.Increment(ctx, 1))
	require.NoError(t, tr.Increment(ctx, 2))

	counts, err := tr.Counts(ctx, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2, 2: 1}, counts)
}

func TestCountsResetAcrossDayBoundary(t *testing.T) {
	store := newMemQuotaStore()
	now := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	tr := NewTrackerAt(store, func() time.Time { return now })

	ctx := context.Background()
	require.NoError(t, tr.Increment(ctx, 1))

	// One minute later it is a new UTC day and the counter starts fresh.
	now = now.Add(2 * time.Minute)
	counts, err := tr.Counts(ctx, []int{1})
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestCountsEmptyInput(t *testing.T) {
	tr := NewTracker(newMemQuotaStore())
	counts, err := tr.Counts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestAtQuota(t *testing.T) {
	counts := map[int]int{1: 5, 2: 3}

	unlimited := &models.User{ID: 1}
	assert.False(t, AtQuota(unlimited, counts))

	capped := &models.User{ID: 1, DailyLeadQuota: intPtr(5)}
	assert.True(t, AtQuota(capped, counts))

	under := &models.User{ID: 2, DailyLeadQuota: intPtr(5)}
	assert.False(t, AtQuota(under, counts))

	fresh := &models.User{ID: 3, DailyLeadQuota: intPtr(1)}
	assert.False(t, AtQuota(fresh, counts))

	zero := &models.User{ID: 3, DailyLeadQuota: intPtr(0)}
	assert.True(t, AtQuota(zero, counts))
}
