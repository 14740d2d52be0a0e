package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// Tracker counts leads assigned to each user per UTC calendar day.
// Counters are created lazily on first increment and never decremented;
// the increment itself is an atomic upsert in the store.
type Tracker struct {
	store domain.QuotaStore
	now   func() time.Time
}

// NewTracker creates a quota tracker on top of the given store.
func NewTracker(store domain.QuotaStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// NewTrackerAt creates a tracker with a fixed clock, for tests.
func NewTrackerAt(store domain.QuotaStore, now func() time.Time) *Tracker {
	return &Tracker{store: store, now: now}
}

// Day truncates a time to its UTC calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC day.
func (t *Tracker) Today() time.Time {
	return Day(t.now())
}

// Increment bumps the user's counter for today.
func (t *Tracker) Increment(ctx context.Context, userID int) error {
	if err := t.store.IncrementDailyCount(ctx, userID, t.Today()); err != nil {
		return fmt.Errorf("failed to increment quota for user %d: %w", userID, err)
	}
	return nil
}

// Counts returns today's counters for the given users. Users with no
// counter yet are absent from the map.
func (t *Tracker) Counts(ctx context.Context, userIDs []int) (map[int]int, error) {
	if len(userIDs) == 0 {
		return map[int]int{}, nil
	}
	counts, err := t.store.DailyCounts(ctx, userIDs, t.Today())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quota counts: %w", err)
	}
	return counts, nil
}

// AtQuota reports whether the user has reached their daily quota given
// today's counts. Users with no quota configured are never at quota.
//
// Admission is check-then-increment: two pipelines racing on the same
// user can each pass the check and land one assignment past the quota.
// The increment stays unconditional because manually targeted
// assignments must count even beyond the quota, so a capping upsert
// cannot serve both paths. The ceiling is exact per sequential pipeline.
func AtQuota(u *models.User, counts map[int]int) bool {
	if u.DailyLeadQuota == nil {
		return false
	}
	return counts[u.ID] >= *u.DailyLeadQuota
}
