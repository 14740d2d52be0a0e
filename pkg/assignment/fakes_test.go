package assignment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

func intPtr(v int) *int { return &v }

func testLogger() logger.Logger { return logger.New("error", "text") }

// fakeUserStore is an in-memory user directory.
type fakeUserStore struct {
	users map[int]*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[int]*models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetUser(_ context.Context, id int) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) ListActiveUsers(_ context.Context, orgID int, f domain.UserFilter) ([]*models.User, error) {
	var out []*models.User
	for _, u := range s.users {
		if u.OrganizationID != orgID || !u.IsActive {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.ReportsToID != nil {
			if u.ReportsToID == nil || *u.ReportsToID != *f.ReportsToID {
				continue
			}
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeUserStore) ListActiveAdmins(_ context.Context, orgID int) ([]*models.User, error) {
	var out []*models.User
	for _, u := range s.users {
		if u.OrganizationID == orgID && u.IsActive && u.Role == models.RoleAdmin {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeLeadStore is an in-memory lead table.
type fakeLeadStore struct {
	mu         sync.Mutex
	leads      map[int]*models.Lead
	setErr     error
	assignedTo map[int]int
}

func newFakeLeadStore(leads ...*models.Lead) *fakeLeadStore {
	s := &fakeLeadStore{leads: make(map[int]*models.Lead), assignedTo: make(map[int]int)}
	for _, l := range leads {
		s.leads[l.ID] = l
	}
	return s
}

func (s *fakeLeadStore) GetLead(_ context.Context, id int) (*models.Lead, error) {
	l, ok := s.leads[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return l, nil
}

func (s *fakeLeadStore) CreateLead(_ context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead.ID = len(s.leads) + 1
	s.leads[lead.ID] = lead
	return nil
}

func (s *fakeLeadStore) SetAssignee(_ context.Context, leadID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	l, ok := s.leads[leadID]
	if !ok {
		return domain.ErrNotFound
	}
	l.AssignedTo = &userID
	s.assignedTo[leadID] = userID
	return nil
}

// fakeRuleStore holds rules and a per-rule cursor guarded by a mutex so
// the compare-and-swap semantics match the SQL store.
type fakeRuleStore struct {
	mu      sync.Mutex
	rules   []*models.AssignmentRule
	cursors map[int]*int

	// casConflicts forces the next N swaps to fail as if another writer
	// advanced the cursor in between.
	casConflicts int
	casCalls     int
}

func newFakeRuleStore(rules ...*models.AssignmentRule) *fakeRuleStore {
	return &fakeRuleStore{rules: rules, cursors: make(map[int]*int)}
}

func (s *fakeRuleStore) ActiveRules(ctx context.Context, orgID int) ([]*models.AssignmentRule, error) {
	return s.ListActiveRules(ctx, orgID)
}

func (s *fakeRuleStore) ListActiveRules(_ context.Context, orgID int) ([]*models.AssignmentRule, error) {
	var out []*models.AssignmentRule
	for _, r := range s.rules {
		if r.OrganizationID == orgID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (s *fakeRuleStore) GetRule(_ context.Context, id int) (*models.AssignmentRule, error) {
	for _, r := range s.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeRuleStore) ListRules(_ context.Context, orgID int) ([]*models.AssignmentRule, error) {
	var out []*models.AssignmentRule
	for _, r := range s.rules {
		if r.OrganizationID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeRuleStore) CreateRule(_ context.Context, rule *models.AssignmentRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule.ID = len(s.rules) + 1
	s.rules = append(s.rules, rule)
	return nil
}

func (s *fakeRuleStore) UpdateRule(_ context.Context, rule *models.AssignmentRule) error {
	for i, r := range s.rules {
		if r.ID == rule.ID {
			s.rules[i] = rule
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeRuleStore) DeleteRule(_ context.Context, id int) error {
	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeRuleStore) GetCursor(_ context.Context, ruleID int) (*int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[ruleID], nil
}

func (s *fakeRuleStore) CompareAndSwapCursor(_ context.Context, ruleID int, prev *int, next int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++
	if s.casConflicts > 0 {
		s.casConflicts--
		return false, nil
	}
	cur := s.cursors[ruleID]
	if (cur == nil) != (prev == nil) {
		return false, nil
	}
	if cur != nil && *cur != *prev {
		return false, nil
	}
	s.cursors[ruleID] = &next
	return true, nil
}

// fakeQuotaStore counts increments per user and day.
type fakeQuotaStore struct {
	mu     sync.Mutex
	counts map[string]int
	incErr error
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{counts: make(map[string]int)}
}

func quotaKey(userID int, day time.Time) string {
	return fmt.Sprintf("%d/%s", userID, day.Format("2006-01-02"))
}

func (s *fakeQuotaStore) IncrementDailyCount(_ context.Context, userID int, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incErr != nil {
		return s.incErr
	}
	s.counts[quotaKey(userID, day)]++
	return nil
}

func (s *fakeQuotaStore) DailyCounts(_ context.Context, userIDs []int, day time.Time) (map[int]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int)
	for _, id := range userIDs {
		if n, ok := s.counts[quotaKey(id, day)]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (s *fakeQuotaStore) PurgeBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeQuotaStore) count(userID int, day time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[quotaKey(userID, day)]
}

// fakeOpportunityStore returns canned revenue aggregates.
type fakeOpportunityStore struct {
	totals []models.OwnerRevenue
	err    error
}

func (s *fakeOpportunityStore) ClosedWonRevenue(_ context.Context, ownerIDs []int, _ time.Time) ([]models.OwnerRevenue, error) {
	if s.err != nil {
		return nil, s.err
	}
	allowed := make(map[int]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		allowed[id] = true
	}
	var out []models.OwnerRevenue
	for _, t := range s.totals {
		if allowed[t.OwnerID] {
			out = append(out, t)
		}
	}
	return out, nil
}

// fakeAssignmentStore records history rows in memory.
type fakeAssignmentStore struct {
	mu        sync.Mutex
	rows      []*models.Assignment
	recordErr error
}

func (s *fakeAssignmentStore) RecordAssignment(_ context.Context, a *models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	for _, r := range s.rows {
		if r.LeadID == a.LeadID {
			r.IsActive = false
		}
	}
	a.ID = len(s.rows) + 1
	a.AssignedAt = time.Now()
	s.rows = append(s.rows, a)
	return nil
}

func (s *fakeAssignmentStore) CurrentAssignment(_ context.Context, leadID int) (*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.LeadID == leadID && r.IsActive {
			return r, nil
		}
	}
	return nil, nil
}

func (s *fakeAssignmentStore) HistoryForLead(_ context.Context, leadID int) ([]*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Assignment
	for _, r := range s.rows {
		if r.LeadID == leadID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeAssignmentStore) LeadsForUser(_ context.Context, userID, limit int) ([]*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Assignment
	for _, r := range s.rows {
		if r.UserID == userID && r.IsActive {
			out = append(out, r)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeAssignmentStore) CountSince(_ context.Context, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if !r.AssignedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *fakeAssignmentStore) lastRow() *models.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return nil
	}
	return s.rows[len(s.rows)-1]
}

// fakeNotifier collects notices.
type fakeNotifier struct {
	mu      sync.Mutex
	notices []models.AssignmentNotice
}

func (n *fakeNotifier) NotifyAssigned(_ context.Context, notice models.AssignmentNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

var errStore = errors.New("store unavailable")
