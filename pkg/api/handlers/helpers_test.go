package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/assignment"
	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/notify"
	"github.com/jordanlanch/leadrouter/pkg/quota"
)

func intPtr(v int) *int { return &v }

type memLeadStore struct {
	leads  map[int]*models.Lead
	nextID int
}

func newMemLeadStore(leads ...*models.Lead) *memLeadStore {
	s := &memLeadStore{leads: make(map[int]*models.Lead), nextID: 1000}
	for _, l := range leads {
		s.leads[l.ID] = l
	}
	return s
}

func (s *memLeadStore) GetLead(_ context.Context, id int) (*models.Lead, error) {
	l, ok := s.leads[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return l, nil
}

func (s *memLeadStore) CreateLead(_ context.Context, lead *models.Lead) error {
	s.nextID++
	lead.ID = s.nextID
	lead.CreatedAt = time.Now()
	s.leads[lead.ID] = lead
	return nil
}

func (s *memLeadStore) SetAssignee(_ context.Context, leadID, userID int) error {
	l, ok := s.leads[leadID]
	if !ok {
		return domain.ErrNotFound
	}
	l.AssignedTo = &userID
	return nil
}

type memAssignmentStore struct {
	rows []*models.Assignment
}

func (s *memAssignmentStore) RecordAssignment(_ context.Context, a *models.Assignment) error {
	for _, r := range s.rows {
		if r.LeadID == a.LeadID {
			r.IsActive = false
		}
	}
	a.ID = len(s.rows) + 1
	a.AssignedAt = time.Now()
	a.IsActive = true
	s.rows = append(s.rows, a)
	return nil
}

func (s *memAssignmentStore) CurrentAssignment(_ context.Context, leadID int) (*models.Assignment, error) {
	for _, r := range s.rows {
		if r.LeadID == leadID && r.IsActive {
			return r, nil
		}
	}
	return nil, nil
}

func (s *memAssignmentStore) HistoryForLead(_ context.Context, leadID int) ([]*models.Assignment, error) {
	var out []*models.Assignment
	for _, r := range s.rows {
		if r.LeadID == leadID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memAssignmentStore) LeadsForUser(_ context.Context, userID, limit int) ([]*models.Assignment, error) {
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

func (s *memAssignmentStore) CountSince(_ context.Context, since time.Time) (int, error) {
	n := 0
	for _, r := range s.rows {
		if !r.AssignedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type memRuleStore struct {
	rules   map[int]*models.AssignmentRule
	cursors map[int]*int
	nextID  int
}

func newMemRuleStore(rules ...*models.AssignmentRule) *memRuleStore {
	s := &memRuleStore{rules: make(map[int]*models.AssignmentRule), cursors: make(map[int]*int), nextID: 100}
	for _, r := range rules {
		s.rules[r.ID] = r
	}
	return s
}

func (s *memRuleStore) ActiveRules(ctx context.Context, orgID int) ([]*models.AssignmentRule, error) {
	return s.ListActiveRules(ctx, orgID)
}

func (s *memRuleStore) ListActiveRules(_ context.Context, orgID int) ([]*models.AssignmentRule, error) {
	var out []*models.AssignmentRule
	for _, r := range s.rules {
		if r.OrganizationID == orgID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (s *memRuleStore) GetRule(_ context.Context, id int) (*models.AssignmentRule, error) {
	r, ok := s.rules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (s *memRuleStore) ListRules(_ context.Context, orgID int) ([]*models.AssignmentRule, error) {
	var out []*models.AssignmentRule
	for _, r := range s.rules {
		if r.OrganizationID == orgID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memRuleStore) CreateRule(_ context.Context, rule *models.AssignmentRule) error {
	s.nextID++
	rule.ID = s.nextID
	rule.CreatedAt = time.Now()
	s.rules[rule.ID] = rule
	return nil
}

func (s *memRuleStore) UpdateRule(_ context.Context, rule *models.AssignmentRule) error {
	if _, ok := s.rules[rule.ID]; !ok {
		return domain.ErrNotFound
	}
	s.rules[rule.ID] = rule
	return nil
}

func (s *memRuleStore) DeleteRule(_ context.Context, id int) error {
	if _, ok := s.rules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *memRuleStore) GetCursor(_ context.Context, ruleID int) (*int, error) {
	return s.cursors[ruleID], nil
}

func (s *memRuleStore) CompareAndSwapCursor(_ context.Context, ruleID int, prev *int, next int) (bool, error) {
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

type memUserStore struct {
	users map[int]*models.User
}

func newMemUserStore(users ...*models.User) *memUserStore {
	s := &memUserStore{users: make(map[int]*models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memUserStore) GetUser(_ context.Context, id int) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (s *memUserStore) ListActiveUsers(_ context.Context, orgID int, f domain.UserFilter) ([]*models.User, error) {
	var out []*models.User
	for _, u := range s.users {
		if u.OrganizationID != orgID || !u.IsActive {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.ReportsToID != nil && (u.ReportsToID == nil || *u.ReportsToID != *f.ReportsToID) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memUserStore) ListActiveAdmins(_ context.Context, orgID int) ([]*models.User, error) {
	return s.ListActiveUsers(context.Background(), orgID, domain.UserFilter{Role: models.RoleAdmin})
}

type memQuotaStore struct {
	counts map[int]int
}

func (s *memQuotaStore) IncrementDailyCount(_ context.Context, userID int, _ time.Time) error {
	if s.counts == nil {
		s.counts = make(map[int]int)
	}
	s.counts[userID]++
	return nil
}

func (s *memQuotaStore) DailyCounts(_ context.Context, userIDs []int, _ time.Time) (map[int]int, error) {
	out := make(map[int]int)
	for _, id := range userIDs {
		if n, ok := s.counts[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (s *memQuotaStore) PurgeBefore(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

type memOpportunityStore struct{}

func (memOpportunityStore) ClosedWonRevenue(_ context.Context, _ []int, _ time.Time) ([]models.OwnerRevenue, error) {
	return nil, nil
}

// buildEngine wires a real assignment engine over the in-memory stores.
func buildEngine(users *memUserStore, leads *memLeadStore, rules *memRuleStore, assignments *memAssignmentStore) *assignment.Engine {
	log := logger.New("error", "text")
	quotas := quota.NewTracker(&memQuotaStore{})
	eligibility := assignment.NewEligibilityFilter(users, quotas, log)

	return assignment.NewEngine(assignment.Deps{
		Leads:       leads,
		Rules:       rules,
		Assignments: assignments,
		Quotas:      quotas,
		Eligibility: eligibility,
		Escalation:  assignment.NewEscalationResolver(users, log),
		Strategies: []assignment.Strategy{
			assignment.SpecificUserStrategy{},
			assignment.NewRoundRobinRoleStrategy(rules, 3),
			assignment.NewTopPerformerStrategy(memOpportunityStore{}),
			assignment.NewCampaignPoolStrategy(eligibility, rules, 3),
		},
		Notifier: notify.NewLogNotifier(log),
		Logger:   log,
	}, assignment.Config{EscalateOnUnknownStrategy: true})
}
