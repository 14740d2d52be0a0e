package assignment

import (
	"context"
	"fmt"
	"sort"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/quota"
)

// EligibilityFilter derives the candidate user set for a rule: active
// users of the organization, optionally narrowed by role and scope, with
// users at their daily quota dropped.
type EligibilityFilter struct {
	users  domain.UserStore
	quotas *quota.Tracker
	log    logger.Logger
}

// NewEligibilityFilter creates an eligibility filter.
func NewEligibilityFilter(users domain.UserStore, quotas *quota.Tracker, log logger.Logger) *EligibilityFilter {
	return &EligibilityFilter{users: users, quotas: quotas, log: log}
}

// Eligible returns the rule's candidates ordered by user id ascending.
// The order must stay deterministic: round-robin cursor math depends on it.
func (f *EligibilityFilter) Eligible(ctx context.Context, rule *models.AssignmentRule, orgID int) ([]*models.User, error) {
	filter := domain.UserFilter{Role: rule.TargetRole}

	if rule.DistributionScope == models.ScopeDirectReports {
		creator, err := f.users.GetUser(ctx, rule.CreatedBy)
		if err != nil {
			f.log.Warn("rule creator unknown, no direct-report candidates",
				"rule_id", rule.ID, "created_by", rule.CreatedBy, "error", err)
			return nil, nil
		}
		filter.ReportsToID = &creator.ID
	}

	candidates, err := f.users.ListActiveUsers(ctx, orgID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	return f.dropAtQuota(ctx, candidates)
}

// FilterPool applies active-status and quota filters to an explicit user
// id pool, used by the campaign-pool strategy. Role and scope do not
// apply to fixed pools.
func (f *EligibilityFilter) FilterPool(ctx context.Context, userIDs []int) ([]*models.User, error) {
	pool := make([]*models.User, 0, len(userIDs))
	for _, id := range userIDs {
		u, err := f.users.GetUser(ctx, id)
		if err != nil {
			f.log.Warn("pool member lookup failed", "user_id", id, "error", err)
			continue
		}
		if u.IsActive {
			pool = append(pool, u)
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}
	return f.dropAtQuota(ctx, pool)
}

func (f *EligibilityFilter) dropAtQuota(ctx context.Context, users []*models.User) ([]*models.User, error) {
	ids := make([]int, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	counts, err := f.quotas.Counts(ctx, ids)
	if err != nil {
		return nil, err
	}

	eligible := make([]*models.User, 0, len(users))
	for _, u := range users {
		if quota.AtQuota(u, counts) {
			continue
		}
		eligible = append(eligible, u)
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	return eligible, nil
}
