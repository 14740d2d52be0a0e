package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/metrics"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// SelectionContext carries everything a strategy may need. Eligible is
// computed lazily and memoized by the engine; strategies that bypass
// eligibility never trigger it.
type SelectionContext struct {
	Rule     *models.AssignmentRule
	OrgID    int
	Eligible func(ctx context.Context) ([]*models.User, error)
}

// Strategy picks an assignee for a matched rule. A nil user id means
// "no candidate" and is a normal outcome, distinct from an error.
type Strategy interface {
	Type() models.DistributionType
	Select(ctx context.Context, sel *SelectionContext) (*int, error)
}

// SpecificUserStrategy assigns the single user configured on the rule.
// It deliberately bypasses eligibility and quota checks: it is the
// manual-override escape hatch, and the daily quota ceiling does not
// apply to it.
type SpecificUserStrategy struct{}

func (SpecificUserStrategy) Type() models.DistributionType { return models.DistributionSpecificUser }

func (SpecificUserStrategy) Select(_ context.Context, sel *SelectionContext) (*int, error) {
	if sel.Rule.AssignTo.UserID == nil {
		return nil, nil
	}
	id := *sel.Rule.AssignTo.UserID
	return &id, nil
}

// RoundRobinRoleStrategy cycles through the eligible candidate list,
// advancing the rule's persisted cursor with a compare-and-swap so that
// concurrent assignments under the same rule cannot pick the same slot.
type RoundRobinRoleStrategy struct {
	rules   domain.RuleStore
	retries int
	metrics *metrics.Metrics
}

// NewRoundRobinRoleStrategy creates the role-based round robin strategy.
func NewRoundRobinRoleStrategy(rules domain.RuleStore, retries int) *RoundRobinRoleStrategy {
	if retries < 1 {
		retries = 3
	}
	return &RoundRobinRoleStrategy{rules: rules, retries: retries}
}

// WithMetrics enables cursor contention instrumentation.
func (s *RoundRobinRoleStrategy) WithMetrics(m *metrics.Metrics) *RoundRobinRoleStrategy {
	s.metrics = m
	return s
}

func (s *RoundRobinRoleStrategy) Type() models.DistributionType {
	return models.DistributionRoundRobin
}

func (s *RoundRobinRoleStrategy) Select(ctx context.Context, sel *SelectionContext) (*int, error) {
	pool, err := sel.Eligible(ctx)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}
	return advanceCursor(ctx, s.rules, sel.Rule.ID, pool, s.retries, s.metrics)
}

// TopPerformerStrategy picks the eligible user with the highest
// closed-won revenue over the trailing window. Ties resolve to the first
// row of the aggregate query; with no qualifying revenue at all it falls
// back to the first eligible user by id.
type TopPerformerStrategy struct {
	opportunities domain.OpportunityStore
	window        time.Duration
	now           func() time.Time
}

// NewTopPerformerStrategy creates the top-performer strategy with the
// standard trailing 30-day window.
func NewTopPerformerStrategy(opportunities domain.OpportunityStore) *TopPerformerStrategy {
	return &TopPerformerStrategy{
		opportunities: opportunities,
		window:        30 * 24 * time.Hour,
		now:           time.Now,
	}
}

func (s *TopPerformerStrategy) Type() models.DistributionType {
	return models.DistributionTopPerformer
}

func (s *TopPerformerStrategy) Select(ctx context.Context, sel *SelectionContext) (*int, error) {
	pool, err := sel.Eligible(ctx)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}

	ids := make([]int, len(pool))
	for i, u := range pool {
		ids[i] = u.ID
	}

	since := s.now().Add(-s.window)
	totals, err := s.opportunities.ClosedWonRevenue(ctx, ids, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue: %w", err)
	}
	if len(totals) > 0 {
		id := totals[0].OwnerID
		return &id, nil
	}

	// Nobody closed anything in the window: first eligible by id.
	id := pool[0].ID
	return &id, nil
}

// CampaignPoolStrategy runs the same cursor mechanics as round robin but
// over the fixed user-id pool on the rule, filtered only by active
// status and quota.
type CampaignPoolStrategy struct {
	eligibility *EligibilityFilter
	rules       domain.RuleStore
	retries     int
	metrics     *metrics.Metrics
}

// NewCampaignPoolStrategy creates the fixed-pool round robin strategy.
func NewCampaignPoolStrategy(eligibility *EligibilityFilter, rules domain.RuleStore, retries int) *CampaignPoolStrategy {
	if retries < 1 {
		retries = 3
	}
	return &CampaignPoolStrategy{eligibility: eligibility, rules: rules, retries: retries}
}

// WithMetrics enables cursor contention instrumentation.
func (s *CampaignPoolStrategy) WithMetrics(m *metrics.Metrics) *CampaignPoolStrategy {
	s.metrics = m
	return s
}

func (s *CampaignPoolStrategy) Type() models.DistributionType {
	return models.DistributionCampaignPool
}

func (s *CampaignPoolStrategy) Select(ctx context.Context, sel *SelectionContext) (*int, error) {
	pool, err := s.eligibility.FilterPool(ctx, sel.Rule.AssignTo.UserIDs)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}
	return advanceCursor(ctx, s.rules, sel.Rule.ID, pool, s.retries, s.metrics)
}

// advanceCursor reads the rule's cursor fresh, computes the next slot and
// commits it with a compare-and-swap, retrying on interleaved writers. If
// the cursor points at a user no longer in the pool the cycle restarts at
// index zero.
//
// The cursor commits before the lead itself is written. When that later
// write fails the advanced slot is not rolled back, so the selected user
// loses one turn in the rotation. This costs fairness, never correctness,
// and avoids holding a rule-level lock across the whole commit.
func advanceCursor(ctx context.Context, rules domain.RuleStore, ruleID int, pool []*models.User, retries int, m *metrics.Metrics) (*int, error) {
	for attempt := 0; attempt < retries; attempt++ {
		cursor, err := rules.GetCursor(ctx, ruleID)
		if err != nil {
			return nil, fmt.Errorf("failed to read cursor: %w", err)
		}

		idx := 0
		if cursor != nil {
			for i, u := range pool {
				if u.ID == *cursor {
					idx = (i + 1) % len(pool)
					break
				}
			}
		}

		next := pool[idx].ID
		ok, err := rules.CompareAndSwapCursor(ctx, ruleID, cursor, next)
		if err != nil {
			return nil, fmt.Errorf("failed to advance cursor: %w", err)
		}
		if ok {
			return &next, nil
		}
		if m != nil {
			m.RecordCursorConflict()
		}
	}
	return nil, fmt.Errorf("cursor contention on rule %d exceeded %d attempts", ruleID, retries)
}
