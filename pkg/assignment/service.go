package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/metrics"
	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/quota"
)

// RuleSource yields an organization's active rules in ascending priority
// order. The Postgres store satisfies it directly; the Redis rule cache
// wraps it with a TTL.
type RuleSource interface {
	ActiveRules(ctx context.Context, orgID int) ([]*models.AssignmentRule, error)
}

// Config tunes engine behavior.
type Config struct {
	// EscalateOnUnknownStrategy keeps the historical behavior for rules
	// with an unsupported distribution type: the matched rule proceeds
	// into escalation. When false the engine advances to the next rule.
	EscalateOnUnknownStrategy bool
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Leads       domain.LeadStore
	Rules       RuleSource
	Assignments domain.AssignmentStore
	Quotas      *quota.Tracker
	Eligibility *EligibilityFilter
	Escalation  *EscalationResolver
	Strategies  []Strategy
	Notifier    domain.Notifier
	Metrics     *metrics.Metrics
	Logger      logger.Logger
}

// Engine drives the assignment pipeline for one lead at a time: iterate
// rules by priority, match conditions, run the rule's strategy, then
// commit the assignment or escalate. Exactly one terminal outcome is
// produced per lead.
type Engine struct {
	leads       domain.LeadStore
	rules       RuleSource
	assignments domain.AssignmentStore
	quotas      *quota.Tracker
	eligibility *EligibilityFilter
	escalation  *EscalationResolver
	strategies  map[models.DistributionType]Strategy
	notifier    domain.Notifier
	metrics     *metrics.Metrics
	log         logger.Logger
	cfg         Config
}

// Outcome is the terminal result of one assignment pipeline run.
type Outcome struct {
	LeadID    int    `json:"lead_id"`
	UserID    *int   `json:"user_id,omitempty"`
	RuleID    *int   `json:"rule_id,omitempty"`
	RuleName  string `json:"rule_name,omitempty"`
	Escalated bool   `json:"escalated"`
}

// NewEngine creates the assignment engine.
func NewEngine(deps Deps, cfg Config) *Engine {
	strategies := make(map[models.DistributionType]Strategy, len(deps.Strategies))
	for _, s := range deps.Strategies {
		strategies[s.Type()] = s
	}
	return &Engine{
		leads:       deps.Leads,
		rules:       deps.Rules,
		assignments: deps.Assignments,
		quotas:      deps.Quotas,
		eligibility: deps.Eligibility,
		escalation:  deps.Escalation,
		strategies:  strategies,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		log:         deps.Logger,
		cfg:         cfg,
	}
}

// AssignLead runs the pipeline for a newly created lead. It never
// returns an error: storage failures abort the run, are logged, and the
// lead simply stays unassigned for manual triage. Retrying is safe; the
// pipeline re-derives all state from storage.
func (e *Engine) AssignLead(ctx context.Context, leadID, orgID int) *Outcome {
	start := time.Now()

	out, strategy, err := e.assign(ctx, leadID, orgID)
	if err != nil {
		e.log.Error("lead assignment aborted", "lead_id", leadID, "org_id", orgID, "error", err)
		e.record(strategy, "failed", start)
		return &Outcome{LeadID: leadID}
	}

	switch {
	case out.UserID == nil:
		e.record(strategy, "unassigned", start)
	case out.Escalated:
		e.record(strategy, "escalated", start)
	default:
		e.record(strategy, "assigned", start)
	}
	return out
}

func (e *Engine) assign(ctx context.Context, leadID, orgID int) (*Outcome, string, error) {
	lead, err := e.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load lead: %w", err)
	}

	rules, err := e.rules.ActiveRules(ctx, orgID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load rules: %w", err)
	}

	doc := lead.MatchDocument()

	for _, rule := range rules {
		if err := rule.ValidateCriteria(); err != nil {
			e.log.Warn("skipping rule with invalid criteria", "rule_id", rule.ID, "error", err)
			continue
		}
		if !Matches(rule, doc) {
			continue
		}

		strategyName := string(rule.DistributionType)
		userID, err := e.runStrategy(ctx, rule, orgID)
		if err != nil {
			return nil, strategyName, err
		}
		if userID == nil && !e.cfg.EscalateOnUnknownStrategy && e.strategies[rule.DistributionType] == nil {
			// Unsupported strategy configured to fall through to the
			// next rule instead of escalating.
			continue
		}

		if userID == nil {
			out, err := e.escalate(ctx, lead, rule, orgID)
			return out, strategyName, err
		}

		out, err := e.commit(ctx, lead, rule, *userID)
		return out, strategyName, err
	}

	e.log.Info("no assignment rule matched", "lead_id", leadID, "org_id", orgID)
	return &Outcome{LeadID: leadID}, "none", nil
}

// runStrategy executes the rule's strategy with a lazily computed,
// memoized eligible set. A missing strategy yields no user.
func (e *Engine) runStrategy(ctx context.Context, rule *models.AssignmentRule, orgID int) (*int, error) {
	strat, ok := e.strategies[rule.DistributionType]
	if !ok {
		e.log.Warn("unsupported distribution type", "rule_id", rule.ID, "distribution_type", rule.DistributionType)
		return nil, nil
	}

	var (
		cached []*models.User
		cerr   error
		loaded bool
	)
	sel := &SelectionContext{
		Rule:  rule,
		OrgID: orgID,
		Eligible: func(ctx context.Context) ([]*models.User, error) {
			if !loaded {
				cached, cerr = e.eligibility.Eligible(ctx, rule, orgID)
				loaded = true
			}
			return cached, cerr
		},
	}
	return strat.Select(ctx, sel)
}

// commit persists a regular assignment: the lead's assignee, the user's
// daily quota counter and a history row, then requests a notification.
// Cursor strategies have already advanced their cursor by this point.
func (e *Engine) commit(ctx context.Context, lead *models.Lead, rule *models.AssignmentRule, userID int) (*Outcome, error) {
	if err := e.leads.SetAssignee(ctx, lead.ID, userID); err != nil {
		return nil, fmt.Errorf("failed to persist assignee: %w", err)
	}
	if err := e.quotas.Increment(ctx, userID); err != nil {
		return nil, err
	}

	a := &models.Assignment{
		LeadID:   lead.ID,
		UserID:   userID,
		RuleID:   &rule.ID,
		Type:     models.AssignmentTypeAuto,
		Reason:   string(rule.DistributionType),
		IsActive: true,
	}
	if err := e.assignments.RecordAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to record assignment: %w", err)
	}

	e.log.Info("lead assigned",
		"lead_id", lead.ID, "user_id", userID, "rule_id", rule.ID, "strategy", rule.DistributionType)
	e.notify(ctx, models.AssignmentNotice{LeadID: lead.ID, UserID: userID, RuleName: rule.Name})

	return &Outcome{LeadID: lead.ID, UserID: &userID, RuleID: &rule.ID, RuleName: rule.Name}, nil
}

// escalate assigns the lead to the resolved fallback manager. Quota
// counters are untouched; the manager is expected to re-route manually.
// Escalation is terminal for the lead even when the chain is empty.
func (e *Engine) escalate(ctx context.Context, lead *models.Lead, rule *models.AssignmentRule, orgID int) (*Outcome, error) {
	managerID := e.escalation.Resolve(ctx, rule, orgID)
	if managerID == nil {
		e.log.Warn("escalation chain empty, lead left unassigned", "lead_id", lead.ID, "rule_id", rule.ID)
		return &Outcome{LeadID: lead.ID, RuleID: &rule.ID, RuleName: rule.Name}, nil
	}

	if err := e.leads.SetAssignee(ctx, lead.ID, *managerID); err != nil {
		return nil, fmt.Errorf("failed to persist escalated assignee: %w", err)
	}

	a := &models.Assignment{
		LeadID:   lead.ID,
		UserID:   *managerID,
		RuleID:   &rule.ID,
		Type:     models.AssignmentTypeEscalated,
		Reason:   "no eligible candidate",
		IsActive: true,
	}
	if err := e.assignments.RecordAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to record escalation: %w", err)
	}

	e.log.Info("lead escalated", "lead_id", lead.ID, "manager_id", *managerID, "rule_id", rule.ID)
	e.notify(ctx, models.AssignmentNotice{LeadID: lead.ID, UserID: *managerID, RuleName: rule.Name, Escalated: true})

	return &Outcome{LeadID: lead.ID, UserID: managerID, RuleID: &rule.ID, RuleName: rule.Name, Escalated: true}, nil
}

func (e *Engine) notify(ctx context.Context, n models.AssignmentNotice) {
	if e.notifier != nil {
		e.notifier.NotifyAssigned(ctx, n)
	}
}

func (e *Engine) record(strategy, outcome string, start time.Time) {
	if e.metrics == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	e.metrics.RecordAssignment(strategy, outcome, time.Since(start))
}
