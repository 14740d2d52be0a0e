package assignment

import (
	"context"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// EscalationResolver finds a fallback assignee when a matched rule's
// strategy produced nobody. Resolution order: the rule creator's manager,
// the rule's configured target manager, any active admin. Escalated
// assignments never touch quota counters; the manager re-routes manually.
type EscalationResolver struct {
	users domain.UserStore
	log   logger.Logger
}

// NewEscalationResolver creates an escalation resolver.
func NewEscalationResolver(users domain.UserStore, log logger.Logger) *EscalationResolver {
	return &EscalationResolver{users: users, log: log}
}

// Resolve returns the fallback assignee, or nil when even the fallback
// chain is empty.
func (r *EscalationResolver) Resolve(ctx context.Context, rule *models.AssignmentRule, orgID int) *int {
	if id := r.creatorManager(ctx, rule); id != nil {
		return id
	}
	if id := r.configuredManager(ctx, rule); id != nil {
		return id
	}
	return r.anyAdmin(ctx, rule, orgID)
}

func (r *EscalationResolver) creatorManager(ctx context.Context, rule *models.AssignmentRule) *int {
	creator, err := r.users.GetUser(ctx, rule.CreatedBy)
	if err != nil {
		r.log.Warn("escalation: rule creator unknown", "rule_id", rule.ID, "created_by", rule.CreatedBy, "error", err)
		return nil
	}
	if creator.ReportsToID == nil {
		return nil
	}
	manager, err := r.users.GetUser(ctx, *creator.ReportsToID)
	if err != nil || !manager.IsActive {
		r.log.Warn("escalation: creator manager unavailable", "rule_id", rule.ID, "manager_id", *creator.ReportsToID)
		return nil
	}
	return &manager.ID
}

func (r *EscalationResolver) configuredManager(ctx context.Context, rule *models.AssignmentRule) *int {
	if rule.TargetManagerID == nil {
		return nil
	}
	manager, err := r.users.GetUser(ctx, *rule.TargetManagerID)
	if err != nil || !manager.IsActive {
		r.log.Warn("escalation: configured manager unavailable", "rule_id", rule.ID, "manager_id", *rule.TargetManagerID)
		return nil
	}
	return &manager.ID
}

func (r *EscalationResolver) anyAdmin(ctx context.Context, rule *models.AssignmentRule, orgID int) *int {
	admins, err := r.users.ListActiveAdmins(ctx, orgID)
	if err != nil {
		r.log.Warn("escalation: admin lookup failed", "rule_id", rule.ID, "error", err)
		return nil
	}
	if len(admins) == 0 {
		return nil
	}
	return &admins[0].ID
}
