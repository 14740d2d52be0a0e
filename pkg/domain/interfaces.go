package domain

import (
	"context"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/models"
)

// UserFilter narrows ListActiveUsers. Zero values mean "no filter".
type UserFilter struct {
	Role        models.Role
	ReportsToID *int
}

// UserStore defines read access to the externally-owned user directory.
type UserStore interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
	// ListActiveUsers returns active users of the organization matching the
	// filter, ordered by id ascending (round-robin cursor math depends on
	// a deterministic order).
	ListActiveUsers(ctx context.Context, orgID int, f UserFilter) ([]*models.User, error)
	ListActiveAdmins(ctx context.Context, orgID int) ([]*models.User, error)
}

// LeadStore defines data access operations for leads.
type LeadStore interface {
	GetLead(ctx context.Context, id int) (*models.Lead, error)
	CreateLead(ctx context.Context, lead *models.Lead) error
	SetAssignee(ctx context.Context, leadID, userID int) error
}

// RuleStore defines access to the assignment rule catalog. The engine
// reads rules and writes only the round-robin cursor.
type RuleStore interface {
	// ListActiveRules returns the organization's active rules ordered by
	// priority ascending. Rules whose criteria fail to decode are skipped.
	ListActiveRules(ctx context.Context, orgID int) ([]*models.AssignmentRule, error)
	GetRule(ctx context.Context, id int) (*models.AssignmentRule, error)
	ListRules(ctx context.Context, orgID int) ([]*models.AssignmentRule, error)
	CreateRule(ctx context.Context, rule *models.AssignmentRule) error
	UpdateRule(ctx context.Context, rule *models.AssignmentRule) error
	DeleteRule(ctx context.Context, id int) error

	// GetCursor reads the current round-robin cursor for a rule.
	GetCursor(ctx context.Context, ruleID int) (*int, error)
	// CompareAndSwapCursor advances the cursor only if it still equals
	// prev; reports whether the swap took effect.
	CompareAndSwapCursor(ctx context.Context, ruleID int, prev *int, next int) (bool, error)
}

// QuotaStore tracks per-user, per-UTC-day assigned-lead counters.
// Increments must be atomic upserts; counters are never decremented.
type QuotaStore interface {
	IncrementDailyCount(ctx context.Context, userID int, day time.Time) error
	DailyCounts(ctx context.Context, userIDs []int, day time.Time) (map[int]int, error)
	PurgeBefore(ctx context.Context, day time.Time) (int64, error)
}

// OpportunityStore provides read access to revenue aggregates.
type OpportunityStore interface {
	// ClosedWonRevenue sums closed-won opportunity amounts per owner since
	// the given time, ordered by total descending then owner id ascending.
	// Owners with no qualifying opportunities are omitted.
	ClosedWonRevenue(ctx context.Context, ownerIDs []int, since time.Time) ([]models.OwnerRevenue, error)
}

// AssignmentStore persists the assignment history.
type AssignmentStore interface {
	// RecordAssignment deactivates any active rows for the lead and
	// inserts the new one in a single transaction.
	RecordAssignment(ctx context.Context, a *models.Assignment) error
	// CurrentAssignment returns the active assignment, or nil when the
	// lead is unassigned.
	CurrentAssignment(ctx context.Context, leadID int) (*models.Assignment, error)
	HistoryForLead(ctx context.Context, leadID int) ([]*models.Assignment, error)
	LeadsForUser(ctx context.Context, userID, limit int) ([]*models.Assignment, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// Notifier requests a notification for a committed assignment. Failures
// are the notifier's problem; the engine never blocks on delivery.
type Notifier interface {
	NotifyAssigned(ctx context.Context, n models.AssignmentNotice)
}
