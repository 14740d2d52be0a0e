package models

import "time"

// AssignmentType distinguishes how a lead ended up with its owner.
type AssignmentType string

const (
	AssignmentTypeAuto      AssignmentType = "auto"
	AssignmentTypeManual    AssignmentType = "manual"
	AssignmentTypeEscalated AssignmentType = "escalated"
)

// Assignment is one row of a lead's assignment history. At most one row
// per lead is active; committing a new assignment deactivates the rest.
type Assignment struct {
	ID         int            `json:"id"`
	LeadID     int            `json:"lead_id"`
	UserID     int            `json:"user_id"`
	RuleID     *int           `json:"rule_id,omitempty"`
	Type       AssignmentType `json:"assignment_type"`
	Reason     string         `json:"reason,omitempty"`
	AssignedAt time.Time      `json:"assigned_at"`
	IsActive   bool           `json:"is_active"`
}

// AssignLeadRequest represents a manual assignment request.
type AssignLeadRequest struct {
	UserID int    `json:"user_id" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

// AssignmentResponse represents an assignment in API responses.
type AssignmentResponse struct {
	ID         int       `json:"id"`
	LeadID     int       `json:"lead_id"`
	UserID     int       `json:"user_id"`
	RuleID     *int      `json:"rule_id,omitempty"`
	Type       string    `json:"assignment_type"`
	Reason     string    `json:"reason,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
	IsActive   bool      `json:"is_active"`
}

// ToAssignmentResponse converts an assignment to its API representation.
func ToAssignmentResponse(a *Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:         a.ID,
		LeadID:     a.LeadID,
		UserID:     a.UserID,
		RuleID:     a.RuleID,
		Type:       string(a.Type),
		Reason:     a.Reason,
		AssignedAt: a.AssignedAt,
		IsActive:   a.IsActive,
	}
}

// AssignmentNotice is the payload of a notification request raised after
// an assignment commits. Delivery is up to the configured notifier.
type AssignmentNotice struct {
	LeadID    int    `json:"lead_id"`
	UserID    int    `json:"user_id"`
	RuleName  string `json:"rule_name,omitempty"`
	Escalated bool   `json:"escalated"`
}

// OwnerRevenue is a per-owner closed-won revenue aggregate used by the
// top-performer strategy. Amounts are in cents.
type OwnerRevenue struct {
	OwnerID    int
	TotalCents int64
}

// ErrorResponse is the generic API error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
