package models

import (
	"fmt"
	"time"
)

// DistributionType selects the strategy a rule distributes leads with.
type DistributionType string

const (
	DistributionSpecificUser DistributionType = "specific_user"
	DistributionRoundRobin   DistributionType = "round_robin_role"
	DistributionTopPerformer DistributionType = "top_performer"
	DistributionCampaignPool DistributionType = "campaign_pool"
)

// DistributionScope narrows the candidate set a rule draws from.
type DistributionScope string

const (
	ScopeOrganization  DistributionScope = "organization"
	ScopeDirectReports DistributionScope = "direct_reports"
)

// Operator is the closed set of condition operators. Anything outside
// this set is rejected when a rule is decoded, not defaulted to a match.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
)

// NormalizeOperator maps accepted aliases onto the canonical operator.
func NormalizeOperator(s string) (Operator, error) {
	switch Operator(s) {
	case OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan, OpIn:
		return Operator(s), nil
	case "gt":
		return OpGreaterThan, nil
	case "lt":
		return OpLessThan, nil
	default:
		return "", fmt.Errorf("unknown operator %q", s)
	}
}

// Condition is a single field predicate within a rule's criteria.
// Field is a dot-separated path into the lead's match document.
type Condition struct {
	Field    string   `json:"field" validate:"required"`
	Operator Operator `json:"operator" validate:"required"`
	Value    any      `json:"value"`
}

// Validate checks the condition against the closed operator set.
func (c Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("condition field is required")
	}
	if _, err := NormalizeOperator(string(c.Operator)); err != nil {
		return err
	}
	return nil
}

// AssignTo carries the strategy-specific payload of a rule: a single
// user id for specific_user, a fixed pool for campaign_pool.
type AssignTo struct {
	UserID  *int  `json:"user_id,omitempty"`
	UserIDs []int `json:"user_ids,omitempty"`
}

// AssignmentRule configures how matching leads are distributed. Rules are
// evaluated in ascending priority order; the engine writes only the
// round-robin cursor (LastAssignedUserID).
type AssignmentRule struct {
	ID                 int               `json:"id"`
	OrganizationID     int               `json:"organization_id"`
	Name               string            `json:"name"`
	Priority           int               `json:"priority"`
	IsActive           bool              `json:"is_active"`
	Criteria           []Condition       `json:"criteria"`
	DistributionType   DistributionType  `json:"distribution_type"`
	DistributionScope  DistributionScope `json:"distribution_scope"`
	TargetRole         Role              `json:"target_role,omitempty"`
	AssignTo           AssignTo          `json:"assign_to"`
	LastAssignedUserID *int              `json:"last_assigned_user_id,omitempty"`
	TargetManagerID    *int              `json:"target_manager_id,omitempty"`
	CreatedBy          int               `json:"created_by"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ValidateCriteria checks every condition; a rule with an invalid
// condition is skipped by the engine with a logged warning.
func (r *AssignmentRule) ValidateCriteria() error {
	for i, c := range r.Criteria {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("criteria[%d]: %w", i, err)
		}
	}
	return nil
}

// CreateRuleRequest represents a rule management request.
type CreateRuleRequest struct {
	Name              string      `json:"name" validate:"required,min=2"`
	Priority          int         `json:"priority" validate:"min=0"`
	IsActive          *bool       `json:"is_active,omitempty"`
	Criteria          []Condition `json:"criteria,omitempty"`
	DistributionType  string      `json:"distribution_type" validate:"required,oneof=specific_user round_robin_role top_performer campaign_pool"`
	DistributionScope string      `json:"distribution_scope,omitempty" validate:"omitempty,oneof=organization direct_reports"`
	TargetRole        string      `json:"target_role,omitempty" validate:"omitempty,oneof=admin manager sales_rep"`
	AssignTo          AssignTo    `json:"assign_to"`
	TargetManagerID   *int        `json:"target_manager_id,omitempty"`
}

// RuleResponse represents a rule in API responses.
type RuleResponse struct {
	ID                 int         `json:"id"`
	Name               string      `json:"name"`
	Priority           int         `json:"priority"`
	IsActive           bool        `json:"is_active"`
	Criteria           []Condition `json:"criteria"`
	DistributionType   string      `json:"distribution_type"`
	DistributionScope  string      `json:"distribution_scope"`
	TargetRole         string      `json:"target_role,omitempty"`
	AssignTo           AssignTo    `json:"assign_to"`
	LastAssignedUserID *int        `json:"last_assigned_user_id,omitempty"`
	TargetManagerID    *int        `json:"target_manager_id,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

// ToRuleResponse converts a rule to its API representation.
func ToRuleResponse(r *AssignmentRule) RuleResponse {
	return RuleResponse{
		ID:                 r.ID,
		Name:               r.Name,
		Priority:           r.Priority,
		IsActive:           r.IsActive,
		Criteria:           r.Criteria,
		DistributionType:   string(r.DistributionType),
		DistributionScope:  string(r.DistributionScope),
		TargetRole:         string(r.TargetRole),
		AssignTo:           r.AssignTo,
		LastAssignedUserID: r.LastAssignedUserID,
		TargetManagerID:    r.TargetManagerID,
		CreatedAt:          r.CreatedAt,
	}
}
