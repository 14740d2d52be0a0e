package models

import "time"

// Role represents a user's role within an organization.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleSalesRep Role = "sales_rep"
)

// User represents a member of an organization's sales team.
// The user directory is owned by the account system; the assignment
// engine only reads it.
type User struct {
	ID             int       `json:"id"`
	OrganizationID int       `json:"organization_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	ReportsToID    *int      `json:"reports_to_id,omitempty"`
	DailyLeadQuota *int      `json:"daily_lead_quota,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	DailyLeadQuota *int   `json:"daily_lead_quota,omitempty"`
	IsActive       bool   `json:"is_active"`
}

// ToUserResponse converts a user to its API representation.
func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           string(u.Role),
		DailyLeadQuota: u.DailyLeadQuota,
		IsActive:       u.IsActive,
	}
}
