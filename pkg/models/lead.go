package models

import "time"

// Lead represents a sales lead created by intake (import, API or manual).
// The assignment engine mutates it only through AssignedTo.
type Lead struct {
	ID             int            `json:"id"`
	OrganizationID int            `json:"organization_id"`
	Name           string         `json:"name"`
	Source         string         `json:"source,omitempty"`
	Score          int            `json:"score"`
	Fields         map[string]any `json:"fields,omitempty"`
	AssignedTo     *int           `json:"assigned_to,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// MatchDocument flattens the lead into the document rule conditions are
// evaluated against. Custom fields sit alongside the typed columns; a
// custom field never shadows a typed one.
func (l *Lead) MatchDocument() map[string]any {
	doc := make(map[string]any, len(l.Fields)+3)
	for k, v := range l.Fields {
		doc[k] = v
	}
	doc["name"] = l.Name
	doc["source"] = l.Source
	doc["score"] = l.Score
	return doc
}

// CreateLeadRequest represents a lead intake request.
type CreateLeadRequest struct {
	Name   string         `json:"name" validate:"required,min=2"`
	Source string         `json:"source,omitempty"`
	Score  int            `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	Fields map[string]any `json:"fields,omitempty"`
}

// LeadResponse represents a lead in API responses.
type LeadResponse struct {
	ID         int            `json:"id"`
	Name       string         `json:"name"`
	Source     string         `json:"source,omitempty"`
	Score      int            `json:"score"`
	Fields     map[string]any `json:"fields,omitempty"`
	AssignedTo *int           `json:"assigned_to,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ToLeadResponse converts a lead to its API representation.
func ToLeadResponse(l *Lead) LeadResponse {
	return LeadResponse{
		ID:         l.ID,
		Name:       l.Name,
		Source:     l.Source,
		Score:      l.Score,
		Fields:     l.Fields,
		AssignedTo: l.AssignedTo,
		CreatedAt:  l.CreatedAt,
	}
}
