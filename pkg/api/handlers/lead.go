package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadrouter/pkg/assignment"
	apierrors "github.com/jordanlanch/leadrouter/pkg/api/errors"
	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// LeadHandler handles lead intake and assignment operations.
type LeadHandler struct {
	leads       domain.LeadStore
	assignments domain.AssignmentStore
	engine      *assignment.Engine
	validate    *validator.Validate
}

// NewLeadHandler creates a new lead handler.
func NewLeadHandler(leads domain.LeadStore, assignments domain.AssignmentStore, engine *assignment.Engine) *LeadHandler {
	return &LeadHandler{
		leads:       leads,
		assignments: assignments,
		engine:      engine,
		validate:    validator.New(),
	}
}

// Register wires the lead routes onto the group.
func (h *LeadHandler) Register(g *echo.Group) {
	g.POST("/leads", h.CreateLead)
	g.POST("/leads/:id/auto-assign", h.AutoAssignLead)
	g.POST("/leads/:id/assign", h.AssignLead)
	g.GET("/leads/:id/assignment", h.CurrentAssignment)
	g.GET("/leads/:id/assignment-history", h.AssignmentHistory)
	g.GET("/user/assigned-leads", h.AssignedLeads)
}

type createLeadResult struct {
	Lead       models.LeadResponse `json:"lead"`
	Assignment *assignment.Outcome `json:"assignment"`
}

// CreateLead ingests a lead and immediately runs the assignment pipeline.
// Assignment failures never fail intake; the lead is simply returned
// unassigned.
func (h *LeadHandler) CreateLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	orgID, ok := organizationID(c)
	if !ok {
		return apierrors.ValidationError(c, errors.New("missing organization"))
	}

	var req models.CreateLeadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	lead := &models.Lead{
		OrganizationID: orgID,
		Name:           req.Name,
		Source:         req.Source,
		Score:          req.Score,
		Fields:         req.Fields,
	}
	if err := h.leads.CreateLead(ctx, lead); err != nil {
		return apierrors.DatabaseError(c, err)
	}

	outcome := h.engine.AssignLead(ctx, lead.ID, orgID)
	if outcome.UserID != nil {
		lead.AssignedTo = outcome.UserID
	}

	return c.JSON(http.StatusCreated, createLeadResult{
		Lead:       models.ToLeadResponse(lead),
		Assignment: outcome,
	})
}

// AutoAssignLead re-runs the assignment pipeline for an existing lead.
func (h *LeadHandler) AutoAssignLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	leadID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_lead_id",
			Message: "Lead ID must be a valid number",
		})
	}
	orgID, ok := organizationID(c)
	if !ok {
		return apierrors.ValidationError(c, errors.New("missing organization"))
	}

	if _, err := h.leads.GetLead(ctx, leadID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apierrors.NotFoundError(c, "Lead")
		}
		return apierrors.DatabaseError(c, err)
	}

	outcome := h.engine.AssignLead(ctx, leadID, orgID)
	return c.JSON(http.StatusOK, outcome)
}

// AssignLead assigns a lead to a chosen user, bypassing the rule engine.
func (h *LeadHandler) AssignLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	leadID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_lead_id",
			Message: "Lead ID must be a valid number",
		})
	}

	var req models.AssignLeadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	if err := h.leads.SetAssignee(ctx, leadID, req.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apierrors.NotFoundError(c, "Lead")
		}
		return apierrors.DatabaseError(c, err)
	}

	a := &models.Assignment{
		LeadID:   leadID,
		UserID:   req.UserID,
		Type:     models.AssignmentTypeManual,
		Reason:   req.Reason,
		IsActive: true,
	}
	if err := h.assignments.RecordAssignment(ctx, a); err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, models.ToAssignmentResponse(a))
}

// CurrentAssignment returns the lead's active assignment, if any.
func (h *LeadHandler) CurrentAssignment(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	leadID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_lead_id",
			Message: "Lead ID must be a valid number",
		})
	}

	a, err := h.assignments.CurrentAssignment(ctx, leadID)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	if a == nil {
		return apierrors.NotFoundError(c, "Assignment")
	}
	return c.JSON(http.StatusOK, models.ToAssignmentResponse(a))
}

// AssignmentHistory returns the lead's full assignment history, newest
// first.
func (h *LeadHandler) AssignmentHistory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	leadID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_lead_id",
			Message: "Lead ID must be a valid number",
		})
	}

	history, err := h.assignments.HistoryForLead(ctx, leadID)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	out := make([]models.AssignmentResponse, 0, len(history))
	for _, a := range history {
		out = append(out, models.ToAssignmentResponse(a))
	}
	return c.JSON(http.StatusOK, out)
}

// AssignedLeads returns the authenticated user's active assignments.
func (h *LeadHandler) AssignedLeads(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, ok := c.Get("user_id").(int)
	if !ok {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication required",
		})
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.assignments.LeadsForUser(ctx, userID, limit)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	out := make([]models.AssignmentResponse, 0, len(rows))
	for _, a := range rows {
		out = append(out, models.ToAssignmentResponse(a))
	}
	return c.JSON(http.StatusOK, out)
}

// organizationID reads the organization from the query or the JWT-scoped
// context value set by upstream middleware.
func organizationID(c echo.Context) (int, bool) {
	if raw := c.QueryParam("organization_id"); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			return id, true
		}
	}
	if id, ok := c.Get("organization_id").(int); ok {
		return id, true
	}
	return 0, false
}
