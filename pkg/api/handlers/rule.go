package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/leadrouter/pkg/api/errors"
	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// RuleInvalidator drops cached rule lists after a catalog mutation.
type RuleInvalidator interface {
	Invalidate(ctx context.Context, orgID int)
}

// RuleHandler handles assignment rule management. All routes require the
// admin role.
type RuleHandler struct {
	rules       domain.RuleStore
	invalidator RuleInvalidator
	validate    *validator.Validate
}

// NewRuleHandler creates a new rule handler. invalidator may be nil when
// no rule cache is configured.
func NewRuleHandler(rules domain.RuleStore, invalidator RuleInvalidator) *RuleHandler {
	return &RuleHandler{
		rules:       rules,
		invalidator: invalidator,
		validate:    validator.New(),
	}
}

// Register wires the rule routes onto the group.
func (h *RuleHandler) Register(g *echo.Group) {
	g.GET("/rules", h.ListRules)
	g.POST("/rules", h.CreateRule)
	g.GET("/rules/:id", h.GetRule)
	g.PUT("/rules/:id", h.UpdateRule)
	g.DELETE("/rules/:id", h.DeleteRule)
}

// ListRules returns every rule of the organization, active or not.
func (h *RuleHandler) ListRules(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	orgID, ok := organizationID(c)
	if !ok {
		return apierrors.ValidationError(c, errors.New("missing organization"))
	}

	rules, err := h.rules.ListRules(ctx, orgID)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	out := make([]models.RuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, models.ToRuleResponse(r))
	}
	return c.JSON(http.StatusOK, out)
}

// CreateRule validates and stores a new rule, then invalidates the
// organization's cached rule list.
func (h *RuleHandler) CreateRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	orgID, ok := organizationID(c)
	if !ok {
		return apierrors.ValidationError(c, errors.New("missing organization"))
	}
	userID, _ := c.Get("user_id").(int)

	var req models.CreateRuleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	rule, err := ruleFromRequest(&req, orgID, userID)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	if err := h.rules.CreateRule(ctx, rule); err != nil {
		return apierrors.DatabaseError(c, err)
	}
	h.invalidate(ctx, orgID)

	return c.JSON(http.StatusCreated, models.ToRuleResponse(rule))
}

// GetRule returns one rule by id.
func (h *RuleHandler) GetRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_rule_id",
			Message: "Rule ID must be a valid number",
		})
	}

	rule, err := h.rules.GetRule(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apierrors.NotFoundError(c, "Rule")
		}
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.ToRuleResponse(rule))
}

// UpdateRule replaces a rule's configuration and invalidates the cache.
func (h *RuleHandler) UpdateRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_rule_id",
			Message: "Rule ID must be a valid number",
		})
	}

	existing, err := h.rules.GetRule(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apierrors.NotFoundError(c, "Rule")
		}
		return apierrors.DatabaseError(c, err)
	}

	var req models.CreateRuleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	rule, err := ruleFromRequest(&req, existing.OrganizationID, existing.CreatedBy)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}
	rule.ID = existing.ID
	rule.LastAssignedUserID = existing.LastAssignedUserID

	if err := h.rules.UpdateRule(ctx, rule); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apierrors.NotFoundError(c, "Rule")
		}
		return apierrors.DatabaseError(c, err)
	}
	h.invalidate(ctx, existing.OrganizationID)

	return c.JSON(http.StatusOK, models.ToRuleResponse(rule))
}

// DeleteRule removes a rule and invalidates the cache.
func (h *RuleHandler) DeleteRule(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_rule_id",
			Message: "Rule ID must be a valid number",
		})
	}

	existing, err := h.rules.GetRule(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apierrors.NotFoundError(c, "Rule")
		}
		return apierrors.DatabaseError(c, err)
	}

	if err := h.rules.DeleteRule(ctx, id); err != nil {
		return apierrors.DatabaseError(c, err)
	}
	h.invalidate(ctx, existing.OrganizationID)

	return c.NoContent(http.StatusNoContent)
}

func (h *RuleHandler) invalidate(ctx context.Context, orgID int) {
	if h.invalidator != nil {
		h.invalidator.Invalidate(ctx, orgID)
	}
}

// ruleFromRequest builds a rule from the request payload, normalizing
// operator aliases and rejecting anything outside the supported set.
func ruleFromRequest(req *models.CreateRuleRequest, orgID, createdBy int) (*models.AssignmentRule, error) {
	criteria := make([]models.Condition, 0, len(req.Criteria))
	for _, cond := range req.Criteria {
		op, err := models.NormalizeOperator(string(cond.Operator))
		if err != nil {
			return nil, err
		}
		if cond.Field == "" {
			return nil, errors.New("condition field is required")
		}
		criteria = append(criteria, models.Condition{Field: cond.Field, Operator: op, Value: cond.Value})
	}

	scope := models.DistributionScope(req.DistributionScope)
	if scope == "" {
		scope = models.ScopeOrganization
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	rule := &models.AssignmentRule{
		OrganizationID:    orgID,
		Name:              req.Name,
		Priority:          req.Priority,
		IsActive:          active,
		Criteria:          criteria,
		DistributionType:  models.DistributionType(req.DistributionType),
		DistributionScope: scope,
		TargetRole:        models.Role(req.TargetRole),
		AssignTo:          req.AssignTo,
		TargetManagerID:   req.TargetManagerID,
		CreatedBy:         createdBy,
	}

	switch rule.DistributionType {
	case models.DistributionSpecificUser:
		if rule.AssignTo.UserID == nil {
			return nil, errors.New("specific_user rules require assign_to.user_id")
		}
	case models.DistributionCampaignPool:
		if len(rule.AssignTo.UserIDs) == 0 {
			return nil, errors.New("campaign_pool rules require assign_to.user_ids")
		}
	}
	return rule, nil
}
