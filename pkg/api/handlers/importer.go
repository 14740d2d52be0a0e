package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/leadrouter/pkg/api/errors"
	"github.com/jordanlanch/leadrouter/pkg/bulkimport"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// ImportHandler handles bulk lead import uploads.
type ImportHandler struct {
	importer *bulkimport.Importer
}

// NewImportHandler creates a new import handler.
func NewImportHandler(importer *bulkimport.Importer) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// Register wires the import routes onto the group.
func (h *ImportHandler) Register(g *echo.Group) {
	g.POST("/leads/import", h.ImportLeads)
}

// ImportLeads accepts a multipart CSV upload and routes every imported
// lead through the assignment pipeline. Row-level failures are reported
// in the result body, not as an HTTP error.
func (h *ImportHandler) ImportLeads(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Minute)
	defer cancel()

	orgID, ok := organizationID(c)
	if !ok {
		return apierrors.ValidationError(c, errors.New("missing organization"))
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "missing_file",
			Message: "CSV file is required in the 'file' form field",
		})
	}

	f, err := fileHeader.Open()
	if err != nil {
		return apierrors.InternalError(c, err)
	}
	defer f.Close()

	cfg := bulkimport.DefaultConfig()
	if raw := c.QueryParam("max_rows"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.MaxRows = n
		}
	}

	result, err := h.importer.ImportFromCSV(ctx, f, orgID, cfg)
	if err != nil {
		// Header-level problems: malformed CSV or missing columns.
		return apierrors.ValidationError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
