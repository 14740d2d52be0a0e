// Package bulkimport ingests leads in bulk from CSV and routes each one
// through the assignment engine.
package bulkimport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/assignment"
	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/metrics"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// Importer handles bulk import of leads from CSV.
type Importer struct {
	leads   domain.LeadStore
	engine  *assignment.Engine
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewImporter creates a CSV importer. metrics may be nil.
func NewImporter(leads domain.LeadStore, engine *assignment.Engine, m *metrics.Metrics, log logger.Logger) *Importer {
	return &Importer{leads: leads, engine: engine, metrics: m, log: log}
}

// Config holds configuration for CSV import.
type Config struct {
	MaxRows int // Maximum rows to import (0 = unlimited)
}

// DefaultConfig returns the default import configuration.
func DefaultConfig() Config {
	return Config{MaxRows: 10000}
}

// Result holds the outcome of a CSV import operation.
type Result struct {
	TotalRows      int        `json:"total_rows"`
	SuccessCount   int        `json:"success_count"`
	FailureCount   int        `json:"failure_count"`
	AssignedCount  int        `json:"assigned_count"`
	EscalatedCount int        `json:"escalated_count"`
	Errors         []RowError `json:"errors,omitempty"`
	Duration       string     `json:"duration"`
}

// RowError represents an error on one CSV row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// RequiredFields defines the required CSV columns.
var RequiredFields = []string{"name"}

// knownFields are columns mapped onto typed lead columns; everything
// else lands in the lead's custom field document and is matchable by
// rule criteria.
var knownFields = map[string]bool{"name": true, "source": true, "score": true}

// ImportFromCSV reads leads from r, creates them and runs the assignment
// pipeline for each. Row failures are collected, not fatal: one bad row
// never aborts the batch.
func (im *Importer) ImportFromCSV(ctx context.Context, r io.Reader, orgID int, config Config) (*Result, error) {
	startTime := time.Now()
	result := &Result{Errors: []RowError{}}

	csvReader := csv.NewReader(r)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	headerMap := make(map[string]int, len(headers))
	for i, header := range headers {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, field := range RequiredFields {
		if _, ok := headerMap[field]; !ok {
			return nil, fmt.Errorf("missing required field: %s", field)
		}
	}

	rowNum := 1
	for {
		if config.MaxRows > 0 && result.TotalRows >= config.MaxRows {
			im.log.Warn("reached max rows limit", "max_rows", config.MaxRows)
			break
		}

		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			result.TotalRows++
			result.FailureCount++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		result.TotalRows++

		lead, err := leadFromRecord(record, headerMap, orgID)
		if err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}

		if err := im.leads.CreateLead(ctx, lead); err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		result.SuccessCount++
		if im.metrics != nil {
			im.metrics.RecordLeadImported()
		}

		outcome := im.engine.AssignLead(ctx, lead.ID, orgID)
		if outcome.UserID != nil {
			if outcome.Escalated {
				result.EscalatedCount++
			} else {
				result.AssignedCount++
			}
		}
	}

	result.Duration = time.Since(startTime).String()
	im.log.Info("csv import finished",
		"total", result.TotalRows, "success", result.SuccessCount,
		"failed", result.FailureCount, "assigned", result.AssignedCount,
		"escalated", result.EscalatedCount)
	return result, nil
}

func leadFromRecord(record []string, headerMap map[string]int, orgID int) (*models.Lead, error) {
	field := func(name string) string {
		idx, ok := headerMap[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	name := field("name")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	lead := &models.Lead{
		OrganizationID: orgID,
		Name:           name,
		Source:         field("source"),
	}
	if raw := field("score"); raw != "" {
		score, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid score %q", raw)
		}
		lead.Score = score
	}

	// Remaining columns become custom fields.
	for header, idx := range headerMap {
		if knownFields[header] || idx >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[idx]); v != "" {
			if lead.Fields == nil {
				lead.Fields = make(map[string]any)
			}
			lead.Fields[header] = v
		}
	}
	return lead, nil
}
