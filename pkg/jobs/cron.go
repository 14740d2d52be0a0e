// Package jobs runs the scheduled maintenance work: quota counter
// retention and a daily assignment volume report.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/quota"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron          *cron.Cron
	quotas        domain.QuotaStore
	assignments   domain.AssignmentStore
	retentionDays int
	log           logger.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(quotas domain.QuotaStore, assignments domain.AssignmentStore, retentionDays int, log logger.Logger) *CronManager {
	if retentionDays < 1 {
		retentionDays = 30
	}
	return &CronManager{
		cron:          cron.New(),
		quotas:        quotas,
		assignments:   assignments,
		retentionDays: retentionDays,
		log:           log,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	// Daily at 2 AM UTC: drop quota counters past the retention window.
	if _, err := cm.cron.AddFunc("0 2 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		cm.RunQuotaPurge(ctx)
	}); err != nil {
		return err
	}

	// Daily at 6 AM UTC: log yesterday's assignment volume.
	if _, err := cm.cron.AddFunc("0 6 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		cm.RunDailyStats(ctx)
	}); err != nil {
		return err
	}

	return nil
}

// RunQuotaPurge deletes quota counters older than the retention window.
func (cm *CronManager) RunQuotaPurge(ctx context.Context) {
	cutoff := quota.Day(time.Now().AddDate(0, 0, -cm.retentionDays))

	n, err := cm.quotas.PurgeBefore(ctx, cutoff)
	if err != nil {
		cm.log.Error("quota purge failed", "cutoff", cutoff, "error", err)
		return
	}
	cm.log.Info("quota purge completed", "cutoff", cutoff, "rows_deleted", n)
}

// RunDailyStats logs how many assignments committed in the last 24h.
func (cm *CronManager) RunDailyStats(ctx context.Context) {
	since := time.Now().Add(-24 * time.Hour)

	n, err := cm.assignments.CountSince(ctx, since)
	if err != nil {
		cm.log.Error("daily stats failed", "error", err)
		return
	}
	cm.log.Info("assignment volume", "since", since, "assignments", n)
}

// Start begins executing scheduled jobs
func (cm *CronManager) Start() {
	cm.cron.Start()
	cm.log.Info("cron jobs started")
}

// Stop halts the scheduler, waiting for running jobs to finish.
func (cm *CronManager) Stop() {
	ctx := cm.cron.Stop()
	<-ctx.Done()
	cm.log.Info("cron jobs stopped")
}
