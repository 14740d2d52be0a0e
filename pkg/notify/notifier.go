// Package notify delivers assignment notifications. The default
// implementation just logs; production deployments swap in a webhook or
// email-backed notifier behind the same interface.
package notify

import (
	"context"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// LogNotifier writes one structured log line per committed assignment.
type LogNotifier struct {
	log logger.Logger
}

var _ domain.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a logging notifier.
func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyAssigned(_ context.Context, notice models.AssignmentNotice) {
	n.log.Info("assignment notification",
		"lead_id", notice.LeadID,
		"user_id", notice.UserID,
		"rule_name", notice.RuleName,
		"escalated", notice.Escalated,
	)
}
