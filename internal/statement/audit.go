package statement

import (
	"context"

	"statementvault/pkg/types"

	"github.com/sirupsen/logrus"
)

// AuditAppender is the slice of the audit repository the recorder needs.
type AuditAppender interface {
	Append(ctx context.Context, entry *types.AuditLog) error
}

// Recorder appends audit facts for security-relevant actions. It is
// fail-open: a failed audit write is logged and never overrides the outcome
// of the action that triggered it.
type Recorder struct {
	logger *logrus.Logger
	audits AuditAppender
}

func NewRecorder(logger *logrus.Logger, audits AuditAppender) *Recorder {
	return &Recorder{logger: logger, audits: audits}
}

func (r *Recorder) Record(ctx context.Context, action types.AuditAction, customerID, resourceID, clientAddr, userAgent, details string) {
	entry := &types.AuditLog{
		Action:       action,
		CustomerID:   optional(customerID),
		ResourceType: types.ResourceTypeStatement,
		ResourceID:   optional(resourceID),
		IPAddress:    clientAddr,
		UserAgent:    optional(userAgent),
		Details:      details,
	}

	if err := r.audits.Append(ctx, entry); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"action":      action,
			"customer_id": customerID,
			"resource_id": resourceID,
		}).Error("failed to append audit log")
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
