package notify

import (
	"context"

	"mining-ledger-go/internal/metrics"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"go.uber.org/zap"
)

// AuditLogger records admin actions and user activity. Failures are logged
// and swallowed.
type AuditLogger struct {
	store store.LedgerStore
}

func NewAuditLogger(ledger store.LedgerStore) *AuditLogger {
	return &AuditLogger{store: ledger}
}

func (a *AuditLogger) RecordAdminAction(ctx context.Context, adminId, action, targetType, targetId, details string) {
	err := a.store.RecordAdminAction(ctx, models.AdminAction{
		AdminId:    adminId,
		Action:     action,
		TargetType: targetType,
		TargetId:   targetId,
		Details:    details,
	})
	if err != nil {
		zap.L().Warn("Failed to record admin action",
			zap.String("admin_id", adminId),
			zap.String("action", action),
			zap.String("target_id", targetId),
			zap.Error(err))
		metrics.BestEffortFailures.WithLabelValues("audit").Inc()
	}
}

func (a *AuditLogger) RecordActivity(ctx context.Context, userId, action, details string) {
	err := a.store.RecordActivity(ctx, models.ActivityLog{
		UserId:  userId,
		Action:  action,
		Details: details,
	})
	if err != nil {
		zap.L().Warn("Failed to record activity",
			zap.String("user_id", userId),
			zap.String("action", action),
			zap.Error(err))
		metrics.BestEffortFailures.WithLabelValues("audit").Inc()
	}
}
