package notify

import (
	"context"
	"encoding/json"

	"mining-ledger-go/internal/metrics"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Template names understood by the email sender
const (
	TemplateDepositCreated     = "deposit_created"
	TemplateDepositConfirmed   = "deposit_confirmed"
	TemplateDepositRejected    = "deposit_rejected"
	TemplateWithdrawalCreated  = "withdrawal_created"
	TemplateWithdrawalApproved = "withdrawal_approved"
	TemplateWithdrawalRejected = "withdrawal_rejected"
	TemplateTransferSent       = "transfer_sent"
	TemplateTransferReceived   = "transfer_received"
	TemplateReferralReward     = "referral_reward"
)

// Notifier delivers a message best-effort. It reports success and never
// returns an error to the caller.
type Notifier interface {
	Send(ctx context.Context, to, subject, template string, variables map[string]string) bool
}

// QueueNotifier persists messages to the email queue; the Dispatcher sends them
type QueueNotifier struct {
	store store.LedgerStore
}

func NewQueueNotifier(ledger store.LedgerStore) *QueueNotifier {
	return &QueueNotifier{store: ledger}
}

func (n *QueueNotifier) Send(ctx context.Context, to, subject, template string, variables map[string]string) bool {
	if to == "" {
		zap.L().Warn("Dropping notification without recipient",
			zap.String("template", template))
		return false
	}

	if variables == nil {
		variables = map[string]string{}
	}
	encoded, err := json.Marshal(variables)
	if err != nil {
		zap.L().Warn("Failed to encode notification variables",
			zap.String("template", template),
			zap.Error(err))
		metrics.BestEffortFailures.WithLabelValues("notify").Inc()
		return false
	}

	if err := n.store.EnqueueEmail(ctx, models.EmailNotification{
		Recipient: to,
		Subject:   subject,
		Template:  template,
		Variables: string(encoded),
	}); err != nil {
		zap.L().Warn("Failed to enqueue notification",
			zap.String("recipient", to),
			zap.String("template", template),
			zap.Error(err))
		metrics.BestEffortFailures.WithLabelValues("notify").Inc()
		return false
	}

	zap.L().Debug("Notification queued",
		zap.String("recipient", to),
		zap.String("template", template))
	return true
}

// NopNotifier drops every message
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, string, string, string, map[string]string) bool {
	return false
}
