package database

import (
	"context"
	"fmt"
	"time"

	"mining-ledger-go/internal/models"

	"github.com/google/uuid"
)

func (s *Service) RecordAdminAction(ctx context.Context, action models.AdminAction) error {
	if action.Id == "" {
		action.Id = uuid.New().String()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, queryInsertAdminAction,
		action.Id, action.AdminId, action.Action, action.TargetType, action.TargetId, action.Details, action.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record admin action: %w", err)
	}
	return nil
}

func (s *Service) RecordActivity(ctx context.Context, activity models.ActivityLog) error {
	if activity.Id == "" {
		activity.Id = uuid.New().String()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, queryInsertActivity,
		activity.Id, activity.UserId, activity.Action, activity.Details, activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ListAdminActions returns the admin audit trail, newest first
func (s *Service) ListAdminActions(ctx context.Context, limit, offset int) ([]models.AdminAction, error) {
	var actions []models.AdminAction
	if err := s.db.SelectContext(ctx, &actions, queryListAdminActions, pageLimit(limit), max(offset, 0)); err != nil {
		return nil, fmt.Errorf("failed to list admin actions: %w", err)
	}
	for i := range actions {
		actions[i].CreatedAt = actions[i].CreatedAt.UTC()
	}
	return actions, nil
}

func (s *Service) EnqueueEmail(ctx context.Context, email models.EmailNotification) error {
	if email.Id == "" {
		email.Id = uuid.New().String()
	}
	if email.CreatedAt.IsZero() {
		email.CreatedAt = s.now()
	}
	if email.Status == "" {
		email.Status = models.EmailPending
	}
	if email.Variables == "" {
		email.Variables = "{}"
	}
	_, err := s.db.ExecContext(ctx, queryInsertEmail,
		email.Id, email.Recipient, email.Subject, email.Template, email.Variables, email.Status,
		email.Attempts, email.LastError, email.SentAt, email.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	return nil
}

// ListPendingEmails returns the oldest queued messages that still have attempts left
func (s *Service) ListPendingEmails(ctx context.Context, limit, maxAttempts int) ([]models.EmailNotification, error) {
	var emails []models.EmailNotification
	if err := s.db.SelectContext(ctx, &emails, queryListPendingEmails, maxAttempts, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending emails: %w", err)
	}
	return emails, nil
}

// ClaimEmail moves a pending message to sending. It reports false when another
// dispatcher claimed it first.
func (s *Service) ClaimEmail(ctx context.Context, emailId string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryClaimEmail, at.UTC(), emailId)
	if err != nil {
		return false, fmt.Errorf("failed to claim email: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim email: %w", err)
	}
	return rows == 1, nil
}

// ReleaseStaleEmails returns messages claimed before the cutoff to the queue,
// covering a dispatcher that died mid-send.
func (s *Service) ReleaseStaleEmails(ctx context.Context, claimedBefore time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryReleaseStaleEmails, claimedBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to release stale emails: %w", err)
	}
	return result.RowsAffected()
}

func (s *Service) MarkEmailSent(ctx context.Context, emailId string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, queryMarkEmailSent, at.UTC(), emailId); err != nil {
		return fmt.Errorf("failed to mark email sent: %w", err)
	}
	return nil
}

// MarkEmailFailed counts a failed attempt; the message becomes failed once
// maxAttempts is reached and stays pending otherwise.
func (s *Service) MarkEmailFailed(ctx context.Context, emailId, lastError string, maxAttempts int) error {
	if _, err := s.db.ExecContext(ctx, queryMarkEmailFailed, lastError, maxAttempts, emailId); err != nil {
		return fmt.Errorf("failed to mark email failed: %w", err)
	}
	return nil
}
