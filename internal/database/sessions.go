package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func (t *txStore) InsertSession(ctx context.Context, ms *models.MiningSession) error {
	_, err := t.tx.ExecContext(ctx, queryInsertSession,
		ms.Id, ms.UserId, ms.DepositId, ms.CryptoType,
		fixedCrypto(ms.DepositedAmount), ms.MiningRate.String(), fixedCrypto(ms.MinedAmount), ms.Status,
		ms.LastMined, ms.PausedAt, ms.ClosedAt, ms.Version, ms.CreatedAt, ms.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert mining session: %w", err)
	}
	zap.L().Info("Mining session started",
		zap.String("session_id", ms.Id),
		zap.String("user_id", ms.UserId),
		zap.String("deposit_id", ms.DepositId),
		zap.String("deposited_amount", ms.DepositedAmount.String()),
		zap.String("mining_rate", ms.MiningRate.String()))
	return nil
}

func (t *txStore) GetSession(ctx context.Context, sessionId string) (*models.MiningSession, error) {
	return getSession(ctx, t.tx, queryGetSession, sessionId)
}

func (t *txStore) GetSessionByDeposit(ctx context.Context, depositId string) (*models.MiningSession, error) {
	return getSession(ctx, t.tx, queryGetSessionByDeposit, depositId)
}

func (t *txStore) ListActiveSessions(ctx context.Context, userId string) ([]models.MiningSession, error) {
	return listSessions(ctx, t.tx, queryListActiveSessions, userId)
}

func (s *Service) GetSession(ctx context.Context, sessionId string) (*models.MiningSession, error) {
	return getSession(ctx, s.db, queryGetSession, sessionId)
}

func (s *Service) ListSessions(ctx context.Context, userId string) ([]models.MiningSession, error) {
	return listSessions(ctx, s.db, queryListSessions, userId)
}

// RecordSessionAccrual stores the new cumulative yield and last_mined for an
// active session whose version still matches.
func (t *txStore) RecordSessionAccrual(ctx context.Context, params store.SessionAccrualParams) error {
	result, err := t.tx.ExecContext(ctx, queryRecordSessionAccrual,
		fixedCrypto(params.MinedAmount), params.LastMined, params.LastMined, params.SessionId, params.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("failed to record session accrual: %w", err)
	}
	return expectOneRow(result, "mining session "+params.SessionId)
}

func (t *txStore) TransitionSession(ctx context.Context, params store.SessionTransitionParams) error {
	result, err := t.tx.ExecContext(ctx, queryTransitionSession,
		params.To, params.LastMined, params.PausedAt, params.ClosedAt, params.At,
		params.SessionId, params.ExpectedVersion, params.From)
	if err != nil {
		return fmt.Errorf("failed to transition mining session: %w", err)
	}
	if err := expectOneRow(result, "mining session "+params.SessionId); err != nil {
		return err
	}

	zap.L().Info("Mining session transitioned",
		zap.String("session_id", params.SessionId),
		zap.String("from", string(params.From)),
		zap.String("to", string(params.To)))
	return nil
}

func getSession(ctx context.Context, q sqlx.QueryerContext, query, arg string) (*models.MiningSession, error) {
	var session models.MiningSession
	if err := sqlx.GetContext(ctx, q, &session, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: mining session for %s", store.ErrNotFound, arg)
		}
		return nil, fmt.Errorf("unable to query mining session: %w", err)
	}
	normalizeSession(&session)
	return &session, nil
}

func listSessions(ctx context.Context, q sqlx.QueryerContext, query, userId string) ([]models.MiningSession, error) {
	var sessions []models.MiningSession
	if err := sqlx.SelectContext(ctx, q, &sessions, query, userId); err != nil {
		return nil, fmt.Errorf("unable to list mining sessions: %w", err)
	}
	for i := range sessions {
		normalizeSession(&sessions[i])
	}
	return sessions, nil
}

// normalizeSession puts every timestamp in UTC before accrual arithmetic.
func normalizeSession(ms *models.MiningSession) {
	ms.LastMined = ms.LastMined.UTC()
	ms.CreatedAt = ms.CreatedAt.UTC()
	ms.UpdatedAt = ms.UpdatedAt.UTC()
	if ms.PausedAt != nil {
		t := ms.PausedAt.UTC()
		ms.PausedAt = &t
	}
	if ms.ClosedAt != nil {
		t := ms.ClosedAt.UTC()
		ms.ClosedAt = &t
	}
}
