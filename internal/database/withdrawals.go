package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func (t *txStore) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	_, err := t.tx.ExecContext(ctx, queryInsertWithdrawal,
		w.Id, w.UserId, w.CryptoType, fixedCrypto(w.Amount), fixedUSD(w.USDAmount), w.WalletAddress, w.Status,
		w.TransactionHash, w.ReviewedBy, w.ProcessedAt, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert withdrawal: %w", err)
	}
	zap.L().Info("Withdrawal recorded",
		zap.String("withdrawal_id", w.Id),
		zap.String("user_id", w.UserId),
		zap.String("crypto_type", string(w.CryptoType)),
		zap.String("amount", w.Amount.String()),
		zap.String("transaction_hash", w.TransactionHash))
	return nil
}

func (t *txStore) GetWithdrawal(ctx context.Context, withdrawalId string) (*models.Withdrawal, error) {
	return getWithdrawal(ctx, t.tx, withdrawalId)
}

func (s *Service) GetWithdrawal(ctx context.Context, withdrawalId string) (*models.Withdrawal, error) {
	return getWithdrawal(ctx, s.db, withdrawalId)
}

func (t *txStore) TransitionWithdrawal(ctx context.Context, params store.WithdrawalTransitionParams) error {
	result, err := t.tx.ExecContext(ctx, queryTransitionWithdrawal,
		params.To, params.ReviewedBy, params.At, params.WithdrawalId, params.From)
	if err != nil {
		return fmt.Errorf("failed to transition withdrawal: %w", err)
	}
	if err := expectOneRow(result, "withdrawal "+params.WithdrawalId); err != nil {
		return err
	}

	zap.L().Info("Withdrawal transitioned",
		zap.String("withdrawal_id", params.WithdrawalId),
		zap.String("from", string(params.From)),
		zap.String("to", string(params.To)))
	return nil
}

func (s *Service) ListWithdrawals(ctx context.Context, filter store.WithdrawalFilter) ([]models.Withdrawal, error) {
	var where []string
	var args []any
	if filter.UserId != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserId)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageLimit(filter.Limit), max(filter.Offset, 0))

	var withdrawals []models.Withdrawal
	if err := s.db.SelectContext(ctx, &withdrawals, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return withdrawals, nil
}

func getWithdrawal(ctx context.Context, q sqlx.QueryerContext, withdrawalId string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := sqlx.GetContext(ctx, q, &withdrawal, queryGetWithdrawal, withdrawalId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: withdrawal %s", store.ErrNotFound, withdrawalId)
		}
		return nil, fmt.Errorf("unable to query withdrawal: %w", err)
	}
	return &withdrawal, nil
}
