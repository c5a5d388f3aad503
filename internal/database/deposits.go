package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func (t *txStore) InsertDeposit(ctx context.Context, d *models.CryptoDeposit) error {
	_, err := t.tx.ExecContext(ctx, queryInsertDeposit,
		d.Id, d.UserId, d.CryptoType, fixedCrypto(d.Amount), fixedUSD(d.USDAmount), d.WalletAddress, d.Status,
		d.TransactionHash, d.EvidenceURL, d.ReviewedBy, d.ReviewedAt, d.SubmittedAt, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert deposit: %w", err)
	}
	zap.L().Info("Deposit recorded",
		zap.String("deposit_id", d.Id),
		zap.String("user_id", d.UserId),
		zap.String("crypto_type", string(d.CryptoType)),
		zap.String("amount", d.Amount.String()),
		zap.String("usd_amount", d.USDAmount.String()))
	return nil
}

func (t *txStore) GetDeposit(ctx context.Context, depositId string) (*models.CryptoDeposit, error) {
	return getDeposit(ctx, t.tx, depositId)
}

func (s *Service) GetDeposit(ctx context.Context, depositId string) (*models.CryptoDeposit, error) {
	return getDeposit(ctx, s.db, depositId)
}

func (t *txStore) SetDepositEvidence(ctx context.Context, depositId, evidenceURL string, at time.Time) error {
	result, err := t.tx.ExecContext(ctx, querySetDepositEvidence, evidenceURL, at, depositId)
	if err != nil {
		return fmt.Errorf("failed to attach deposit evidence: %w", err)
	}
	return expectOneRow(result, "deposit "+depositId)
}

// TransitionDeposit moves a deposit out of params.From. The update matches
// zero rows when another writer changed the status first.
func (t *txStore) TransitionDeposit(ctx context.Context, params store.DepositTransitionParams) error {
	var result sql.Result
	var err error
	switch params.To {
	case models.DepositSubmitted:
		result, err = t.tx.ExecContext(ctx, querySubmitDeposit,
			params.At, params.TransactionHash, params.At, params.DepositId, params.From)
	case models.DepositConfirmed, models.DepositRejected:
		result, err = t.tx.ExecContext(ctx, queryReviewDeposit,
			params.To, params.ReviewedBy, params.At, params.At, params.DepositId, params.From)
	default:
		return fmt.Errorf("unsupported deposit transition to %q", params.To)
	}
	if err != nil {
		return fmt.Errorf("failed to transition deposit: %w", err)
	}
	if err := expectOneRow(result, "deposit "+params.DepositId); err != nil {
		return err
	}

	zap.L().Info("Deposit transitioned",
		zap.String("deposit_id", params.DepositId),
		zap.String("from", string(params.From)),
		zap.String("to", string(params.To)))
	return nil
}

func (s *Service) ListDeposits(ctx context.Context, filter store.DepositFilter) ([]models.CryptoDeposit, error) {
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

	query := `SELECT ` + depositColumns + ` FROM crypto_deposits`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageLimit(filter.Limit), max(filter.Offset, 0))

	var deposits []models.CryptoDeposit
	if err := s.db.SelectContext(ctx, &deposits, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	return deposits, nil
}

func getDeposit(ctx context.Context, q sqlx.QueryerContext, depositId string) (*models.CryptoDeposit, error) {
	var deposit models.CryptoDeposit
	if err := sqlx.GetContext(ctx, q, &deposit, queryGetDeposit, depositId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: deposit %s", store.ErrNotFound, depositId)
		}
		return nil, fmt.Errorf("unable to query deposit: %w", err)
	}
	return &deposit, nil
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
