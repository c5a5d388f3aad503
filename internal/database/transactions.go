package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ApplyLedgerEntry updates one balance column and appends the matching history
// row inside the caller's transaction. Either both writes commit or neither does.
func (t *txStore) ApplyLedgerEntry(ctx context.Context, params store.LedgerEntryParams) (*models.TransactionHistory, error) {
	if !params.CryptoType.Valid() {
		return nil, fmt.Errorf("unsupported crypto type %q", params.CryptoType)
	}

	zap.L().Info("Applying ledger entry",
		zap.String("user_id", params.UserId),
		zap.String("crypto_type", string(params.CryptoType)),
		zap.String("type", string(params.TransactionType)),
		zap.String("amount", params.Amount.String()),
		zap.String("reference_id", params.ReferenceId))

	if params.At.IsZero() {
		params.At = time.Now()
	}

	user, err := t.GetUser(ctx, params.UserId)
	if err != nil {
		return nil, err
	}

	currentBalance := user.Balance(params.CryptoType)
	newBalance := currentBalance.Add(params.Amount)
	if newBalance.IsNegative() {
		zap.L().Warn("Ledger entry would overdraw balance",
			zap.String("user_id", params.UserId),
			zap.String("crypto_type", string(params.CryptoType)),
			zap.String("balance", currentBalance.String()),
			zap.String("amount", params.Amount.String()))
		return nil, fmt.Errorf("%w: %s balance %s cannot absorb %s",
			store.ErrInsufficientFunds, params.CryptoType, currentBalance.String(), params.Amount.String())
	}

	entry := &models.TransactionHistory{
		Id:              uuid.New().String(),
		UserId:          params.UserId,
		TransactionType: params.TransactionType,
		CryptoType:      params.CryptoType,
		Amount:          params.Amount,
		BalanceBefore:   currentBalance,
		BalanceAfter:    newBalance,
		Description:     params.Description,
		ReferenceId:     params.ReferenceId,
		CreatedAt:       params.At.UTC(),
	}

	if _, err := t.tx.ExecContext(ctx, queryInsertHistory,
		entry.Id, entry.UserId, entry.TransactionType, entry.CryptoType,
		fixedCrypto(entry.Amount), fixedCrypto(entry.BalanceBefore), fixedCrypto(entry.BalanceAfter),
		entry.Description, entry.ReferenceId, entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert transaction history: %w", err)
	}

	updateQuery := queryUpdateBitcoinBalance
	if params.CryptoType == models.CryptoEthereum {
		updateQuery = queryUpdateEthereumBalance
	}

	result, err := t.tx.ExecContext(ctx, updateQuery, fixedCrypto(newBalance), entry.CreatedAt, params.UserId, user.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	if err := expectOneRow(result, "balance of user "+params.UserId); err != nil {
		return nil, err
	}

	zap.L().Info("Ledger entry applied",
		zap.String("history_id", entry.Id),
		zap.String("user_id", params.UserId),
		zap.String("crypto_type", string(params.CryptoType)),
		zap.String("old_balance", currentBalance.String()),
		zap.String("new_balance", newBalance.String()))

	return entry, nil
}

// GetTransactionHistory returns a filtered, newest-first page of history rows
func (s *Service) GetTransactionHistory(ctx context.Context, filter store.HistoryFilter) ([]models.TransactionHistory, error) {
	limit := pageLimit(filter.Limit)
	offset := max(filter.Offset, 0)

	var where []string
	var args []any
	where = append(where, "user_id = ?")
	args = append(args, filter.UserId)
	if filter.TransactionType != "" {
		where = append(where, "transaction_type = ?")
		args = append(args, filter.TransactionType)
	}
	if filter.CryptoType != "" {
		where = append(where, "crypto_type = ?")
		args = append(args, filter.CryptoType)
	}
	if filter.Start != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Start.UTC())
	}
	if filter.End != nil {
		where = append(where, "created_at <= ?")
		args = append(args, filter.End.UTC())
	}
	args = append(args, limit, offset)

	query := `SELECT ` + historyColumns + ` FROM transaction_history WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`

	zap.L().Debug("Getting transaction history",
		zap.String("user_id", filter.UserId),
		zap.String("type", string(filter.TransactionType)),
		zap.String("crypto_type", string(filter.CryptoType)),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	var entries []models.TransactionHistory
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	for i := range entries {
		entries[i].CreatedAt = entries[i].CreatedAt.UTC()
	}
	return entries, nil
}

// GetTransactionSummary totals a user's history per transaction type and crypto
func (s *Service) GetTransactionSummary(ctx context.Context, userId string) ([]models.TransactionSummary, error) {
	rows, err := s.db.QueryxContext(ctx, queryGetHistoryForSummary, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction summary: %w", err)
	}
	defer func(rows *sqlx.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var summaries []models.TransactionSummary
	index := make(map[string]int)
	for rows.Next() {
		var txType models.TransactionType
		var cryptoType models.CryptoType
		var amount decimal.Decimal
		if err := rows.Scan(&txType, &cryptoType, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}

		key := string(txType) + "/" + string(cryptoType)
		i, ok := index[key]
		if !ok {
			summaries = append(summaries, models.TransactionSummary{
				TransactionType: txType,
				CryptoType:      cryptoType,
				Total:           decimal.Zero,
			})
			i = len(summaries) - 1
			index[key] = i
		}
		summaries[i].Count++
		summaries[i].Total = summaries[i].Total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}

	return summaries, nil
}
