package database

import (
	"context"
	"fmt"

	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReconcileUserBalance verifies that the balance column equals the sum of the
// user's history rows for that crypto type
func (s *Service) ReconcileUserBalance(ctx context.Context, userId string, cryptoType models.CryptoType) error {
	zap.L().Info("Reconciling balance", zap.String("user_id", userId), zap.String("crypto_type", string(cryptoType)))

	user, err := s.GetUserById(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}
	currentBalance := user.Balance(cryptoType)

	// Sum in decimal; SQLite's SUM over TEXT would go through floating point.
	var amounts []decimal.Decimal
	if err := s.db.SelectContext(ctx, &amounts, queryGetHistoryAmounts, userId, cryptoType); err != nil {
		return fmt.Errorf("failed to calculate balance from history: %w", err)
	}
	calculatedBalance := decimal.Sum(decimal.Zero, amounts...)

	if !currentBalance.Equal(calculatedBalance) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("crypto_type", string(cryptoType)),
			zap.String("current_balance", currentBalance.String()),
			zap.String("calculated_balance", calculatedBalance.String()),
			zap.String("difference", currentBalance.Sub(calculatedBalance).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s", currentBalance.String(), calculatedBalance.String())
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.String("crypto_type", string(cryptoType)),
		zap.String("balance", currentBalance.String()))
	return nil
}
