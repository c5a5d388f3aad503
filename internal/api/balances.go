package api

import (
	"context"
	"fmt"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/rates"
	"mining-ledger-go/internal/store"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// GetBalances returns both balances of a user valued at the current rates
func (s *LedgerService) GetBalances(ctx context.Context, userId string) ([]models.UserBalance, error) {
	user, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		return nil, apperror.From(err, "user not found")
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		zap.L().Error("Failed to load settings for balances", zap.String("user_id", userId), zap.Error(err))
		return nil, apperror.Internal("failed to retrieve balances", err)
	}

	return rates.Balances(settings, user), nil
}

// GetTransactionHistory returns a filtered page of the user's history, newest first
func (s *LedgerService) GetTransactionHistory(ctx context.Context, filter store.HistoryFilter) ([]models.TransactionHistory, error) {
	if filter.UserId == "" {
		return nil, apperror.Validation("user_id is required")
	}
	if filter.CryptoType != "" && !filter.CryptoType.Valid() {
		return nil, apperror.Validation("unsupported crypto type %q", filter.CryptoType)
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return nil, apperror.Validation("end date is before start date")
	}

	history, err := s.store.GetTransactionHistory(ctx, filter)
	if err != nil {
		zap.L().Error("Failed to get transaction history", zap.String("user_id", filter.UserId), zap.Error(err))
		return nil, apperror.Internal("failed to retrieve transaction history", err)
	}
	return history, nil
}

func (s *LedgerService) GetTransactionSummary(ctx context.Context, userId string) ([]models.TransactionSummary, error) {
	summary, err := s.store.GetTransactionSummary(ctx, userId)
	if err != nil {
		return nil, apperror.Internal("failed to summarize transactions", err)
	}
	return summary, nil
}

// ReconcileBalances checks both balances of a user against their history and
// reports every mismatch at once.
func (s *LedgerService) ReconcileBalances(ctx context.Context, userId string) error {
	if _, err := s.store.GetUserById(ctx, userId); err != nil {
		return apperror.From(err, "user not found")
	}

	var result *multierror.Error
	for _, cryptoType := range models.CryptoTypes {
		if err := s.store.ReconcileUserBalance(ctx, userId, cryptoType); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", cryptoType, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return apperror.Internal("balance does not match history", err)
	}
	return nil
}

func (s *LedgerService) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats, err := s.store.GetDashboardStats(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to load dashboard stats", err)
	}
	return stats, nil
}
