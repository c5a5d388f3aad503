package database

import (
	"context"
	"fmt"

	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// GetDashboardStats aggregates platform totals. Amount columns are summed in
// decimal rather than with SQL SUM.
func (s *Service) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{queryCountUsers, &stats.TotalUsers},
		{queryCountActiveSessions, &stats.ActiveSessions},
		{queryCountPendingDeposits, &stats.PendingDeposits},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dest, c.query); err != nil {
			return nil, fmt.Errorf("failed to count dashboard rows: %w", err)
		}
	}

	sums := []struct {
		query string
		dest  *decimal.Decimal
	}{
		{queryConfirmedDepositUSD, &stats.ConfirmedDepositsUSD},
		{queryTransferUSD, &stats.TransfersUSD},
		{queryPendingWithdrawalUSD, &stats.PendingWithdrawalsUSD},
	}
	for _, sum := range sums {
		var amounts []decimal.Decimal
		if err := s.db.SelectContext(ctx, &amounts, sum.query); err != nil {
			return nil, fmt.Errorf("failed to sum dashboard amounts: %w", err)
		}
		*sum.dest = decimal.Sum(decimal.Zero, amounts...)
	}

	var mined []struct {
		CryptoType  models.CryptoType `db:"crypto_type"`
		MinedAmount decimal.Decimal   `db:"mined_amount"`
	}
	if err := s.db.SelectContext(ctx, &mined, queryMinedAmounts); err != nil {
		return nil, fmt.Errorf("failed to sum mined amounts: %w", err)
	}
	stats.TotalMinedBitcoin = decimal.Zero
	stats.TotalMinedEthereum = decimal.Zero
	for _, m := range mined {
		if m.CryptoType == models.CryptoEthereum {
			stats.TotalMinedEthereum = stats.TotalMinedEthereum.Add(m.MinedAmount)
		} else {
			stats.TotalMinedBitcoin = stats.TotalMinedBitcoin.Add(m.MinedAmount)
		}
	}

	return stats, nil
}
