package database

import (
	"context"
	"testing"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestReconcileUserBalance_Matches(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createTestUser(t, service, "reconcile@example.com")
	amounts := []string{"1.00000001", "0.33333333", "-0.12345678", "2"}
	for _, a := range amounts {
		if _, err := applyEntry(t, service, store.LedgerEntryParams{
			UserId: user.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.RequireFromString(a),
			TransactionType: models.TransactionMining,
		}); err != nil {
			t.Fatalf("ApplyLedgerEntry(%s) failed: %v", a, err)
		}
	}

	if err := service.ReconcileUserBalance(context.Background(), user.Id, models.CryptoBitcoin); err != nil {
		t.Errorf("Expected reconciliation to pass, got %v", err)
	}
	if err := service.ReconcileUserBalance(context.Background(), user.Id, models.CryptoEthereum); err != nil {
		t.Errorf("Expected empty ethereum reconciliation to pass, got %v", err)
	}

	reloaded, _ := service.GetUserById(context.Background(), user.Id)
	if !reloaded.BitcoinBalance.Equal(decimal.RequireFromString("3.20987656")) {
		t.Errorf("Expected balance 3.20987656, got %s", reloaded.BitcoinBalance)
	}
}

func TestReconcileUserBalance_DetectsDrift(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createTestUser(t, service, "drift@example.com")
	if _, err := applyEntry(t, service, store.LedgerEntryParams{
		UserId: user.Id, CryptoType: models.CryptoEthereum, Amount: decimal.NewFromInt(1),
		TransactionType: models.TransactionDeposit,
	}); err != nil {
		t.Fatalf("ApplyLedgerEntry failed: %v", err)
	}

	// Simulate a write that bypassed the ledger
	if _, err := service.db.Exec("UPDATE users SET ethereum_balance = '5.00000000' WHERE id = ?", user.Id); err != nil {
		t.Fatalf("Failed to corrupt balance: %v", err)
	}

	if err := service.ReconcileUserBalance(context.Background(), user.Id, models.CryptoEthereum); err == nil {
		t.Error("Expected reconciliation mismatch")
	}
}

func TestSettings_AbsentUntilSaved(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	settings, err := service.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings != nil {
		t.Fatalf("Expected no settings row, got %+v", settings)
	}

	if err := service.UpdateUSDRates(ctx, decimal.NewFromInt(1), decimal.NewFromInt(1), service.now()); err == nil {
		t.Error("Expected UpdateUSDRates to fail without a settings row")
	}

	if err := service.SaveSettings(ctx, models.AdminSettings{
		BitcoinRateUSD:        decimal.NewFromInt(50000),
		EthereumRateUSD:       decimal.NewFromInt(3000),
		GlobalMiningRate:      decimal.NewFromInt(70),
		BitcoinWalletAddress:  "bc1-platform",
		ReferralRewardEnabled: true,
		ReferrerRewardPercent: "5.0",
	}); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	if err := service.UpdateUSDRates(ctx, decimal.RequireFromString("64250.5"), decimal.RequireFromString("3120.25"), service.now()); err != nil {
		t.Fatalf("UpdateUSDRates failed: %v", err)
	}

	settings, err = service.GetSettings(ctx)
	if err != nil || settings == nil {
		t.Fatalf("GetSettings after save failed: %v", err)
	}
	if !settings.BitcoinRateUSD.Equal(decimal.RequireFromString("64250.50")) {
		t.Errorf("Expected BTC rate 64250.50, got %s", settings.BitcoinRateUSD)
	}
	if !settings.GlobalMiningRate.Equal(decimal.NewFromInt(70)) {
		t.Errorf("Expected global rate 70, got %s", settings.GlobalMiningRate)
	}
	if settings.RatesUpdatedAt == nil {
		t.Error("Expected rates_updated_at to be set")
	}
	if settings.WalletAddress(models.CryptoBitcoin) != "bc1-platform" {
		t.Errorf("Unexpected wallet address %q", settings.WalletAddress(models.CryptoBitcoin))
	}
}
