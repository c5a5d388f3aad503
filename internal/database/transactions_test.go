package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	t.Helper()

	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:           filepath.Join(t.TempDir(), "ledger_test.db"),
		MaxOpenConns:   4,
		MaxIdleConns:   2,
		PingTimeout:    time.Second,
		BusyTimeout:    5 * time.Second,
		MaxTxRetries:   3,
		TxRetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}
	return service, cleanup
}

func createTestUser(t *testing.T, service *Service, email string) *models.User {
	t.Helper()
	user, err := service.CreateUser(context.Background(), store.CreateUserParams{Name: email, Email: email})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func applyEntry(t *testing.T, service *Service, params store.LedgerEntryParams) (*models.TransactionHistory, error) {
	t.Helper()
	var entry *models.TransactionHistory
	err := service.RunInTx(context.Background(), func(tx store.Tx) error {
		var err error
		entry, err = tx.ApplyLedgerEntry(context.Background(), params)
		return err
	})
	return entry, err
}

func TestApplyLedgerEntry_Credit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createTestUser(t, service, "credit@example.com")
	amount := decimal.RequireFromString("1.5")

	entry, err := applyEntry(t, service, store.LedgerEntryParams{
		UserId:          user.Id,
		CryptoType:      models.CryptoBitcoin,
		Amount:          amount,
		TransactionType: models.TransactionDeposit,
		Description:     "Deposit confirmed",
		ReferenceId:     "dep-1",
	})
	if err != nil {
		t.Fatalf("ApplyLedgerEntry failed: %v", err)
	}

	if !entry.BalanceBefore.IsZero() {
		t.Errorf("Expected balance before 0, got %s", entry.BalanceBefore)
	}
	if !entry.BalanceAfter.Equal(amount) {
		t.Errorf("Expected balance after %s, got %s", amount, entry.BalanceAfter)
	}

	reloaded, err := service.GetUserById(context.Background(), user.Id)
	if err != nil {
		t.Fatalf("GetUserById failed: %v", err)
	}
	if !reloaded.BitcoinBalance.Equal(amount) {
		t.Errorf("Expected bitcoin balance %s, got %s", amount, reloaded.BitcoinBalance)
	}
	if !reloaded.EthereumBalance.IsZero() {
		t.Errorf("Expected ethereum balance untouched, got %s", reloaded.EthereumBalance)
	}
	if reloaded.Version != user.Version+1 {
		t.Errorf("Expected version %d, got %d", user.Version+1, reloaded.Version)
	}
}

func TestApplyLedgerEntry_OverdraftRejected(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createTestUser(t, service, "overdraft@example.com")
	if _, err := applyEntry(t, service, store.LedgerEntryParams{
		UserId: user.Id, CryptoType: models.CryptoEthereum, Amount: decimal.RequireFromString("0.5"),
		TransactionType: models.TransactionDeposit,
	}); err != nil {
		t.Fatalf("Initial credit failed: %v", err)
	}

	_, err := applyEntry(t, service, store.LedgerEntryParams{
		UserId: user.Id, CryptoType: models.CryptoEthereum, Amount: decimal.RequireFromString("-0.50000001"),
		TransactionType: models.TransactionWithdrawal,
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	reloaded, _ := service.GetUserById(context.Background(), user.Id)
	if !reloaded.EthereumBalance.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Balance changed after rejected debit: %s", reloaded.EthereumBalance)
	}

	history, err := service.GetTransactionHistory(context.Background(), store.HistoryFilter{UserId: user.Id})
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected 1 history row, got %d", len(history))
	}
}

func TestRunInTx_RollsBackBalanceAndHistoryTogether(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createTestUser(t, service, "rollback@example.com")
	boom := errors.New("boom")

	err := service.RunInTx(context.Background(), func(tx store.Tx) error {
		if _, err := tx.ApplyLedgerEntry(context.Background(), store.LedgerEntryParams{
			UserId: user.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.NewFromInt(3),
			TransactionType: models.TransactionDeposit,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	reloaded, _ := service.GetUserById(context.Background(), user.Id)
	if !reloaded.BitcoinBalance.IsZero() {
		t.Errorf("Balance retained after rollback: %s", reloaded.BitcoinBalance)
	}
	history, _ := service.GetTransactionHistory(context.Background(), store.HistoryFilter{UserId: user.Id})
	if len(history) != 0 {
		t.Errorf("History retained after rollback: %d rows", len(history))
	}
}

func TestRunInTx_RetriesConcurrentModification(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	attempts := 0
	err := service.RunInTx(context.Background(), func(tx store.Tx) error {
		attempts++
		if attempts == 1 {
			return store.ErrConcurrentModification
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestRunInTx_GivesUpAfterMaxRetries(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	attempts := 0
	err := service.RunInTx(context.Background(), func(tx store.Tx) error {
		attempts++
		return store.ErrConcurrentModification
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestGetTransactionHistory_Filters(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createTestUser(t, service, "history@example.com")
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []store.LedgerEntryParams{
		{UserId: user.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.NewFromInt(2), TransactionType: models.TransactionDeposit, At: base},
		{UserId: user.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.RequireFromString("0.1"), TransactionType: models.TransactionMining, At: base.Add(time.Hour)},
		{UserId: user.Id, CryptoType: models.CryptoEthereum, Amount: decimal.NewFromInt(5), TransactionType: models.TransactionDeposit, At: base.Add(2 * time.Hour)},
		{UserId: user.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.RequireFromString("-0.5"), TransactionType: models.TransactionWithdrawal, At: base.Add(3 * time.Hour)},
	}
	for _, e := range entries {
		if _, err := applyEntry(t, service, e); err != nil {
			t.Fatalf("ApplyLedgerEntry failed: %v", err)
		}
	}

	start := base.Add(30 * time.Minute)
	end := base.Add(150 * time.Minute)

	tests := []struct {
		name   string
		filter store.HistoryFilter
		want   int
	}{
		{"all", store.HistoryFilter{UserId: user.Id}, 4},
		{"by type", store.HistoryFilter{UserId: user.Id, TransactionType: models.TransactionDeposit}, 2},
		{"by crypto", store.HistoryFilter{UserId: user.Id, CryptoType: models.CryptoBitcoin}, 3},
		{"by range", store.HistoryFilter{UserId: user.Id, Start: &start, End: &end}, 2},
		{"paged", store.HistoryFilter{UserId: user.Id, Limit: 1, Offset: 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.GetTransactionHistory(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("GetTransactionHistory failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Expected %d rows, got %d", tt.want, len(got))
			}
		})
	}

	newest, _ := service.GetTransactionHistory(context.Background(), store.HistoryFilter{UserId: user.Id, Limit: 1})
	if newest[0].TransactionType != models.TransactionWithdrawal {
		t.Errorf("Expected newest row to be the withdrawal, got %s", newest[0].TransactionType)
	}
	if !newest[0].BalanceAfter.Equal(decimal.RequireFromString("1.6")) {
		t.Errorf("Expected balance after 1.6, got %s", newest[0].BalanceAfter)
	}

	summary, err := service.GetTransactionSummary(context.Background(), user.Id)
	if err != nil {
		t.Fatalf("GetTransactionSummary failed: %v", err)
	}
	if len(summary) != 4 {
		t.Fatalf("Expected 4 summary groups, got %d", len(summary))
	}
}

func TestHistoryIsAppendOnly(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	user := createTestUser(t, service, "appendonly@example.com")
	entry, err := applyEntry(t, service, store.LedgerEntryParams{
		UserId: user.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.NewFromInt(1),
		TransactionType: models.TransactionDeposit,
	})
	if err != nil {
		t.Fatalf("ApplyLedgerEntry failed: %v", err)
	}

	if _, err := service.db.Exec("UPDATE transaction_history SET amount = '9' WHERE id = ?", entry.Id); err == nil {
		t.Error("Expected update of history row to fail")
	}
	if _, err := service.db.Exec("DELETE FROM transaction_history WHERE id = ?", entry.Id); err == nil {
		t.Error("Expected delete of history row to fail")
	}
}
