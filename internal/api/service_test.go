package api

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/database"
	"mining-ledger-go/internal/lock"
	"mining-ledger-go/internal/mining"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/referral"
	"mining-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

type sentMessage struct {
	to       string
	template string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Send(_ context.Context, to, _, template string, _ map[string]string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{to: to, template: template})
	return true
}

func (n *recordingNotifier) templatesFor(to string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var templates []string
	for _, m := range n.sent {
		if m.to == to {
			templates = append(templates, m.template)
		}
	}
	return templates
}

type fixture struct {
	service  *LedgerService
	store    *database.Service
	notifier *recordingNotifier
	now      time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:           filepath.Join(t.TempDir(), "api_test.db"),
		MaxOpenConns:   4,
		PingTimeout:    time.Second,
		BusyTimeout:    5 * time.Second,
		MaxTxRetries:   5,
		TxRetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.SaveSettings(context.Background(), models.AdminSettings{
		BitcoinRateUSD:        decimal.NewFromInt(50000),
		EthereumRateUSD:       decimal.NewFromInt(3000),
		GlobalMiningRate:      decimal.NewFromInt(70),
		BitcoinWalletAddress:  "bc1-platform",
		EthereumWalletAddress: "0xplatform",
		ReferralRewardEnabled: true,
		ReferrerRewardPercent: "5.0",
	}); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	f := &fixture{
		store:    db,
		notifier: &recordingNotifier{},
		now:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	locker := lock.NewMemoryLocker()

	f.service = NewLedgerService(Dependencies{
		Store:    db,
		Locker:   locker,
		Mining:   mining.NewEngine(db, locker).WithClock(clock),
		Referral: referral.NewEngine(db, locker, f.notifier).WithClock(clock),
		Notifier: f.notifier,
	}).WithClock(clock)
	return f
}

func (f *fixture) user(t *testing.T, email, referredBy string) *models.User {
	t.Helper()
	user, err := f.service.RegisterUser(context.Background(), email, email, referredBy)
	if err != nil {
		t.Fatalf("RegisterUser(%s) failed: %v", email, err)
	}
	return user
}

func (f *fixture) credit(t *testing.T, userId string, crypto models.CryptoType, amount string) {
	t.Helper()
	err := f.store.RunInTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.ApplyLedgerEntry(context.Background(), store.LedgerEntryParams{
			UserId:          userId,
			CryptoType:      crypto,
			Amount:          decimal.RequireFromString(amount),
			TransactionType: models.TransactionDeposit,
			Description:     "test funding",
		})
		return err
	})
	if err != nil {
		t.Fatalf("Funding %s failed: %v", userId, err)
	}
}

func (f *fixture) balance(t *testing.T, userId string, crypto models.CryptoType) decimal.Decimal {
	t.Helper()
	user, err := f.store.GetUserById(context.Background(), userId)
	if err != nil {
		t.Fatalf("GetUserById failed: %v", err)
	}
	return user.Balance(crypto)
}

func expectKind(t *testing.T, err error, want apperror.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", want)
	}
	if got := apperror.KindOf(err); got != want {
		t.Fatalf("Expected %s error, got %s (%v)", want, got, err)
	}
}

func TestTransfer_BothSidesShareHash(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	alice := f.user(t, "alice@example.com", "")
	bob := f.user(t, "bob@example.com", "")
	f.credit(t, alice.Id, models.CryptoEthereum, "2")

	result, err := f.service.Transfer(ctx, TransferRequest{
		FromUserId:     alice.Id,
		RecipientEmail: "BOB@example.com",
		CryptoType:     models.CryptoEthereum,
		Amount:         decimal.RequireFromString("0.75"),
		Note:           "lunch",
	})
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if !result.SenderBalance.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("Expected sender balance 1.25, got %s", result.SenderBalance)
	}
	if !result.RecipientBalance.Equal(decimal.RequireFromString("0.75")) {
		t.Errorf("Expected recipient balance 0.75, got %s", result.RecipientBalance)
	}
	if !result.Transfer.USDAmount.Equal(decimal.NewFromInt(2250)) {
		t.Errorf("Expected usd snapshot 2250, got %s", result.Transfer.USDAmount)
	}

	for _, userId := range []string{alice.Id, bob.Id} {
		history, err := f.service.GetTransactionHistory(ctx, store.HistoryFilter{
			UserId:          userId,
			TransactionType: models.TransactionTransfer,
		})
		if err != nil {
			t.Fatalf("GetTransactionHistory failed: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("Expected 1 transfer row for %s, got %d", userId, len(history))
		}
		if history[0].ReferenceId != result.Transfer.TransactionHash {
			t.Errorf("Expected reference %s, got %s", result.Transfer.TransactionHash, history[0].ReferenceId)
		}
	}

	if len(f.notifier.templatesFor("alice@example.com")) != 1 || len(f.notifier.templatesFor("bob@example.com")) != 1 {
		t.Errorf("Expected both parties to be notified, got %+v", f.notifier.sent)
	}
}

func TestTransfer_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	alice := f.user(t, "alice@example.com", "")
	bob := f.user(t, "bob@example.com", "")
	f.credit(t, alice.Id, models.CryptoBitcoin, "1")

	tests := []struct {
		name string
		req  TransferRequest
		want apperror.Kind
	}{
		{"both recipients", TransferRequest{FromUserId: alice.Id, RecipientEmail: bob.Email, RecipientUserId: bob.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.NewFromInt(1)}, apperror.KindValidation},
		{"no recipient", TransferRequest{FromUserId: alice.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.NewFromInt(1)}, apperror.KindValidation},
		{"self", TransferRequest{FromUserId: alice.Id, RecipientUserId: alice.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.NewFromInt(1)}, apperror.KindValidation},
		{"negative", TransferRequest{FromUserId: alice.Id, RecipientUserId: bob.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.NewFromInt(-1)}, apperror.KindValidation},
		{"unknown recipient", TransferRequest{FromUserId: alice.Id, RecipientEmail: "nobody@example.com", CryptoType: models.CryptoBitcoin, Amount: decimal.NewFromInt(1)}, apperror.KindNotFound},
		{"overdraft", TransferRequest{FromUserId: alice.Id, RecipientUserId: bob.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.RequireFromString("1.00000001")}, apperror.KindInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Transfer(ctx, tt.req)
			expectKind(t, err, tt.want)
		})
	}

	if !f.balance(t, alice.Id, models.CryptoBitcoin).Equal(decimal.NewFromInt(1)) {
		t.Error("Rejected transfers changed the sender balance")
	}
	if !f.balance(t, bob.Id, models.CryptoBitcoin).IsZero() {
		t.Error("Rejected transfers changed the recipient balance")
	}
}

func TestWithdrawal_RejectRefundsExactly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	user := f.user(t, "saver@example.com", "")
	f.credit(t, user.Id, models.CryptoBitcoin, "0.12345678")
	before := f.balance(t, user.Id, models.CryptoBitcoin)

	result, err := f.service.RequestWithdrawal(ctx, WithdrawalRequest{
		UserId:        user.Id,
		CryptoType:    models.CryptoBitcoin,
		Amount:        decimal.RequireFromString("0.1"),
		WalletAddress: "bc1-user",
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}
	if !result.NewBalance.Equal(decimal.RequireFromString("0.02345678")) {
		t.Errorf("Expected balance 0.02345678 after request, got %s", result.NewBalance)
	}
	if result.Withdrawal.TransactionHash == "" {
		t.Error("Expected a transaction hash")
	}

	reviewed, err := f.service.ReviewWithdrawal(ctx, "admin", result.Withdrawal.Id, false)
	if err != nil {
		t.Fatalf("ReviewWithdrawal failed: %v", err)
	}
	if reviewed.Withdrawal.Status != models.WithdrawalRejected {
		t.Errorf("Expected rejected, got %s", reviewed.Withdrawal.Status)
	}
	if reviewed.Withdrawal.ProcessedAt == nil {
		t.Error("Expected processed_at to be recorded")
	}
	if after := f.balance(t, user.Id, models.CryptoBitcoin); !after.Equal(before) {
		t.Errorf("Expected balance %s restored, got %s", before, after)
	}

	_, err = f.service.ReviewWithdrawal(ctx, "admin", result.Withdrawal.Id, true)
	expectKind(t, err, apperror.KindConflict)

	if err := f.service.ReconcileBalances(ctx, user.Id); err != nil {
		t.Errorf("Expected balances to reconcile, got %v", err)
	}
}

func TestWithdrawal_Guards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	user := f.user(t, "guarded@example.com", "")
	f.credit(t, user.Id, models.CryptoEthereum, "1")

	_, err := f.service.RequestWithdrawal(ctx, WithdrawalRequest{
		UserId: user.Id, CryptoType: models.CryptoEthereum, Amount: decimal.NewFromInt(2), WalletAddress: "0xuser",
	})
	expectKind(t, err, apperror.KindInsufficientFunds)

	withdrawals, _ := f.service.ListWithdrawals(ctx, store.WithdrawalFilter{UserId: user.Id})
	if len(withdrawals) != 0 {
		t.Errorf("Expected no withdrawal rows after a failed request, got %d", len(withdrawals))
	}

	_, err = f.service.RequestWithdrawal(ctx, WithdrawalRequest{
		UserId: user.Id, CryptoType: models.CryptoEthereum, Amount: decimal.NewFromInt(1),
	})
	expectKind(t, err, apperror.KindValidation)

	if _, err := f.service.SetWithdrawalSuspended(ctx, "admin", user.Id, true); err != nil {
		t.Fatalf("SetWithdrawalSuspended failed: %v", err)
	}
	_, err = f.service.RequestWithdrawal(ctx, WithdrawalRequest{
		UserId: user.Id, CryptoType: models.CryptoEthereum, Amount: decimal.NewFromInt(1), WalletAddress: "0xuser",
	})
	expectKind(t, err, apperror.KindForbidden)
}

func TestReviewDeposit_ConfirmSpawnsSessionAndPaysReferrer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	referrer := f.user(t, "referrer@example.com", "")
	depositor := f.user(t, "depositor@example.com", referrer.ReferralCode)

	created, err := f.service.CreateDeposit(ctx, CreateDepositRequest{
		UserId:     depositor.Id,
		CryptoType: models.CryptoEthereum,
		Amount:     decimal.NewNullDecimal(decimal.NewFromInt(1)),
	})
	if err != nil {
		t.Fatalf("CreateDeposit failed: %v", err)
	}
	if created.WalletAddress != "0xplatform" {
		t.Errorf("Expected platform wallet, got %q", created.WalletAddress)
	}
	if !created.Deposit.USDAmount.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Expected usd amount 3000, got %s", created.Deposit.USDAmount)
	}

	if _, err := f.service.SubmitDeposit(ctx, depositor.Id, created.Deposit.Id, "0xhash"); err != nil {
		t.Fatalf("SubmitDeposit failed: %v", err)
	}
	_, err = f.service.SubmitDeposit(ctx, depositor.Id, created.Deposit.Id, "0xhash")
	expectKind(t, err, apperror.KindConflict)

	result, err := f.service.ReviewDeposit(ctx, "admin", created.Deposit.Id, true)
	if err != nil {
		t.Fatalf("ReviewDeposit failed: %v", err)
	}
	if result.Deposit.Status != models.DepositConfirmed {
		t.Errorf("Expected confirmed, got %s", result.Deposit.Status)
	}
	if !result.NewBalance.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected balance 1, got %s", result.NewBalance)
	}
	if result.Session == nil || !result.Session.MiningRate.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("Expected session at the global rate 70, got %+v", result.Session)
	}

	_, err = f.service.ReviewDeposit(ctx, "admin", created.Deposit.Id, true)
	expectKind(t, err, apperror.KindConflict)

	sessions, _ := f.service.ListSessions(ctx, depositor.Id)
	if len(sessions) != 1 {
		t.Errorf("Expected exactly 1 session, got %d", len(sessions))
	}

	if reward := f.balance(t, referrer.Id, models.CryptoEthereum); !reward.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("Expected referrer reward 0.05, got %s", reward)
	}
	rewards, _ := f.service.ListReferralRewards(ctx, referrer.Id)
	if len(rewards) != 1 || rewards[0].Status != models.ReferralRewardPaid {
		t.Errorf("Expected one paid reward, got %+v", rewards)
	}

	// Settings changes never touch an open session.
	settings, _ := f.service.GetSettings(ctx)
	settings.GlobalMiningRate = decimal.NewFromInt(10)
	if _, err := f.service.UpdateSettings(ctx, "admin", *settings); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	sessions, _ = f.service.ListSessions(ctx, depositor.Id)
	if !sessions[0].MiningRate.Equal(decimal.NewFromInt(70)) {
		t.Errorf("Expected frozen rate 70, got %s", sessions[0].MiningRate)
	}

	f.now = f.now.Add(24 * time.Hour)
	sync, err := f.service.SyncMining(ctx, depositor.Id)
	if err != nil {
		t.Fatalf("SyncMining failed: %v", err)
	}
	if !sync.TotalMined.Equal(decimal.RequireFromString("0.7")) {
		t.Errorf("Expected 0.7 mined after a day, got %s", sync.TotalMined)
	}

	actions, err := f.service.ListAdminActions(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListAdminActions failed: %v", err)
	}
	recorded := make(map[string]string)
	for _, a := range actions {
		recorded[a.Action] = a.TargetId
	}
	if len(actions) != 2 || recorded["confirm_deposit"] != created.Deposit.Id {
		t.Errorf("Expected confirm_deposit and update_settings rows, got %+v", actions)
	}
	if _, ok := recorded["update_settings"]; !ok {
		t.Errorf("Expected update_settings row, got %+v", actions)
	}

	templates := f.notifier.templatesFor("depositor@example.com")
	if len(templates) != 2 {
		t.Errorf("Expected created and confirmed emails, got %v", templates)
	}
}

func TestReviewDeposit_RejectLeavesBalance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	user := f.user(t, "rejected@example.com", "")
	created, err := f.service.CreateDeposit(ctx, CreateDepositRequest{
		UserId:     user.Id,
		CryptoType: models.CryptoBitcoin,
		USDAmount:  decimal.NewNullDecimal(decimal.NewFromInt(1000)),
	})
	if err != nil {
		t.Fatalf("CreateDeposit failed: %v", err)
	}
	if !created.Deposit.Amount.Equal(decimal.RequireFromString("0.02")) {
		t.Errorf("Expected derived amount 0.02, got %s", created.Deposit.Amount)
	}

	result, err := f.service.ReviewDeposit(ctx, "admin", created.Deposit.Id, false)
	if err != nil {
		t.Fatalf("ReviewDeposit failed: %v", err)
	}
	if result.Deposit.Status != models.DepositRejected || result.Session != nil {
		t.Errorf("Expected rejected deposit without session, got %+v", result)
	}
	if !f.balance(t, user.Id, models.CryptoBitcoin).IsZero() {
		t.Error("Rejected deposit changed the balance")
	}

	_, err = f.service.ReviewDeposit(ctx, "admin", "missing", true)
	expectKind(t, err, apperror.KindNotFound)
}

func TestCreateDeposit_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	user := f.user(t, "validate@example.com", "")
	one := decimal.NewNullDecimal(decimal.NewFromInt(1))

	tests := []struct {
		name string
		req  CreateDepositRequest
		want apperror.Kind
	}{
		{"both amounts", CreateDepositRequest{UserId: user.Id, CryptoType: models.CryptoBitcoin, Amount: one, USDAmount: one}, apperror.KindValidation},
		{"no amount", CreateDepositRequest{UserId: user.Id, CryptoType: models.CryptoBitcoin}, apperror.KindValidation},
		{"bad crypto", CreateDepositRequest{UserId: user.Id, CryptoType: "dogecoin", Amount: one}, apperror.KindValidation},
		{"zero", CreateDepositRequest{UserId: user.Id, CryptoType: models.CryptoBitcoin, Amount: decimal.NewNullDecimal(decimal.Zero)}, apperror.KindValidation},
		{"unknown user", CreateDepositRequest{UserId: "missing", CryptoType: models.CryptoBitcoin, Amount: one}, apperror.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateDeposit(ctx, tt.req)
			expectKind(t, err, tt.want)
		})
	}

	if _, err := f.service.SetFlagged(ctx, "admin", user.Id, true); err != nil {
		t.Fatalf("SetFlagged failed: %v", err)
	}
	_, err := f.service.CreateDeposit(ctx, CreateDepositRequest{UserId: user.Id, CryptoType: models.CryptoBitcoin, Amount: one})
	expectKind(t, err, apperror.KindForbidden)
}

func TestUserControls(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	user := f.user(t, "controlled@example.com", "")

	_, err := f.service.SetPersonalMiningRate(ctx, "admin", user.Id, decimal.NewFromInt(150))
	expectKind(t, err, apperror.KindValidation)

	updated, err := f.service.SetPersonalMiningRate(ctx, "admin", user.Id, decimal.NewFromInt(90))
	if err != nil {
		t.Fatalf("SetPersonalMiningRate failed: %v", err)
	}
	if !updated.PersonalMiningRate.Valid || !updated.PersonalMiningRate.Decimal.Equal(decimal.NewFromInt(90)) {
		t.Errorf("Expected personal rate 90, got %v", updated.PersonalMiningRate)
	}

	updated, err = f.service.SetMiningPaused(ctx, "admin", user.Id, true)
	if err != nil {
		t.Fatalf("SetMiningPaused failed: %v", err)
	}
	if !updated.MiningPaused || !updated.PersonalMiningRate.Valid {
		t.Errorf("Expected paused user with rate kept, got %+v", updated)
	}

	updated, err = f.service.ClearPersonalMiningRate(ctx, "admin", user.Id)
	if err != nil {
		t.Fatalf("ClearPersonalMiningRate failed: %v", err)
	}
	if updated.PersonalMiningRate.Valid || !updated.MiningPaused {
		t.Errorf("Expected rate cleared and pause kept, got %+v", updated)
	}

	_, err = f.service.SetFlagged(ctx, "admin", "missing", true)
	expectKind(t, err, apperror.KindNotFound)
}

func TestRegisterUser_UnknownReferralCode(t *testing.T) {
	f := setup(t)

	_, err := f.service.RegisterUser(context.Background(), "Someone", "someone@example.com", "NOPE1234")
	expectKind(t, err, apperror.KindValidation)

	_, err = f.service.RegisterUser(context.Background(), "Someone", "not-an-email", "")
	expectKind(t, err, apperror.KindValidation)
}

func TestUpdateSettings_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	base, err := f.service.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(s *models.AdminSettings)
	}{
		{"zero btc rate", func(s *models.AdminSettings) { s.BitcoinRateUSD = decimal.Zero }},
		{"global rate above 100", func(s *models.AdminSettings) { s.GlobalMiningRate = decimal.NewFromInt(101) }},
		{"non numeric percent", func(s *models.AdminSettings) { s.ReferrerRewardPercent = "five" }},
		{"negative percent", func(s *models.AdminSettings) { s.ReferrerRewardPercent = "-1" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := *base
			tt.mutate(&settings)
			_, err := f.service.UpdateSettings(ctx, "admin", settings)
			expectKind(t, err, apperror.KindValidation)
		})
	}
}

func TestSetMiningPaused_PausedIntervalNeverAccrues(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	user := f.user(t, "paused@example.com", "")
	if _, err := f.service.SetPersonalMiningRate(ctx, "admin", user.Id, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("SetPersonalMiningRate failed: %v", err)
	}
	created, err := f.service.CreateDeposit(ctx, CreateDepositRequest{
		UserId:     user.Id,
		CryptoType: models.CryptoBitcoin,
		Amount:     decimal.NewNullDecimal(decimal.NewFromInt(2)),
	})
	if err != nil {
		t.Fatalf("CreateDeposit failed: %v", err)
	}
	if _, err := f.service.ReviewDeposit(ctx, "admin", created.Deposit.Id, true); err != nil {
		t.Fatalf("ReviewDeposit failed: %v", err)
	}

	// Half a day of yield is settled at the pause instant.
	f.now = f.now.Add(12 * time.Hour)
	if _, err := f.service.SetMiningPaused(ctx, "admin", user.Id, true); err != nil {
		t.Fatalf("SetMiningPaused(true) failed: %v", err)
	}
	if got := f.balance(t, user.Id, models.CryptoBitcoin); !got.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("Expected balance 2.5 after pause, got %s", got)
	}

	f.now = f.now.Add(24 * time.Hour)
	sync, err := f.service.SyncMining(ctx, user.Id)
	if err != nil {
		t.Fatalf("SyncMining while paused failed: %v", err)
	}
	if !sync.MiningPaused || !sync.TotalMined.IsZero() {
		t.Errorf("Expected paused sync to mine nothing, got %+v", sync)
	}

	if _, err := f.service.SetMiningPaused(ctx, "admin", user.Id, false); err != nil {
		t.Fatalf("SetMiningPaused(false) failed: %v", err)
	}
	sync, err = f.service.SyncMining(ctx, user.Id)
	if err != nil {
		t.Fatalf("SyncMining after resume failed: %v", err)
	}
	if !sync.TotalMined.IsZero() {
		t.Errorf("Expected the paused day to earn nothing, got %s", sync.TotalMined)
	}

	f.now = f.now.Add(12 * time.Hour)
	sync, err = f.service.SyncMining(ctx, user.Id)
	if err != nil {
		t.Fatalf("SyncMining failed: %v", err)
	}
	if !sync.TotalMined.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Expected 0.5 mined after resume, got %s", sync.TotalMined)
	}
	if got := f.balance(t, user.Id, models.CryptoBitcoin); !got.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Expected balance 3, got %s", got)
	}
	if err := f.service.ReconcileBalances(ctx, user.Id); err != nil {
		t.Errorf("Expected balances to reconcile, got %v", err)
	}
}

func TestDebits_TrailingZerosAccepted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	alice := f.user(t, "alice@example.com", "")
	bob := f.user(t, "bob@example.com", "")
	f.credit(t, alice.Id, models.CryptoBitcoin, "2")

	if _, err := f.service.Transfer(ctx, TransferRequest{
		FromUserId:      alice.Id,
		RecipientUserId: bob.Id,
		CryptoType:      models.CryptoBitcoin,
		Amount:          decimal.RequireFromString("1.000000000"),
	}); err != nil {
		t.Errorf("Transfer with trailing zeros failed: %v", err)
	}
	if _, err := f.service.RequestWithdrawal(ctx, WithdrawalRequest{
		UserId:        alice.Id,
		CryptoType:    models.CryptoBitcoin,
		Amount:        decimal.RequireFromString("0.500000000000"),
		WalletAddress: "bc1-alice",
	}); err != nil {
		t.Errorf("Withdrawal with trailing zeros failed: %v", err)
	}

	_, err := f.service.Transfer(ctx, TransferRequest{
		FromUserId:      alice.Id,
		RecipientUserId: bob.Id,
		CryptoType:      models.CryptoBitcoin,
		Amount:          decimal.RequireFromString("0.000000001"),
	})
	expectKind(t, err, apperror.KindValidation)
}

func TestDebits_ConcurrentNeverOverdraw(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	alice := f.user(t, "alice@example.com", "")
	bob := f.user(t, "bob@example.com", "")
	f.credit(t, alice.Id, models.CryptoBitcoin, "1")

	const attempts = 20
	amount := decimal.RequireFromString("0.3")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.service.Transfer(ctx, TransferRequest{
					FromUserId:      alice.Id,
					RecipientUserId: bob.Id,
					CryptoType:      models.CryptoBitcoin,
					Amount:          amount,
				})
			} else {
				_, err = f.service.RequestWithdrawal(ctx, WithdrawalRequest{
					UserId:        alice.Id,
					CryptoType:    models.CryptoBitcoin,
					Amount:        amount,
					WalletAddress: "bc1-alice",
				})
			}
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperror.KindOf(err) != apperror.KindInsufficientFunds {
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	for _, err := range failures {
		t.Errorf("Unexpected debit error: %v", err)
	}
	if succeeded != 3 {
		t.Errorf("Expected 3 debits to succeed, got %d", succeeded)
	}

	aliceBalance := f.balance(t, alice.Id, models.CryptoBitcoin)
	if !aliceBalance.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("Expected alice balance 0.1, got %s", aliceBalance)
	}

	withdrawals, err := f.service.ListWithdrawals(ctx, store.WithdrawalFilter{UserId: alice.Id})
	if err != nil {
		t.Fatalf("ListWithdrawals failed: %v", err)
	}
	withdrawn := decimal.Zero
	for _, w := range withdrawals {
		withdrawn = withdrawn.Add(w.Amount)
	}
	bobBalance := f.balance(t, bob.Id, models.CryptoBitcoin)
	if total := aliceBalance.Add(bobBalance).Add(withdrawn); !total.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected 1 BTC conserved, got %s (alice %s, bob %s, withdrawn %s)", total, aliceBalance, bobBalance, withdrawn)
	}

	for _, userId := range []string{alice.Id, bob.Id} {
		if err := f.service.ReconcileBalances(ctx, userId); err != nil {
			t.Errorf("Expected balances to reconcile for %s, got %v", userId, err)
		}
	}
}
