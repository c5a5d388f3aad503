package store

import (
	"context"
	"errors"
	"time"

	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared by all backends.
var (
	ErrNotFound               = errors.New("record not found")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInsufficientFunds      = errors.New("insufficient funds")
)

// LedgerEntryParams describes one signed balance change plus its history row.
type LedgerEntryParams struct {
	UserId          string
	CryptoType      models.CryptoType
	Amount          decimal.Decimal // signed; negative debits
	TransactionType models.TransactionType
	Description     string
	ReferenceId     string
	At              time.Time
}

// CreateUserParams contains the fields accepted at registration.
type CreateUserParams struct {
	Name           string
	Email          string
	ReferralCode   string
	ReferredByCode string
	IsAdmin        bool
}

// UserControlsParams overwrites the admin-controlled user flags.
type UserControlsParams struct {
	UserId              string
	MiningPaused        bool
	WithdrawalSuspended bool
	IsFlagged           bool
	PersonalMiningRate  decimal.NullDecimal
	ExpectedVersion     int64
	At                  time.Time
}

// DepositTransitionParams moves a deposit from one status to another.
type DepositTransitionParams struct {
	DepositId       string
	From            models.DepositStatus
	To              models.DepositStatus
	ReviewedBy      string
	TransactionHash string
	At              time.Time
}

// SessionAccrualParams records one accrual step for a session.
type SessionAccrualParams struct {
	SessionId       string
	MinedAmount     decimal.Decimal
	LastMined       time.Time
	ExpectedVersion int64
}

// SessionTransitionParams moves a session between active, paused and closed.
type SessionTransitionParams struct {
	SessionId       string
	From            models.SessionStatus
	To              models.SessionStatus
	LastMined       time.Time
	PausedAt        *time.Time
	ClosedAt        *time.Time
	ExpectedVersion int64
	At              time.Time
}

// WithdrawalTransitionParams reviews a pending withdrawal.
type WithdrawalTransitionParams struct {
	WithdrawalId string
	From         models.WithdrawalStatus
	To           models.WithdrawalStatus
	ReviewedBy   string
	At           time.Time
}

// HistoryFilter narrows a transaction history listing.
type HistoryFilter struct {
	UserId          string
	TransactionType models.TransactionType
	CryptoType      models.CryptoType
	Start           *time.Time
	End             *time.Time
	Limit           int
	Offset          int
}

// DepositFilter narrows a deposit listing. Empty fields match everything.
type DepositFilter struct {
	UserId string
	Status models.DepositStatus
	Limit  int
	Offset int
}

// WithdrawalFilter narrows a withdrawal listing. Empty fields match everything.
type WithdrawalFilter struct {
	UserId string
	Status models.WithdrawalStatus
	Limit  int
	Offset int
}

// Tx is the unit of work every money-moving flow runs inside. Reads observe
// the transaction's own writes; nothing is visible to other callers until the
// surrounding RunInTx returns nil.
type Tx interface {
	GetUser(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	UpdateUserControls(ctx context.Context, params UserControlsParams) error
	GetSettings(ctx context.Context) (*models.AdminSettings, error)

	ApplyLedgerEntry(ctx context.Context, params LedgerEntryParams) (*models.TransactionHistory, error)

	InsertDeposit(ctx context.Context, deposit *models.CryptoDeposit) error
	GetDeposit(ctx context.Context, depositId string) (*models.CryptoDeposit, error)
	SetDepositEvidence(ctx context.Context, depositId, evidenceURL string, at time.Time) error
	TransitionDeposit(ctx context.Context, params DepositTransitionParams) error

	InsertSession(ctx context.Context, session *models.MiningSession) error
	GetSession(ctx context.Context, sessionId string) (*models.MiningSession, error)
	GetSessionByDeposit(ctx context.Context, depositId string) (*models.MiningSession, error)
	ListActiveSessions(ctx context.Context, userId string) ([]models.MiningSession, error)
	RecordSessionAccrual(ctx context.Context, params SessionAccrualParams) error
	TransitionSession(ctx context.Context, params SessionTransitionParams) error

	InsertWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error
	GetWithdrawal(ctx context.Context, withdrawalId string) (*models.Withdrawal, error)
	TransitionWithdrawal(ctx context.Context, params WithdrawalTransitionParams) error

	InsertTransfer(ctx context.Context, transfer *models.CryptoTransfer) error
	InsertReferralReward(ctx context.Context, reward *models.ReferralReward) error
}

// LedgerStore defines the contract a persistence backend must satisfy.
type LedgerStore interface {
	// RunInTx runs fn in one write transaction, retrying the whole function
	// when it fails with ErrConcurrentModification or a transient lock error.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	// --- Users ---
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error)

	// --- Settings ---
	GetSettings(ctx context.Context) (*models.AdminSettings, error)
	SaveSettings(ctx context.Context, settings models.AdminSettings) error
	UpdateUSDRates(ctx context.Context, bitcoinUSD, ethereumUSD decimal.Decimal, at time.Time) error

	// --- Read models ---
	GetDeposit(ctx context.Context, depositId string) (*models.CryptoDeposit, error)
	ListDeposits(ctx context.Context, filter DepositFilter) ([]models.CryptoDeposit, error)
	GetWithdrawal(ctx context.Context, withdrawalId string) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, filter WithdrawalFilter) ([]models.Withdrawal, error)
	ListTransfers(ctx context.Context, userId string, limit, offset int) ([]models.CryptoTransfer, error)
	GetSession(ctx context.Context, sessionId string) (*models.MiningSession, error)
	ListSessions(ctx context.Context, userId string) ([]models.MiningSession, error)
	ListReferralRewards(ctx context.Context, referrerId string) ([]models.ReferralReward, error)
	GetTransactionHistory(ctx context.Context, filter HistoryFilter) ([]models.TransactionHistory, error)
	GetTransactionSummary(ctx context.Context, userId string) ([]models.TransactionSummary, error)
	ReconcileUserBalance(ctx context.Context, userId string, cryptoType models.CryptoType) error
	GetDashboardStats(ctx context.Context) (*models.DashboardStats, error)

	// --- Audit and notifications ---
	RecordAdminAction(ctx context.Context, action models.AdminAction) error
	RecordActivity(ctx context.Context, activity models.ActivityLog) error
	ListAdminActions(ctx context.Context, limit, offset int) ([]models.AdminAction, error)
	EnqueueEmail(ctx context.Context, email models.EmailNotification) error
	ListPendingEmails(ctx context.Context, limit, maxAttempts int) ([]models.EmailNotification, error)
	ClaimEmail(ctx context.Context, emailId string, at time.Time) (bool, error)
	ReleaseStaleEmails(ctx context.Context, claimedBefore time.Time) (int64, error)
	MarkEmailSent(ctx context.Context, emailId string, at time.Time) error
	MarkEmailFailed(ctx context.Context, emailId, lastError string, maxAttempts int) error

	// --- Lifecycle ---
	Close() error
}
