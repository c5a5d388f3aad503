package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CryptoType identifies one of the two balances a user holds
type CryptoType string

const (
	CryptoBitcoin  CryptoType = "bitcoin"
	CryptoEthereum CryptoType = "ethereum"
)

// CryptoTypes lists every supported crypto type in display order
var CryptoTypes = []CryptoType{CryptoBitcoin, CryptoEthereum}

func (c CryptoType) Valid() bool {
	return c == CryptoBitcoin || c == CryptoEthereum
}

// Symbol returns the ticker used in reports
func (c CryptoType) Symbol() string {
	switch c {
	case CryptoBitcoin:
		return "BTC"
	case CryptoEthereum:
		return "ETH"
	default:
		return string(c)
	}
}

func ParseCryptoType(s string) (CryptoType, error) {
	c := CryptoType(s)
	if !c.Valid() {
		return "", fmt.Errorf("unsupported crypto type %q", s)
	}
	return c, nil
}

// TransactionType tags a TransactionHistory row
type TransactionType string

const (
	TransactionDeposit        TransactionType = "deposit"
	TransactionWithdrawal     TransactionType = "withdrawal"
	TransactionTransfer       TransactionType = "transfer"
	TransactionMining         TransactionType = "mining"
	TransactionReferralReward TransactionType = "referral_reward"
)

type DepositStatus string

const (
	DepositPending   DepositStatus = "pending"
	DepositSubmitted DepositStatus = "submitted"
	DepositConfirmed DepositStatus = "confirmed"
	DepositRejected  DepositStatus = "rejected"
)

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
	// WithdrawalProcessed is never the target of a transition.
	WithdrawalProcessed WithdrawalStatus = "processed"
)

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionPaused SessionStatus = "paused"
	SessionClosed SessionStatus = "closed"
)

const ReferralRewardPaid = "paid"

// User holds both crypto balances as columns on the user row
type User struct {
	Id                  string              `db:"id" json:"id"`
	Name                string              `db:"name" json:"name"`
	Email               string              `db:"email" json:"email"`
	ReferralCode        string              `db:"referral_code" json:"referral_code"`
	ReferredByCode      string              `db:"referred_by_code" json:"referred_by_code,omitempty"`
	BitcoinBalance      decimal.Decimal     `db:"bitcoin_balance" json:"bitcoin_balance"`
	EthereumBalance     decimal.Decimal     `db:"ethereum_balance" json:"ethereum_balance"`
	PersonalMiningRate  decimal.NullDecimal `db:"personal_mining_rate" json:"personal_mining_rate"`
	MiningPaused        bool                `db:"mining_paused" json:"mining_paused"`
	WithdrawalSuspended bool                `db:"withdrawal_suspended" json:"withdrawal_suspended"`
	IsFlagged           bool                `db:"is_flagged" json:"is_flagged"`
	IsAdmin             bool                `db:"is_admin" json:"is_admin"`
	Version             int64               `db:"version" json:"-"`
	CreatedAt           time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updated_at"`
}

// Balance returns the balance column for the given crypto type
func (u *User) Balance(c CryptoType) decimal.Decimal {
	if c == CryptoEthereum {
		return u.EthereumBalance
	}
	return u.BitcoinBalance
}

// AdminSettings is the singleton row of admin-controlled values
type AdminSettings struct {
	BitcoinRateUSD        decimal.Decimal `db:"bitcoin_rate_usd" json:"bitcoin_rate_usd"`
	EthereumRateUSD       decimal.Decimal `db:"ethereum_rate_usd" json:"ethereum_rate_usd"`
	GlobalMiningRate      decimal.Decimal `db:"global_mining_rate" json:"global_mining_rate"`
	BitcoinWalletAddress  string          `db:"bitcoin_wallet_address" json:"bitcoin_wallet_address"`
	EthereumWalletAddress string          `db:"ethereum_wallet_address" json:"ethereum_wallet_address"`
	ReferralRewardEnabled bool            `db:"referral_reward_enabled" json:"referral_reward_enabled"`
	ReferrerRewardPercent string          `db:"referrer_reward_percent" json:"referrer_reward_percent"`
	RatesUpdatedAt        *time.Time      `db:"rates_updated_at" json:"rates_updated_at,omitempty"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

// USDRate returns the USD price of one unit of the crypto type
func (s *AdminSettings) USDRate(c CryptoType) decimal.Decimal {
	if c == CryptoEthereum {
		return s.EthereumRateUSD
	}
	return s.BitcoinRateUSD
}

// WalletAddress returns the platform address users deposit to
func (s *AdminSettings) WalletAddress(c CryptoType) string {
	if c == CryptoEthereum {
		return s.EthereumWalletAddress
	}
	return s.BitcoinWalletAddress
}

type CryptoDeposit struct {
	Id              string          `db:"id" json:"id"`
	UserId          string          `db:"user_id" json:"user_id"`
	CryptoType      CryptoType      `db:"crypto_type" json:"crypto_type"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	USDAmount       decimal.Decimal `db:"usd_amount" json:"usd_amount"`
	WalletAddress   string          `db:"wallet_address" json:"wallet_address"`
	Status          DepositStatus   `db:"status" json:"status"`
	TransactionHash string          `db:"transaction_hash" json:"transaction_hash,omitempty"`
	EvidenceURL     string          `db:"evidence_url" json:"evidence_url,omitempty"`
	ReviewedBy      string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
	SubmittedAt     *time.Time      `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// MiningSession is one accrual stream tied to a confirmed deposit.
// DepositedAmount and MiningRate never change after insert.
type MiningSession struct {
	Id              string          `db:"id" json:"id"`
	UserId          string          `db:"user_id" json:"user_id"`
	DepositId       string          `db:"deposit_id" json:"deposit_id"`
	CryptoType      CryptoType      `db:"crypto_type" json:"crypto_type"`
	DepositedAmount decimal.Decimal `db:"deposited_amount" json:"deposited_amount"`
	MiningRate      decimal.Decimal `db:"mining_rate" json:"mining_rate"`
	MinedAmount     decimal.Decimal `db:"mined_amount" json:"mined_amount"`
	Status          SessionStatus   `db:"status" json:"status"`
	LastMined       time.Time       `db:"last_mined" json:"last_mined"`
	PausedAt        *time.Time      `db:"paused_at" json:"paused_at,omitempty"`
	ClosedAt        *time.Time      `db:"closed_at" json:"closed_at,omitempty"`
	Version         int64           `db:"version" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

func (s *MiningSession) IsActive() bool { return s.Status == SessionActive }
func (s *MiningSession) IsPaused() bool { return s.Status == SessionPaused }

type Withdrawal struct {
	Id              string           `db:"id" json:"id"`
	UserId          string           `db:"user_id" json:"user_id"`
	CryptoType      CryptoType       `db:"crypto_type" json:"crypto_type"`
	Amount          decimal.Decimal  `db:"amount" json:"amount"`
	USDAmount       decimal.Decimal  `db:"usd_amount" json:"usd_amount"`
	WalletAddress   string           `db:"wallet_address" json:"wallet_address"`
	Status          WithdrawalStatus `db:"status" json:"status"`
	TransactionHash string           `db:"transaction_hash" json:"transaction_hash"`
	ReviewedBy      string           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ProcessedAt     *time.Time       `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}

type CryptoTransfer struct {
	Id              string          `db:"id" json:"id"`
	FromUserId      string          `db:"from_user_id" json:"from_user_id"`
	ToUserId        string          `db:"to_user_id" json:"to_user_id"`
	CryptoType      CryptoType      `db:"crypto_type" json:"crypto_type"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	USDAmount       decimal.Decimal `db:"usd_amount" json:"usd_amount"`
	TransactionHash string          `db:"transaction_hash" json:"transaction_hash"`
	Note            string          `db:"note" json:"note,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

type ReferralReward struct {
	Id             string          `db:"id" json:"id"`
	ReferrerId     string          `db:"referrer_id" json:"referrer_id"`
	ReferredUserId string          `db:"referred_user_id" json:"referred_user_id"`
	DepositId      string          `db:"deposit_id" json:"deposit_id"`
	CryptoType     CryptoType      `db:"crypto_type" json:"crypto_type"`
	DepositAmount  decimal.Decimal `db:"deposit_amount" json:"deposit_amount"`
	RewardPercent  decimal.Decimal `db:"reward_percent" json:"reward_percent"`
	RewardAmount   decimal.Decimal `db:"reward_amount" json:"reward_amount"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// TransactionHistory is the append-only record of every balance change
type TransactionHistory struct {
	Id              string          `db:"id" json:"id"`
	UserId          string          `db:"user_id" json:"user_id"`
	TransactionType TransactionType `db:"transaction_type" json:"transaction_type"`
	CryptoType      CryptoType      `db:"crypto_type" json:"crypto_type"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore   decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after" json:"balance_after"`
	Description     string          `db:"description" json:"description"`
	ReferenceId     string          `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

type AdminAction struct {
	Id         string    `db:"id" json:"id"`
	AdminId    string    `db:"admin_id" json:"admin_id"`
	Action     string    `db:"action" json:"action"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetId   string    `db:"target_id" json:"target_id"`
	Details    string    `db:"details" json:"details"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type ActivityLog struct {
	Id        string    `db:"id" json:"id"`
	UserId    string    `db:"user_id" json:"user_id"`
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailSending EmailStatus = "sending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
)

// EmailNotification is a queued outbound message
type EmailNotification struct {
	Id        string      `db:"id" json:"id"`
	Recipient string      `db:"recipient" json:"recipient"`
	Subject   string      `db:"subject" json:"subject"`
	Template  string      `db:"template" json:"template"`
	Variables string      `db:"variables" json:"variables"`
	Status    EmailStatus `db:"status" json:"status"`
	Attempts  int         `db:"attempts" json:"attempts"`
	LastError string      `db:"last_error" json:"last_error,omitempty"`
	SentAt    *time.Time  `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}
