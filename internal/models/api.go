/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserBalance represents a user's balance for one crypto type
type UserBalance struct {
	CryptoType CryptoType      `json:"crypto_type"`
	Balance    decimal.Decimal `json:"balance"`
	USDValue   decimal.Decimal `json:"usd_value"`
}

// SessionAccrual is the per-session breakdown of one accrual pass
type SessionAccrual struct {
	SessionId       string          `json:"session_id"`
	CryptoType      CryptoType      `json:"crypto_type"`
	DepositedAmount decimal.Decimal `json:"deposited_amount"`
	MiningRate      decimal.Decimal `json:"mining_rate_percent"`
	Accrued         decimal.Decimal `json:"accrued"`
	MinedAmount     decimal.Decimal `json:"current_mined"`
	Balance         decimal.Decimal `json:"balance"`
}

// AccrualResult is returned by a live-progress sync
type AccrualResult struct {
	UserId       string           `json:"user_id"`
	MiningPaused bool             `json:"mining_paused"`
	Message      string           `json:"message"`
	TotalMined   decimal.Decimal  `json:"total_mined"`
	Sessions     []SessionAccrual `json:"sessions"`
	SyncedAt     time.Time        `json:"synced_at"`
}

// DepositResult is returned when a deposit changes state
type DepositResult struct {
	Deposit       *CryptoDeposit  `json:"deposit"`
	Session       *MiningSession  `json:"session,omitempty"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	WalletAddress string          `json:"wallet_address,omitempty"`
}

// WithdrawalResult is returned when a withdrawal is requested or reviewed
type WithdrawalResult struct {
	Withdrawal *Withdrawal     `json:"withdrawal"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// TransferResult is returned after an internal transfer
type TransferResult struct {
	Transfer         *CryptoTransfer `json:"transfer"`
	SenderBalance    decimal.Decimal `json:"sender_balance"`
	RecipientBalance decimal.Decimal `json:"recipient_balance"`
}

// TransactionSummary aggregates history rows per type and crypto
type TransactionSummary struct {
	TransactionType TransactionType `json:"transaction_type"`
	CryptoType      CryptoType      `json:"crypto_type"`
	Count           int             `json:"count"`
	Total           decimal.Decimal `json:"total"`
}

// DashboardStats backs the admin overview
type DashboardStats struct {
	TotalUsers            int             `json:"total_users"`
	ActiveSessions        int             `json:"active_sessions"`
	PendingDeposits       int             `json:"pending_deposits"`
	ConfirmedDepositsUSD  decimal.Decimal `json:"confirmed_deposits_usd"`
	TransfersUSD          decimal.Decimal `json:"transfers_usd"`
	PendingWithdrawalsUSD decimal.Decimal `json:"pending_withdrawals_usd"`
	TotalMinedBitcoin     decimal.Decimal `json:"total_mined_bitcoin"`
	TotalMinedEthereum    decimal.Decimal `json:"total_mined_ethereum"`
}
