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

package database

const (
	userColumns = `id, name, email, referral_code, referred_by_code, bitcoin_balance, ethereum_balance,
		personal_mining_rate, mining_paused, withdrawal_suspended, is_flagged, is_admin, version,
		created_at, updated_at`

	depositColumns = `id, user_id, crypto_type, amount, usd_amount, wallet_address, status, transaction_hash,
		evidence_url, reviewed_by, reviewed_at, submitted_at, created_at, updated_at`

	sessionColumns = `id, user_id, deposit_id, crypto_type, deposited_amount, mining_rate, mined_amount, status,
		last_mined, paused_at, closed_at, version, created_at, updated_at`

	withdrawalColumns = `id, user_id, crypto_type, amount, usd_amount, wallet_address, status, transaction_hash,
		reviewed_by, processed_at, created_at`

	transferColumns = `id, from_user_id, to_user_id, crypto_type, amount, usd_amount, transaction_hash, note, created_at`

	referralRewardColumns = `id, referrer_id, referred_user_id, deposit_id, crypto_type, deposit_amount,
		reward_percent, reward_amount, status, created_at`

	historyColumns = `id, user_id, transaction_type, crypto_type, amount, balance_before, balance_after,
		description, reference_id, created_at`

	settingsColumns = `bitcoin_rate_usd, ethereum_rate_usd, global_mining_rate, bitcoin_wallet_address,
		ethereum_wallet_address, referral_reward_enabled, referrer_reward_percent, rates_updated_at, updated_at`

	emailColumns = `id, recipient, subject, template, variables, status, attempts, last_error, sent_at, created_at`

	// User queries
	queryGetUsers = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email, referral_code, referred_by_code, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ?`

	queryGetUserByEmail = `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER(?)`

	queryGetUserByReferralCode = `
		SELECT ` + userColumns + `
		FROM users
		WHERE referral_code = ?`

	queryUpdateUserControls = `
		UPDATE users
		SET mining_paused = ?, withdrawal_suspended = ?, is_flagged = ?, personal_mining_rate = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// Balance updates are version checked; a zero row count means another writer won.
	queryUpdateBitcoinBalance = `
		UPDATE users
		SET bitcoin_balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryUpdateEthereumBalance = `
		UPDATE users
		SET ethereum_balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// History queries
	queryInsertHistory = `
		INSERT INTO transaction_history (` + historyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetHistoryAmounts = `
		SELECT amount
		FROM transaction_history
		WHERE user_id = ? AND crypto_type = ?`

	queryGetHistoryForSummary = `
		SELECT transaction_type, crypto_type, amount
		FROM transaction_history
		WHERE user_id = ?
		ORDER BY transaction_type, crypto_type`

	// Settings queries
	queryGetSettings = `
		SELECT ` + settingsColumns + `
		FROM admin_settings
		WHERE id = 1`

	queryUpsertSettings = `
		INSERT INTO admin_settings (id, ` + settingsColumns + `)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			bitcoin_rate_usd = excluded.bitcoin_rate_usd,
			ethereum_rate_usd = excluded.ethereum_rate_usd,
			global_mining_rate = excluded.global_mining_rate,
			bitcoin_wallet_address = excluded.bitcoin_wallet_address,
			ethereum_wallet_address = excluded.ethereum_wallet_address,
			referral_reward_enabled = excluded.referral_reward_enabled,
			referrer_reward_percent = excluded.referrer_reward_percent,
			rates_updated_at = excluded.rates_updated_at,
			updated_at = excluded.updated_at`

	queryUpdateUSDRates = `
		UPDATE admin_settings
		SET bitcoin_rate_usd = ?, ethereum_rate_usd = ?, rates_updated_at = ?, updated_at = ?
		WHERE id = 1`

	// Deposit queries
	queryInsertDeposit = `
		INSERT INTO crypto_deposits (` + depositColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetDeposit = `
		SELECT ` + depositColumns + `
		FROM crypto_deposits
		WHERE id = ?`

	querySetDepositEvidence = `
		UPDATE crypto_deposits
		SET evidence_url = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	querySubmitDeposit = `
		UPDATE crypto_deposits
		SET status = 'submitted', submitted_at = ?, transaction_hash = COALESCE(NULLIF(?, ''), transaction_hash),
		    updated_at = ?
		WHERE id = ? AND status = ?`

	queryReviewDeposit = `
		UPDATE crypto_deposits
		SET status = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	// Session queries
	queryInsertSession = `
		INSERT INTO mining_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetSession = `
		SELECT ` + sessionColumns + `
		FROM mining_sessions
		WHERE id = ?`

	queryGetSessionByDeposit = `
		SELECT ` + sessionColumns + `
		FROM mining_sessions
		WHERE deposit_id = ?`

	queryListActiveSessions = `
		SELECT ` + sessionColumns + `
		FROM mining_sessions
		WHERE user_id = ? AND status = 'active'
		ORDER BY created_at, id`

	queryListSessions = `
		SELECT ` + sessionColumns + `
		FROM mining_sessions
		WHERE user_id = ?
		ORDER BY created_at DESC, id`

	queryRecordSessionAccrual = `
		UPDATE mining_sessions
		SET mined_amount = ?, last_mined = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND status = 'active'`

	queryTransitionSession = `
		UPDATE mining_sessions
		SET status = ?, last_mined = ?, paused_at = ?, closed_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND status = ?`

	// Withdrawal queries
	queryInsertWithdrawal = `
		INSERT INTO withdrawals (` + withdrawalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetWithdrawal = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE id = ?`

	queryTransitionWithdrawal = `
		UPDATE withdrawals
		SET status = ?, reviewed_by = ?, processed_at = ?
		WHERE id = ? AND status = ?`

	// Transfer and referral queries
	queryInsertTransfer = `
		INSERT INTO crypto_transfers (` + transferColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListTransfers = `
		SELECT ` + transferColumns + `
		FROM crypto_transfers
		WHERE from_user_id = ? OR to_user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	queryInsertReferralReward = `
		INSERT INTO referral_rewards (` + referralRewardColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListReferralRewards = `
		SELECT ` + referralRewardColumns + `
		FROM referral_rewards
		WHERE referrer_id = ?
		ORDER BY created_at DESC`

	// Audit queries
	queryInsertAdminAction = `
		INSERT INTO admin_action_logs (id, admin_id, action, target_type, target_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryListAdminActions = `
		SELECT id, admin_id, action, target_type, target_id, details, created_at
		FROM admin_action_logs
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`

	queryInsertActivity = `
		INSERT INTO activity_logs (id, user_id, action, details, created_at)
		VALUES (?, ?, ?, ?, ?)`

	// Email queue queries
	queryInsertEmail = `
		INSERT INTO email_notifications (` + emailColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListPendingEmails = `
		SELECT ` + emailColumns + `
		FROM email_notifications
		WHERE status = 'pending' AND attempts < ?
		ORDER BY created_at
		LIMIT ?`

	// A claim moves one pending row to sending; only one dispatcher can win it.
	queryClaimEmail = `
		UPDATE email_notifications
		SET status = 'sending', claimed_at = ?
		WHERE id = ? AND status = 'pending'`

	queryReleaseStaleEmails = `
		UPDATE email_notifications
		SET status = 'pending', claimed_at = NULL
		WHERE status = 'sending' AND claimed_at < ?`

	queryMarkEmailSent = `
		UPDATE email_notifications
		SET status = 'sent', attempts = attempts + 1, sent_at = ?, last_error = '', claimed_at = NULL
		WHERE id = ?`

	queryMarkEmailFailed = `
		UPDATE email_notifications
		SET attempts = attempts + 1,
		    last_error = ?,
		    status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END,
		    claimed_at = NULL
		WHERE id = ?`

	// Dashboard queries
	queryCountUsers           = `SELECT COUNT(*) FROM users`
	queryCountActiveSessions  = `SELECT COUNT(*) FROM mining_sessions WHERE status = 'active'`
	queryCountPendingDeposits = `SELECT COUNT(*) FROM crypto_deposits WHERE status IN ('pending', 'submitted')`
	queryConfirmedDepositUSD  = `SELECT usd_amount FROM crypto_deposits WHERE status = 'confirmed'`
	queryTransferUSD          = `SELECT usd_amount FROM crypto_transfers`
	queryPendingWithdrawalUSD = `SELECT usd_amount FROM withdrawals WHERE status = 'pending'`
	queryMinedAmounts         = `SELECT crypto_type, mined_amount FROM mining_sessions`
)
