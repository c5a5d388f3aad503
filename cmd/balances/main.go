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

package main

import (
	"context"
	"flag"
	"fmt"

	"mining-ledger-go/internal/api"
	"mining-ledger-go/internal/common"
	"mining-ledger-go/internal/config"
	"mining-ledger-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	usersWithBalances int
	mismatchedUsers   int
}

func printBalances(balances []models.UserBalance) {
	for i, balance := range balances {
		isLast := i == len(balances)-1
		fmt.Printf("%s %-20s (%s)\n",
			common.BoxPrefix(isLast),
			common.FormatCrypto(balance.Balance, balance.CryptoType),
			common.FormatUSD(balance.USDValue))
	}
}

func printUserHeader(user models.User) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s  Referral: %s\n", common.ShortId(user.Id), user.ReferralCode)
	if user.MiningPaused || user.WithdrawalSuspended || user.IsFlagged {
		fmt.Printf("│  Flags: mining_paused=%t withdrawal_suspended=%t flagged=%t\n",
			user.MiningPaused, user.WithdrawalSuspended, user.IsFlagged)
	}
	common.PrintBoxSeparator(78)
}

func processUser(ctx context.Context, user models.User, ledger *api.LedgerService, reconcile bool) (bool, error) {
	balances, err := ledger.GetBalances(ctx, user.Id)
	if err != nil {
		return false, fmt.Errorf("failed to get balances: %w", err)
	}

	hasBalance := false
	for _, b := range balances {
		if b.Balance.IsPositive() {
			hasBalance = true
		}
	}

	printUserHeader(user)
	printBalances(balances)

	if reconcile {
		if err := ledger.ReconcileBalances(ctx, user.Id); err != nil {
			fmt.Printf("   ✗ reconciliation failed: %v\n", err)
			return hasBalance, err
		}
		fmt.Println("   ✓ balances match transaction history")
	}

	return hasBalance, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Replay transaction history and compare against stored balances")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	users, err := common.InitializeUsers(ctx, services.DbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)

	stats := balanceStats{}
	for _, user := range users {
		stats.totalUsers++
		hasBalance, err := processUser(ctx, user, services.Ledger, *reconcileFlag)
		if hasBalance {
			stats.usersWithBalances++
		}
		if err != nil {
			stats.mismatchedUsers++
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("email", user.Email),
				zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d of %d users hold a balance", stats.usersWithBalances, stats.totalUsers)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d failed reconciliation", stats.mismatchedUsers)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_balances", stats.usersWithBalances),
		zap.Int("errors", stats.mismatchedUsers))
}
