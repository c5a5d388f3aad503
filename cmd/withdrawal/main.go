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
	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/common"
	"mining-ledger-go/internal/config"
	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cliFlags struct {
	email       string
	crypto      string
	amount      string
	destination string
	review      string
	reject      bool
	admin       string
}

func parseFlags() *cliFlags {
	f := &cliFlags{}
	flag.StringVar(&f.email, "email", "", "User email requesting the withdrawal")
	flag.StringVar(&f.crypto, "crypto", "", "Crypto type: bitcoin or ethereum")
	flag.StringVar(&f.amount, "amount", "", "Amount to withdraw")
	flag.StringVar(&f.destination, "destination", "", "Destination wallet address")
	flag.StringVar(&f.review, "review", "", "Withdrawal id to review instead of creating a request")
	flag.BoolVar(&f.reject, "reject", false, "Reject the reviewed withdrawal and refund the user")
	flag.StringVar(&f.admin, "admin", "", "Admin email performing the review")
	flag.Parse()
	return f
}

func buildRequest(ctx context.Context, services *common.Services, f *cliFlags) (api.WithdrawalRequest, error) {
	if f.email == "" || f.crypto == "" || f.amount == "" || f.destination == "" {
		return api.WithdrawalRequest{}, fmt.Errorf("all flags are required: --email, --crypto, --amount, --destination")
	}

	cryptoType, err := models.ParseCryptoType(f.crypto)
	if err != nil {
		return api.WithdrawalRequest{}, err
	}
	amount, err := decimal.NewFromString(f.amount)
	if err != nil {
		return api.WithdrawalRequest{}, fmt.Errorf("invalid amount format: %w", err)
	}

	user, err := common.ResolveUser(ctx, services.DbService, f.email)
	if err != nil {
		return api.WithdrawalRequest{}, err
	}

	return api.WithdrawalRequest{
		UserId:        user.Id,
		CryptoType:    cryptoType,
		Amount:        amount,
		WalletAddress: f.destination,
	}, nil
}

func requestWithdrawal(ctx context.Context, services *common.Services, f *cliFlags) error {
	req, err := buildRequest(ctx, services, f)
	if err != nil {
		return err
	}

	result, err := services.Ledger.RequestWithdrawal(ctx, req)
	if err != nil {
		return err
	}

	w := result.Withdrawal
	common.PrintHeader("WITHDRAWAL REQUESTED", common.DefaultWidth)
	fmt.Printf("ID:          %s\n", w.Id)
	fmt.Printf("Amount:      %s (%s)\n", common.FormatCrypto(w.Amount, w.CryptoType), common.FormatUSD(w.USDAmount))
	fmt.Printf("Destination: %s\n", w.WalletAddress)
	fmt.Printf("Status:      %s\n", w.Status)
	fmt.Printf("New balance: %s\n", common.FormatCrypto(result.NewBalance, w.CryptoType))
	common.PrintSeparator("=", common.DefaultWidth)
	return nil
}

func reviewWithdrawal(ctx context.Context, services *common.Services, f *cliFlags) error {
	if f.admin == "" {
		return fmt.Errorf("--admin is required with --review")
	}
	admin, err := common.ResolveUser(ctx, services.DbService, f.admin)
	if err != nil {
		return err
	}
	if !admin.IsAdmin {
		return apperror.Forbidden("%s is not an administrator", admin.Email)
	}

	result, err := services.Ledger.ReviewWithdrawal(ctx, admin.Id, f.review, !f.reject)
	if err != nil {
		return err
	}

	w := result.Withdrawal
	common.PrintHeader("WITHDRAWAL REVIEWED", common.DefaultWidth)
	fmt.Printf("ID:          %s\n", w.Id)
	fmt.Printf("Status:      %s\n", w.Status)
	fmt.Printf("Balance:     %s\n", common.FormatCrypto(result.NewBalance, w.CryptoType))
	common.PrintSeparator("=", common.DefaultWidth)
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	f := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if f.review != "" {
		err = reviewWithdrawal(ctx, services, f)
	} else {
		err = requestWithdrawal(ctx, services, f)
	}
	if err != nil {
		zap.L().Fatal("Withdrawal failed",
			zap.String("kind", string(apperror.KindOf(err))),
			zap.String("reason", apperror.PublicMessage(err)),
			zap.Error(err))
	}
}
