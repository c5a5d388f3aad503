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
	"strings"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/common"
	"mining-ledger-go/internal/config"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"go.uber.org/zap"
)

func createUser(ctx context.Context, services *common.Services, name, email, referral string, admin bool) (*models.User, error) {
	if !admin {
		return services.Ledger.RegisterUser(ctx, name, email, referral)
	}

	// Operators are provisioned out of band and never join through a referral
	user, err := services.DbService.CreateUser(ctx, store.CreateUserParams{
		Name:    strings.TrimSpace(name),
		Email:   email,
		IsAdmin: true,
	})
	if err != nil {
		return nil, apperror.From(err, "failed to create admin user")
	}
	return user, nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	nameFlag := flag.String("name", "", "User's full name (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	referralFlag := flag.String("referral", "", "Referral code of the inviting user (optional)")
	adminFlag := flag.Bool("admin", false, "Create an administrator account")
	flag.Parse()

	if *nameFlag == "" || *emailFlag == "" {
		zap.L().Fatal("Both flags are required: --name and --email")
	}
	if *adminFlag && *referralFlag != "" {
		zap.L().Fatal("--referral cannot be combined with --admin")
	}

	zap.L().Info("Starting user creation process",
		zap.String("name", *nameFlag),
		zap.String("email", *emailFlag),
		zap.Bool("admin", *adminFlag))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	user, err := createUser(ctx, services, *nameFlag, *emailFlag, *referralFlag, *adminFlag)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindConflict {
			zap.L().Fatal("User already exists with this email", zap.String("email", *emailFlag))
		}
		zap.L().Fatal("Failed to create user",
			zap.String("kind", string(apperror.KindOf(err))),
			zap.String("reason", apperror.PublicMessage(err)),
			zap.Error(err))
	}

	common.PrintHeader("USER CREATED", common.DefaultWidth)
	fmt.Printf("ID:            %s\n", user.Id)
	fmt.Printf("Name:          %s\n", user.Name)
	fmt.Printf("Email:         %s\n", user.Email)
	fmt.Printf("Referral code: %s\n", user.ReferralCode)
	if user.ReferredByCode != "" {
		fmt.Printf("Referred by:   %s\n", user.ReferredByCode)
	}
	if user.IsAdmin {
		fmt.Println("Role:          admin")
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("User created successfully", zap.String("id", user.Id))
}
