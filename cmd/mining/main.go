package main

import (
	"context"
	"flag"
	"fmt"

	"mining-ledger-go/internal/common"
	"mining-ledger-go/internal/config"
	"mining-ledger-go/internal/models"

	"go.uber.org/zap"
)

func printResult(user *models.User, result *models.AccrualResult) {
	common.PrintHeader("MINING SYNC: "+user.Email, common.DefaultWidth)
	fmt.Println(result.Message)
	if result.MiningPaused {
		fmt.Println("Mining is paused for this account, no yield was credited")
	}

	for i, s := range result.Sessions {
		isLast := i == len(result.Sessions)-1
		fmt.Printf("%s session %s  deposit %s @ %s%%/day  +%s  mined %s\n",
			common.BoxPrefix(isLast),
			common.ShortId(s.SessionId),
			common.FormatCrypto(s.DepositedAmount, s.CryptoType),
			s.MiningRate.String(),
			s.Accrued.StringFixed(8),
			common.FormatCrypto(s.MinedAmount, s.CryptoType))
	}

	common.PrintFooter(fmt.Sprintf("Credited %s across %d sessions at %s",
		result.TotalMined.StringFixed(8), len(result.Sessions), result.SyncedAt.Format("2006-01-02 15:04:05")),
		common.DefaultWidth)
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "User email or id to sync (default: every user)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	var users []models.User
	if *userFlag != "" {
		user, err := common.ResolveUser(ctx, services.DbService, *userFlag)
		if err != nil {
			logger.Fatal("Failed to resolve user", zap.Error(err))
		}
		users = append(users, *user)
	} else if users, err = services.DbService.GetUsers(ctx); err != nil {
		logger.Fatal("Failed to list users", zap.Error(err))
	}

	failed := 0
	for i := range users {
		result, err := services.Ledger.SyncMining(ctx, users[i].Id)
		if err != nil {
			failed++
			logger.Error("Mining sync failed", zap.String("user_id", users[i].Id), zap.Error(err))
			continue
		}
		if len(result.Sessions) == 0 && *userFlag == "" {
			continue
		}
		printResult(&users[i], result)
	}

	logger.Info("Mining sync completed", zap.Int("users", len(users)), zap.Int("failed", failed))
}
