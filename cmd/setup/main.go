package main

import (
	"context"
	"flag"
	"fmt"

	"mining-ledger-go/internal/api"
	"mining-ledger-go/internal/common"
	"mining-ledger-go/internal/config"
	"mining-ledger-go/internal/database"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/pricefeed"

	"go.uber.org/zap"
)

// seedSettings writes the YAML seed unless a settings row already exists
func seedSettings(ctx context.Context, dbService *database.Service, settingsFile string, force bool) (*models.AdminSettings, error) {
	existing, err := dbService.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current settings: %w", err)
	}
	if existing != nil && !force {
		zap.L().Info("Settings already present, leaving them untouched (use --force to overwrite)")
		return existing, nil
	}

	zap.L().Info("Loading settings seed", zap.String("file", settingsFile))
	settings, err := config.LoadSettingsSeed(settingsFile)
	if err != nil {
		return nil, err
	}
	if err := api.ValidateSettings(settings); err != nil {
		return nil, err
	}
	if existing != nil {
		settings.RatesUpdatedAt = existing.RatesUpdatedAt
	}

	if err := dbService.SaveSettings(ctx, *settings); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	zap.L().Info("Settings saved",
		zap.String("btc_usd", settings.BitcoinRateUSD.String()),
		zap.String("eth_usd", settings.EthereumRateUSD.String()),
		zap.String("global_mining_rate", settings.GlobalMiningRate.String()))

	return dbService.GetSettings(ctx)
}

func refreshRates(ctx context.Context, dbService *database.Service, cfg models.PriceFeedConfig) error {
	httpClient, err := common.NewHTTPClient()
	if err != nil {
		return err
	}
	refresher := pricefeed.NewRefresher(pricefeed.RefresherConfig{
		Client:     pricefeed.NewClient(httpClient, cfg.BaseURL),
		Store:      dbService,
		Timeout:    cfg.Timeout,
		BitcoinId:  cfg.BitcoinId,
		EthereumId: cfg.EthereumId,
	})
	return refresher.Refresh(ctx)
}

func printSettings(settings *models.AdminSettings) {
	common.PrintHeader("PLATFORM SETTINGS", common.DefaultWidth)
	fmt.Printf("BTC/USD:              %s\n", common.FormatUSD(settings.BitcoinRateUSD))
	fmt.Printf("ETH/USD:              %s\n", common.FormatUSD(settings.EthereumRateUSD))
	fmt.Printf("Global mining rate:   %s%% per day\n", settings.GlobalMiningRate.String())
	fmt.Printf("BTC wallet:           %s\n", settings.BitcoinWalletAddress)
	fmt.Printf("ETH wallet:           %s\n", settings.EthereumWalletAddress)
	fmt.Printf("Referral rewards:     %t (%s%%)\n", settings.ReferralRewardEnabled, settings.ReferrerRewardPercent)
	if settings.RatesUpdatedAt != nil {
		fmt.Printf("Rates updated:        %s\n", settings.RatesUpdatedAt.Format("2006-01-02 15:04:05"))
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	fileFlag := flag.String("file", "", "Settings seed file (defaults to SETTINGS_FILE)")
	forceFlag := flag.Bool("force", false, "Overwrite existing settings with the seed file")
	refreshFlag := flag.Bool("refresh-rates", false, "Fetch current USD rates from the price feed after seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	settingsFile := cfg.Mining.SettingsFile
	if *fileFlag != "" {
		settingsFile = *fileFlag
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	settings, err := seedSettings(ctx, dbService, settingsFile, *forceFlag)
	if err != nil {
		zap.L().Fatal("Failed to seed settings", zap.Error(err))
	}

	if *refreshFlag {
		if err := refreshRates(ctx, dbService, cfg.PriceFeed); err != nil {
			zap.L().Fatal("Failed to refresh rates", zap.Error(err))
		}
		if settings, err = dbService.GetSettings(ctx); err != nil {
			zap.L().Fatal("Failed to reload settings", zap.Error(err))
		}
	}

	printSettings(settings)
}
