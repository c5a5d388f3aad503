package config

import (
	"fmt"
	"os"
	"path/filepath"

	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// SettingsSeed is the YAML layout of the admin settings seed file
type SettingsSeed struct {
	BitcoinRateUSD        string `yaml:"bitcoin_rate_usd"`
	EthereumRateUSD       string `yaml:"ethereum_rate_usd"`
	GlobalMiningRate      string `yaml:"global_mining_rate"`
	BitcoinWalletAddress  string `yaml:"bitcoin_wallet_address"`
	EthereumWalletAddress string `yaml:"ethereum_wallet_address"`
	ReferralRewardEnabled bool   `yaml:"referral_reward_enabled"`
	ReferrerRewardPercent string `yaml:"referrer_reward_percent"`
}

type settingsFileDoc struct {
	Settings SettingsSeed `yaml:"settings"`
}

// LoadSettingsSeed reads the settings file, relative paths resolving against
// the working directory
func LoadSettingsSeed(settingsFile string) (*models.AdminSettings, error) {
	var settingsPath string
	if filepath.IsAbs(settingsFile) {
		settingsPath = settingsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		settingsPath = filepath.Join(wd, settingsFile)
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", settingsFile, err)
	}

	var file settingsFileDoc
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", settingsFile, err)
	}
	seed := file.Settings

	settings := &models.AdminSettings{
		BitcoinWalletAddress:  seed.BitcoinWalletAddress,
		EthereumWalletAddress: seed.EthereumWalletAddress,
		ReferralRewardEnabled: seed.ReferralRewardEnabled,
		ReferrerRewardPercent: seed.ReferrerRewardPercent,
	}

	fields := []struct {
		name   string
		value  string
		target *decimal.Decimal
	}{
		{"bitcoin_rate_usd", seed.BitcoinRateUSD, &settings.BitcoinRateUSD},
		{"ethereum_rate_usd", seed.EthereumRateUSD, &settings.EthereumRateUSD},
		{"global_mining_rate", seed.GlobalMiningRate, &settings.GlobalMiningRate},
	}
	for _, f := range fields {
		if f.value == "" {
			return nil, fmt.Errorf("%s missing %s", settingsFile, f.name)
		}
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return nil, fmt.Errorf("%s has invalid %s %q: %w", settingsFile, f.name, f.value, err)
		}
		*f.target = d
	}

	return settings, nil
}
