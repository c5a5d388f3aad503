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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"mining-ledger-go/internal/models"
)

type durationSetting struct {
	key          string
	defaultValue time.Duration
	target       *time.Duration
}

func Load() (*models.Config, error) {
	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:             getEnvString("DATABASE_PATH", "mining_ledger.db"),
			MaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxTxRetries:     getEnvInt("DB_MAX_TX_RETRIES", 5),
			CreateDummyUsers: getEnvBool("CREATE_DUMMY_USERS", false),
		},
		Server: models.ServerConfig{
			ListenAddr:     getEnvString("SERVER_LISTEN_ADDR", ":8080"),
			MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		},
		Lock: models.LockConfig{
			Backend:       getEnvString("LOCK_BACKEND", "memory"),
			RedisAddr:     getEnvString("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Mining: models.MiningConfig{
			SettingsFile: getEnvString("SETTINGS_FILE", "settings.yaml"),
		},
		PriceFeed: models.PriceFeedConfig{
			Enabled:    getEnvBool("PRICE_FEED_ENABLED", true),
			BaseURL:    getEnvString("PRICE_FEED_BASE_URL", "https://api.coinpaprika.com"),
			Schedule:   getEnvString("PRICE_FEED_SCHEDULE", "0 0 * * * *"),
			BitcoinId:  getEnvString("PRICE_FEED_BITCOIN_ID", "btc-bitcoin"),
			EthereumId: getEnvString("PRICE_FEED_ETHEREUM_ID", "eth-ethereum"),
		},
		Notifications: models.NotificationConfig{
			EmailAPIURL:   getEnvString("EMAIL_API_URL", ""),
			EmailAPIToken: getEnvString("EMAIL_API_TOKEN", ""),
			FromAddress:   getEnvString("EMAIL_FROM_ADDRESS", "no-reply@mining-ledger.local"),
			BatchSize:     getEnvInt("EMAIL_BATCH_SIZE", 10),
			MaxAttempts:   getEnvInt("EMAIL_MAX_ATTEMPTS", 3),
		},
	}

	durations := []durationSetting{
		{"DB_CONN_MAX_LIFETIME", 5 * time.Minute, &cfg.Database.ConnMaxLifetime},
		{"DB_CONN_MAX_IDLE_TIME", 30 * time.Second, &cfg.Database.ConnMaxIdleTime},
		{"DB_PING_TIMEOUT", 5 * time.Second, &cfg.Database.PingTimeout},
		{"DB_BUSY_TIMEOUT", 5 * time.Second, &cfg.Database.BusyTimeout},
		{"DB_TX_RETRY_BACKOFF", 10 * time.Millisecond, &cfg.Database.TxRetryBackoff},
		{"SERVER_READ_TIMEOUT", 10 * time.Second, &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", 10 * time.Second, &cfg.Server.WriteTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", 15 * time.Second, &cfg.Server.ShutdownTimeout},
		{"LOCK_TTL", 30 * time.Second, &cfg.Lock.TTL},
		{"LOCK_RETRY_INTERVAL", 25 * time.Millisecond, &cfg.Lock.RetryInterval},
		{"LOCK_WAIT_TIMEOUT", 10 * time.Second, &cfg.Lock.WaitTimeout},
		{"PRICE_FEED_TIMEOUT", 10 * time.Second, &cfg.PriceFeed.Timeout},
		{"EMAIL_POLLING_INTERVAL", 30 * time.Second, &cfg.Notifications.PollingInterval},
		{"EMAIL_SEND_TIMEOUT", 10 * time.Second, &cfg.Notifications.SendTimeout},
	}

	for _, d := range durations {
		value, err := getEnvDuration(d.key, d.defaultValue)
		if err != nil {
			return nil, err
		}
		*d.target = value
	}

	if cfg.Lock.Backend != "memory" && cfg.Lock.Backend != "redis" {
		return nil, fmt.Errorf("invalid LOCK_BACKEND %q: must be memory or redis", cfg.Lock.Backend)
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
