package models

import "time"

// Config represents the application configuration
type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	Lock          LockConfig
	Mining        MiningConfig
	PriceFeed     PriceFeedConfig
	Notifications NotificationConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path             string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	BusyTimeout      time.Duration
	MaxTxRetries     int
	TxRetryBackoff   time.Duration
	CreateDummyUsers bool
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
}

// LockConfig selects the per-user lock backend
type LockConfig struct {
	Backend       string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	RetryInterval time.Duration
	WaitTimeout   time.Duration
}

// MiningConfig holds accrual defaults
type MiningConfig struct {
	SettingsFile string
}

// PriceFeedConfig holds the external rate refresher settings
type PriceFeedConfig struct {
	Enabled    bool
	BaseURL    string
	Schedule   string
	Timeout    time.Duration
	BitcoinId  string
	EthereumId string
}

// NotificationConfig holds email queue settings
type NotificationConfig struct {
	EmailAPIURL     string
	EmailAPIToken   string
	FromAddress     string
	PollingInterval time.Duration
	BatchSize       int
	MaxAttempts     int
	SendTimeout     time.Duration
}
