package common

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"mining-ledger-go/internal/api"
	"mining-ledger-go/internal/database"
	"mining-ledger-go/internal/lock"
	"mining-ledger-go/internal/metrics"
	"mining-ledger-go/internal/mining"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/notify"
	"mining-ledger-go/internal/pricefeed"
	"mining-ledger-go/internal/referral"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService  *database.Service
	Redis      redis.UniversalClient
	Locker     lock.Locker
	Notifier   notify.Notifier
	Dispatcher *notify.Dispatcher
	Mining     *mining.Engine
	Referral   *referral.Engine
	Ledger     *api.LedgerService
	PriceFeed  *pricefeed.Refresher
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and lock backend and wires every
// engine on top of them. Background workers are built but not started.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	metrics.Register()

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	services := &Services{DbService: dbService}

	services.Locker, services.Redis, err = newLocker(ctx, cfg.Lock)
	if err != nil {
		services.Close()
		return nil, err
	}

	httpClient, err := NewHTTPClient()
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("unable to create http client: %w", err)
	}

	services.Notifier = notify.NewQueueNotifier(dbService)
	services.Dispatcher = notify.NewDispatcher(notify.DispatcherConfig{
		Store:           dbService,
		Sender:          newSender(httpClient, cfg.Notifications),
		PollingInterval: cfg.Notifications.PollingInterval,
		BatchSize:       cfg.Notifications.BatchSize,
		MaxAttempts:     cfg.Notifications.MaxAttempts,
		SendTimeout:     cfg.Notifications.SendTimeout,
	})

	services.Mining = mining.NewEngine(dbService, services.Locker)
	services.Referral = referral.NewEngine(dbService, services.Locker, services.Notifier)
	services.Ledger = api.NewLedgerService(api.Dependencies{
		Store:    dbService,
		Locker:   services.Locker,
		Mining:   services.Mining,
		Referral: services.Referral,
		Notifier: services.Notifier,
		Audit:    notify.NewAuditLogger(dbService),
	})

	if cfg.PriceFeed.Enabled {
		services.PriceFeed = pricefeed.NewRefresher(pricefeed.RefresherConfig{
			Client:     pricefeed.NewClient(httpClient, cfg.PriceFeed.BaseURL),
			Store:      dbService,
			Schedule:   cfg.PriceFeed.Schedule,
			Timeout:    cfg.PriceFeed.Timeout,
			BitcoinId:  cfg.PriceFeed.BitcoinId,
			EthereumId: cfg.PriceFeed.EthereumId,
		})
	}

	zap.L().Info("Services initialized",
		zap.String("lock_backend", cfg.Lock.Backend),
		zap.Bool("price_feed", cfg.PriceFeed.Enabled),
		zap.Bool("email_api", cfg.Notifications.EmailAPIURL != ""))

	return services, nil
}

// InitializeDatabaseOnly initializes just the database service
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// Close releases the database and Redis connections, reporting every failure
func (cs *Services) Close() error {
	var result *multierror.Error
	if cs.Redis != nil {
		if err := cs.Redis.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("redis: %w", err))
		}
	}
	if cs.DbService != nil {
		if err := cs.DbService.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("database: %w", err))
		}
	}
	return result.ErrorOrNil()
}

func newLocker(ctx context.Context, cfg models.LockConfig) (lock.Locker, redis.UniversalClient, error) {
	if cfg.Backend != "redis" {
		return lock.NewMemoryLocker(), nil, nil
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("unable to reach redis at %s: %w", cfg.RedisAddr, err)
	}

	zap.L().Info("Using redis lock backend", zap.String("addr", cfg.RedisAddr))
	return lock.NewRedisLocker(rdb, cfg.TTL, cfg.RetryInterval, cfg.WaitTimeout), rdb, nil
}

func newSender(httpClient *http.Client, cfg models.NotificationConfig) notify.Sender {
	if cfg.EmailAPIURL == "" {
		zap.L().Warn("EMAIL_API_URL not set, queued emails will only be logged")
		return notify.LogSender{}
	}
	return notify.NewHTTPSender(httpClient, cfg.EmailAPIURL, cfg.EmailAPIToken, cfg.FromAddress)
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
