package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mining-ledger-go/internal/metrics"
	"mining-ledger-go/internal/store"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Hourly, on the hour. Six fields: the scheduler runs with seconds enabled.
const DefaultSchedule = "0 0 * * * *"

type RefresherConfig struct {
	Client     *Client
	Store      store.LedgerStore
	Schedule   string
	Timeout    time.Duration
	BitcoinId  string
	EthereumId string
}

// Refresher copies external spot prices into the admin settings row on a
// schedule. A failed cycle leaves the previous rates in place.
type Refresher struct {
	cron       *cron.Cron
	client     *Client
	store      store.LedgerStore
	schedule   string
	timeout    time.Duration
	bitcoinId  string
	ethereumId string
	now        func() time.Time
}

func NewRefresher(cfg RefresherConfig) *Refresher {
	r := &Refresher{
		cron:       cron.New(cron.WithSeconds()),
		client:     cfg.Client,
		store:      cfg.Store,
		schedule:   cfg.Schedule,
		timeout:    cfg.Timeout,
		bitcoinId:  cfg.BitcoinId,
		ethereumId: cfg.EthereumId,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if r.schedule == "" {
		r.schedule = DefaultSchedule
	}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Second
	}
	if r.bitcoinId == "" {
		r.bitcoinId = "btc-bitcoin"
	}
	if r.ethereumId == "" {
		r.ethereumId = "eth-ethereum"
	}
	return r
}

func (r *Refresher) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, r.runScheduled); err != nil {
		return fmt.Errorf("invalid price feed schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	zap.L().Info("Price feed scheduler started", zap.String("schedule", r.schedule))
	return nil
}

func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	zap.L().Info("Price feed scheduler stopped")
}

func (r *Refresher) runScheduled() {
	if err := r.Refresh(context.Background()); err != nil {
		zap.L().Warn("Price feed refresh failed, keeping previous rates", zap.Error(err))
		metrics.BestEffortFailures.WithLabelValues("price_feed").Inc()
	}
}

// Refresh fetches both prices and stores them rounded to cents. Both prices
// must be fetched or neither is written.
func (r *Refresher) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	bitcoinUSD, err := r.client.FetchUSDPrice(ctx, r.bitcoinId)
	if err != nil {
		return err
	}
	ethereumUSD, err := r.client.FetchUSDPrice(ctx, r.ethereumId)
	if err != nil {
		return err
	}

	bitcoinUSD = bitcoinUSD.Round(2)
	ethereumUSD = ethereumUSD.Round(2)

	if err := r.store.UpdateUSDRates(ctx, bitcoinUSD, ethereumUSD, r.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("No admin settings row yet, skipping rate update")
			return nil
		}
		return fmt.Errorf("failed to store USD rates: %w", err)
	}

	metrics.PriceFeedLastSuccess.Set(float64(r.now().Unix()))
	zap.L().Info("USD rates refreshed",
		zap.String("bitcoin_usd", bitcoinUSD.String()),
		zap.String("ethereum_usd", ethereumUSD.String()))
	return nil
}
