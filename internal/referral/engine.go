package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mining-ledger-go/internal/lock"
	"mining-ledger-go/internal/metrics"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/notify"
	"mining-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const rewardPlaces = 8

var hundred = decimal.NewFromInt(100)

// Engine pays the referrer of a user whose deposit was just confirmed
type Engine struct {
	store    store.LedgerStore
	locker   lock.Locker
	notifier notify.Notifier
	now      func() time.Time
}

func NewEngine(ledger store.LedgerStore, locker lock.Locker, notifier notify.Notifier) *Engine {
	return &Engine{
		store:    ledger,
		locker:   locker,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the engine's time source
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CalculateReward returns amount x percent / 100 truncated to 8 places.
// percent comes straight from settings and may be garbage.
func CalculateReward(amount decimal.Decimal, percent string) (decimal.Decimal, decimal.Decimal, error) {
	pct, err := decimal.NewFromString(percent)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("referrer reward percent %q is not numeric: %w", percent, err)
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("referrer reward percent %s is outside 0-100", pct)
	}
	reward, _ := amount.Mul(pct).QuoRem(hundred, rewardPlaces)
	return reward, pct, nil
}

// ProcessReward credits the referrer of depositor in the deposit's crypto
// type. It never returns an error: every failure is logged and the deposit
// confirmation that triggered it stands. The paid reward, if any, is returned.
func (e *Engine) ProcessReward(ctx context.Context, depositor *models.User, depositId string, amount decimal.Decimal, cryptoType models.CryptoType) *models.ReferralReward {
	reward, referrer, err := e.processReward(ctx, depositor, depositId, amount, cryptoType)
	if err != nil {
		zap.L().Error("Referral reward skipped",
			zap.String("user_id", depositor.Id),
			zap.String("deposit_id", depositId),
			zap.Error(err))
		metrics.BestEffortFailures.WithLabelValues("referral").Inc()
		return nil
	}
	if reward == nil {
		return nil
	}

	metrics.LedgerEntries.WithLabelValues(string(models.TransactionReferralReward)).Inc()
	e.notifier.Send(ctx, referrer.Email, "Referral Reward Credited", notify.TemplateReferralReward, map[string]string{
		"referrer_name": referrer.Name,
		"referred_name": depositor.Name,
		"amount":        reward.RewardAmount.String(),
		"crypto":        cryptoType.Symbol(),
		"percent":       reward.RewardPercent.String(),
	})
	return reward
}

func (e *Engine) processReward(ctx context.Context, depositor *models.User, depositId string, amount decimal.Decimal, cryptoType models.CryptoType) (*models.ReferralReward, *models.User, error) {
	if depositor == nil || depositor.ReferredByCode == "" {
		return nil, nil, nil
	}

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings == nil || !settings.ReferralRewardEnabled {
		zap.L().Debug("Referral rewards disabled", zap.String("deposit_id", depositId))
		return nil, nil, nil
	}

	referrer, err := e.store.GetUserByReferralCode(ctx, depositor.ReferredByCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("Referral code does not match any user",
				zap.String("user_id", depositor.Id),
				zap.String("referred_by_code", depositor.ReferredByCode))
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if referrer.Id == depositor.Id {
		return nil, nil, nil
	}

	rewardAmount, pct, err := CalculateReward(amount, settings.ReferrerRewardPercent)
	if err != nil {
		return nil, nil, err
	}
	if !rewardAmount.IsPositive() {
		return nil, nil, nil
	}

	release, err := e.locker.Lock(ctx, lock.UserKey(referrer.Id))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock referrer: %w", err)
	}
	defer release()

	now := e.now().UTC()
	reward := &models.ReferralReward{
		Id:             uuid.New().String(),
		ReferrerId:     referrer.Id,
		ReferredUserId: depositor.Id,
		DepositId:      depositId,
		CryptoType:     cryptoType,
		DepositAmount:  amount,
		RewardPercent:  pct,
		RewardAmount:   rewardAmount,
		Status:         models.ReferralRewardPaid,
		CreatedAt:      now,
	}

	err = e.store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertReferralReward(ctx, reward); err != nil {
			return err
		}
		_, err := tx.ApplyLedgerEntry(ctx, store.LedgerEntryParams{
			UserId:          referrer.Id,
			CryptoType:      cryptoType,
			Amount:          rewardAmount,
			TransactionType: models.TransactionReferralReward,
			Description:     fmt.Sprintf("Referral reward for referring user %s", depositor.Id),
			ReferenceId:     reward.Id,
			At:              now,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("Referral reward paid",
		zap.String("referrer_id", referrer.Id),
		zap.String("referred_user_id", depositor.Id),
		zap.String("deposit_id", depositId),
		zap.String("reward", rewardAmount.String()),
		zap.String("crypto_type", string(cryptoType)))

	return reward, referrer, nil
}
