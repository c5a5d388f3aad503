package mining

import (
	"time"

	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

const accrualPlaces = 8

var (
	hundred     = decimal.NewFromInt(100)
	nanosPerDay = decimal.NewFromInt(int64(24 * time.Hour))
)

// DailyYield is the amount a session earns per full day
func DailyYield(session *models.MiningSession) decimal.Decimal {
	return session.DepositedAmount.Mul(session.MiningRate).Div(hundred)
}

// CalculateAccrual returns the yield earned between last_mined and now,
// truncated to 8 places. Non-active sessions and clock skew earn zero.
func CalculateAccrual(session *models.MiningSession, now time.Time) decimal.Decimal {
	credited, _ := accrue(session, now)
	return credited
}

// Advance returns the yield to credit and the new last_mined. When truncation
// drops a fraction, last_mined only moves forward by the time actually paid
// for, so the remainder is earned on a later call instead of being lost.
func Advance(session *models.MiningSession, now time.Time) (decimal.Decimal, time.Time) {
	credited, exact := accrue(session, now)
	lastMined := session.LastMined.UTC()
	if credited.IsZero() {
		return decimal.Zero, lastMined
	}
	if exact {
		return credited, now.UTC()
	}

	// smallest whole number of nanoseconds that earns credited
	perDayTimesHundred := session.DepositedAmount.Mul(session.MiningRate)
	consumed, remainder := credited.Mul(hundred).Mul(nanosPerDay).QuoRem(perDayTimesHundred, 0)
	if !remainder.IsZero() {
		consumed = consumed.Add(decimal.NewFromInt(1))
	}

	advanced := lastMined.Add(time.Duration(consumed.IntPart()))
	if advanced.After(now.UTC()) {
		advanced = now.UTC()
	}
	return credited, advanced
}

// accrue multiplies before dividing so no precision is lost ahead of the
// single truncation step.
func accrue(session *models.MiningSession, now time.Time) (decimal.Decimal, bool) {
	if session == nil || !session.IsActive() {
		return decimal.Zero, true
	}

	elapsed := now.UTC().Sub(session.LastMined.UTC())
	if elapsed <= 0 {
		return decimal.Zero, true
	}

	numerator := session.DepositedAmount.Mul(session.MiningRate).Mul(decimal.NewFromInt(int64(elapsed)))
	if numerator.Sign() <= 0 {
		return decimal.Zero, true
	}

	credited, remainder := numerator.QuoRem(hundred.Mul(nanosPerDay), accrualPlaces)
	return credited, remainder.IsZero()
}
