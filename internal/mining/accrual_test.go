package mining

import (
	"testing"
	"time"

	"mining-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func testSession(deposit, rate string) *models.MiningSession {
	return &models.MiningSession{
		Id:              "session-1",
		UserId:          "user-1",
		CryptoType:      models.CryptoBitcoin,
		DepositedAmount: decimal.RequireFromString(deposit),
		MiningRate:      decimal.RequireFromString(rate),
		MinedAmount:     decimal.Zero,
		Status:          models.SessionActive,
		LastMined:       epoch,
	}
}

func TestResolveMiningRate(t *testing.T) {
	personal := &models.User{PersonalMiningRate: decimal.NewNullDecimal(decimal.NewFromInt(90))}
	plain := &models.User{}
	settings := &models.AdminSettings{GlobalMiningRate: decimal.NewFromInt(40)}

	tests := []struct {
		name     string
		user     *models.User
		settings *models.AdminSettings
		want     string
	}{
		{"personal beats global", personal, settings, "90"},
		{"personal without settings", personal, nil, "90"},
		{"global when no personal", plain, settings, "40"},
		{"fallback without settings", plain, nil, "70"},
		{"zero global is honoured", plain, &models.AdminSettings{GlobalMiningRate: decimal.Zero}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveMiningRate(tt.user, tt.settings)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCalculateAccrual(t *testing.T) {
	paused := testSession("2", "50")
	paused.Status = models.SessionPaused
	closed := testSession("2", "50")
	closed.Status = models.SessionClosed

	tests := []struct {
		name    string
		session *models.MiningSession
		now     time.Time
		want    string
	}{
		{"half day at 50 percent", testSession("2.0", "50"), epoch.Add(12 * time.Hour), "0.5"},
		{"multi day gap", testSession("2.0", "50"), epoch.Add(10 * 24 * time.Hour), "10"},
		{"one second", testSession("1", "100"), epoch.Add(time.Second), "0.00001157"},
		{"zero elapsed", testSession("2.0", "50"), epoch, "0"},
		{"last mined in the future", testSession("2.0", "50"), epoch.Add(-time.Hour), "0"},
		{"zero principal", testSession("0", "50"), epoch.Add(time.Hour), "0"},
		{"zero rate", testSession("2", "0"), epoch.Add(time.Hour), "0"},
		{"paused session", paused, epoch.Add(time.Hour), "0"},
		{"closed session", closed, epoch.Add(time.Hour), "0"},
		{"non-utc now", testSession("2.0", "50"), epoch.Add(12 * time.Hour).In(time.FixedZone("UTC+5", 5*3600)), "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateAccrual(tt.session, tt.now)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
			if got.Exponent() < -accrualPlaces {
				t.Errorf("Expected at most %d places, got %s", accrualPlaces, got)
			}
		})
	}
}

func TestAdvance_Additivity(t *testing.T) {
	tests := []struct {
		name    string
		deposit string
		rate    string
		split   time.Duration
		total   time.Duration
	}{
		{"exact yields", "2.0", "50", 6 * time.Hour, 12 * time.Hour},
		{"inexact yields", "0.12345678", "33.3", 7*time.Hour + 13*time.Minute + 7*time.Second, 19 * time.Hour},
		{"tiny principal", "0.00000123", "70", 17 * time.Minute, 3 * time.Hour},
	}

	tolerance := decimal.New(1, -accrualPlaces)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			single := testSession(tt.deposit, tt.rate)
			whole, _ := Advance(single, epoch.Add(tt.total))

			stepped := testSession(tt.deposit, tt.rate)
			first, lastMined := Advance(stepped, epoch.Add(tt.split))
			stepped.LastMined = lastMined
			stepped.MinedAmount = first
			second, _ := Advance(stepped, epoch.Add(tt.total))

			sum := first.Add(second)
			if sum.GreaterThan(whole) {
				t.Errorf("Stepped accrual %s exceeds single accrual %s", sum, whole)
			}
			if whole.Sub(sum).GreaterThan(tolerance) {
				t.Errorf("Stepped accrual %s lost more than %s against %s", sum, tolerance, whole)
			}
		})
	}
}

func TestAdvance_KeepsUnpaidTime(t *testing.T) {
	// 0.00000001 BTC per 864 seconds; ten minutes earns nothing yet
	session := testSession("0.0001", "1")

	credited, lastMined := Advance(session, epoch.Add(10*time.Minute))
	if !credited.IsZero() {
		t.Fatalf("Expected nothing credited, got %s", credited)
	}
	if !lastMined.Equal(epoch) {
		t.Fatalf("Expected last_mined to stay at %v, got %v", epoch, lastMined)
	}

	credited, lastMined = Advance(session, epoch.Add(20*time.Minute))
	if !credited.Equal(decimal.RequireFromString("0.00000001")) {
		t.Errorf("Expected 0.00000001 after twenty minutes, got %s", credited)
	}
	if !lastMined.Equal(epoch.Add(864 * time.Second)) {
		t.Errorf("Expected last_mined to advance by 864s, got %v", lastMined.Sub(epoch))
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.SessionStatus
		want     bool
	}{
		{models.SessionActive, models.SessionPaused, true},
		{models.SessionPaused, models.SessionActive, true},
		{models.SessionActive, models.SessionClosed, true},
		{models.SessionPaused, models.SessionClosed, true},
		{models.SessionActive, models.SessionActive, false},
		{models.SessionClosed, models.SessionActive, false},
		{models.SessionClosed, models.SessionPaused, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
