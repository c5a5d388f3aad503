package mining

import (
	"context"
	"fmt"
	"time"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var transitions = map[models.SessionStatus][]models.SessionStatus{
	models.SessionActive: {models.SessionPaused, models.SessionClosed},
	models.SessionPaused: {models.SessionActive, models.SessionClosed},
}

// CanTransition reports whether a session may move from one status to another.
// Closed is terminal.
func CanTransition(from, to models.SessionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SpawnSession opens the mining session for a confirmed deposit inside the
// caller's transaction. The rate is resolved once here and never changes.
func SpawnSession(ctx context.Context, tx store.Tx, user *models.User, deposit *models.CryptoDeposit, settings *models.AdminSettings, now time.Time) (*models.MiningSession, error) {
	if deposit.Status != models.DepositConfirmed {
		return nil, apperror.Conflict("deposit %s is %s, sessions start only on confirmation", deposit.Id, deposit.Status)
	}
	if deposit.UserId != user.Id {
		return nil, apperror.Validation("deposit %s does not belong to user %s", deposit.Id, user.Id)
	}

	rate := ResolveMiningRate(user, settings)
	if !ValidRate(rate) {
		return nil, apperror.Validation("resolved mining rate %s is outside 0-100", rate)
	}

	now = now.UTC()
	session := &models.MiningSession{
		Id:              uuid.New().String(),
		UserId:          user.Id,
		DepositId:       deposit.Id,
		CryptoType:      deposit.CryptoType,
		DepositedAmount: deposit.Amount,
		MiningRate:      rate,
		MinedAmount:     decimal.Zero,
		Status:          models.SessionActive,
		LastMined:       now,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := tx.InsertSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to spawn session for deposit %s: %w", deposit.Id, err)
	}
	return session, nil
}
