package api

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/mining"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RegisterUser creates a user. A referral code, when given, must belong to an
// existing user.
func (s *LedgerService) RegisterUser(ctx context.Context, name, email, referredByCode string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, apperror.Validation("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.Validation("invalid email address %q", email)
	}

	referredByCode = strings.ToUpper(strings.TrimSpace(referredByCode))
	if referredByCode != "" {
		if _, err := s.store.GetUserByReferralCode(ctx, referredByCode); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperror.Validation("referral code %s does not exist", referredByCode)
			}
			return nil, apperror.Internal("failed to check referral code", err)
		}
	}

	user, err := s.store.CreateUser(ctx, store.CreateUserParams{
		Name:           name,
		Email:          email,
		ReferredByCode: referredByCode,
	})
	if err != nil {
		return nil, apperror.From(err, "unable to register user")
	}

	s.audit.RecordActivity(ctx, user.Id, "register", "referred_by="+referredByCode)
	return user, nil
}

func (s *LedgerService) GetUser(ctx context.Context, userId string) (*models.User, error) {
	user, err := s.store.GetUserById(ctx, userId)
	if err != nil {
		return nil, apperror.From(err, "user not found")
	}
	return user, nil
}

func (s *LedgerService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.GetUsers(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to list users", err)
	}
	return users, nil
}

// SetMiningPaused stops or restarts accrual for every session of the user.
// Pausing credits yield earned up to the pause instant; resuming restarts
// last_mined so the paused interval never accrues.
func (s *LedgerService) SetMiningPaused(ctx context.Context, adminId, userId string, paused bool) (*models.User, error) {
	action := "resume_user_mining"
	if paused {
		action = "pause_user_mining"
	}
	return s.updateControls(ctx, adminId, userId, action, func(p *store.UserControlsParams) error {
		p.MiningPaused = paused
		return nil
	})
}

func (s *LedgerService) SetWithdrawalSuspended(ctx context.Context, adminId, userId string, suspended bool) (*models.User, error) {
	action := "enable_withdrawals"
	if suspended {
		action = "suspend_withdrawals"
	}
	return s.updateControls(ctx, adminId, userId, action, func(p *store.UserControlsParams) error {
		p.WithdrawalSuspended = suspended
		return nil
	})
}

func (s *LedgerService) SetFlagged(ctx context.Context, adminId, userId string, flagged bool) (*models.User, error) {
	action := "unflag_user"
	if flagged {
		action = "flag_user"
	}
	return s.updateControls(ctx, adminId, userId, action, func(p *store.UserControlsParams) error {
		p.IsFlagged = flagged
		return nil
	})
}

// SetPersonalMiningRate overrides the global rate for sessions the user opens
// from now on. Existing sessions keep their rate.
func (s *LedgerService) SetPersonalMiningRate(ctx context.Context, adminId, userId string, rate decimal.Decimal) (*models.User, error) {
	if !mining.ValidRate(rate) {
		return nil, apperror.Validation("mining rate %s must be between 0 and 100", rate)
	}
	return s.updateControls(ctx, adminId, userId, "set_personal_mining_rate", func(p *store.UserControlsParams) error {
		p.PersonalMiningRate = decimal.NewNullDecimal(rate)
		return nil
	})
}

func (s *LedgerService) ClearPersonalMiningRate(ctx context.Context, adminId, userId string) (*models.User, error) {
	return s.updateControls(ctx, adminId, userId, "clear_personal_mining_rate", func(p *store.UserControlsParams) error {
		p.PersonalMiningRate = decimal.NullDecimal{}
		return nil
	})
}

// updateControls reads the current flags, applies mutate and writes them back
// guarded by the user's version.
func (s *LedgerService) updateControls(ctx context.Context, adminId, userId, action string, mutate func(*store.UserControlsParams) error) (*models.User, error) {
	if _, err := s.store.GetUserById(ctx, userId); err != nil {
		return nil, apperror.From(err, "user not found")
	}

	release, err := s.lockUsers(ctx, userId)
	if err != nil {
		return nil, apperror.Internal("failed to lock user", err)
	}
	defer release()

	var settled []models.SessionAccrual
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		user, err := tx.GetUser(ctx, userId)
		if err != nil {
			return err
		}
		params := store.UserControlsParams{
			UserId:              user.Id,
			MiningPaused:        user.MiningPaused,
			WithdrawalSuspended: user.WithdrawalSuspended,
			IsFlagged:           user.IsFlagged,
			PersonalMiningRate:  user.PersonalMiningRate,
			ExpectedVersion:     user.Version,
			At:                  s.now(),
		}
		if err := mutate(&params); err != nil {
			return err
		}

		if params.MiningPaused != user.MiningPaused {
			if params.MiningPaused {
				if settled, err = s.mining.SettleUser(ctx, tx, userId, params.At); err != nil {
					return err
				}
			} else if err := s.mining.RestartUser(ctx, tx, userId, params.At); err != nil {
				return err
			}
			// settlement posts ledger entries, which bump the user version
			current, err := tx.GetUser(ctx, userId)
			if err != nil {
				return err
			}
			params.ExpectedVersion = current.Version
		}
		return tx.UpdateUserControls(ctx, params)
	})
	if err != nil {
		zap.L().Error("Failed to update user controls",
			zap.String("user_id", userId),
			zap.String("action", action),
			zap.Error(err))
		return nil, apperror.From(err, "failed to update user")
	}

	zap.L().Info("User controls updated",
		zap.String("admin_id", adminId),
		zap.String("user_id", userId),
		zap.String("action", action))
	mining.ObserveAccruals(settled)
	s.audit.RecordAdminAction(ctx, adminId, action, "user", userId, "")

	return s.GetUser(ctx, userId)
}
