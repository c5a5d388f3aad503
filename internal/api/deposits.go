package api

import (
	"context"
	"errors"
	"strings"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/metrics"
	"mining-ledger-go/internal/mining"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/notify"
	"mining-ledger-go/internal/rates"
	"mining-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateDepositRequest carries exactly one of Amount or USDAmount
type CreateDepositRequest struct {
	UserId     string
	CryptoType models.CryptoType
	Amount     decimal.NullDecimal
	USDAmount  decimal.NullDecimal
}

// CreateDeposit opens a pending deposit and returns the platform wallet the
// user should pay into. The missing side of the amount is derived from the
// current USD rate.
func (s *LedgerService) CreateDeposit(ctx context.Context, req CreateDepositRequest) (*models.DepositResult, error) {
	if !req.CryptoType.Valid() {
		return nil, apperror.Validation("unsupported crypto type %q", req.CryptoType)
	}
	if req.Amount.Valid == req.USDAmount.Valid {
		return nil, apperror.Validation("provide exactly one of amount or usd_amount")
	}

	user, err := s.store.GetUserById(ctx, req.UserId)
	if err != nil {
		return nil, apperror.From(err, "user not found")
	}
	if user.IsFlagged {
		return nil, apperror.Forbidden("account is flagged, deposits are disabled")
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to load settings", err)
	}
	if settings == nil || settings.WalletAddress(req.CryptoType) == "" {
		return nil, apperror.NotFound("no %s wallet address is configured", req.CryptoType)
	}

	var amount, usdAmount decimal.Decimal
	if req.Amount.Valid {
		amount = req.Amount.Decimal
		if !amount.IsPositive() {
			return nil, apperror.Validation("amount must be positive")
		}
		if !rates.FitsCryptoPrecision(amount) {
			return nil, apperror.Validation("amount has more than %d decimal places", rates.CryptoPlaces)
		}
		usdAmount = rates.CryptoToUSD(settings, req.CryptoType, amount)
	} else {
		usdAmount = req.USDAmount.Decimal.Round(rates.USDPlaces)
		if !usdAmount.IsPositive() {
			return nil, apperror.Validation("usd_amount must be positive")
		}
		amount, err = rates.USDToCrypto(settings, req.CryptoType, usdAmount)
		if err != nil {
			return nil, apperror.Internal("failed to convert usd amount", err)
		}
		if !amount.IsPositive() {
			return nil, apperror.Validation("usd_amount %s is too small to deposit", usdAmount)
		}
	}

	now := s.now()
	deposit := &models.CryptoDeposit{
		Id:            uuid.New().String(),
		UserId:        user.Id,
		CryptoType:    req.CryptoType,
		Amount:        amount,
		USDAmount:     usdAmount,
		WalletAddress: settings.WalletAddress(req.CryptoType),
		Status:        models.DepositPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		return tx.InsertDeposit(ctx, deposit)
	}); err != nil {
		zap.L().Error("Failed to create deposit", zap.String("user_id", user.Id), zap.Error(err))
		return nil, apperror.From(err, "failed to create deposit")
	}

	zap.L().Info("Deposit created",
		zap.String("deposit_id", deposit.Id),
		zap.String("user_id", user.Id),
		zap.String("crypto_type", string(deposit.CryptoType)),
		zap.String("amount", amount.String()),
		zap.String("usd_amount", usdAmount.String()))

	s.audit.RecordActivity(ctx, user.Id, "deposit_created", deposit.Id)
	s.notifier.Send(ctx, user.Email, "Deposit Request Received", notify.TemplateDepositCreated, map[string]string{
		"name":           user.Name,
		"amount":         amount.String(),
		"crypto":         deposit.CryptoType.Symbol(),
		"usd_amount":     usdAmount.StringFixed(rates.USDPlaces),
		"wallet_address": deposit.WalletAddress,
	})

	return &models.DepositResult{
		Deposit:       deposit,
		NewBalance:    user.Balance(deposit.CryptoType),
		WalletAddress: deposit.WalletAddress,
	}, nil
}

// AttachDepositEvidence records a payment proof while the deposit is pending
func (s *LedgerService) AttachDepositEvidence(ctx context.Context, userId, depositId, evidenceURL string) (*models.CryptoDeposit, error) {
	evidenceURL = strings.TrimSpace(evidenceURL)
	if evidenceURL == "" {
		return nil, apperror.Validation("evidence url is required")
	}

	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		deposit, err := ownedDeposit(ctx, tx, userId, depositId)
		if err != nil {
			return err
		}
		if deposit.Status != models.DepositPending {
			return apperror.Conflict("evidence can only be attached to a pending deposit, deposit is %s", deposit.Status)
		}
		return tx.SetDepositEvidence(ctx, deposit.Id, evidenceURL, s.now())
	})
	if err != nil {
		return nil, apperror.From(err, "failed to attach evidence")
	}
	return s.store.GetDeposit(ctx, depositId)
}

// SubmitDeposit marks a pending deposit as paid by the user. It can happen once.
func (s *LedgerService) SubmitDeposit(ctx context.Context, userId, depositId, transactionHash string) (*models.CryptoDeposit, error) {
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		deposit, err := ownedDeposit(ctx, tx, userId, depositId)
		if err != nil {
			return err
		}
		if deposit.Status != models.DepositPending {
			return apperror.Conflict("deposit %s is already %s", deposit.Id, deposit.Status)
		}
		return tx.TransitionDeposit(ctx, store.DepositTransitionParams{
			DepositId:       deposit.Id,
			From:            models.DepositPending,
			To:              models.DepositSubmitted,
			TransactionHash: strings.TrimSpace(transactionHash),
			At:              s.now(),
		})
	})
	if err != nil {
		return nil, apperror.From(err, "failed to submit deposit")
	}

	s.audit.RecordActivity(ctx, userId, "deposit_submitted", depositId)
	return s.store.GetDeposit(ctx, depositId)
}

// ReviewDeposit confirms or rejects a pending or submitted deposit. On
// confirmation the amount is credited and the mining session is opened in the
// same transaction; the referral reward, audit row and email follow after
// commit and cannot undo it.
func (s *LedgerService) ReviewDeposit(ctx context.Context, adminId, depositId string, approve bool) (*models.DepositResult, error) {
	deposit, err := s.store.GetDeposit(ctx, depositId)
	if err != nil {
		return nil, apperror.From(err, "deposit not found")
	}
	if !reviewable(deposit.Status) {
		return nil, apperror.Conflict("deposit %s is already %s", deposit.Id, deposit.Status)
	}

	target := models.DepositRejected
	if approve {
		target = models.DepositConfirmed
	}

	zap.L().Info("Reviewing deposit",
		zap.String("deposit_id", deposit.Id),
		zap.String("user_id", deposit.UserId),
		zap.String("admin_id", adminId),
		zap.String("decision", string(target)))

	var session *models.MiningSession
	var user *models.User
	err = func() error {
		release, err := s.lockUsers(ctx, deposit.UserId)
		if err != nil {
			return apperror.Internal("failed to lock user", err)
		}
		defer release()

		return s.store.RunInTx(ctx, func(tx store.Tx) error {
			current, err := tx.GetDeposit(ctx, depositId)
			if err != nil {
				return err
			}
			if !reviewable(current.Status) {
				return apperror.Conflict("deposit %s is already %s", current.Id, current.Status)
			}

			now := s.now()
			if err := tx.TransitionDeposit(ctx, store.DepositTransitionParams{
				DepositId:  current.Id,
				From:       current.Status,
				To:         target,
				ReviewedBy: adminId,
				At:         now,
			}); err != nil {
				return err
			}
			current.Status = target

			if target == models.DepositRejected {
				user, err = tx.GetUser(ctx, current.UserId)
				return err
			}

			if _, err := tx.ApplyLedgerEntry(ctx, store.LedgerEntryParams{
				UserId:          current.UserId,
				CryptoType:      current.CryptoType,
				Amount:          current.Amount,
				TransactionType: models.TransactionDeposit,
				Description:     "Deposit confirmed",
				ReferenceId:     current.Id,
				At:              now,
			}); err != nil {
				return err
			}

			user, err = tx.GetUser(ctx, current.UserId)
			if err != nil {
				return err
			}
			settings, err := tx.GetSettings(ctx)
			if err != nil {
				return err
			}
			session, err = mining.SpawnSession(ctx, tx, user, current, settings, now)
			return err
		})
	}()
	if err != nil {
		zap.L().Error("Deposit review failed",
			zap.String("deposit_id", depositId),
			zap.String("decision", string(target)),
			zap.Error(err))
		return nil, fail("review_deposit", err, "failed to review deposit")
	}

	deposit, err = s.store.GetDeposit(ctx, depositId)
	if err != nil {
		return nil, apperror.Internal("deposit lookup failed after review", err)
	}

	if approve {
		metrics.LedgerEntries.WithLabelValues(string(models.TransactionDeposit)).Inc()
		s.referral.ProcessReward(ctx, user, deposit.Id, deposit.Amount, deposit.CryptoType)
		s.audit.RecordAdminAction(ctx, adminId, "confirm_deposit", "deposit", deposit.Id, deposit.Amount.String()+" "+deposit.CryptoType.Symbol())
		s.notifier.Send(ctx, user.Email, "Deposit Confirmed", notify.TemplateDepositConfirmed, map[string]string{
			"name":        user.Name,
			"amount":      deposit.Amount.String(),
			"crypto":      deposit.CryptoType.Symbol(),
			"mining_rate": session.MiningRate.String(),
			"new_balance": user.Balance(deposit.CryptoType).String(),
		})
	} else {
		s.audit.RecordAdminAction(ctx, adminId, "reject_deposit", "deposit", deposit.Id, "")
		s.notifier.Send(ctx, user.Email, "Deposit Rejected", notify.TemplateDepositRejected, map[string]string{
			"name":   user.Name,
			"amount": deposit.Amount.String(),
			"crypto": deposit.CryptoType.Symbol(),
		})
	}

	zap.L().Info("Deposit reviewed",
		zap.String("deposit_id", deposit.Id),
		zap.String("status", string(deposit.Status)),
		zap.String("new_balance", user.Balance(deposit.CryptoType).String()))

	return &models.DepositResult{
		Deposit:    deposit,
		Session:    session,
		NewBalance: user.Balance(deposit.CryptoType),
	}, nil
}

func (s *LedgerService) GetDeposit(ctx context.Context, depositId string) (*models.CryptoDeposit, error) {
	deposit, err := s.store.GetDeposit(ctx, depositId)
	if err != nil {
		return nil, apperror.From(err, "deposit not found")
	}
	return deposit, nil
}

func (s *LedgerService) ListDeposits(ctx context.Context, filter store.DepositFilter) ([]models.CryptoDeposit, error) {
	deposits, err := s.store.ListDeposits(ctx, filter)
	if err != nil {
		return nil, apperror.Internal("failed to list deposits", err)
	}
	return deposits, nil
}

func reviewable(status models.DepositStatus) bool {
	return status == models.DepositPending || status == models.DepositSubmitted
}

func ownedDeposit(ctx context.Context, tx store.Tx, userId, depositId string) (*models.CryptoDeposit, error) {
	deposit, err := tx.GetDeposit(ctx, depositId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("deposit %s not found", depositId)
		}
		return nil, err
	}
	if deposit.UserId != userId {
		return nil, apperror.NotFound("deposit %s not found", depositId)
	}
	return deposit, nil
}
