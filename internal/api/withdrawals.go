package api

import (
	"context"
	"strings"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/metrics"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/notify"
	"mining-ledger-go/internal/rates"
	"mining-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WithdrawalRequest struct {
	UserId        string
	CryptoType    models.CryptoType
	Amount        decimal.Decimal
	WalletAddress string
}

// RequestWithdrawal debits the amount immediately and leaves the withdrawal
// pending for admin review. Nothing is written when the balance is short.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*models.WithdrawalResult, error) {
	if !req.CryptoType.Valid() {
		return nil, apperror.Validation("unsupported crypto type %q", req.CryptoType)
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.Validation("amount must be positive")
	}
	if !rates.FitsCryptoPrecision(req.Amount) {
		return nil, apperror.Validation("amount has more than %d decimal places", rates.CryptoPlaces)
	}
	walletAddress := strings.TrimSpace(req.WalletAddress)
	if walletAddress == "" {
		return nil, apperror.Validation("wallet address is required")
	}

	user, err := s.store.GetUserById(ctx, req.UserId)
	if err != nil {
		return nil, apperror.From(err, "user not found")
	}
	if user.WithdrawalSuspended {
		return nil, apperror.Forbidden("withdrawals are suspended for this account")
	}

	zap.L().Info("Processing withdrawal request",
		zap.String("user_id", user.Id),
		zap.String("crypto_type", string(req.CryptoType)),
		zap.String("amount", req.Amount.String()))

	release, err := s.lockUsers(ctx, user.Id)
	if err != nil {
		return nil, apperror.Internal("failed to lock user", err)
	}
	defer release()

	var withdrawal *models.Withdrawal
	var entry *models.TransactionHistory
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		current, err := tx.GetUser(ctx, user.Id)
		if err != nil {
			return err
		}
		balance := current.Balance(req.CryptoType)
		if balance.LessThan(req.Amount) {
			return apperror.InsufficientFunds("insufficient %s balance: have %s, need %s",
				req.CryptoType, balance, req.Amount)
		}

		settings, err := tx.GetSettings(ctx)
		if err != nil {
			return err
		}

		now := s.now()
		withdrawal = &models.Withdrawal{
			Id:              uuid.New().String(),
			UserId:          current.Id,
			CryptoType:      req.CryptoType,
			Amount:          req.Amount,
			USDAmount:       rates.CryptoToUSD(settings, req.CryptoType, req.Amount),
			WalletAddress:   walletAddress,
			Status:          models.WithdrawalPending,
			TransactionHash: uuid.New().String(),
			CreatedAt:       now,
		}
		if err := tx.InsertWithdrawal(ctx, withdrawal); err != nil {
			return err
		}

		entry, err = tx.ApplyLedgerEntry(ctx, store.LedgerEntryParams{
			UserId:          current.Id,
			CryptoType:      req.CryptoType,
			Amount:          req.Amount.Neg(),
			TransactionType: models.TransactionWithdrawal,
			Description:     "Withdrawal to " + walletAddress,
			ReferenceId:     withdrawal.Id,
			At:              now,
		})
		return err
	})
	if err != nil {
		zap.L().Warn("Withdrawal request failed",
			zap.String("user_id", user.Id),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
		return nil, fail("request_withdrawal", err, "failed to request withdrawal")
	}

	metrics.LedgerEntries.WithLabelValues(string(models.TransactionWithdrawal)).Inc()
	zap.L().Info("Withdrawal requested",
		zap.String("withdrawal_id", withdrawal.Id),
		zap.String("user_id", user.Id),
		zap.String("new_balance", entry.BalanceAfter.String()))

	s.audit.RecordActivity(ctx, user.Id, "withdrawal_requested", withdrawal.Id)
	s.notifier.Send(ctx, user.Email, "Withdrawal Request Received", notify.TemplateWithdrawalCreated, map[string]string{
		"name":           user.Name,
		"amount":         withdrawal.Amount.String(),
		"crypto":         withdrawal.CryptoType.Symbol(),
		"wallet_address": withdrawal.WalletAddress,
	})

	return &models.WithdrawalResult{
		Withdrawal: withdrawal,
		NewBalance: entry.BalanceAfter,
	}, nil
}

// ReviewWithdrawal approves or rejects a pending withdrawal. Rejection refunds
// the debited amount exactly.
func (s *LedgerService) ReviewWithdrawal(ctx context.Context, adminId, withdrawalId string, approve bool) (*models.WithdrawalResult, error) {
	withdrawal, err := s.store.GetWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, apperror.From(err, "withdrawal not found")
	}
	if withdrawal.Status != models.WithdrawalPending {
		return nil, apperror.Conflict("withdrawal %s is already %s", withdrawal.Id, withdrawal.Status)
	}

	target := models.WithdrawalRejected
	if approve {
		target = models.WithdrawalApproved
	}

	release, err := s.lockUsers(ctx, withdrawal.UserId)
	if err != nil {
		return nil, apperror.Internal("failed to lock user", err)
	}
	defer release()

	var user *models.User
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		current, err := tx.GetWithdrawal(ctx, withdrawalId)
		if err != nil {
			return err
		}
		if current.Status != models.WithdrawalPending {
			return apperror.Conflict("withdrawal %s is already %s", current.Id, current.Status)
		}

		now := s.now()
		if err := tx.TransitionWithdrawal(ctx, store.WithdrawalTransitionParams{
			WithdrawalId: current.Id,
			From:         models.WithdrawalPending,
			To:           target,
			ReviewedBy:   adminId,
			At:           now,
		}); err != nil {
			return err
		}

		if target == models.WithdrawalRejected {
			if _, err := tx.ApplyLedgerEntry(ctx, store.LedgerEntryParams{
				UserId:          current.UserId,
				CryptoType:      current.CryptoType,
				Amount:          current.Amount,
				TransactionType: models.TransactionWithdrawal,
				Description:     "Withdrawal rejected - refund",
				ReferenceId:     current.Id,
				At:              now,
			}); err != nil {
				return err
			}
		}

		user, err = tx.GetUser(ctx, current.UserId)
		return err
	})
	if err != nil {
		zap.L().Error("Withdrawal review failed",
			zap.String("withdrawal_id", withdrawalId),
			zap.String("decision", string(target)),
			zap.Error(err))
		return nil, fail("review_withdrawal", err, "failed to review withdrawal")
	}

	withdrawal, err = s.store.GetWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, apperror.Internal("withdrawal lookup failed after review", err)
	}

	action, template, subject := "approve_withdrawal", notify.TemplateWithdrawalApproved, "Withdrawal Approved"
	if !approve {
		action, template, subject = "reject_withdrawal", notify.TemplateWithdrawalRejected, "Withdrawal Rejected"
	}
	s.audit.RecordAdminAction(ctx, adminId, action, "withdrawal", withdrawal.Id, "")
	s.notifier.Send(ctx, user.Email, subject, template, map[string]string{
		"name":   user.Name,
		"amount": withdrawal.Amount.String(),
		"crypto": withdrawal.CryptoType.Symbol(),
	})

	zap.L().Info("Withdrawal reviewed",
		zap.String("withdrawal_id", withdrawal.Id),
		zap.String("status", string(withdrawal.Status)),
		zap.String("balance", user.Balance(withdrawal.CryptoType).String()))

	return &models.WithdrawalResult{
		Withdrawal: withdrawal,
		NewBalance: user.Balance(withdrawal.CryptoType),
	}, nil
}

func (s *LedgerService) ListWithdrawals(ctx context.Context, filter store.WithdrawalFilter) ([]models.Withdrawal, error) {
	withdrawals, err := s.store.ListWithdrawals(ctx, filter)
	if err != nil {
		return nil, apperror.Internal("failed to list withdrawals", err)
	}
	return withdrawals, nil
}
