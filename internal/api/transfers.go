package api

import (
	"context"
	"errors"
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

// TransferRequest names the recipient by exactly one of email or user id
type TransferRequest struct {
	FromUserId      string
	RecipientEmail  string
	RecipientUserId string
	CryptoType      models.CryptoType
	Amount          decimal.Decimal
	Note            string
}

// Transfer moves funds between two users in one transaction. Both history
// rows carry the transfer's hash as their reference.
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (*models.TransferResult, error) {
	req.RecipientEmail = strings.TrimSpace(req.RecipientEmail)
	req.RecipientUserId = strings.TrimSpace(req.RecipientUserId)
	if (req.RecipientEmail == "") == (req.RecipientUserId == "") {
		return nil, apperror.Validation("provide exactly one of recipient email or recipient id")
	}
	if !req.CryptoType.Valid() {
		return nil, apperror.Validation("unsupported crypto type %q", req.CryptoType)
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.Validation("amount must be positive")
	}
	if !rates.FitsCryptoPrecision(req.Amount) {
		return nil, apperror.Validation("amount has more than %d decimal places", rates.CryptoPlaces)
	}

	sender, err := s.store.GetUserById(ctx, req.FromUserId)
	if err != nil {
		return nil, apperror.From(err, "sender not found")
	}
	recipient, err := s.findRecipient(ctx, req)
	if err != nil {
		return nil, err
	}
	if recipient.Id == sender.Id {
		return nil, apperror.Validation("cannot transfer to yourself")
	}

	zap.L().Info("Processing transfer",
		zap.String("from_user_id", sender.Id),
		zap.String("to_user_id", recipient.Id),
		zap.String("crypto_type", string(req.CryptoType)),
		zap.String("amount", req.Amount.String()))

	release, err := s.lockUsers(ctx, sender.Id, recipient.Id)
	if err != nil {
		return nil, apperror.Internal("failed to lock users", err)
	}
	defer release()

	var transfer *models.CryptoTransfer
	var debit, credit *models.TransactionHistory
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		current, err := tx.GetUser(ctx, sender.Id)
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
		transfer = &models.CryptoTransfer{
			Id:              uuid.New().String(),
			FromUserId:      sender.Id,
			ToUserId:        recipient.Id,
			CryptoType:      req.CryptoType,
			Amount:          req.Amount,
			USDAmount:       rates.CryptoToUSD(settings, req.CryptoType, req.Amount),
			TransactionHash: uuid.New().String(),
			Note:            strings.TrimSpace(req.Note),
			CreatedAt:       now,
		}
		if err := tx.InsertTransfer(ctx, transfer); err != nil {
			return err
		}

		debit, err = tx.ApplyLedgerEntry(ctx, store.LedgerEntryParams{
			UserId:          sender.Id,
			CryptoType:      req.CryptoType,
			Amount:          req.Amount.Neg(),
			TransactionType: models.TransactionTransfer,
			Description:     "Transfer to " + recipient.Email,
			ReferenceId:     transfer.TransactionHash,
			At:              now,
		})
		if err != nil {
			return err
		}

		credit, err = tx.ApplyLedgerEntry(ctx, store.LedgerEntryParams{
			UserId:          recipient.Id,
			CryptoType:      req.CryptoType,
			Amount:          req.Amount,
			TransactionType: models.TransactionTransfer,
			Description:     "Transfer from " + sender.Email,
			ReferenceId:     transfer.TransactionHash,
			At:              now,
		})
		return err
	})
	if err != nil {
		zap.L().Warn("Transfer failed",
			zap.String("from_user_id", sender.Id),
			zap.String("to_user_id", recipient.Id),
			zap.Error(err))
		return nil, fail("transfer", err, "transfer failed")
	}

	metrics.LedgerEntries.WithLabelValues(string(models.TransactionTransfer)).Add(2)
	zap.L().Info("Transfer completed",
		zap.String("transaction_hash", transfer.TransactionHash),
		zap.String("sender_balance", debit.BalanceAfter.String()),
		zap.String("recipient_balance", credit.BalanceAfter.String()))

	variables := map[string]string{
		"amount":           transfer.Amount.String(),
		"crypto":           transfer.CryptoType.Symbol(),
		"usd_amount":       transfer.USDAmount.StringFixed(rates.USDPlaces),
		"transaction_hash": transfer.TransactionHash,
		"sender_name":      sender.Name,
		"recipient_name":   recipient.Name,
	}
	s.audit.RecordActivity(ctx, sender.Id, "transfer_sent", transfer.Id)
	s.notifier.Send(ctx, sender.Email, "Transfer Sent", notify.TemplateTransferSent, variables)
	s.notifier.Send(ctx, recipient.Email, "Transfer Received", notify.TemplateTransferReceived, variables)

	return &models.TransferResult{
		Transfer:         transfer,
		SenderBalance:    debit.BalanceAfter,
		RecipientBalance: credit.BalanceAfter,
	}, nil
}

func (s *LedgerService) findRecipient(ctx context.Context, req TransferRequest) (*models.User, error) {
	var recipient *models.User
	var err error
	if req.RecipientEmail != "" {
		recipient, err = s.store.GetUserByEmail(ctx, req.RecipientEmail)
	} else {
		recipient, err = s.store.GetUserById(ctx, req.RecipientUserId)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("recipient not found")
		}
		return nil, apperror.Internal("recipient lookup failed", err)
	}
	return recipient, nil
}

func (s *LedgerService) ListTransfers(ctx context.Context, userId string, limit, offset int) ([]models.CryptoTransfer, error) {
	transfers, err := s.store.ListTransfers(ctx, userId, limit, offset)
	if err != nil {
		return nil, apperror.Internal("failed to list transfers", err)
	}
	return transfers, nil
}
