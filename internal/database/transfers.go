package database

import (
	"context"
	"fmt"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"go.uber.org/zap"
)

func (t *txStore) InsertTransfer(ctx context.Context, ct *models.CryptoTransfer) error {
	_, err := t.tx.ExecContext(ctx, queryInsertTransfer,
		ct.Id, ct.FromUserId, ct.ToUserId, ct.CryptoType, fixedCrypto(ct.Amount), fixedUSD(ct.USDAmount),
		ct.TransactionHash, ct.Note, ct.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transfer hash %s", store.ErrDuplicateTransaction, ct.TransactionHash)
		}
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	zap.L().Info("Transfer recorded",
		zap.String("transfer_id", ct.Id),
		zap.String("from_user_id", ct.FromUserId),
		zap.String("to_user_id", ct.ToUserId),
		zap.String("crypto_type", string(ct.CryptoType)),
		zap.String("amount", ct.Amount.String()),
		zap.String("transaction_hash", ct.TransactionHash))
	return nil
}

func (s *Service) ListTransfers(ctx context.Context, userId string, limit, offset int) ([]models.CryptoTransfer, error) {
	var transfers []models.CryptoTransfer
	if err := s.db.SelectContext(ctx, &transfers, queryListTransfers, userId, userId, pageLimit(limit), max(offset, 0)); err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return transfers, nil
}

func (t *txStore) InsertReferralReward(ctx context.Context, r *models.ReferralReward) error {
	_, err := t.tx.ExecContext(ctx, queryInsertReferralReward,
		r.Id, r.ReferrerId, r.ReferredUserId, r.DepositId, r.CryptoType,
		fixedCrypto(r.DepositAmount), r.RewardPercent.String(), fixedCrypto(r.RewardAmount), r.Status, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: referral reward for deposit %s", store.ErrDuplicateTransaction, r.DepositId)
		}
		return fmt.Errorf("failed to insert referral reward: %w", err)
	}
	return nil
}

func (s *Service) ListReferralRewards(ctx context.Context, referrerId string) ([]models.ReferralReward, error) {
	var rewards []models.ReferralReward
	if err := s.db.SelectContext(ctx, &rewards, queryListReferralRewards, referrerId); err != nil {
		return nil, fmt.Errorf("failed to list referral rewards: %w", err)
	}
	return rewards, nil
}
