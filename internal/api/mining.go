package api

import (
	"context"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/models"
)

// SyncMining brings every active session of the user up to date
func (s *LedgerService) SyncMining(ctx context.Context, userId string) (*models.AccrualResult, error) {
	result, err := s.mining.AccrueActiveSessions(ctx, userId)
	if err != nil {
		return nil, fail("sync_mining", err, "mining sync failed")
	}
	return result, nil
}

func (s *LedgerService) PauseSession(ctx context.Context, adminId, sessionId string) (*models.MiningSession, error) {
	session, err := s.mining.PauseSession(ctx, sessionId)
	if err != nil {
		return nil, fail("pause_session", err, "failed to pause session")
	}
	s.audit.RecordAdminAction(ctx, adminId, "pause_session", "mining_session", session.Id, "")
	return session, nil
}

func (s *LedgerService) ResumeSession(ctx context.Context, adminId, sessionId string) (*models.MiningSession, error) {
	session, err := s.mining.ResumeSession(ctx, sessionId)
	if err != nil {
		return nil, fail("resume_session", err, "failed to resume session")
	}
	s.audit.RecordAdminAction(ctx, adminId, "resume_session", "mining_session", session.Id, "")
	return session, nil
}

func (s *LedgerService) CloseSession(ctx context.Context, adminId, sessionId string) (*models.MiningSession, error) {
	session, err := s.mining.CloseSession(ctx, sessionId)
	if err != nil {
		return nil, fail("close_session", err, "failed to close session")
	}
	s.audit.RecordAdminAction(ctx, adminId, "close_session", "mining_session", session.Id, "")
	return session, nil
}

func (s *LedgerService) ListSessions(ctx context.Context, userId string) ([]models.MiningSession, error) {
	sessions, err := s.store.ListSessions(ctx, userId)
	if err != nil {
		return nil, apperror.Internal("failed to list sessions", err)
	}
	return sessions, nil
}

func (s *LedgerService) ListReferralRewards(ctx context.Context, referrerId string) ([]models.ReferralReward, error) {
	rewards, err := s.store.ListReferralRewards(ctx, referrerId)
	if err != nil {
		return nil, apperror.Internal("failed to list referral rewards", err)
	}
	return rewards, nil
}
