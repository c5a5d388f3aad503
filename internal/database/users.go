/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying users")

	var users []models.User
	if err := s.db.SelectContext(ctx, &users, queryGetUsers); err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return getUser(ctx, s.db, queryGetUserById, userId)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return getUser(ctx, s.db, queryGetUserByEmail, strings.TrimSpace(email))
}

func (s *Service) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return getUser(ctx, s.db, queryGetUserByReferralCode, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *Service) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	referralCode := params.ReferralCode
	if referralCode == "" {
		code, err := generateReferralCode()
		if err != nil {
			return nil, fmt.Errorf("unable to generate referral code: %w", err)
		}
		referralCode = code
	}

	userId := uuid.New().String()
	now := s.now()
	zap.L().Info("Creating user", zap.String("id", userId), zap.String("name", params.Name), zap.String("email", email))

	result, err := s.db.ExecContext(ctx, queryInsertUser,
		userId, params.Name, email, referralCode, strings.ToUpper(params.ReferredByCode), params.IsAdmin, now, now)
	if err != nil {
		zap.L().Error("Failed to insert user", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: user with email %s or referral code %s already exists",
			store.ErrDuplicateTransaction, email, referralCode)
	}

	zap.L().Info("User created successfully",
		zap.String("id", userId),
		zap.String("email", email),
		zap.String("referral_code", referralCode))

	return s.GetUserById(ctx, userId)
}

func (t *txStore) GetUser(ctx context.Context, userId string) (*models.User, error) {
	return getUser(ctx, t.tx, queryGetUserById, userId)
}

func (t *txStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return getUser(ctx, t.tx, queryGetUserByEmail, strings.TrimSpace(email))
}

func (t *txStore) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return getUser(ctx, t.tx, queryGetUserByReferralCode, strings.ToUpper(strings.TrimSpace(code)))
}

func (t *txStore) UpdateUserControls(ctx context.Context, params store.UserControlsParams) error {
	var rate any
	if params.PersonalMiningRate.Valid {
		rate = params.PersonalMiningRate.Decimal.String()
	}

	result, err := t.tx.ExecContext(ctx, queryUpdateUserControls,
		params.MiningPaused, params.WithdrawalSuspended, params.IsFlagged, rate,
		params.At, params.UserId, params.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update user controls: %w", err)
	}
	return expectOneRow(result, "user "+params.UserId)
}

func getUser(ctx context.Context, q sqlx.QueryerContext, query, arg string) (*models.User, error) {
	var user models.User
	if err := sqlx.GetContext(ctx, q, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, arg)
		}
		zap.L().Error("Failed to query user", zap.String("key", arg), zap.Error(err))
		return nil, fmt.Errorf("unable to query user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}

// expectOneRow turns a zero-row guarded update into ErrConcurrentModification.
func expectOneRow(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("update of %s failed - %w", what, store.ErrConcurrentModification)
	}
	return nil
}

func generateReferralCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, len(buf))
	for i, b := range buf {
		code[i] = referralCodeAlphabet[int(b)%len(referralCodeAlphabet)]
	}
	return string(code), nil
}
