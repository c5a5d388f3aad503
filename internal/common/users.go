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

package common

import (
	"context"
	"fmt"
	"strings"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"go.uber.org/zap"
)

// ResolveUser looks a user up by email when the identifier contains '@',
// and by id otherwise
func ResolveUser(ctx context.Context, ledger store.LedgerStore, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("user identifier cannot be empty")
	}

	var user *models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = ledger.GetUserByEmail(ctx, identifier)
	} else {
		user, err = ledger.GetUserById(ctx, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return user, nil
}

// InitializeUsers retrieves users based on an optional email filter.
// If emailFilter is provided, returns a single user with that email.
// If emailFilter is empty, returns all users.
func InitializeUsers(ctx context.Context, ledger store.LedgerStore, emailFilter string, logger *zap.Logger) ([]models.User, error) {
	if emailFilter != "" {
		logger.Info("Looking up user by email", zap.String("email", emailFilter))
		user, err := ResolveUser(ctx, ledger, emailFilter)
		if err != nil {
			return nil, err
		}
		return []models.User{*user}, nil
	}

	users, err := ledger.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	logger.Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}
