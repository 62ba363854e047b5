// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/sharerag/core"
)

// CallContext carries the credential for one logical request and memoizes
// the downstream token once it is resolved.
//
// A CallContext is safe to share between goroutines. Resolution holds the
// context's lock, so concurrent callers wait for the first exchange instead
// of issuing their own.
type CallContext struct {
	mu             sync.Mutex
	token          string
	userCredential string
	userID         string
}

// ForApp builds a context backed by the application's own identity.
// The client-credential token is resolved eagerly.
func ForApp(ctx context.Context, exchanger Exchanger) (*CallContext, error) {
	if exchanger == nil {
		return nil, ErrExchangerRequired
	}
	token, err := exchanger.AppToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCredentialExchange, err)
	}
	return &CallContext{token: token}, nil
}

// ForUser builds a context from an end user's bearer token.
// The downstream token is exchanged lazily on first use.
func ForUser(userCredential string) *CallContext {
	return &CallContext{
		userCredential: userCredential,
		userID:         UserID(userCredential),
	}
}

// UserID returns the object id of the acting user, or "" for app contexts.
func (c *CallContext) UserID() string {
	if c == nil {
		return ""
	}
	return c.userID
}

// IsApp reports whether the context acts as the application.
// A nil context is neither app nor user.
func (c *CallContext) IsApp() bool {
	return c != nil && c.userCredential == ""
}

// Resolver turns CallContexts into downstream API tokens.
type Resolver struct {
	exchanger Exchanger
	logger    *slog.Logger
}

// NewResolver creates a resolver that uses exchanger for on-behalf-of flows.
func NewResolver(exchanger Exchanger, logger *slog.Logger) (*Resolver, error) {
	if exchanger == nil {
		return nil, ErrExchangerRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		exchanger: exchanger,
		logger:    logger.With("component", "auth-resolver"),
	}, nil
}

// Token returns the cached token for cc, exchanging the user credential if
// nothing has been resolved yet. The result is stored on cc.
func (r *Resolver) Token(ctx context.Context, cc *CallContext) (string, error) {
	if cc == nil {
		return "", fmt.Errorf("%w: %w", core.ErrCredentialExchange, ErrNoCredential)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.token != "" {
		return cc.token, nil
	}
	if cc.userCredential == "" {
		return "", fmt.Errorf("%w: %w", core.ErrCredentialExchange, ErrNoCredential)
	}

	r.logger.Debug("exchanging user credential", "user", cc.userID)
	token, err := r.exchanger.OnBehalfOf(ctx, cc.userCredential)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrCredentialExchange, err)
	}
	if token == "" {
		return "", fmt.Errorf("%w: empty token", core.ErrCredentialExchange)
	}

	cc.token = token
	return token, nil
}
