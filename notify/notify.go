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

// Package notify delivers human-readable progress messages to users.
// Delivery is best-effort: a failed send never aborts the caller.
package notify

import (
	"context"
	"log/slog"
)

// Hub delivers a message to one user, or to everyone when userID is "".
type Hub interface {
	Send(ctx context.Context, userID, message string) error
}

// Channel binds a Hub to a single recipient.
type Channel struct {
	hub    Hub
	userID string
	logger *slog.Logger
}

// NewChannel returns a channel addressed to userID. A nil hub discards messages.
func NewChannel(hub Hub, userID string, logger *slog.Logger) *Channel {
	if hub == nil {
		hub = NopHub{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{hub: hub, userID: userID, logger: logger}
}

// Send delivers message and logs, rather than returns, any failure.
func (c *Channel) Send(ctx context.Context, message string) {
	if err := c.hub.Send(ctx, c.userID, message); err != nil {
		c.logger.Warn("notification not delivered", "user", c.userID, "err", err)
	}
}

// LogHub writes notifications to a logger. Used by the CLI.
type LogHub struct {
	Logger *slog.Logger
}

func (h LogHub) Send(ctx context.Context, userID, message string) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, message, "user", userID)
	return nil
}

// NopHub drops every notification.
type NopHub struct{}

func (NopHub) Send(context.Context, string, string) error { return nil }
