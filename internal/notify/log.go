// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package notify

import (
	"context"
	"log/slog"

	"github.com/guideli/guideli/internal/auth"
)

// LogSender logs notifications without their token or link.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send implements auth.Notifier.
func (s *LogSender) Send(ctx context.Context, n auth.Notification) error {
	s.logger.InfoContext(ctx, "notification produced",
		"recipient", n.Recipient,
		"purpose", string(n.Purpose),
		"has_link", n.Link != "")
	return nil
}

var _ auth.Notifier = (*LogSender)(nil)
