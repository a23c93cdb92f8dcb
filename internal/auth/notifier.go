// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import "context"

// Notification carries a recovery token to its recipient.
type Notification struct {
	Recipient string       `json:"recipient"`
	Purpose   TokenPurpose `json:"purpose"`
	Token     string       `json:"token"`
	// Link is set for password resets when a client URL is configured.
	Link string `json:"link,omitempty"`
}

// Notifier delivers notifications. Services call it after the credential
// transaction commits and only log its failures.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Send implements Notifier.
func (NopNotifier) Send(context.Context, Notification) error { return nil }
