// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

// Package notify delivers recovery tokens produced by the auth services.
//
// LogSender only records that a notification was produced and is the default
// when no broker is configured. NATSSender publishes each notification to a
// JetStream subject for an out-of-process mailer.
package notify
