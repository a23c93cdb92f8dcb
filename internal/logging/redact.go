// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces the value of a credential attribute.
const Redacted = "[REDACTED]"

// sensitiveKeys are attribute keys whose values never reach the log output.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"token":         {},
	"access_token":  {},
	"secret":        {},
	"client_secret": {},
	"authorization": {},
}

// redactAttr masks credential attributes. Keys match case-insensitively.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	return a
}
