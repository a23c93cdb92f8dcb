// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package authtest

import (
	"strings"

	"github.com/samber/oops"

	"github.com/guideli/guideli/internal/auth"
)

const (
	fastPrefix   = "fast$"
	legacyPrefix = "legacy$"
)

// FastHasher is a non-cryptographic auth.PasswordHasher for tests. Hashes look
// like "fast$<password>". Hashes starting with "legacy$" verify the same way but
// report NeedsUpgrade.
type FastHasher struct{}

// Hash implements auth.PasswordHasher.
func (FastHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return fastPrefix + password, nil
}

// Verify implements auth.PasswordHasher. Unknown formats never match.
func (FastHasher) Verify(password, hash string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, fastPrefix):
		return hash == fastPrefix+password, nil
	case strings.HasPrefix(hash, legacyPrefix):
		return hash == legacyPrefix+password, nil
	case hash == "":
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("empty hash")
	default:
		return false, nil
	}
}

// NeedsUpgrade implements auth.PasswordHasher.
func (FastHasher) NeedsUpgrade(hash string) bool {
	return strings.HasPrefix(hash, legacyPrefix)
}

// LegacyHash returns a hash FastHasher accepts but wants upgraded.
func LegacyHash(password string) string {
	return legacyPrefix + password
}
