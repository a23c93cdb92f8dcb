// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"time"

	"github.com/samber/oops"
)

// TokenPurpose identifies which recovery flow a token belongs to.
type TokenPurpose string

// Token purposes.
const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// Recovery token configuration.
const (
	EmailVerificationTokenLength = 4
	PasswordResetTokenLength     = 6
	RecoveryTokenLifetime        = 15 * time.Minute
)

var ten = big.NewInt(10)

// GenerateNumericToken returns a string of n decimal digits drawn from crypto/rand.
// Leading zeros are allowed.
func GenerateNumericToken(n int) (string, error) {
	if n <= 0 {
		return "", oops.Code("TOKEN_INVALID_LENGTH").With("length", n).Errorf("token length must be positive")
	}
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", oops.Code("TOKEN_GENERATE_FAILED").
				With("operation", "crypto/rand.Int").
				Wrap(err)
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}

// TokenIssuer issues and validates single-use numeric recovery tokens stored on the User.
type TokenIssuer struct {
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenIssuer creates a TokenIssuer with the standard lifetime.
// A nil clock defaults to time.Now.
func NewTokenIssuer(now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{lifetime: RecoveryTokenLifetime, now: now}
}

// tokenLength returns the digit count for a purpose.
func tokenLength(purpose TokenPurpose) (int, error) {
	switch purpose {
	case PurposeEmailVerification:
		return EmailVerificationTokenLength, nil
	case PurposePasswordReset:
		return PasswordResetTokenLength, nil
	default:
		return 0, oops.Code("TOKEN_INVALID_PURPOSE").With("purpose", string(purpose)).Errorf("unknown token purpose")
	}
}

// fields returns pointers to the token and expiry fields for a purpose.
func fields(user *User, purpose TokenPurpose) (**string, **time.Time) {
	if purpose == PurposePasswordReset {
		return &user.PasswordResetToken, &user.PasswordResetTokenExpiry
	}
	return &user.EmailVerificationToken, &user.EmailVerificationTokenExpiry
}

// Issue generates a token for purpose, stores it with its expiry on the user and
// returns it. The caller persists the user.
func (i *TokenIssuer) Issue(user *User, purpose TokenPurpose) (string, error) {
	n, err := tokenLength(purpose)
	if err != nil {
		return "", err
	}
	token, err := GenerateNumericToken(n)
	if err != nil {
		return "", err
	}
	expiry := i.now().Add(i.lifetime)

	tokenField, expiryField := fields(user, purpose)
	*tokenField = &token
	*expiryField = &expiry
	return token, nil
}

// Validate checks a presented token against the one stored on the user.
// An absent token or expiry counts as expired.
func (i *TokenIssuer) Validate(user *User, purpose TokenPurpose, presented string) error {
	if _, err := tokenLength(purpose); err != nil {
		return err
	}
	tokenField, expiryField := fields(user, purpose)
	stored, expiry := *tokenField, *expiryField

	if stored == nil || expiry == nil {
		return oops.Code("TOKEN_EXPIRED").
			With("purpose", string(purpose)).
			With("reason", "not issued").
			Wrap(ErrTokenExpired)
	}
	if i.now().After(*expiry) {
		return oops.Code("TOKEN_EXPIRED").
			With("purpose", string(purpose)).
			Wrap(ErrTokenExpired)
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(*stored)) != 1 {
		return oops.Code("TOKEN_INVALID").
			With("purpose", string(purpose)).
			Wrap(ErrInvalidToken)
	}
	return nil
}

// Clear removes the token and expiry for purpose from the user.
func (i *TokenIssuer) Clear(user *User, purpose TokenPurpose) {
	tokenField, expiryField := fields(user, purpose)
	*tokenField = nil
	*expiryField = nil
}
