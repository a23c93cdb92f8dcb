// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSigningKeyLength is the shortest HMAC key accepted by NewJWTSigner.
const MinSigningKeyLength = 32

// Claims is the bearer token payload: the user ID as subject and the email as username.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// JWTSigner signs and verifies HS256 bearer tokens.
type JWTSigner struct {
	key    []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
}

// NewJWTSigner creates a JWTSigner. A nil clock defaults to time.Now.
func NewJWTSigner(key []byte, expiry time.Duration, issuer string, now func() time.Time) (*JWTSigner, error) {
	if len(key) < MinSigningKeyLength {
		return nil, oops.Code("SIGNER_INVALID_KEY").
			With("length", len(key)).
			Errorf("signing key must be at least %d bytes", MinSigningKeyLength)
	}
	if expiry <= 0 {
		return nil, oops.Code("SIGNER_INVALID_EXPIRY").
			With("expiry", expiry.String()).
			Errorf("token expiry must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &JWTSigner{key: key, expiry: expiry, issuer: issuer, now: now}, nil
}

// Sign issues a token for the user.
func (s *JWTSigner) Sign(user *User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		Username: user.Email,
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", oops.Code("SIGNER_SIGN_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the claims.
// Every failure wraps ErrUnauthorized.
func (s *JWTSigner) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code("AUTH_TOKEN_EXPIRED").Wrap(ErrUnauthorized)
		}
		return nil, oops.Code("AUTH_TOKEN_INVALID").With("reason", err.Error()).Wrap(ErrUnauthorized)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrUnauthorized)
	}
	return claims, nil
}
