// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package httpapi

import (
	"net/mail"
	"strings"
	"unicode"
)

const minPasswordLength = 8

// validEmail accepts a bare address such as "a@example.com". Display names
// ("Name <a@example.com>") are rejected.
func validEmail(email string) bool {
	if email == "" || strings.TrimSpace(email) != email {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && addr.Name == ""
}

// validPassword requires at least eight characters including an upper case
// letter, a lower case letter and a digit.
func validPassword(password string) bool {
	if len([]rune(password)) < minPasswordLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// checkEmail returns a client error unless email is a valid address.
func checkEmail(email string) error {
	if !validEmail(email) {
		return badRequest("email must be a valid address")
	}
	return nil
}

// checkPassword returns a client error unless password meets the policy.
func checkPassword(field, password string) error {
	if !validPassword(password) {
		return badRequest(field + " must be at least 8 characters with upper case, lower case and a digit")
	}
	return nil
}

// checkRequired returns a client error when value is blank.
func checkRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return badRequest(field + " is required")
	}
	return nil
}
