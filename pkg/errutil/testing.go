// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireOops(tb testing.TB, err error) oops.OopsError {
	tb.Helper()
	require.Error(tb, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(tb, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts that err carries code. oops reports the code of
// the innermost coded error in the chain.
func AssertErrorCode(tb testing.TB, err error, code string) {
	tb.Helper()
	requireOops(tb, err)
	assert.Equal(tb, code, Code(err))
}

// AssertErrorContext asserts that the context of err maps key to value.
func AssertErrorContext(tb testing.TB, err error, key string, value any) {
	tb.Helper()
	ctx := requireOops(tb, err).Context()
	if assert.Contains(tb, ctx, key) {
		assert.Equal(tb, value, ctx[key])
	}
}
