// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guideli/guideli/internal/auth"
)

func TestTransactor_CommitsOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	profile := &auth.Profile{ID: ulid.Make(), CreatedAt: time.Now(), UpdatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO profiles`).
		WithArgs(profile.ID.String(), "", "", "", "", "", profile.CreatedAt, profile.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	profiles := NewProfileRepository(mock)
	err = NewTransactor(mock).InTransaction(context.Background(), func(ctx context.Context) error {
		return profiles.Create(ctx, profile)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO profiles`).
		WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(anyArgs(userInsertArgs)...).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	profiles := NewProfileRepository(mock)
	users := NewUserRepository(mock)
	profile := &auth.Profile{ID: ulid.Make()}

	err = NewTransactor(mock).InTransaction(context.Background(), func(ctx context.Context) error {
		if err := profiles.Create(ctx, profile); err != nil {
			return err
		}
		return users.Create(ctx, &auth.User{ID: ulid.Make(), Email: "a@x.com", Profile: profile})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err = NewTransactor(mock).InTransaction(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_NestedCallJoins(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	tx := NewTransactor(mock)
	err = tx.InTransaction(context.Background(), func(ctx context.Context) error {
		return tx.InTransaction(ctx, func(context.Context) error { return nil })
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
