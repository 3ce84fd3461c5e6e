package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"serotonyl.ru/snack-bot/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, store.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("select: %w", pgx.ErrNoRows), store.ErrNotFound},
		{"serialization", &pgconn.PgError{Code: codeSerializationFailure}, store.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, store.ErrConflict},
		{"unique", &pgconn.PgError{Code: codeUniqueViolation}, store.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}
}

func TestMapError_PassThrough(t *testing.T) {
	assert.NoError(t, mapError(nil))

	check := &pgconn.PgError{Code: "23514"} // check_violation
	err := mapError(check)
	assert.Same(t, check, err)
	assert.False(t, errors.Is(err, store.ErrConflict))
}

func TestMigrations_Ordered(t *testing.T) {
	for i, m := range Migrations {
		assert.Equal(t, i+1, m.Version)
		assert.True(t, strings.Contains(m.SQL, "CREATE TABLE IF NOT EXISTS"), "migration %d", m.Version)
	}
}
