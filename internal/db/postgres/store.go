package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/snack-bot/internal/store"
)

// Коды ошибок PostgreSQL, после которых транзакцию можно повторить.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// querier — общее подмножество pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store — хранилище на PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New создаёт хранилище поверх готового пула.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close закрывает пул соединений.
func (s *Store) Close() {
	s.pool.Close()
}

// Reset очищает все таблицы данных (schema_migrations не трогается).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`TRUNCATE items, accounts, ledger_entries, requests, admin_login_attempts`)
	if err != nil {
		return fmt.Errorf("очистка таблиц: %w", err)
	}
	return nil
}

// RunInTx выполняет fn в транзакции и повторяет её при конфликтах.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return store.Retry(ctx, func() error {
		return s.runOnce(ctx, fn)
	})
}

func (s *Store) runOnce(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{q: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("ошибка фиксации транзакции: %w", err))
	}
	return nil
}

// mapError превращает ошибки драйвера в ошибки store.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	if isConflict(err) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
		return true
	}
	return false
}

// pgTx реализует store.Tx поверх pgx.Tx.
type pgTx struct {
	q querier
}

var _ store.Tx = (*pgTx)(nil)
