package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/store"
)

const accountColumns = `id, display_name, picture_url, role, current_balance, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.DisplayName, &a.PictureURL, &a.Role,
		&a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func collectAccounts(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func insertAccount(ctx context.Context, q querier, a *models.Account) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.DisplayName, a.PictureURL, a.Role, a.CurrentBalance, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetAccount возвращает аккаунт по ID.
func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// ListAccounts возвращает все аккаунты, сначала с наибольшим балансом.
func (s *Store) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY current_balance DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("список аккаунтов: %w", err)
	}
	return collectAccounts(rows)
}

// ListAdmins возвращает администраторов.
func (s *Store) ListAdmins(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE role = $1 ORDER BY id`, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("список админов: %w", err)
	}
	return collectAccounts(rows)
}

// InsertAccount создаёт аккаунт, если его ещё нет.
func (s *Store) InsertAccount(ctx context.Context, a *models.Account) (bool, error) {
	return insertAccount(ctx, s.pool, a)
}

// UpsertProfile создаёт аккаунт или обновляет имя и аватар существующего.
func (s *Store) UpsertProfile(ctx context.Context, id, displayName, pictureURL string, at time.Time) (*models.Account, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, display_name, picture_url, role, current_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			picture_url  = EXCLUDED.picture_url,
			updated_at   = EXCLUDED.updated_at
		RETURNING `+accountColumns,
		id, displayName, pictureURL, models.RoleUser, at)
	return scanAccount(row)
}

// SetRole меняет роль аккаунта.
func (s *Store) SetRole(ctx context.Context, id string, role models.Role, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET role = $2, updated_at = $3 WHERE id = $1`, id, role, at)
	if err != nil {
		return fmt.Errorf("смена роли: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SettleBalance обнуляет баланс.
func (s *Store) SettleBalance(ctx context.Context, id string, at time.Time) (*models.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `
		UPDATE accounts SET current_balance = 0, updated_at = $2
		WHERE id = $1
		RETURNING `+accountColumns, id, at))
}

// === Транзакционные операции ===

func (t *pgTx) GetAccountForUpdate(ctx context.Context, id string) (*models.Account, error) {
	return scanAccount(t.q.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) CreateAccount(ctx context.Context, a *models.Account) error {
	created, err := insertAccount(ctx, t.q, a)
	if err != nil {
		return err
	}
	if !created {
		return store.ErrConflict
	}
	return nil
}

func (t *pgTx) UpdateAccountBalance(ctx context.Context, id string, expected, next int64, at time.Time) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE accounts SET current_balance = $3, updated_at = $4
		WHERE id = $1 AND current_balance = $2
	`, id, expected, next, at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}
