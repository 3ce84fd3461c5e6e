package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/store"
)

const requestColumns = `id, account_id, account_name, requested_item_name, description,
	status, COALESCE(processed_by, ''), processed_at, created_at, updated_at`

func scanRequest(row pgx.Row) (*models.Request, error) {
	var r models.Request
	err := row.Scan(&r.ID, &r.AccountID, &r.AccountName, &r.RequestedItemName, &r.Description,
		&r.Status, &r.ProcessedBy, &r.ProcessedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

// CreateRequest сохраняет заявку.
func (s *Store) CreateRequest(ctx context.Context, r *models.Request) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO requests
			(id, account_id, account_name, requested_item_name, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.AccountID, r.AccountName, r.RequestedItemName, r.Description, r.Status, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("создание заявки: %w", mapError(err))
	}
	return nil
}

// GetRequest возвращает заявку по ID.
func (s *Store) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	return scanRequest(s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
}

// ListRequests возвращает заявки по фильтру, новые первыми.
func (s *Store) ListRequests(ctx context.Context, f store.RequestFilter) ([]*models.Request, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != "" {
		args = append(args, f.AccountID)
		where = append(where, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	q := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("список заявок: %w", err)
	}
	defer rows.Close()

	var list []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// UpdateRequestStatus меняет статус и отмечает, кто обработал заявку.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status models.RequestStatus, processedBy string, at time.Time) (*models.Request, error) {
	return scanRequest(s.pool.QueryRow(ctx, `
		UPDATE requests SET status = $2, processed_by = $3, processed_at = $4, updated_at = $4
		WHERE id = $1
		RETURNING `+requestColumns,
		id, status, processedBy, at))
}
