package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/store"
)

const itemColumns = `id, name, description, image_url, price, stock, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (*models.Item, error) {
	var it models.Item
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.ImageURL,
		&it.Price, &it.Stock, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &it, nil
}

func collectItems(rows pgx.Rows) ([]*models.Item, error) {
	defer rows.Close()
	var items []*models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CreateItem добавляет товар.
func (s *Store) CreateItem(ctx context.Context, it *models.Item) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, it.ID, it.Name, it.Description, it.ImageURL, it.Price, it.Stock, it.IsActive, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("создание товара: %w", mapError(err))
	}
	return nil
}

// GetItem возвращает товар по ID.
func (s *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	return scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
}

// ListItems возвращает товары по фильтру.
func (s *Store) ListItems(ctx context.Context, f store.ItemFilter) ([]*models.Item, error) {
	var where []string
	if f.InStockOnly {
		where = append(where, "stock > 0")
	}
	if f.ActiveOnly {
		where = append(where, "is_active")
	}

	q := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if f.InStockOnly {
		q += " ORDER BY stock DESC, created_at"
	} else {
		q += " ORDER BY created_at DESC"
	}

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("список товаров: %w", err)
	}
	return collectItems(rows)
}

// UpdateItem применяет патч. Незаданные поля остаются прежними (COALESCE).
func (s *Store) UpdateItem(ctx context.Context, id string, p store.ItemPatch, at time.Time) (*models.Item, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE items SET
			name        = COALESCE($2, name),
			description = COALESCE($3, description),
			image_url   = COALESCE($4, image_url),
			price       = COALESCE($5, price),
			stock       = COALESCE($6, stock),
			is_active   = COALESCE($7, is_active),
			updated_at  = $8
		WHERE id = $1
		RETURNING `+itemColumns,
		id, p.Name, p.Description, p.ImageURL, p.Price, p.Stock, p.IsActive, at)
	return scanItem(row)
}

// AddStock прибавляет delta к остатку одним UPDATE.
func (s *Store) AddStock(ctx context.Context, id string, delta int, at time.Time) (*models.Item, error) {
	// Условие в WHERE не даёт INTEGER переполниться: ни одна строка не обновится
	row := s.pool.QueryRow(ctx, `
		UPDATE items SET stock = stock + $2, updated_at = $3
		WHERE id = $1 AND stock <= $4::INTEGER - $2
		RETURNING `+itemColumns,
		id, delta, at, models.MaxStock)
	item, err := scanItem(row)
	if !errors.Is(err, store.ErrNotFound) {
		return item, err
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM items WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("проверка товара: %w", err)
	}
	if exists {
		return nil, store.ErrStockLimit
	}
	return nil, err
}

// DeleteItem удаляет товар. История потребления остаётся.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("удаление товара: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// === Транзакционные операции ===

func (t *pgTx) GetItemForUpdate(ctx context.Context, id string) (*models.Item, error) {
	return scanItem(t.q.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) FindItemByNameForUpdate(ctx context.Context, name string) (*models.Item, error) {
	return scanItem(t.q.QueryRow(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE name = $1
		ORDER BY created_at, id
		LIMIT 1
		FOR UPDATE`, name))
}

func (t *pgTx) UpdateItemStock(ctx context.Context, id string, expected, next int, at time.Time) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE items SET stock = $3, updated_at = $4
		WHERE id = $1 AND stock = $2
	`, id, expected, next, at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}
