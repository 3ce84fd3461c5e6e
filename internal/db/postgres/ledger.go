package postgres

import (
	"context"
	"fmt"

	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/store"
)

// ListLedgerEntries возвращает записи журнала, новые первыми.
func (s *Store) ListLedgerEntries(ctx context.Context, f store.LedgerFilter) ([]*models.LedgerEntry, error) {
	q := `SELECT id, account_id, item_id, item_name, quantity, price_at_time, billed, created_at
		FROM ledger_entries`
	args := []any{}
	if f.AccountID != "" {
		args = append(args, f.AccountID)
		q += fmt.Sprintf(" WHERE account_id = $%d", len(args))
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("история потребления: %w", err)
	}
	defer rows.Close()

	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.ItemID, &e.ItemNameSnapshot,
			&e.Quantity, &e.PriceAtTime, &e.Billed, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

func (t *pgTx) CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO ledger_entries
			(id, account_id, item_id, item_name, quantity, price_at_time, billed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.AccountID, e.ItemID, e.ItemNameSnapshot, e.Quantity, e.PriceAtTime, e.Billed, e.Timestamp)
	if err != nil {
		return mapError(err)
	}
	return nil
}
