package postgres

import (
	"context"
	"fmt"
	"time"
)

// LogLoginAttempt записывает попытку входа в админку.
func (s *Store) LogLoginAttempt(ctx context.Context, key string, success bool, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_login_attempts (client_key, success, attempt_time)
		VALUES ($1, $2, $3)
	`, key, success, at)
	if err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// CountFailedAttempts считает неудачные попытки с момента since.
func (s *Store) CountFailedAttempts(ctx context.Context, key string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE client_key = $1 AND success = FALSE AND attempt_time >= $2
	`, key, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток: %w", err)
	}
	return count, nil
}
