package store

import (
	"context"
	"errors"
	"time"
)

// retryBackoff — пауза перед очередной попыткой, растёт линейно.
const retryBackoff = 15 * time.Millisecond

// Retry вызывает attempt, пока тот возвращает ErrConflict, но не больше MaxTxAttempts раз.
// Реализации хранилища оборачивают им одну попытку транзакции.
func Retry(ctx context.Context, attempt func() error) error {
	var err error
	for i := 0; i < MaxTxAttempts; i++ {
		err = attempt()
		if !errors.Is(err, ErrConflict) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * retryBackoff):
		}
	}
	return err
}
