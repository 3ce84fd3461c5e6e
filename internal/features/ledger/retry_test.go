package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/db/memory"
	"serotonyl.ru/snack-bot/internal/features/ledger"
	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/store"
)

// conflictingTransactor ведёт себя как хранилище, у которого первые
// conflicts фиксаций проваливаются с ErrConflict (как сериализация в Postgres):
// fn отработала, но все её записи откатываются, и транзакция перезапускается.
type conflictingTransactor struct {
	inner     store.Transactor
	conflicts int
	attempts  int
	entryIDs  []string
}

func (c *conflictingTransactor) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return store.Retry(ctx, func() error {
		c.attempts++
		return c.inner.RunInTx(ctx, func(tx store.Tx) error {
			if err := fn(&recordingTx{Tx: tx, ids: &c.entryIDs}); err != nil {
				return err
			}
			if c.conflicts > 0 {
				c.conflicts--
				return store.ErrConflict
			}
			return nil
		})
	})
}

type recordingTx struct {
	store.Tx
	ids *[]string
}

func (r *recordingTx) CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	*r.ids = append(*r.ids, e.ID)
	return r.Tx.CreateLedgerEntry(ctx, e)
}

func TestConsume_RetriedTransactionBuildsFreshReceipt(t *testing.T) {
	// GIVEN: товар с остатком 3 и аккаунт с балансом -50; первая фиксация конфликтует
	ctx := context.Background()
	st := memory.New()
	seedItem(t, st, "chips", "ポテトチップス", 100, 3, true)
	seedAccount(t, st, "U1", -50)
	tx := &conflictingTransactor{inner: st, conflicts: 1}
	svc := ledger.NewService(tx, st, nil, 0)

	// WHEN
	receipt, err := svc.Consume(ctx, "U1", "chips")

	// THEN: транзакция выполнена дважды, но эффект ровно один
	require.NoError(t, err)
	assert.Equal(t, 2, tx.attempts)
	require.Len(t, tx.entryIDs, 2)
	assert.Equal(t, tx.entryIDs[1], receipt.EntryID, "квитанция из успешной попытки")
	assert.NotEqual(t, tx.entryIDs[0], receipt.EntryID)
	assert.Equal(t, 2, receipt.NewStock)

	item, err := st.GetItem(ctx, "chips")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Stock)
	acc, err := st.GetAccount(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(-150), acc.CurrentBalance)

	entries, err := st.ListLedgerEntries(ctx, store.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, receipt.EntryID, entries[0].ID)
}

func TestConsumeByName_RetriedTransactionBuildsFreshReceipt(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedItem(t, st, "gum", "ガム", 30, 5, true)
	tx := &conflictingTransactor{inner: st, conflicts: 2}
	svc := ledger.NewService(tx, st, nil, 0)

	receipt, err := svc.ConsumeByName(ctx, "U1", "ガム", 2)

	require.NoError(t, err)
	assert.Equal(t, 3, tx.attempts)
	assert.Equal(t, tx.entryIDs[len(tx.entryIDs)-1], receipt.EntryID)
	assert.Equal(t, 3, receipt.NewStock)
	item, _ := st.GetItem(ctx, "gum")
	assert.Equal(t, 3, item.Stock)
}

func TestConsume_PersistentConflictLeavesNoTrace(t *testing.T) {
	// GIVEN: хранилище, которое конфликтует на каждой фиксации
	ctx := context.Background()
	st := memory.New()
	seedItem(t, st, "chips", "ポテトチップス", 100, 3, true)
	tx := &conflictingTransactor{inner: st, conflicts: store.MaxTxAttempts}
	svc := ledger.NewService(tx, st, nil, 0)

	// WHEN
	_, err := svc.Consume(ctx, "U1", "chips")

	// THEN: внутренняя ошибка после MaxTxAttempts попыток, состояние не изменилось
	require.Error(t, err)
	assert.Equal(t, common.KindInternal, common.KindOf(err))
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, store.MaxTxAttempts, tx.attempts)

	item, _ := st.GetItem(ctx, "chips")
	assert.Equal(t, 3, item.Stock)
	_, err = st.GetAccount(ctx, "U1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	entries, _ := st.ListLedgerEntries(ctx, store.LedgerFilter{})
	assert.Empty(t, entries)
}
