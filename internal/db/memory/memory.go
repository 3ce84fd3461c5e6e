// Package memory — хранилище в памяти процесса.
// Используется в тестах и при DB_DRIVER=memory для локального запуска.
//
// Транзакции сериализуются одним мьютексом; записи транзакции копятся
// в отдельном наборе и применяются только при успешном завершении fn.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/store"
)

type loginAttempt struct {
	key     string
	success bool
	at      time.Time
}

// Store хранит все документы в map'ах.
type Store struct {
	mu       sync.RWMutex
	items    map[string]*models.Item
	accounts map[string]*models.Account
	entries  []*models.LedgerEntry
	requests map[string]*models.Request
	attempts []loginAttempt
	seq      int64 // порядок создания товаров для «первого совпадения» по имени
	order    map[string]int64
}

var _ store.Store = (*Store)(nil)

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		items:    make(map[string]*models.Item),
		accounts: make(map[string]*models.Account),
		requests: make(map[string]*models.Request),
		order:    make(map[string]int64),
	}
}

// Close ничего не делает — нужен для соответствия store.Store.
func (s *Store) Close() {}

// Reset удаляет все документы.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*models.Item)
	s.accounts = make(map[string]*models.Account)
	s.entries = nil
	s.requests = make(map[string]*models.Request)
	s.attempts = nil
	s.order = make(map[string]int64)
	return nil
}

// =============================================================================
// Транзакции
// =============================================================================

// RunInTx выполняет fn под эксклюзивной блокировкой хранилища.
// Записи применяются только если fn вернула nil.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:        s,
		items:    make(map[string]*models.Item),
		accounts: make(map[string]*models.Account),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	s        *Store
	items    map[string]*models.Item
	accounts map[string]*models.Account
	entries  []*models.LedgerEntry
}

func (t *memTx) item(id string) (*models.Item, bool) {
	if it, ok := t.items[id]; ok {
		return it, true
	}
	it, ok := t.s.items[id]
	return it, ok
}

func (t *memTx) GetItemForUpdate(_ context.Context, id string) (*models.Item, error) {
	it, ok := t.item(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (t *memTx) FindItemByNameForUpdate(ctx context.Context, name string) (*models.Item, error) {
	var (
		found string
		best  int64
	)
	for id, it := range t.s.items {
		if it.Name != name {
			continue
		}
		if found == "" || t.s.order[id] < best {
			found, best = id, t.s.order[id]
		}
	}
	if found == "" {
		return nil, store.ErrNotFound
	}
	return t.GetItemForUpdate(ctx, found)
}

func (t *memTx) UpdateItemStock(_ context.Context, id string, expected, next int, at time.Time) error {
	it, ok := t.item(id)
	if !ok {
		return store.ErrNotFound
	}
	if it.Stock != expected {
		return store.ErrConflict
	}
	cp := *it
	cp.Stock = next
	cp.UpdatedAt = at
	t.items[id] = &cp
	return nil
}

func (t *memTx) account(id string) (*models.Account, bool) {
	if a, ok := t.accounts[id]; ok {
		return a, true
	}
	a, ok := t.s.accounts[id]
	return a, ok
}

func (t *memTx) GetAccountForUpdate(_ context.Context, id string) (*models.Account, error) {
	a, ok := t.account(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (t *memTx) CreateAccount(_ context.Context, a *models.Account) error {
	if _, ok := t.account(a.ID); ok {
		return store.ErrConflict
	}
	cp := *a
	t.accounts[a.ID] = &cp
	return nil
}

func (t *memTx) UpdateAccountBalance(_ context.Context, id string, expected, next int64, at time.Time) error {
	a, ok := t.account(id)
	if !ok {
		return store.ErrNotFound
	}
	if a.CurrentBalance != expected {
		return store.ErrConflict
	}
	cp := *a
	cp.CurrentBalance = next
	cp.UpdatedAt = at
	t.accounts[id] = &cp
	return nil
}

func (t *memTx) CreateLedgerEntry(_ context.Context, e *models.LedgerEntry) error {
	cp := *e
	t.entries = append(t.entries, &cp)
	return nil
}

func (t *memTx) commit() {
	for id, it := range t.items {
		t.s.items[id] = it
	}
	for id, a := range t.accounts {
		t.s.accounts[id] = a
	}
	t.s.entries = append(t.s.entries, t.entries...)
}

// =============================================================================
// Каталог
// =============================================================================

func (s *Store) CreateItem(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("item %s already exists", item.ID)
	}
	cp := *item
	s.items[item.ID] = &cp
	s.seq++
	s.order[item.ID] = s.seq
	return nil
}

func (s *Store) GetItem(_ context.Context, id string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (s *Store) ListItems(_ context.Context, f store.ItemFilter) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Item, 0, len(s.items))
	for _, it := range s.items {
		if f.InStockOnly && it.Stock <= 0 {
			continue
		}
		if f.ActiveOnly && !it.IsActive {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}
	if f.InStockOnly {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Stock != out[j].Stock {
				return out[i].Stock > out[j].Stock
			}
			return s.order[out[i].ID] < s.order[out[j].ID]
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			return s.order[out[i].ID] > s.order[out[j].ID]
		})
	}
	return out, nil
}

func (s *Store) UpdateItem(_ context.Context, id string, patch store.ItemPatch, at time.Time) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *it
	if patch.Name != nil {
		cp.Name = *patch.Name
	}
	if patch.Description != nil {
		cp.Description = *patch.Description
	}
	if patch.ImageURL != nil {
		cp.ImageURL = *patch.ImageURL
	}
	if patch.Price != nil {
		cp.Price = *patch.Price
	}
	if patch.Stock != nil {
		cp.Stock = *patch.Stock
	}
	if patch.IsActive != nil {
		cp.IsActive = *patch.IsActive
	}
	cp.UpdatedAt = at
	s.items[id] = &cp
	out := cp
	return &out, nil
}

func (s *Store) AddStock(_ context.Context, id string, delta int, at time.Time) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if delta > models.MaxStock-it.Stock {
		return nil, store.ErrStockLimit
	}
	cp := *it
	cp.Stock += delta
	cp.UpdatedAt = at
	s.items[id] = &cp
	out := cp
	return &out, nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.items, id)
	delete(s.order, id)
	return nil
}

// =============================================================================
// Аккаунты
// =============================================================================

func (s *Store) GetAccount(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentBalance != out[j].CurrentBalance {
			return out[i].CurrentBalance > out[j].CurrentBalance
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]*models.Account, error) {
	all, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Account
	for _, a := range all {
		if a.IsAdmin() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) InsertAccount(_ context.Context, a *models.Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return false, nil
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return true, nil
}

func (s *Store) UpsertProfile(_ context.Context, id, displayName, pictureURL string, at time.Time) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	var cp models.Account
	if ok {
		cp = *a
	} else {
		cp = models.Account{ID: id, Role: models.RoleUser, CreatedAt: at}
	}
	cp.DisplayName = displayName
	cp.PictureURL = pictureURL
	cp.UpdatedAt = at
	s.accounts[id] = &cp
	out := cp
	return &out, nil
}

func (s *Store) SetRole(_ context.Context, id string, role models.Role, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	cp := *a
	cp.Role = role
	cp.UpdatedAt = at
	s.accounts[id] = &cp
	return nil
}

func (s *Store) SettleBalance(_ context.Context, id string, at time.Time) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	cp.CurrentBalance = 0
	cp.UpdatedAt = at
	s.accounts[id] = &cp
	out := cp
	return &out, nil
}

// =============================================================================
// Журнал
// =============================================================================

func (s *Store) ListLedgerEntries(_ context.Context, f store.LedgerFilter) ([]*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.LedgerEntry
	// Записи лежат в порядке добавления — идём с конца, чтобы получить «новые сверху».
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if f.AccountID != "" && e.AccountID != f.AccountID {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// =============================================================================
// Заявки
// =============================================================================

func (s *Store) CreateRequest(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListRequests(_ context.Context, f store.RequestFilter) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
	for _, r := range s.requests {
		if f.AccountID != "" && r.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateRequestStatus(_ context.Context, id string, status models.RequestStatus, processedBy string, at time.Time) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	cp.Status = status
	cp.ProcessedBy = processedBy
	processed := at
	cp.ProcessedAt = &processed
	cp.UpdatedAt = at
	s.requests[id] = &cp
	out := cp
	return &out, nil
}

// =============================================================================
// Попытки входа
// =============================================================================

func (s *Store) LogLoginAttempt(_ context.Context, key string, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, loginAttempt{key: key, success: success, at: at})
	return nil
}

func (s *Store) CountFailedAttempts(_ context.Context, key string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.attempts {
		if a.key == key && !a.success && !a.at.Before(since) {
			n++
		}
	}
	return n, nil
}
