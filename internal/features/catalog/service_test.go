package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/db/memory"
	"serotonyl.ru/snack-bot/internal/features/auth"
	"serotonyl.ru/snack-bot/internal/features/catalog"
	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/store"
)

func ptr[T any](v T) *T { return &v }

func newTestCatalog(t *testing.T) (*catalog.Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	return catalog.NewService(st), st
}

// =============================================================================
// CRUD
// =============================================================================

func TestCreate_DefaultsAndValidation(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()

	item, err := svc.Create(ctx, catalog.CreateInput{Name: "  チョコ  ", Price: 150, Stock: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "チョコ", item.Name)
	assert.True(t, item.IsActive, "new items are active by default")

	hidden, err := svc.Create(ctx, catalog.CreateInput{Name: "限定", IsActive: ptr(false)})
	require.NoError(t, err)
	assert.False(t, hidden.IsActive)

	bad := []catalog.CreateInput{
		{Name: "", Price: 10},
		{Name: "x", Price: -1},
		{Name: "x", Stock: -1},
	}
	for _, in := range bad {
		_, err := svc.Create(ctx, in)
		assert.Equal(t, common.KindValidation, common.KindOf(err), "%+v", in)
	}
}

func TestUpdate_PartialKeepsOtherFields(t *testing.T) {
	// GIVEN: an existing item
	svc, _ := newTestCatalog(t)
	ctx := context.Background()
	item, err := svc.Create(ctx, catalog.CreateInput{Name: "グミ", Description: "フルーツ", Price: 80, Stock: 20})
	require.NoError(t, err)

	// WHEN: only the price changes
	updated, err := svc.Update(ctx, item.ID, catalog.UpdateInput{Price: ptr(int64(90))})

	// THEN: other fields stay as they were
	require.NoError(t, err)
	assert.Equal(t, int64(90), updated.Price)
	assert.Equal(t, "グミ", updated.Name)
	assert.Equal(t, "フルーツ", updated.Description)
	assert.Equal(t, 20, updated.Stock)
}

func TestUpdate_Errors(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()
	item, err := svc.Create(ctx, catalog.CreateInput{Name: "グミ", Price: 80})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "ghost", catalog.UpdateInput{Price: ptr(int64(1))})
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)

	_, err = svc.Update(ctx, item.ID, catalog.UpdateInput{Name: ptr("  ")})
	assert.Equal(t, common.KindValidation, common.KindOf(err))

	_, err = svc.Update(ctx, item.ID, catalog.UpdateInput{Stock: ptr(-2)})
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestRestockAndDelete(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()
	item, err := svc.Create(ctx, catalog.CreateInput{Name: "せんべい", Price: 90, Stock: 2})
	require.NoError(t, err)

	restocked, err := svc.Restock(ctx, item.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 12, restocked.Stock)

	_, err = svc.Restock(ctx, item.ID, 0)
	assert.ErrorIs(t, err, catalog.ErrInvalidAmount)
	_, err = svc.Restock(ctx, "ghost", 1)
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)

	require.NoError(t, svc.Delete(ctx, item.ID))
	_, err = svc.Get(ctx, item.ID)
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, item.ID), catalog.ErrItemNotFound)
}

func TestRestock_StockLimit(t *testing.T) {
	// GIVEN: товар с остатком 5
	svc, st := newTestCatalog(t)
	ctx := context.Background()
	item, err := svc.Create(ctx, catalog.CreateInput{Name: "ガム", Price: 50, Stock: 5})
	require.NoError(t, err)

	// WHEN/THEN: пополнение за пределы MaxStock отклоняется как ошибка ввода
	_, err = svc.Restock(ctx, item.ID, models.MaxStock)
	assert.ErrorIs(t, err, catalog.ErrStockLimit)
	assert.Equal(t, http.StatusBadRequest, common.HTTPStatus(err))

	_, err = svc.Restock(ctx, item.ID, models.MaxStock+1)
	assert.ErrorIs(t, err, catalog.ErrStockLimit)

	// Остаток не изменился и не ушёл в минус
	got, err := st.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)

	// Ровно до границы — можно
	full, err := svc.Restock(ctx, item.ID, models.MaxStock-5)
	require.NoError(t, err)
	assert.Equal(t, models.MaxStock, full.Stock)

	_, err = svc.Update(ctx, item.ID, catalog.UpdateInput{Stock: ptr(models.MaxStock + 1)})
	assert.ErrorIs(t, err, catalog.ErrStockLimit)
	_, err = svc.Create(ctx, catalog.CreateInput{Name: "多すぎ", Stock: models.MaxStock + 1})
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestRestockHandler_HugeAmount(t *testing.T) {
	env := newCatalogEnv(t, false)
	rec := env.do(http.MethodPost, "/items", env.admin, `{"name":"チョコ","price":150,"stock":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var item models.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))

	rec = env.do(http.MethodPost, "/items/"+item.ID+"/restock", env.admin, `{"amount":9223372036854775807}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListInStock_SortedByStockDesc(t *testing.T) {
	svc, _ := newTestCatalog(t)
	ctx := context.Background()
	for _, in := range []catalog.CreateInput{
		{Name: "少ない", Stock: 2},
		{Name: "ゼロ", Stock: 0},
		{Name: "多い", Stock: 9},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	items, err := svc.ListInStock(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "多い", items[0].Name)
	assert.Equal(t, "少ない", items[1].Name)

	all, err := svc.List(ctx, store.ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "多い", all[0].Name, "newest first without stock filter")
}

// =============================================================================
// SETUP
// =============================================================================

func TestSeed(t *testing.T) {
	svc, _ := newTestCatalog(t)
	n, err := svc.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	items, err := svc.List(context.Background(), store.ItemFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, items, 5)
}

func TestImportLegacy(t *testing.T) {
	// GIVEN: legacy sweets without price, one without a name
	svc, _ := newTestCatalog(t)
	created := time.Date(2023, 4, 1, 9, 0, 0, 0, time.UTC)
	sweets := []catalog.LegacySweet{
		{Name: "羊羹", Description: "和菓子", Stock: 4, CreatedAt: &created},
		{Name: "", Stock: 3},
		{Name: "飴", Stock: -5},
	}

	// WHEN: importing
	n, err := svc.ImportLegacy(context.Background(), sweets)

	// THEN: named entries become active items priced 0
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := svc.List(context.Background(), store.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	byName := map[string]*models.Item{}
	for _, it := range items {
		byName[it.Name] = it
	}
	require.Contains(t, byName, "羊羹")
	assert.Equal(t, int64(0), byName["羊羹"].Price)
	assert.True(t, byName["羊羹"].IsActive)
	assert.True(t, created.Equal(byName["羊羹"].CreatedAt))
	assert.Equal(t, 0, byName["飴"].Stock)
}

// =============================================================================
// HTTP
// =============================================================================

type catalogEnv struct {
	router *chi.Mux
	user   string
	admin  string
	store  *memory.Store
}

func newCatalogEnv(t *testing.T, resetEnabled bool) *catalogEnv {
	t.Helper()
	st := memory.New()
	tokens := auth.NewTokens("test-secret-0123456789", time.Hour)
	r := chi.NewRouter()
	catalog.NewHandler(catalog.NewService(st), auth.NewMiddleware(tokens), st, resetEnabled).RegisterRoutes(r)

	user, _, err := tokens.Issue(&auth.Principal{AccountID: "U1", Role: models.RoleUser})
	require.NoError(t, err)
	admin, _, err := tokens.Issue(&auth.Principal{AccountID: "A1", Role: models.RoleAdmin})
	require.NoError(t, err)
	return &catalogEnv{router: r, user: "Bearer " + user, admin: "Bearer " + admin, store: st}
}

func (e *catalogEnv) do(method, path, authz, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", authz)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestItemsHandler_CRUD(t *testing.T) {
	env := newCatalogEnv(t, false)

	// Пользователь не может создавать товары
	rec := env.do(http.MethodPost, "/items", env.user, `{"name":"チョコ","price":150,"stock":3}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/items", env.admin, `{"name":"チョコ","price":150,"stock":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var item models.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))

	rec = env.do(http.MethodPost, "/items", env.admin, `{"name":"","price":150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPut, "/items/"+item.ID, env.admin, `{"stock":7}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/items/"+item.ID+"/restock", env.admin, `{"amount":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, 10, item.Stock)

	rec = env.do(http.MethodGet, "/items?inStock=true", env.user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []models.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 1)

	rec = env.do(http.MethodDelete, "/items/"+item.ID, env.admin, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/items/"+item.ID, env.user, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetHandler_Flag(t *testing.T) {
	disabled := newCatalogEnv(t, false)
	rec := disabled.do(http.MethodPost, "/admin/reset", disabled.admin, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	enabled := newCatalogEnv(t, true)
	rec = enabled.do(http.MethodPost, "/admin/seed", enabled.admin, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = enabled.do(http.MethodPost, "/admin/reset", enabled.admin, "")
	require.Equal(t, http.StatusOK, rec.Code)

	items, err := enabled.store.ListItems(context.Background(), store.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestImportHandler(t *testing.T) {
	env := newCatalogEnv(t, false)
	rec := env.do(http.MethodPost, "/admin/import/sweets", env.admin, `[{"name":"羊羹","stock":2}]`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["migrated"])
	assert.Contains(t, body, "note")
}
