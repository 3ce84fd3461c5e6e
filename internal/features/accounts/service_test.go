package accounts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/snack-bot/internal/db/memory"
	"serotonyl.ru/snack-bot/internal/features/accounts"
	"serotonyl.ru/snack-bot/internal/features/auth"
	"serotonyl.ru/snack-bot/internal/models"
)

type fakeProfiles struct {
	profile *models.Profile
	err     error
	calls   int
}

func (f *fakeProfiles) Profile(context.Context, string) (*models.Profile, error) {
	f.calls++
	return f.profile, f.err
}

func newTestService(t *testing.T) (*accounts.Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	return accounts.NewService(st), st
}

func TestEnsureAccount_CreatesWithProfile(t *testing.T) {
	// GIVEN: no account, profile lookup works
	svc, st := newTestService(t)
	src := &fakeProfiles{profile: &models.Profile{DisplayName: "山田", PictureURL: "https://img"}}

	// WHEN: ensuring the account
	acc, err := svc.EnsureAccount(context.Background(), "U1", src)

	// THEN: created with profile data, zero balance, role user
	require.NoError(t, err)
	assert.Equal(t, "山田", acc.DisplayName)
	assert.Equal(t, "https://img", acc.PictureURL)
	assert.Equal(t, models.RoleUser, acc.Role)
	assert.Equal(t, int64(0), acc.CurrentBalance)

	stored, err := st.GetAccount(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "山田", stored.DisplayName)
}

func TestEnsureAccount_ProfileFailureUsesPlaceholder(t *testing.T) {
	svc, _ := newTestService(t)
	src := &fakeProfiles{err: errors.New("LINE is down")}

	acc, err := svc.EnsureAccount(context.Background(), "U1", src)
	require.NoError(t, err)
	assert.Equal(t, models.UnknownDisplayName, acc.DisplayName)
	assert.Empty(t, acc.PictureURL)
}

func TestEnsureAccount_ExistingAccountUntouched(t *testing.T) {
	// GIVEN: an account with debt
	svc, st := newTestService(t)
	_, err := st.InsertAccount(context.Background(), &models.Account{ID: "U1", DisplayName: "旧", CurrentBalance: -300, Role: models.RoleUser})
	require.NoError(t, err)
	src := &fakeProfiles{profile: &models.Profile{DisplayName: "新"}}

	// WHEN: ensuring again
	acc, err := svc.EnsureAccount(context.Background(), "U1", src)

	// THEN: nothing changes and the profile is not even fetched
	require.NoError(t, err)
	assert.Equal(t, "旧", acc.DisplayName)
	assert.Equal(t, int64(-300), acc.CurrentBalance)
	assert.Equal(t, 0, src.calls)
}

func TestUpsertProfile_KeepsBalanceAndRole(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	_, err := st.InsertAccount(ctx, &models.Account{ID: "U1", DisplayName: "旧", CurrentBalance: -120, Role: models.RoleAdmin})
	require.NoError(t, err)

	acc, err := svc.UpsertProfile(ctx, "U1", "", "pic")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDisplayName, acc.DisplayName)
	assert.Equal(t, "pic", acc.PictureURL)
	assert.Equal(t, int64(-120), acc.CurrentBalance)
	assert.Equal(t, models.RoleAdmin, acc.Role)
}

func TestPromoteAdmins(t *testing.T) {
	// GIVEN: one existing user
	svc, st := newTestService(t)
	ctx := context.Background()
	_, err := st.InsertAccount(ctx, &models.Account{ID: "U1", Role: models.RoleUser, CurrentBalance: -50})
	require.NoError(t, err)

	// WHEN: promoting the existing one and a new one
	require.NoError(t, svc.PromoteAdmins(ctx, []string{"U1", "U2"}))

	// THEN: both are admins, the existing balance is kept
	admins, err := svc.Admins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 2)

	u1, err := svc.Get(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, u1.IsAdmin())
	assert.Equal(t, int64(-50), u1.CurrentBalance)
}

func TestSettle(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	_, err := st.InsertAccount(ctx, &models.Account{ID: "U1", CurrentBalance: -780})
	require.NoError(t, err)

	acc, err := svc.Settle(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.CurrentBalance)

	_, err = svc.Settle(ctx, "ghost")
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestList_OrderedByBalanceDesc(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	for id, bal := range map[string]int64{"a": -100, "b": 200, "c": 0} {
		_, err := st.InsertAccount(ctx, &models.Account{ID: id, CurrentBalance: bal})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "c", list[1].ID)
	assert.Equal(t, "a", list[2].ID)
}

func TestHandler_SettleRequiresAdmin(t *testing.T) {
	// GIVEN: a debtor and tokens for a user and an admin
	svc, st := newTestService(t)
	_, err := st.InsertAccount(context.Background(), &models.Account{ID: "U1", CurrentBalance: -400})
	require.NoError(t, err)

	tokens := auth.NewTokens("test-secret-0123456789", time.Hour)
	r := chi.NewRouter()
	accounts.NewHandler(svc, auth.NewMiddleware(tokens)).RegisterRoutes(r)

	user, _, _ := tokens.Issue(&auth.Principal{AccountID: "U1", Role: models.RoleUser})
	admin, _, _ := tokens.Issue(&auth.Principal{AccountID: "A1", Role: models.RoleAdmin})

	call := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	// WHEN / THEN
	assert.Equal(t, http.StatusForbidden, call(http.MethodPost, "/accounts/U1/settle", user).Code)

	rec := call(http.MethodPost, "/accounts/U1/settle", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var acc models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	assert.Equal(t, int64(0), acc.CurrentBalance)

	assert.Equal(t, http.StatusNotFound, call(http.MethodPost, "/accounts/ghost/settle", admin).Code)

	rec = call(http.MethodGet, "/me", user)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	assert.Equal(t, "U1", acc.ID)
}
