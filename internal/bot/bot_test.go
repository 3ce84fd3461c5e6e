package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/snack-bot/internal/bot/filters"
	"serotonyl.ru/snack-bot/internal/db/memory"
	"serotonyl.ru/snack-bot/internal/features/accounts"
	"serotonyl.ru/snack-bot/internal/features/ledger"
	"serotonyl.ru/snack-bot/internal/features/requests"
	"serotonyl.ru/snack-bot/internal/models"
)

// =============================================================================
// Фейки
// =============================================================================

type fakeMessenger struct {
	mu      sync.Mutex
	replies map[string]string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{replies: map[string]string{}}
}

func (m *fakeMessenger) Reply(_ context.Context, token, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[token] = text
	return nil
}

func (m *fakeMessenger) Push(context.Context, string, string) error { return nil }

func (m *fakeMessenger) Profile(_ context.Context, userID string) (*models.Profile, error) {
	return &models.Profile{DisplayName: "name-" + userID}, nil
}

func (m *fakeMessenger) reply(token string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replies[token]
}

type fakeItems struct {
	items []*models.Item
	err   error
}

func (f fakeItems) ListInStock(context.Context) ([]*models.Item, error) { return f.items, f.err }

type consumeCall struct {
	account, name string
	quantity      int
}

type fakeConsumer struct {
	calls   []consumeCall
	receipt *ledger.Receipt
	err     error
}

func (f *fakeConsumer) ConsumeByName(_ context.Context, accountID, name string, quantity int) (*ledger.Receipt, error) {
	f.calls = append(f.calls, consumeCall{accountID, name, quantity})
	return f.receipt, f.err
}

type fakeEnsurer struct {
	ensured []string
	account *models.Account
	err     error
}

func (f *fakeEnsurer) EnsureAccount(_ context.Context, id string, _ accounts.ProfileSource) (*models.Account, error) {
	f.ensured = append(f.ensured, id)
	if f.err != nil {
		return nil, f.err
	}
	if f.account != nil {
		return f.account, nil
	}
	return &models.Account{ID: id}, nil
}

func textEvent(text string) *filters.TextEvent {
	return &filters.TextEvent{UserID: "U1", ReplyToken: "rt", Text: text}
}

// =============================================================================
// Парсер
// =============================================================================

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	tests := []struct {
		text string
		cmd  Command
		args []string
	}{
		{"一覧", CmdList, nil},
		{"  リスト  ", CmdList, nil},
		{"ヘルプ", CmdHelp, nil},
		{"使い方", CmdHelp, nil},
		{"消費 チョコ", CmdConsume, []string{"チョコ"}},
		{"消費 チョコ 3", CmdConsume, []string{"チョコ", "3"}},
		{"消費", CmdConsume, []string{}},
		{"一覧 全部", CmdUnknown, nil},
		{"こんにちは", CmdUnknown, nil},
		{"", CmdUnknown, nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, args := p.ParseCommand(tt.text)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestParseConsumeArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantName string
		wantQty  int
		wantErr  error
	}{
		{"no args", nil, "", 0, errUsage},
		{"default quantity", []string{"チョコ"}, "チョコ", 1, nil},
		{"explicit quantity", []string{"チョコ", "4"}, "チョコ", 4, nil},
		{"zero", []string{"チョコ", "0"}, "チョコ", 0, errBadQuantity},
		{"negative", []string{"チョコ", "-1"}, "チョコ", 0, errBadQuantity},
		{"not a number", []string{"チョコ", "abc"}, "チョコ", 0, errBadQuantity},
		{"trailing garbage", []string{"チョコ", "2個"}, "チョコ", 0, errBadQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, qty, err := ParseConsumeArgs(tt.args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantQty, qty)
		})
	}
}

// =============================================================================
// Команды
// =============================================================================

func TestHandleEvent_List(t *testing.T) {
	// GIVEN: два товара в наличии
	m := newFakeMessenger()
	items := fakeItems{items: []*models.Item{
		{ID: "1", Name: "チョコ", Stock: 5},
		{ID: "2", Name: "グミ", Stock: 2},
	}}
	ens := &fakeEnsurer{}
	b := New(m, items, &fakeConsumer{}, ens)

	// WHEN: пользователь пишет 一覧
	b.HandleEvent(context.Background(), textEvent("一覧"))

	// THEN: ответ перечисляет товары, аккаунт создан заранее
	assert.Equal(t, "📦 在庫のあるお菓子:\n\n・チョコ (残り: 5個)\n・グミ (残り: 2個)", m.reply("rt"))
	assert.Equal(t, []string{"U1"}, ens.ensured)
}

func TestHandleEvent_ListEmptyAndError(t *testing.T) {
	m := newFakeMessenger()
	New(m, fakeItems{}, &fakeConsumer{}, &fakeEnsurer{}).HandleEvent(context.Background(), textEvent("リスト"))
	assert.Equal(t, msgNoStock, m.reply("rt"))

	m = newFakeMessenger()
	New(m, fakeItems{err: errors.New("db")}, &fakeConsumer{}, &fakeEnsurer{}).HandleEvent(context.Background(), textEvent("一覧"))
	assert.Equal(t, msgError, m.reply("rt"))
}

func TestHandleEvent_HelpAndUnknown(t *testing.T) {
	m := newFakeMessenger()
	b := New(m, fakeItems{}, &fakeConsumer{}, &fakeEnsurer{})

	b.HandleEvent(context.Background(), textEvent("ヘルプ"))
	assert.Equal(t, msgHelp, m.reply("rt"))

	b.HandleEvent(context.Background(), textEvent("なにか"))
	assert.Equal(t, msgUnknown, m.reply("rt"))
}

func TestHandleEvent_EnsureFailureDoesNotBlockCommand(t *testing.T) {
	m := newFakeMessenger()
	b := New(m, fakeItems{}, &fakeConsumer{}, &fakeEnsurer{err: errors.New("db")})

	b.HandleEvent(context.Background(), textEvent("ヘルプ"))
	assert.Equal(t, msgHelp, m.reply("rt"))
}

func TestHandleEvent_ConsumeSuccess(t *testing.T) {
	m := newFakeMessenger()
	c := &fakeConsumer{receipt: &ledger.Receipt{ItemName: "チョコ", Quantity: 2, NewStock: 3}}
	b := New(m, fakeItems{}, c, &fakeEnsurer{})

	b.HandleEvent(context.Background(), textEvent("消費 チョコ 2"))

	require.Len(t, c.calls, 1)
	assert.Equal(t, consumeCall{"U1", "チョコ", 2}, c.calls[0])
	assert.Equal(t, "✅ チョコ を 2個 消費しました。\n残り: 3個", m.reply("rt"))
}

func TestHandleEvent_BadQuantityNeverReachesLedger(t *testing.T) {
	for _, text := range []string{"消費 チョコ 0", "消費 チョコ -1", "消費 チョコ abc"} {
		t.Run(text, func(t *testing.T) {
			m := newFakeMessenger()
			c := &fakeConsumer{}
			New(m, fakeItems{}, c, &fakeEnsurer{}).HandleEvent(context.Background(), textEvent(text))

			assert.Empty(t, c.calls)
			assert.Equal(t, msgBadQuantity, m.reply("rt"))
		})
	}
}

func TestHandleEvent_ConsumeErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
		want string
	}{
		{"usage", "消費", nil, msgConsumeUsage},
		{"not found", "消費 ガム", ledger.ErrItemNotFound, "「ガム」が見つかりませんでした。"},
		{"shortage", "消費 チョコ 9", &ledger.StockShortageError{Available: 3}, "在庫が足りません。現在の在庫: 3個"},
		{"internal", "消費 チョコ", errors.New("db down"), msgError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFakeMessenger()
			c := &fakeConsumer{err: tt.err}
			New(m, fakeItems{}, c, &fakeEnsurer{}).HandleEvent(context.Background(), textEvent(tt.text))
			assert.Equal(t, tt.want, m.reply("rt"))
		})
	}
}

// =============================================================================
// Заявки
// =============================================================================

type createCall struct {
	account, name, item, description string
}

type fakeRequests struct {
	calls []createCall
	err   error
}

func (f *fakeRequests) CreateFromChat(_ context.Context, accountID, accountName, itemName, description string) (*models.Request, error) {
	f.calls = append(f.calls, createCall{accountID, accountName, itemName, description})
	if f.err != nil {
		return nil, f.err
	}
	return &models.Request{ID: "r1"}, nil
}

func TestIntake_CreatesRequest(t *testing.T) {
	// GIVEN: известный пользователь
	m := newFakeMessenger()
	reqs := &fakeRequests{}
	ens := &fakeEnsurer{account: &models.Account{ID: "U1", DisplayName: "佐藤"}}
	in := NewIntake(m, ens, reqs)

	// WHEN: он пишет название
	in.HandleEvent(context.Background(), textEvent("ポッキー"))

	// THEN: заявка создана и подтверждена
	require.Len(t, reqs.calls, 1)
	assert.Equal(t, createCall{"U1", "佐藤", "ポッキー", "LINE Botから送信: ポッキー"}, reqs.calls[0])
	assert.Equal(t, intakeAckText("ポッキー"), m.reply("rt"))
}

func TestIntake_FallbackNameAndErrors(t *testing.T) {
	m := newFakeMessenger()
	reqs := &fakeRequests{err: errors.New("db")}
	in := NewIntake(m, &fakeEnsurer{err: errors.New("db")}, reqs)

	in.HandleEvent(context.Background(), textEvent("グミ"))

	require.Len(t, reqs.calls, 1)
	assert.Equal(t, models.UnknownDisplayName, reqs.calls[0].name)
	assert.Equal(t, msgIntakeError, m.reply("rt"))
}

func TestIntake_IgnoresEmptyText(t *testing.T) {
	m := newFakeMessenger()
	reqs := &fakeRequests{}
	NewIntake(m, &fakeEnsurer{}, reqs).HandleEvent(context.Background(), textEvent(""))

	assert.Empty(t, reqs.calls)
	assert.Empty(t, m.reply("rt"))
}

func TestIntake_LongMessageIsStillStored(t *testing.T) {
	// GIVEN: приёмщик поверх настоящих сервисов и хранилища в памяти
	ctx := context.Background()
	st := memory.New()
	reqs := requests.NewService(st)
	m := newFakeMessenger()
	in := NewIntake(m, accounts.NewService(st), reqs)
	long := strings.Repeat("あ", 201)

	// WHEN: пользователь присылает сообщение длиннее лимита формы
	in.HandleEvent(ctx, textEvent(long))

	// THEN: заявка сохранена с обрезанным названием и полным текстом в описании
	list, err := reqs.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.RequestRequested, list[0].Status)
	assert.Equal(t, strings.Repeat("あ", 200), list[0].RequestedItemName)
	assert.Equal(t, "LINE Botから送信: "+long, list[0].Description)
	assert.Equal(t, intakeAckText(long), m.reply("rt"))
}
