package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/middleware"
	"github.com/BatmanBruc/vpn-subscription-bot/store"
	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []*bot.SendMessageParams
	edited   []*bot.EditMessageTextParams
	answered []string
}

func (f *fakeBot) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return &models.Message{ID: len(f.sent)}, nil
}

func (f *fakeBot) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, p)
	return &models.Message{ID: p.MessageID}, nil
}

func (f *fakeBot) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, p.CallbackQueryID)
	return true, nil
}

func (f *fakeBot) lastSent(t *testing.T) *bot.SendMessageParams {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeBot) lastEdited(t *testing.T) *bot.EditMessageTextParams {
	t.Helper()
	require.NotEmpty(t, f.edited)
	return f.edited[len(f.edited)-1]
}

type fakeProvider struct {
	nextID int
	err    error
	terms  []types.PaymentTerms
}

func (f *fakeProvider) CreatePaymentLink(_ context.Context, _ int64, terms types.PaymentTerms) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.nextID++
	f.terms = append(f.terms, terms)
	id := "pay-" + string(rune('0'+f.nextID))
	return "https://pay.example/" + id, "yk_" + id, nil
}

func (f *fakeProvider) GetStatus(context.Context, string) (types.ProviderStatus, error) {
	return types.ProviderPending, nil
}

type fixture struct {
	store    *store.MemoryStore
	flow     *store.MemoryFlowStore
	provider *fakeProvider
	bot      *fakeBot
	handle   bot.HandlerFunc
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.NewMemoryStore(),
		flow:     store.NewMemoryFlowStore(time.Hour),
		provider: &fakeProvider{},
		bot:      &fakeBot{},
		now:      time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
	h := NewHandlers(f.store, f.store, f.store, f.provider, f.flow, Config{
		TrialDays:   3,
		TrialServer: "germany",
		FlowTTL:     time.Hour,
	}, zerolog.Nop())
	h.now = func() time.Time { return f.now }

	mw := middleware.NewMiddlewares(zerolog.Nop())
	f.handle = mw.Chain(func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		h.Handle(ctx, f.bot, update)
	})
	return f
}

func (f *fixture) command(text string, userID int64) {
	f.handle(context.Background(), nil, &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			Text: text,
			From: &models.User{ID: userID, Username: "alice", FirstName: "Alice"},
			Chat: models.Chat{ID: userID},
		},
	})
}

func (f *fixture) click(data string, userID int64) {
	f.handle(context.Background(), nil, &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-" + data,
			From: models.User{ID: userID},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: 77, Chat: models.Chat{ID: userID}},
			},
		},
	})
}

func TestStart_NewUserGetsTrial(t *testing.T) {
	f := newFixture(t)
	f.command("/start", 42)

	sub, err := f.store.GetSubscription(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "germany", sub.Server)
	assert.Empty(t, sub.PaymentLabel)
	assert.Equal(t, f.now.AddDate(0, 0, 3), sub.EndDate)

	msg := f.bot.lastSent(t)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "3 дн.")
	assert.Contains(t, msg.Text, "Германия")

	u, err := f.store.GetUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
}

func TestStart_ReturningUserNoSecondTrial(t *testing.T) {
	f := newFixture(t)
	f.command("/start", 42)
	_, err := f.store.DeleteSubscription(context.Background(), 42)
	require.NoError(t, err)

	f.command("/start@vpn_bot", 42)

	_, err = f.store.GetSubscription(context.Background(), 42)
	assert.ErrorIs(t, err, types.ErrSubscriptionNotFound)
	assert.Contains(t, f.bot.lastSent(t).Text, "тестовый период закончился")
}

func TestStart_ReturningUserWithActiveSubscription(t *testing.T) {
	f := newFixture(t)
	f.command("/start", 42)
	f.command("/start", 42)
	assert.Contains(t, f.bot.lastSent(t).Text, "Рады снова видеть")
}

func TestPurchaseFlow_CreatesPendingPayment(t *testing.T) {
	f := newFixture(t)

	f.click("buy_access", 42)
	assert.Equal(t, "Выберите срок подписки:", f.bot.lastEdited(t).Text)

	f.click("sub_3month", 42)
	assert.Equal(t, "Выберите сервер:", f.bot.lastEdited(t).Text)
	planID, err := f.flow.GetChosenPlan(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "3month", planID)

	f.click("server_germany", 42)

	p, err := f.store.GetPayment(context.Background(), "yk_pay-1")
	require.NoError(t, err)
	assert.Equal(t, types.PaymentPending, p.Status)
	assert.Equal(t, int64(42), p.UserID)
	assert.Equal(t, "germany", p.Server)
	assert.Equal(t, int64(430), p.Amount)
	assert.Equal(t, 90, p.Days)

	require.Len(t, f.provider.terms, 1)
	assert.Equal(t, int64(430), f.provider.terms[0].Amount)

	order := f.bot.lastEdited(t)
	assert.Contains(t, order.Text, "https://pay.example/pay-1")
	assert.Contains(t, order.Text, "430 ₽")

	_, err = f.flow.GetChosenPlan(context.Background(), 42)
	assert.ErrorIs(t, err, types.ErrFlowNotFound)

	assert.Equal(t, []string{"cb-buy_access", "cb-sub_3month", "cb-server_germany"}, f.bot.answered)
}

func TestPurchaseFlow_ServerWithoutPlan(t *testing.T) {
	f := newFixture(t)
	f.click("server_germany", 42)

	assert.Contains(t, f.bot.lastEdited(t).Text, "устарел")
	pending, err := f.store.ListPendingPayments(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPurchaseFlow_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("yookassa down")

	f.click("sub_1month", 42)
	f.click("server_germany", 42)

	assert.Contains(t, f.bot.lastEdited(t).Text, "Ошибка создания платежа")
	pending, err := f.store.ListPendingPayments(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPurchaseFlow_UnknownPlanIgnored(t *testing.T) {
	f := newFixture(t)
	f.click("sub_12month", 42)

	assert.Empty(t, f.bot.edited)
	assert.Equal(t, []string{"cb-sub_12month"}, f.bot.answered)
}

func TestBackToMainClearsFlow(t *testing.T) {
	f := newFixture(t)
	f.click("sub_1month", 42)
	f.click("back_to_main", 42)

	_, err := f.flow.GetChosenPlan(context.Background(), 42)
	assert.ErrorIs(t, err, types.ErrFlowNotFound)
	assert.Contains(t, f.bot.lastEdited(t).Text, "управления VPN")
}

func TestShowServer(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.ReplaceSubscription(context.Background(), types.SubscriptionRecord{
			UserID: 42, Server: "germany", PaymentLabel: "yk_1",
			StartDate: f.now, EndDate: f.now.AddDate(0, 0, 30),
		}))
		f.click("show_server", 42)
		assert.Contains(t, f.bot.lastSent(t).Text, "Германия")
		assert.NotContains(t, f.bot.lastSent(t).Text, "👤")
	})

	t.Run("greets registered user", func(t *testing.T) {
		f := newFixture(t)
		f.command("/start", 42)
		require.NoError(t, f.store.ReplaceSubscription(context.Background(), types.SubscriptionRecord{
			UserID: 42, Server: "germany", PaymentLabel: "yk_1",
			StartDate: f.now, EndDate: f.now.AddDate(0, 0, 30),
		}))
		f.click("show_server", 42)
		text := f.bot.lastSent(t).Text
		assert.Contains(t, text, "👤 Alice")
		assert.Contains(t, text, "Германия")
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.ReplaceSubscription(context.Background(), types.SubscriptionRecord{
			UserID: 42, Server: "germany",
			StartDate: f.now.AddDate(0, 0, -10), EndDate: f.now.AddDate(0, 0, -1),
		}))
		f.click("show_server", 42)
		assert.Contains(t, f.bot.lastEdited(t).Text, "нет активной подписки")
	})

	t.Run("none", func(t *testing.T) {
		f := newFixture(t)
		f.click("show_server", 42)
		assert.Contains(t, f.bot.lastEdited(t).Text, "нет активной подписки")
	})
}

func TestInstructions(t *testing.T) {
	f := newFixture(t)
	f.click("instructions", 42)
	assert.Contains(t, f.bot.lastSent(t).Text, "V2RayBox")
}

func TestTextMessageGetsMenu(t *testing.T) {
	f := newFixture(t)
	f.command("hello", 42)
	msg := f.bot.lastSent(t)
	require.NotNil(t, msg.ReplyMarkup)
}

func TestInaccessibleMessageFallsBackToSend(t *testing.T) {
	f := newFixture(t)
	f.handle(context.Background(), nil, &models.Update{
		ID: 3,
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb",
			From: models.User{ID: 42},
			Data: "buy_access",
		},
	})
	assert.Empty(t, f.bot.edited)
	assert.Equal(t, "Выберите срок подписки:", f.bot.lastSent(t).Text)
}
