package middleware

import (
	"context"
	"testing"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/contextkeys"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cases := map[string]struct {
		cmd string
		ok  bool
	}{
		"/start":              {"start", true},
		"/START":              {"start", true},
		"/start@vpn_bot":      {"start", true},
		"/start ref_123":      {"start", true},
		"  /help  ":           {"help", true},
		"hello":               {"", false},
		"/":                   {"", false},
		"/@vpn_bot":           {"", false},
		"":                    {"", false},
		"text with /start in": {"", false},
	}
	for in, want := range cases {
		cmd, ok := parseCommand(in)
		assert.Equal(t, want.ok, ok, in)
		assert.Equal(t, want.cmd, cmd, in)
	}
}

func capture(t *testing.T, update *models.Update) (context.Context, bool) {
	t.Helper()
	var got context.Context
	called := false
	h := NewMiddlewares(zerolog.Nop()).Chain(func(ctx context.Context, _ *bot.Bot, _ *models.Update) {
		got = ctx
		called = true
	})
	h(context.Background(), nil, update)
	return got, called
}

func TestChain_Command(t *testing.T) {
	ctx, called := capture(t, &models.Update{Message: &models.Message{
		Text: "/start",
		From: &models.User{ID: 5},
		Chat: models.Chat{ID: 5},
	}})
	require.True(t, called)

	uid, ok := contextkeys.GetUserID(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(5), uid)
	mt, _ := contextkeys.GetMessageType(ctx)
	assert.Equal(t, contextkeys.MessageTypeCommand, mt)
	cmd, _ := contextkeys.GetCommand(ctx)
	assert.Equal(t, "start", cmd)
}

func TestChain_Callback(t *testing.T) {
	ctx, called := capture(t, &models.Update{CallbackQuery: &models.CallbackQuery{
		From: models.User{ID: 7},
		Data: " buy_access ",
		Message: models.MaybeInaccessibleMessage{
			InaccessibleMessage: &models.InaccessibleMessage{Chat: models.Chat{ID: 70}},
		},
	}})
	require.True(t, called)

	chatID, _ := contextkeys.GetChatID(ctx)
	assert.Equal(t, int64(70), chatID)
	mt, _ := contextkeys.GetMessageType(ctx)
	assert.Equal(t, contextkeys.MessageTypeClickButton, mt)
	data, _ := contextkeys.GetCallbackData(ctx)
	assert.Equal(t, "buy_access", data)
}

func TestChain_DropsAnonymousUpdates(t *testing.T) {
	_, called := capture(t, &models.Update{Message: &models.Message{Text: "hi", Chat: models.Chat{ID: 1}}})
	assert.False(t, called)

	_, called = capture(t, &models.Update{})
	assert.False(t, called)
}

func TestChain_RecoversPanics(t *testing.T) {
	h := NewMiddlewares(zerolog.Nop()).Chain(func(context.Context, *bot.Bot, *models.Update) {
		panic("boom")
	})
	assert.NotPanics(t, func() {
		h(context.Background(), nil, &models.Update{Message: &models.Message{
			Text: "/start", From: &models.User{ID: 1}, Chat: models.Chat{ID: 1},
		}})
	})
}
