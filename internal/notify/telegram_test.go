package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	params   []*bot.SendMessageParams
	err      error
	deadline bool
}

func (f *fakeSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	_, f.deadline = ctx.Deadline()
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: 1}, nil
}

func TestTelegramNotifier_Notify(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, time.Second)

	require.NoError(t, n.Notify(context.Background(), 42, "<b>hi</b>"))

	require.Len(t, sender.params, 1)
	assert.Equal(t, int64(42), sender.params[0].ChatID)
	assert.Equal(t, "<b>hi</b>", sender.params[0].Text)
	assert.Equal(t, models.ParseModeHTML, sender.params[0].ParseMode)
	assert.True(t, sender.deadline)
}

func TestTelegramNotifier_PropagatesError(t *testing.T) {
	sender := &fakeSender{err: errors.New("forbidden: bot was blocked by the user")}
	n := NewTelegramNotifier(sender, 0)

	err := n.Notify(context.Background(), 42, "x")
	assert.EqualError(t, err, "forbidden: bot was blocked by the user")
}
