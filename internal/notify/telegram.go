package notify

import (
	"context"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/messages"
	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Sender is the part of *bot.Bot the notifier uses.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type TelegramNotifier struct {
	sender  Sender
	timeout time.Duration
}

var _ types.Notifier = (*TelegramNotifier)(nil)

func NewTelegramNotifier(sender Sender, timeout time.Duration) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TelegramNotifier{sender: sender, timeout: timeout}
}

// Notify sends an HTML message to the user's private chat, which shares the user id.
func (n *TelegramNotifier) Notify(ctx context.Context, userID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    userID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	return err
}
