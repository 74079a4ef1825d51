package middleware

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/contextkeys"
)

type Middlewares struct {
	log zerolog.Logger
}

func NewMiddlewares(log zerolog.Logger) *Middlewares {
	return &Middlewares{log: log}
}

// Chain wraps next with recovery, identity and message analysis, outermost first.
func (m *Middlewares) Chain(next bot.HandlerFunc) bot.HandlerFunc {
	return m.RecoverMiddleware(m.IdentifyMiddleware(m.AnalyzeMessageMiddleware(next)))
}

func (m *Middlewares) RecoverMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		defer func() {
			if r := recover(); r != nil {
				m.log.Error().Interface("panic", r).Int64("update_id", update.ID).Msg("handler panicked")
			}
		}()
		next(ctx, b, update)
	}
}

// IdentifyMiddleware drops updates that carry no user or chat.
func (m *Middlewares) IdentifyMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		var (
			userID int64
			chatID int64
		)

		switch {
		case update.Message != nil && update.Message.From != nil:
			userID = update.Message.From.ID
			chatID = update.Message.Chat.ID
		case update.CallbackQuery != nil:
			userID = update.CallbackQuery.From.ID
			chatID = getChatIDFromMaybeInaccessibleMessage(update.CallbackQuery.Message)
			if chatID == 0 {
				chatID = userID
			}
		default:
			return
		}

		if userID == 0 || chatID == 0 {
			m.log.Debug().Int64("update_id", update.ID).Msg("update without identity skipped")
			return
		}

		next(contextkeys.WithIdentity(ctx, userID, chatID), b, update)
	}
}

func getChatIDFromMaybeInaccessibleMessage(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}

func (m *Middlewares) AnalyzeMessageMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.CallbackQuery != nil {
			ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeClickButton)
			ctx = contextkeys.WithCallbackData(ctx, strings.TrimSpace(update.CallbackQuery.Data))
			next(ctx, b, update)
			return
		}

		if update.Message != nil {
			if cmd, ok := parseCommand(update.Message.Text); ok {
				ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeCommand)
				ctx = contextkeys.WithCommand(ctx, cmd)
			} else if strings.TrimSpace(update.Message.Text) != "" {
				ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeText)
			} else {
				ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeUnknown)
			}
		}

		next(ctx, b, update)
	}
}

// parseCommand turns "/start@vpn_bot payload" into "start".
func parseCommand(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd == "" {
		return "", false
	}
	return strings.ToLower(cmd), true
}
