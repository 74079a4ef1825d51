package handlers

import (
	"context"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/contextkeys"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/messages"
	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

// BotAPI is the subset of *bot.Bot the handlers call.
type BotAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type Config struct {
	TrialDays   int
	TrialServer string
	// FlowTTL bounds how long a chosen plan waits for the server choice.
	FlowTTL time.Duration
}

type Handlers struct {
	users    types.UserStore
	payments types.PaymentStore
	subs     types.SubscriptionStore
	provider types.PaymentProvider
	flow     types.FlowStore
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
}

func NewHandlers(
	users types.UserStore,
	payments types.PaymentStore,
	subs types.SubscriptionStore,
	provider types.PaymentProvider,
	flow types.FlowStore,
	cfg Config,
	log zerolog.Logger,
) *Handlers {
	if cfg.FlowTTL <= 0 {
		cfg.FlowTTL = time.Hour
	}
	return &Handlers{
		users:    users,
		payments: payments,
		subs:     subs,
		provider: provider,
		flow:     flow,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MainHandler is registered with the bot behind the middleware chain.
func (bh *Handlers) MainHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	bh.Handle(ctx, b, update)
}

func (bh *Handlers) Handle(ctx context.Context, b BotAPI, update *models.Update) {
	userID, ok := contextkeys.GetUserID(ctx)
	if !ok {
		bh.log.Error().Int64("update_id", update.ID).Msg("user id missing from context")
		return
	}
	chatID, _ := contextkeys.GetChatID(ctx)
	messageType, _ := contextkeys.GetMessageType(ctx)

	log := bh.log.With().Int64("user_id", userID).Str("type", string(messageType)).Logger()
	ctx = log.WithContext(ctx)

	switch messageType {
	case contextkeys.MessageTypeCommand:
		bh.HandleCommand(ctx, b, update, userID, chatID)
	case contextkeys.MessageTypeClickButton:
		bh.HandleClickButton(ctx, b, update, userID, chatID)
	case contextkeys.MessageTypeText:
		bh.sendMainMenu(ctx, b, chatID, messages.MainMenu())
	default:
		log.Debug().Msg("unsupported update ignored")
	}
}

func (bh *Handlers) sendError(ctx context.Context, b BotAPI, chatID int64) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.ErrorDefault(),
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to send error message")
	}
}
