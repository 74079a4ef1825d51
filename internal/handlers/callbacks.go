package handlers

import (
	"context"
	"strings"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/contextkeys"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/messages"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/pricing"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

func (bh *Handlers) HandleClickButton(ctx context.Context, b BotAPI, update *models.Update, userID, chatID int64) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	// every callback is answered so the client stops its spinner
	defer bh.answerCallback(ctx, b, cq.ID, "")

	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = strings.TrimSpace(cq.Data)
	}

	switch {
	case data == cbBuyAccess, data == cbBackToSubscription:
		bh.showScreen(ctx, b, cq, messages.ChooseDuration(), plansKeyboard())
	case data == cbBackToMain:
		bh.handleBackToMain(ctx, b, cq, userID)
	case data == cbShowServer:
		bh.handleShowServer(ctx, b, cq, userID, chatID)
	case data == cbInstructions:
		bh.handleInstructions(ctx, b, chatID)
	case strings.HasPrefix(data, pricing.PlanCallbackPrefix):
		bh.handlePlanChosen(ctx, b, cq, userID, data)
	case strings.HasPrefix(data, pricing.ServerCallbackPrefix):
		bh.handleServerChosen(ctx, b, cq, userID, data)
	default:
		zerolog.Ctx(ctx).Debug().Str("data", data).Msg("unknown callback data")
	}
}

// showScreen replaces the message the button belongs to, or sends a new one
// when that message is no longer accessible.
func (bh *Handlers) showScreen(ctx context.Context, b BotAPI, cq *models.CallbackQuery, text string, kb *models.InlineKeyboardMarkup) {
	var err error
	if msg := cq.Message.Message; msg != nil {
		params := &bot.EditMessageTextParams{
			ChatID:             msg.Chat.ID,
			MessageID:          msg.ID,
			Text:               text,
			ParseMode:          messages.ParseModeHTML,
			LinkPreviewOptions: noPreview(),
		}
		if kb != nil {
			params.ReplyMarkup = kb
		}
		_, err = b.EditMessageText(ctx, params)
	} else {
		params := &bot.SendMessageParams{
			ChatID:             cq.From.ID,
			Text:               text,
			ParseMode:          messages.ParseModeHTML,
			LinkPreviewOptions: noPreview(),
		}
		if kb != nil {
			params.ReplyMarkup = kb
		}
		_, err = b.SendMessage(ctx, params)
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to show screen")
	}
}

func (bh *Handlers) answerCallback(ctx context.Context, b BotAPI, callbackID, text string) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("failed to answer callback")
	}
}
