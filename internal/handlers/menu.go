package handlers

import (
	"context"
	"errors"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/messages"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/pricing"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/utils"
	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

const (
	cbBuyAccess          = "buy_access"
	cbShowServer         = "show_server"
	cbInstructions       = "instructions"
	cbBackToMain         = "back_to_main"
	cbBackToSubscription = "back_to_subscription"
)

func mainKeyboard() *models.InlineKeyboardMarkup {
	return utils.BuildInlineKeyboard([]utils.Button{
		{Text: messages.BtnBuy(), CallbackData: cbBuyAccess},
		{Text: messages.BtnShowServer(), CallbackData: cbShowServer},
		{Text: messages.BtnInstructions(), CallbackData: cbInstructions},
	}, 1)
}

func welcomeKeyboard() *models.InlineKeyboardMarkup {
	return utils.BuildInlineKeyboard([]utils.Button{
		{Text: messages.BtnShowServer(), CallbackData: cbShowServer},
		{Text: messages.BtnInstructions(), CallbackData: cbInstructions},
	}, 1)
}

func plansKeyboard() *models.InlineKeyboardMarkup {
	buttons := make([]utils.Button, 0, len(pricing.Plans())+1)
	for _, p := range pricing.Plans() {
		buttons = append(buttons, utils.Button{Text: p.Label(), CallbackData: p.CallbackData()})
	}
	buttons = append(buttons, utils.Button{Text: messages.BtnBack(), CallbackData: cbBackToMain})
	return utils.BuildInlineKeyboard(buttons, 1)
}

func serversKeyboard() *models.InlineKeyboardMarkup {
	buttons := make([]utils.Button, 0, len(pricing.Servers())+1)
	for _, s := range pricing.Servers() {
		buttons = append(buttons, utils.Button{Text: s.Title, CallbackData: s.CallbackData()})
	}
	buttons = append(buttons, utils.Button{Text: messages.BtnBack(), CallbackData: cbBackToSubscription})
	return utils.BuildInlineKeyboard(buttons, 1)
}

func buyKeyboard() *models.InlineKeyboardMarkup {
	return utils.BuildInlineKeyboard([]utils.Button{
		{Text: messages.BtnBuy(), CallbackData: cbBuyAccess},
	}, 1)
}

func backToPlansKeyboard() *models.InlineKeyboardMarkup {
	return utils.BuildInlineKeyboard([]utils.Button{
		{Text: messages.BtnBack(), CallbackData: cbBackToSubscription},
	}, 1)
}

func (bh *Handlers) sendMainMenu(ctx context.Context, b BotAPI, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               text,
		ParseMode:          messages.ParseModeHTML,
		ReplyMarkup:        mainKeyboard(),
		LinkPreviewOptions: noPreview(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to send main menu")
	}
}

func (bh *Handlers) handleBackToMain(ctx context.Context, b BotAPI, cq *models.CallbackQuery, userID int64) {
	if err := bh.flow.ClearChosenPlan(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to clear purchase flow")
	}
	bh.showScreen(ctx, b, cq, messages.MainMenu(), mainKeyboard())
}

func (bh *Handlers) handleShowServer(ctx context.Context, b BotAPI, cq *models.CallbackQuery, userID, chatID int64) {
	log := zerolog.Ctx(ctx)
	sub, err := bh.subs.GetSubscription(ctx, userID)
	if err != nil && !errors.Is(err, types.ErrSubscriptionNotFound) {
		log.Error().Err(err).Msg("failed to load subscription")
		bh.sendError(ctx, b, chatID)
		return
	}
	if err != nil || !sub.ActiveAt(bh.now()) {
		bh.showScreen(ctx, b, cq, messages.NoSubscription(), buyKeyboard())
		return
	}

	name := ""
	if u, err := bh.users.GetUser(ctx, userID); err == nil {
		name = u.FirstName
	} else if !errors.Is(err, types.ErrUserNotFound) {
		log.Warn().Err(err).Msg("failed to load user")
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.SubscriptionInfo(name, pricing.ServerTitle(sub.Server), sub.EndDate),
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to send subscription info")
	}
}

func (bh *Handlers) handleInstructions(ctx context.Context, b BotAPI, chatID int64) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.Instructions(),
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to send instructions")
	}
}

func noPreview() *models.LinkPreviewOptions {
	disabled := true
	return &models.LinkPreviewOptions{IsDisabled: &disabled}
}
