package handlers

import (
	"context"
	"errors"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/contextkeys"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/messages"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/pricing"
	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

func (bh *Handlers) HandleCommand(ctx context.Context, b BotAPI, update *models.Update, userID, chatID int64) {
	cmd, _ := contextkeys.GetCommand(ctx)

	switch cmd {
	case "start":
		bh.handleStart(ctx, b, update, userID, chatID)
	default:
		bh.sendMainMenu(ctx, b, chatID, messages.MainMenu())
	}
}

// handleStart registers the user. First-time users get a trial subscription;
// returning users get the menu.
func (bh *Handlers) handleStart(ctx context.Context, b BotAPI, update *models.Update, userID, chatID int64) {
	log := zerolog.Ctx(ctx)
	if err := bh.flow.ClearChosenPlan(ctx, userID); err != nil {
		log.Warn().Err(err).Msg("failed to clear purchase flow")
	}

	u := types.User{UserID: userID}
	if update.Message != nil && update.Message.From != nil {
		u.Username = update.Message.From.Username
		u.FirstName = update.Message.From.FirstName
	}
	created, err := bh.users.RegisterUser(ctx, u)
	if err != nil {
		log.Error().Err(err).Msg("failed to register user")
		bh.sendError(ctx, b, chatID)
		return
	}

	if created && bh.cfg.TrialDays > 0 {
		start := bh.now()
		trial := types.SubscriptionRecord{
			UserID:    userID,
			Server:    bh.cfg.TrialServer,
			StartDate: start,
			EndDate:   start.AddDate(0, 0, bh.cfg.TrialDays),
		}
		if err := bh.subs.ReplaceSubscription(ctx, trial); err != nil {
			log.Error().Err(err).Msg("failed to grant trial")
			bh.sendError(ctx, b, chatID)
			return
		}
		log.Info().Time("until", trial.EndDate).Str("server", trial.Server).Msg("trial granted to new user")

		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        messages.WelcomeTrial(pricing.ServerTitle(trial.Server), bh.cfg.TrialDays, trial.EndDate),
			ParseMode:   messages.ParseModeHTML,
			ReplyMarkup: welcomeKeyboard(),
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to send welcome message")
		}
		return
	}

	text := messages.WelcomeBackExpired()
	sub, err := bh.subs.GetSubscription(ctx, userID)
	switch {
	case err == nil && sub.ActiveAt(bh.now()):
		text = messages.WelcomeBack()
	case err != nil && !errors.Is(err, types.ErrSubscriptionNotFound):
		log.Warn().Err(err).Msg("failed to load subscription")
	}
	bh.sendMainMenu(ctx, b, chatID, text)
}
