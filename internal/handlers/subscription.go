package handlers

import (
	"context"
	"errors"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/messages"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/pricing"
	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

func (bh *Handlers) handlePlanChosen(ctx context.Context, b BotAPI, cq *models.CallbackQuery, userID int64, data string) {
	plan, ok := pricing.PlanFromCallback(data)
	if !ok {
		zerolog.Ctx(ctx).Debug().Str("data", data).Msg("unknown plan")
		return
	}
	if err := bh.flow.SetChosenPlan(ctx, userID, plan.ID, bh.cfg.FlowTTL); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to save chosen plan")
		bh.sendError(ctx, b, cq.From.ID)
		return
	}
	bh.showScreen(ctx, b, cq, messages.ChooseServer(), serversKeyboard())
}

// handleServerChosen creates the provider payment and records it as pending.
// The link is only shown once the record exists, so a settlement signal never
// arrives for a label the store has not seen.
func (bh *Handlers) handleServerChosen(ctx context.Context, b BotAPI, cq *models.CallbackQuery, userID int64, data string) {
	server, ok := pricing.ServerFromCallback(data)
	if !ok {
		zerolog.Ctx(ctx).Debug().Str("data", data).Msg("unknown server")
		return
	}

	planID, err := bh.flow.GetChosenPlan(ctx, userID)
	if err != nil {
		if !errors.Is(err, types.ErrFlowNotFound) {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to load chosen plan")
		}
		bh.showScreen(ctx, b, cq, messages.PurchaseExpired(), plansKeyboard())
		return
	}
	plan, ok := pricing.PlanByID(planID)
	if !ok {
		bh.showScreen(ctx, b, cq, messages.PurchaseExpired(), plansKeyboard())
		return
	}

	log := zerolog.Ctx(ctx).With().Str("plan", plan.ID).Str("server", server.ID).Logger()

	link, label, err := bh.provider.CreatePaymentLink(ctx, userID, types.PaymentTerms{
		Server: server.ID,
		Amount: plan.Amount,
		Days:   plan.Days,
		Title:  plan.Label(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create payment link")
		bh.showScreen(ctx, b, cq, messages.PaymentLinkFailed(), backToPlansKeyboard())
		return
	}

	err = bh.payments.CreatePayment(ctx, types.PaymentRecord{
		Label:  label,
		UserID: userID,
		Server: server.ID,
		Amount: plan.Amount,
		Days:   plan.Days,
		Status: types.PaymentPending,
	})
	if err != nil {
		log.Error().Err(err).Str("label", label).Msg("failed to record pending payment")
		bh.showScreen(ctx, b, cq, messages.PaymentLinkFailed(), backToPlansKeyboard())
		return
	}

	if err := bh.flow.ClearChosenPlan(ctx, userID); err != nil {
		log.Warn().Err(err).Msg("failed to clear purchase flow")
	}
	log.Info().Str("label", label).Int64("amount", plan.Amount).Msg("payment link issued")

	bh.showScreen(ctx, b, cq, messages.OrderDetails(plan.Label(), server.Title, plan.Amount, link), nil)
}
