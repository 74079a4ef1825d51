// Package reconcile applies payment settlement signals to the payment and
// subscription stores exactly once per payment label.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/messages"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/metrics"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/pricing"
	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/rs/zerolog"
)

type Result string

const (
	ResultGranted          Result = "granted"
	ResultCanceled         Result = "canceled"
	ResultRevoked          Result = "revoked"
	ResultRefunded         Result = "refunded"
	ResultAlreadyProcessed Result = "already_processed"
	ResultUnknownPayment   Result = "unknown_payment"
	ResultIgnored          Result = "ignored"
	ResultError            Result = "error"
)

const notifyTimeout = 5 * time.Second

// Applier is what the ingress paths need from the engine.
type Applier interface {
	Apply(ctx context.Context, sig types.SettlementSignal) (Result, error)
}

type Engine struct {
	store    types.SettlementStore
	notifier types.Notifier
	metrics  metrics.Recorder
	log      zerolog.Logger
	now      func() time.Time
	locks    *keyedMutex
}

var _ Applier = (*Engine)(nil)

type Option func(*Engine)

func WithMetrics(m metrics.Recorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(store types.SettlementStore, notifier types.Notifier, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: notifier,
		metrics:  metrics.Noop{},
		log:      zerolog.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply settles one signal. The returned error is non-nil only for store
// failures worth retrying; every other condition is reported through Result.
func (e *Engine) Apply(ctx context.Context, sig types.SettlementSignal) (Result, error) {
	unlock := e.locks.Lock(sig.Label)
	defer unlock()

	log := e.log.With().
		Str("label", sig.Label).
		Str("outcome", string(sig.Outcome)).
		Str("source", string(sig.Source)).
		Logger()

	res, err := e.apply(ctx, sig, log)
	if err != nil {
		res = ResultError
		log.Error().Err(err).Msg("settlement failed")
	}
	e.metrics.RecordSettlement(string(sig.Source), string(sig.Outcome), string(res))
	return res, err
}

func (e *Engine) apply(ctx context.Context, sig types.SettlementSignal, log zerolog.Logger) (Result, error) {
	p, err := e.store.GetPayment(ctx, sig.Label)
	if errors.Is(err, types.ErrPaymentNotFound) {
		log.Warn().Msg("settlement for unknown payment discarded")
		return ResultUnknownPayment, nil
	}
	if err != nil {
		return "", fmt.Errorf("get payment %s: %w", sig.Label, err)
	}

	switch sig.Outcome {
	case types.OutcomeSucceeded:
		if !p.IsPending() {
			log.Debug().Str("status", string(p.Status)).Msg("payment already processed")
			return ResultAlreadyProcessed, nil
		}
		return e.grant(ctx, sig.Label, log)
	case types.OutcomeCanceled:
		if !p.IsPending() {
			log.Debug().Str("status", string(p.Status)).Msg("payment already processed")
			return ResultAlreadyProcessed, nil
		}
		return e.cancel(ctx, sig.Label, log)
	case types.OutcomeRefunded:
		if p.RefundedAt != nil || p.Status == types.PaymentFailed {
			log.Debug().Str("status", string(p.Status)).Msg("refund already processed")
			return ResultAlreadyProcessed, nil
		}
		return e.refund(ctx, sig.Label, log)
	default:
		log.Warn().Msg("unsupported settlement outcome ignored")
		return ResultIgnored, nil
	}
}

func (e *Engine) grant(ctx context.Context, label string, log zerolog.Logger) (Result, error) {
	start := e.now()
	p, sub, err := e.store.SettleSuccess(ctx, label, func(p types.PaymentRecord) types.SubscriptionRecord {
		return types.SubscriptionRecord{
			UserID:       p.UserID,
			Server:       p.Server,
			PaymentLabel: p.Label,
			StartDate:    start,
			EndDate:      start.AddDate(0, 0, p.Days),
		}
	})
	if errors.Is(err, types.ErrAlreadyProcessed) {
		log.Debug().Msg("payment settled concurrently")
		return ResultAlreadyProcessed, nil
	}
	if errors.Is(err, types.ErrPaymentNotFound) {
		return ResultUnknownPayment, nil
	}
	if err != nil {
		return "", fmt.Errorf("settle success %s: %w", label, err)
	}

	log.Info().
		Int64("user_id", p.UserID).
		Str("server", p.Server).
		Int("days", p.Days).
		Time("end_date", sub.EndDate).
		Msg("subscription granted")

	e.notify(ctx, "granted", p.UserID, messages.PurchaseConfirmed(pricing.ServerTitle(sub.Server), sub.EndDate), log)
	return ResultGranted, nil
}

func (e *Engine) cancel(ctx context.Context, label string, log zerolog.Logger) (Result, error) {
	p, err := e.store.SettleFailure(ctx, label)
	if errors.Is(err, types.ErrAlreadyProcessed) {
		return ResultAlreadyProcessed, nil
	}
	if errors.Is(err, types.ErrPaymentNotFound) {
		return ResultUnknownPayment, nil
	}
	if err != nil {
		return "", fmt.Errorf("settle failure %s: %w", label, err)
	}

	log.Info().Int64("user_id", p.UserID).Msg("payment canceled")
	e.notify(ctx, "canceled", p.UserID, messages.PaymentCanceled(), log)
	return ResultCanceled, nil
}

func (e *Engine) refund(ctx context.Context, label string, log zerolog.Logger) (Result, error) {
	p, revoked, err := e.store.SettleRefund(ctx, label, e.now())
	if errors.Is(err, types.ErrAlreadyProcessed) {
		return ResultAlreadyProcessed, nil
	}
	if errors.Is(err, types.ErrPaymentNotFound) {
		return ResultUnknownPayment, nil
	}
	if err != nil {
		return "", fmt.Errorf("settle refund %s: %w", label, err)
	}

	if p.Status == types.PaymentFailed {
		log.Info().Int64("user_id", p.UserID).Msg("refund before grant, payment marked failed")
		return ResultCanceled, nil
	}

	log.Info().Int64("user_id", p.UserID).Bool("revoked", revoked).Msg("payment refunded")
	if revoked {
		e.notify(ctx, "revoked", p.UserID, messages.SubscriptionRefunded(), log)
		return ResultRevoked, nil
	}
	return ResultRefunded, nil
}

// notify is best-effort: the state change is already committed.
func (e *Engine) notify(ctx context.Context, kind string, userID int64, text string, log zerolog.Logger) {
	if e.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := e.notifier.Notify(ctx, userID, text); err != nil {
		e.metrics.RecordNotification(kind, "failed")
		log.Warn().Err(err).Int64("user_id", userID).Str("kind", kind).Msg("user notification failed")
		return
	}
	e.metrics.RecordNotification(kind, "sent")
}
