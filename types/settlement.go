package types

import "context"

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeRefunded  Outcome = "refunded"
)

type SignalSource string

const (
	SourceYooKassaWebhook SignalSource = "yookassa_webhook"
	SourceYooMoneyWebhook SignalSource = "yoomoney_webhook"
	SourcePoll            SignalSource = "poll"
)

// SettlementSignal is produced by an ingress path and consumed by the reconciliation engine.
type SettlementSignal struct {
	Label    string
	Outcome  Outcome
	Source   SignalSource
	Metadata map[string]string
}

type ProviderStatus string

const (
	ProviderPending   ProviderStatus = "pending"
	ProviderSucceeded ProviderStatus = "succeeded"
	ProviderCanceled  ProviderStatus = "canceled"
	ProviderRefunded  ProviderStatus = "refunded"
)

// Outcome maps a terminal provider status to a settlement outcome.
func (s ProviderStatus) Outcome() (Outcome, bool) {
	switch s {
	case ProviderSucceeded:
		return OutcomeSucceeded, true
	case ProviderCanceled:
		return OutcomeCanceled, true
	case ProviderRefunded:
		return OutcomeRefunded, true
	default:
		return "", false
	}
}

type PaymentTerms struct {
	Server string
	Amount int64
	Days   int
	Title  string
}

type PaymentProvider interface {
	CreatePaymentLink(ctx context.Context, userID int64, terms PaymentTerms) (url, label string, err error)
	GetStatus(ctx context.Context, label string) (ProviderStatus, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}
