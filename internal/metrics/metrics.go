package metrics

import "time"

// Recorder tracks reconciliation activity. Implementations must be safe for
// concurrent use; callers never check for nil, use Noop instead.
type Recorder interface {
	// RecordSettlement counts one engine apply.
	// result: "granted", "canceled", "revoked", "refunded", "already_processed", "unknown_payment", "ignored", "error"
	RecordSettlement(source, outcome, result string)

	// RecordWebhook counts an inbound webhook by provider and event type.
	// status: "accepted", "ignored", "dropped"
	RecordWebhook(provider, eventType, status string)

	// RecordPollCycle records one poll sweep.
	RecordPollCycle(checked, failed int, duration time.Duration)

	// RecordProviderCall records one payment provider API call.
	RecordProviderCall(endpoint, status string, duration time.Duration)

	// RecordNotification counts best-effort user notifications by status ("sent", "failed").
	RecordNotification(kind, status string)
}

type Noop struct{}

func (Noop) RecordSettlement(_, _, _ string)                 {}
func (Noop) RecordWebhook(_, _, _ string)                    {}
func (Noop) RecordPollCycle(_, _ int, _ time.Duration)       {}
func (Noop) RecordProviderCall(_, _ string, _ time.Duration) {}
func (Noop) RecordNotification(_, _ string)                  {}
