package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus implements Recorder.
type Prometheus struct {
	settlementsTotal     *prometheus.CounterVec
	webhooksTotal        *prometheus.CounterVec
	pollCyclesTotal      prometheus.Counter
	pollCheckedTotal     prometheus.Counter
	pollFailedTotal      prometheus.Counter
	pollCycleDuration    prometheus.Histogram
	providerCallsTotal   *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	notificationsTotal   *prometheus.CounterVec
}

func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	factory := promauto.With(reg)

	return &Prometheus{
		settlementsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "settlements_total",
			Help:      "Settlement signals applied, by source, outcome and result.",
		}, []string{"source", "outcome", "result"}),

		webhooksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Inbound payment webhooks by provider, event type and status.",
		}, []string{"provider", "event_type", "status"}),

		pollCyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Completed poll cycles.",
		}),

		pollCheckedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "payments_checked_total",
			Help:      "Pending payments checked against the provider.",
		}),

		pollFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "payments_failed_total",
			Help:      "Pending payment checks that failed.",
		}),

		pollCycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of poll cycles in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		providerCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "api_calls_total",
			Help:      "Payment provider API calls by endpoint and status.",
		}, []string{"endpoint", "status"}),

		providerCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "api_call_duration_seconds",
			Help:      "Duration of payment provider API calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "messages_total",
			Help:      "User notifications by kind and status.",
		}, []string{"kind", "status"}),
	}
}

func (m *Prometheus) RecordSettlement(source, outcome, result string) {
	m.settlementsTotal.WithLabelValues(source, outcome, result).Inc()
}

func (m *Prometheus) RecordWebhook(provider, eventType, status string) {
	m.webhooksTotal.WithLabelValues(provider, eventType, status).Inc()
}

func (m *Prometheus) RecordPollCycle(checked, failed int, duration time.Duration) {
	m.pollCyclesTotal.Inc()
	m.pollCheckedTotal.Add(float64(checked))
	m.pollFailedTotal.Add(float64(failed))
	m.pollCycleDuration.Observe(duration.Seconds())
}

func (m *Prometheus) RecordProviderCall(endpoint, status string, duration time.Duration) {
	m.providerCallsTotal.WithLabelValues(endpoint, status).Inc()
	m.providerCallDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *Prometheus) RecordNotification(kind, status string) {
	m.notificationsTotal.WithLabelValues(kind, status).Inc()
}
