package webhook

import (
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/metrics"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/reconcile"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/yookassa"
	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const (
	maxBodyBytes    = 64 * 1024
	applyTimeout    = 15 * time.Second
	shutdownTimeout = 10 * time.Second

	providerYooKassa = "yookassa"
	providerYooMoney = "yoomoney"
)

type Config struct {
	Addr string
	// YooMoneySecret enables sha1_hash verification of YooMoney notifications.
	YooMoneySecret string
	// MetricsHandler is mounted on /metrics when set.
	MetricsHandler http.Handler
}

type Server struct {
	cfg     Config
	engine  reconcile.Applier
	metrics metrics.Recorder
	log     zerolog.Logger
	router  chi.Router
}

func NewServer(cfg Config, engine reconcile.Applier, rec metrics.Recorder, log zerolog.Logger) *Server {
	if rec == nil {
		rec = metrics.Noop{}
	}
	s := &Server{
		cfg:     cfg,
		engine:  engine,
		metrics: rec,
		log:     log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/yookassa", s.handleYooKassa)
	r.Post("/yoomoney", s.handleYooMoney)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w)
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("webhook server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown webhook server: %w", err)
	}
	s.log.Info().Msg("webhook server stopped")
	return nil
}

// Providers retry on anything but 2xx, so every path answers 200 OK.
func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type yooKassaEnvelope struct {
	Event  string          `json:"event"`
	Object json.RawMessage `json:"object"`
}

type yooKassaObject struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Amount    struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) handleYooKassa(w http.ResponseWriter, r *http.Request) {
	defer writeOK(w)
	log := s.log.With().Str("provider", providerYooKassa).Logger()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn().Err(err).Msg("webhook body unreadable, dropped")
		s.metrics.RecordWebhook(providerYooKassa, "unknown", "dropped")
		return
	}

	var env yooKassaEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Warn().Err(err).Msg("webhook body is not valid JSON, dropped")
		s.metrics.RecordWebhook(providerYooKassa, "unknown", "dropped")
		return
	}
	if env.Event == "" || len(env.Object) == 0 || string(env.Object) == "null" {
		log.Warn().Msg("webhook without event or object, dropped")
		s.metrics.RecordWebhook(providerYooKassa, "unknown", "dropped")
		return
	}

	var obj yooKassaObject
	if err := json.Unmarshal(env.Object, &obj); err != nil {
		log.Warn().Err(err).Str("event", env.Event).Msg("webhook object malformed, dropped")
		s.metrics.RecordWebhook(providerYooKassa, env.Event, "dropped")
		return
	}

	log = log.With().Str("event", env.Event).Str("object_id", obj.ID).Logger()

	sig, ok := yooKassaSignal(env.Event, obj)
	if !ok {
		log.Info().Msg("webhook event ignored")
		s.metrics.RecordWebhook(providerYooKassa, env.Event, "ignored")
		return
	}
	if sig.Label == yookassa.Label("") {
		log.Warn().Msg("webhook object without payment id, dropped")
		s.metrics.RecordWebhook(providerYooKassa, env.Event, "dropped")
		return
	}

	s.metrics.RecordWebhook(providerYooKassa, env.Event, "accepted")
	s.apply(r.Context(), sig, log)
}

// yooKassaSignal maps an event onto a settlement signal; false means the event is not a settlement.
func yooKassaSignal(event string, obj yooKassaObject) (types.SettlementSignal, bool) {
	var outcome types.Outcome
	paymentID := obj.ID
	switch event {
	case "payment.succeeded":
		outcome = types.OutcomeSucceeded
	case "payment.canceled":
		outcome = types.OutcomeCanceled
	case "refund.succeeded":
		outcome = types.OutcomeRefunded
		// refund objects carry their own id; the payment is referenced separately
		if obj.PaymentID != "" {
			paymentID = obj.PaymentID
		}
	default:
		return types.SettlementSignal{}, false
	}

	meta := map[string]string{
		"event":     event,
		"object_id": obj.ID,
	}
	if obj.Amount.Value != "" {
		meta["amount"] = obj.Amount.Value
	}
	if uid, ok := obj.Metadata["user_id"]; ok {
		meta["user_id"] = fmt.Sprint(uid)
	}

	return types.SettlementSignal{
		Label:    yookassa.Label(paymentID),
		Outcome:  outcome,
		Source:   types.SourceYooKassaWebhook,
		Metadata: meta,
	}, true
}

func (s *Server) handleYooMoney(w http.ResponseWriter, r *http.Request) {
	defer writeOK(w)
	log := s.log.With().Str("provider", providerYooMoney).Logger()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		log.Warn().Err(err).Msg("notification form unreadable, dropped")
		s.metrics.RecordWebhook(providerYooMoney, "unknown", "dropped")
		return
	}

	notificationType := strings.TrimSpace(r.PostForm.Get("notification_type"))
	label := strings.TrimSpace(r.PostForm.Get("label"))
	log = log.With().Str("event", notificationType).Str("label", label).Logger()

	if s.cfg.YooMoneySecret != "" && !verifyYooMoney(r.PostForm, s.cfg.YooMoneySecret) {
		log.Warn().Msg("notification hash mismatch, dropped")
		s.metrics.RecordWebhook(providerYooMoney, notificationType, "dropped")
		return
	}

	switch notificationType {
	case "p2p-incoming", "card-incoming":
	default:
		log.Info().Msg("notification ignored")
		s.metrics.RecordWebhook(providerYooMoney, notificationType, "ignored")
		return
	}
	if label == "" {
		log.Warn().Msg("notification without label, dropped")
		s.metrics.RecordWebhook(providerYooMoney, notificationType, "dropped")
		return
	}

	s.metrics.RecordWebhook(providerYooMoney, notificationType, "accepted")
	s.apply(r.Context(), types.SettlementSignal{
		Label:   label,
		Outcome: types.OutcomeSucceeded,
		Source:  types.SourceYooMoneyWebhook,
		Metadata: map[string]string{
			"operation_id": r.PostForm.Get("operation_id"),
			"amount":       r.PostForm.Get("amount"),
		},
	}, log)
}

// verifyYooMoney checks sha1_hash as documented for YooMoney HTTP notifications.
func verifyYooMoney(form url.Values, secret string) bool {
	parts := []string{
		form.Get("notification_type"),
		form.Get("operation_id"),
		form.Get("amount"),
		form.Get("currency"),
		form.Get("datetime"),
		form.Get("sender"),
		form.Get("codepro"),
		secret,
		form.Get("label"),
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&")))
	expected := hex.EncodeToString(sum[:])
	got := strings.ToLower(strings.TrimSpace(form.Get("sha1_hash")))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// apply runs detached from the request so a provider disconnect does not
// abort a half-finished settlement.
func (s *Server) apply(reqCtx context.Context, sig types.SettlementSignal, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(reqCtx), applyTimeout)
	defer cancel()

	res, err := s.engine.Apply(ctx, sig)
	if err != nil {
		log.Error().Err(err).Msg("settlement not applied, provider retry or poll will pick it up")
		return
	}
	log.Info().Str("result", string(res)).Msg("webhook processed")
}
