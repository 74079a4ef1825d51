// Package poller periodically asks the payment provider about pending
// payments and feeds terminal statuses into the reconciliation engine. It is
// the fallback for webhooks that never arrive.
package poller

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/metrics"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/reconcile"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/yookassa"
	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Interval time.Duration
	// ItemTimeout bounds one provider status query.
	ItemTimeout time.Duration
	// Grace skips payments younger than this, leaving them to the webhook.
	Grace   time.Duration
	Workers int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = 10 * time.Second
	}
	if c.Grace < 0 {
		c.Grace = 0
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

type Poller struct {
	payments types.PaymentStore
	provider types.PaymentProvider
	engine   reconcile.Applier
	metrics  metrics.Recorder
	log      zerolog.Logger
	cfg      Config
	now      func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	cycle   sync.Mutex
}

// CycleStats summarises one sweep.
type CycleStats struct {
	Checked int
	Applied int
	Pending int
	Failed  int
}

func NewPoller(payments types.PaymentStore, provider types.PaymentProvider, engine reconcile.Applier, rec metrics.Recorder, log zerolog.Logger, cfg Config) *Poller {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Poller{
		payments: payments,
		provider: provider,
		engine:   engine,
		metrics:  rec,
		log:      log,
		cfg:      cfg.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the background loop. A first sweep runs immediately.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(parent)
	p.mu.Unlock()

	p.log.Info().
		Dur("interval", p.cfg.Interval).
		Dur("grace", p.cfg.Grace).
		Int("workers", p.cfg.Workers).
		Msg("poller started")

	p.wg.Add(1)
	go p.loop()
}

func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.log.Info().Msg("stopping poller...")
	p.cancel()
	p.wg.Wait()
	p.log.Info().Msg("poller stopped")
}

// Run blocks until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.Start(ctx)
	<-ctx.Done()
	p.Stop()
	return nil
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(p.ctx); err != nil && p.ctx.Err() == nil {
			p.log.Error().Err(err).Msg("poll cycle failed")
		}
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep over pending payments. Sweeps never overlap:
// a call made while another is in progress waits for it to finish.
func (p *Poller) RunOnce(ctx context.Context) (CycleStats, error) {
	p.cycle.Lock()
	defer p.cycle.Unlock()

	started := time.Now()
	var checked, applied, pending, failed atomic.Int64

	defer func() {
		p.metrics.RecordPollCycle(int(checked.Load()), int(failed.Load()), time.Since(started))
	}()

	list, err := p.payments.ListPendingPayments(ctx, p.now().Add(-p.cfg.Grace))
	if err != nil {
		return CycleStats{}, err
	}
	if len(list) == 0 {
		return CycleStats{}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for _, payment := range list {
		label := payment.Label
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			checked.Add(1)
			switch p.checkOne(gctx, label) {
			case itemApplied:
				applied.Add(1)
			case itemPending:
				pending.Add(1)
			case itemFailed:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := CycleStats{
		Checked: int(checked.Load()),
		Applied: int(applied.Load()),
		Pending: int(pending.Load()),
		Failed:  int(failed.Load()),
	}
	p.log.Debug().
		Int("checked", stats.Checked).
		Int("applied", stats.Applied).
		Int("pending", stats.Pending).
		Int("failed", stats.Failed).
		Dur("took", time.Since(started)).
		Msg("poll cycle finished")
	return stats, nil
}

type itemResult int

const (
	itemPending itemResult = iota
	itemApplied
	itemSkipped
	itemFailed
)

func (p *Poller) checkOne(ctx context.Context, label string) itemResult {
	log := p.log.With().Str("label", label).Logger()

	qctx, cancel := context.WithTimeout(ctx, p.cfg.ItemTimeout)
	status, err := p.provider.GetStatus(qctx, label)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, yookassa.ErrForeignLabel):
			// YooMoney labels have no status API; only their webhook settles them.
			log.Debug().Msg("label has no pollable provider, skipped")
			return itemSkipped
		case isTimeout(err) && ctx.Err() == nil:
			log.Warn().Dur("timeout", p.cfg.ItemTimeout).Msg("status query timed out, still pending")
			return itemPending
		default:
			log.Warn().Err(err).Msg("status query failed")
			return itemFailed
		}
	}

	outcome, terminal := status.Outcome()
	if !terminal {
		return itemPending
	}

	res, err := p.engine.Apply(ctx, types.SettlementSignal{
		Label:   label,
		Outcome: outcome,
		Source:  types.SourcePoll,
		Metadata: map[string]string{
			"provider_status": string(status),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("outcome", string(outcome)).Msg("settlement not applied")
		return itemFailed
	}
	log.Info().Str("outcome", string(outcome)).Str("result", string(res)).Msg("settled by poll")
	return itemApplied
}

// isTimeout covers both the per-item deadline and the HTTP client's own timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
