// Package scheduler drives the periodic sweeps: expiry notifications,
// auto-renewal, lapsed-subscription notices and invoice expiry.
package scheduler

import (
	"context"
	"time"

	"github.com/resumehub/billing/internal/clock"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
	"github.com/resumehub/billing/internal/observability/metrics"
	subscriptiondomain "github.com/resumehub/billing/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	subscriptionSweepInterval = time.Hour
	invoiceSweepInterval      = 10 * time.Minute
	jobTimeout                = 5 * time.Minute
)

type Params struct {
	fx.In

	Log             *zap.Logger
	Clock           clock.Clock
	SubscriptionSvc subscriptiondomain.Service
	InvoiceSvc      invoicedomain.Service
}

type Scheduler struct {
	log          *zap.Logger
	clock        clock.Clock
	subscription subscriptiondomain.Service
	invoice      invoicedomain.Service

	cancel context.CancelFunc
	done   chan struct{}
}

func New(p Params) *Scheduler {
	return &Scheduler{
		log:          p.Log.Named("scheduler"),
		clock:        p.Clock,
		subscription: p.SubscriptionSvc,
		invoice:      p.InvoiceSvc,
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{}, 2)

	go s.loop(ctx, subscriptionSweepInterval, func(ctx context.Context) {
		s.runJob(ctx, "subscription_notify", func(ctx context.Context) error {
			_, err := s.subscription.NotifyExpiring(ctx)
			return err
		})
		s.runJob(ctx, "subscription_auto_renew", func(ctx context.Context) error {
			_, err := s.subscription.AutoRenew(ctx)
			return err
		})
		s.runJob(ctx, "subscription_expired", func(ctx context.Context) error {
			_, err := s.subscription.SweepExpired(ctx)
			return err
		})
	})
	go s.loop(ctx, invoiceSweepInterval, func(ctx context.Context) {
		s.runJob(ctx, "invoice_expiry", func(ctx context.Context) error {
			_, err := s.invoice.ExpireBefore(ctx, s.clock.Now())
			return err
		})
	})
}

func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	for i := 0; i < 2; i++ {
		<-s.done
	}
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	defer func() { s.done <- struct{}{} }()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, name string, fn func(context.Context) error) {
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	err := fn(jobCtx)
	metrics.SchedulerJobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SchedulerJobRuns.WithLabelValues(name, "error").Inc()
		s.log.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
		return
	}
	metrics.SchedulerJobRuns.WithLabelValues(name, "ok").Inc()
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				s.Start()
				return nil
			},
			OnStop: func(context.Context) error {
				s.Stop()
				return nil
			},
		})
	}),
)
