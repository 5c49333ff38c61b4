package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/resumehub/billing/internal/clock"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
	subscriptiondomain "github.com/resumehub/billing/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type stubSubscriptions struct{}

func (stubSubscriptions) Status(context.Context, int64) (*subscriptiondomain.Status, error) {
	return nil, nil
}
func (stubSubscriptions) ManualRenew(context.Context, int64) (*subscriptiondomain.Status, error) {
	return nil, nil
}
func (stubSubscriptions) ToggleAutoRenew(context.Context, int64) (bool, error) { return false, nil }
func (stubSubscriptions) NotifyExpiring(context.Context) (int, error)          { return 0, nil }
func (stubSubscriptions) AutoRenew(context.Context) (int, error)               { return 0, nil }
func (stubSubscriptions) SweepExpired(context.Context) (int, error)            { return 0, nil }

type stubInvoices struct{}

func (stubInvoices) Preview(context.Context, invoicedomain.CreateRequest) (*invoicedomain.Preview, error) {
	return nil, nil
}
func (stubInvoices) Create(context.Context, invoicedomain.CreateRequest) (*invoicedomain.Invoice, error) {
	return nil, nil
}
func (stubInvoices) GetByID(context.Context, uuid.UUID) (*invoicedomain.Invoice, error) {
	return nil, nil
}
func (stubInvoices) GetByGatewayRef(context.Context, int64) (*invoicedomain.Invoice, error) {
	return nil, nil
}
func (stubInvoices) Cancel(context.Context, uuid.UUID) (*invoicedomain.Invoice, error) {
	return nil, nil
}
func (stubInvoices) ExpireBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	return New(Params{
		Log:             zaptest.NewLogger(t),
		Clock:           clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		SubscriptionSvc: stubSubscriptions{},
		InvoiceSvc:      stubInvoices{},
	})
}

func TestRunJobSwallowsErrors(t *testing.T) {
	s := newScheduler(t)

	ran := false
	s.runJob(context.Background(), "ok_job", func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran)

	// A failing job is logged and counted, never panics or aborts.
	s.runJob(context.Background(), "failing_job", func(ctx context.Context) error {
		return errors.New("sweep exploded")
	})
}

func TestRunJobAppliesTimeout(t *testing.T) {
	s := newScheduler(t)

	var deadline time.Time
	var ok bool
	s.runJob(context.Background(), "deadline_job", func(ctx context.Context) error {
		deadline, ok = ctx.Deadline()
		return nil
	})
	assert.True(t, ok)
	assert.False(t, deadline.IsZero())
}

func TestStartStop(t *testing.T) {
	s := newScheduler(t)
	s.Start()
	s.Stop()

	// Stop without Start is a no-op.
	fresh := newScheduler(t)
	fresh.Stop()
}
