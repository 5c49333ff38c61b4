package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	auditdomain "github.com/resumehub/billing/internal/audit/domain"
	auditrepo "github.com/resumehub/billing/internal/audit/repository"
	auditservice "github.com/resumehub/billing/internal/audit/service"
	"github.com/resumehub/billing/internal/clock"
	"github.com/resumehub/billing/internal/config"
	ledgerdomain "github.com/resumehub/billing/internal/ledger/domain"
	ledgerrepo "github.com/resumehub/billing/internal/ledger/repository"
	ledgerservice "github.com/resumehub/billing/internal/ledger/service"
	notifierdomain "github.com/resumehub/billing/internal/notifier/domain"
	notifierservice "github.com/resumehub/billing/internal/notifier/service"
	taskdomain "github.com/resumehub/billing/internal/taskbill/domain"
	userdomain "github.com/resumehub/billing/internal/user/domain"
	userrepo "github.com/resumehub/billing/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type scriptedRunner struct {
	records []taskdomain.Record
	err     error
}

func (r *scriptedRunner) Run(ctx context.Context, req taskdomain.RunRequest, handle func(taskdomain.Record) error) error {
	for _, record := range r.records {
		if err := handle(record); err != nil {
			return err
		}
		if record.Terminal() {
			return nil
		}
	}
	return r.err
}

func (r *scriptedRunner) Ping(ctx context.Context) error { return nil }

type blockingRunner struct {
	started chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, req taskdomain.RunRequest, handle func(taskdomain.Record) error) error {
	close(r.started)
	<-ctx.Done()
	return ctx.Err()
}

func (r *blockingRunner) Ping(ctx context.Context) error { return nil }

type fakeSender struct {
	mu   sync.Mutex
	sent []notifierdomain.Notification
}

func (f *fakeSender) Send(ctx context.Context, n notifierdomain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSender) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.sent {
		out = append(out, n.Kind)
	}
	return out
}

type fixture struct {
	db     *gorm.DB
	clock  *clock.FakeClock
	sender *fakeSender
	svc    taskdomain.Service
}

func newFixture(t *testing.T, runner taskdomain.Runner) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&ledgerdomain.Transaction{},
		&auditdomain.AuditLog{},
	))

	log := zaptest.NewLogger(t)
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{
		BalanceFloor:            1000,
		BalanceNotifyThresholds: []int{50, 20, 10, 5},
		CostMultiplier:          3.14,
	}

	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, Repo: auditrepo.Provide()})
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:       db,
		Log:      log,
		Clock:    fc,
		Config:   cfg,
		Repo:     ledgerrepo.Provide(),
		UserRepo: userrepo.Provide(),
		AuditSvc: audit,
	})
	sender := &fakeSender{}
	notifierSvc := notifierservice.NewService(notifierservice.Params{
		DB:       db,
		Log:      log,
		Config:   cfg,
		Sender:   sender,
		UserRepo: userrepo.Provide(),
	})
	svc := NewService(Params{
		DB:          db,
		Log:         log,
		Clock:       fc,
		Config:      cfg,
		Runner:      runner,
		UserRepo:    userrepo.Provide(),
		LedgerSvc:   ledgerSvc,
		NotifierSvc: notifierSvc,
	})
	return &fixture{db: db, clock: fc, sender: sender, svc: svc}
}

func (f *fixture) seedUser(t *testing.T, u userdomain.User) {
	t.Helper()
	if u.SubscriptionEnd == nil {
		end := f.clock.Now().Add(30 * 24 * time.Hour)
		u.SubscriptionEnd = &end
	}
	u.CreatedAt = f.clock.Now()
	u.UpdatedAt = f.clock.Now()
	require.NoError(t, f.db.Create(&u).Error)
}

func (f *fixture) balance(t *testing.T, id int64) float64 {
	t.Helper()
	var u userdomain.User
	require.NoError(t, f.db.First(&u, "id = ?", id).Error)
	return u.Balance
}

func collectEmitted() (taskdomain.EmitFunc, *[]taskdomain.Record) {
	var emitted []taskdomain.Record
	return func(r taskdomain.Record) error {
		emitted = append(emitted, r)
		return nil
	}, &emitted
}

func TestRunBillsTrackedCostAfterDelivery(t *testing.T) {
	runner := &scriptedRunner{records: []taskdomain.Record{
		taskdomain.Progress{Message: "working"},
		taskdomain.TrackCost{TotalCost: 2.0},
		taskdomain.BotOutput{OutputType: "text", Content: "result"},
		taskdomain.Complete{TaskID: "t-1"},
	}}
	f := newFixture(t, runner)
	f.seedUser(t, userdomain.User{ID: 1, Balance: 0.5})

	emit, emitted := collectEmitted()
	require.NoError(t, f.svc.Run(context.Background(), taskdomain.RunRequest{UserID: 1, Capability: "analyze"}, emit))

	// Progress and track_cost are suppressed; output and terminal pass.
	require.Len(t, *emitted, 2)
	assert.Equal(t, taskdomain.BotOutput{OutputType: "text", Content: "result"}, (*emitted)[0])
	assert.Equal(t, taskdomain.Complete{TaskID: "t-1"}, (*emitted)[1])

	assert.InDelta(t, -5.78, f.balance(t, 1), 1e-9)

	var txn ledgerdomain.Transaction
	require.NoError(t, f.db.First(&txn, "user_id = ?", 1).Error)
	assert.Equal(t, ledgerdomain.TypeSpend, txn.Type)
	assert.InDelta(t, -6.28, txn.TokensDelta, 1e-9)
	assert.Equal(t, 2.0, txn.Metadata["raw"])
	assert.Equal(t, 3.14, txn.Metadata["multiplier"])
	assert.Equal(t, 6.28, txn.Metadata["final"])
	assert.Equal(t, "t-1", txn.Metadata["task_id"])
}

func TestRunFallbackCostWithoutTrailer(t *testing.T) {
	runner := &scriptedRunner{records: []taskdomain.Record{
		taskdomain.BotOutput{OutputType: "text", Content: "result"},
		taskdomain.Complete{TaskID: "t-1"},
	}}
	f := newFixture(t, runner)
	f.seedUser(t, userdomain.User{ID: 1, Balance: 100})

	emit, _ := collectEmitted()
	require.NoError(t, f.svc.Run(context.Background(), taskdomain.RunRequest{UserID: 1}, emit))

	assert.Equal(t, 99.0, f.balance(t, 1))

	var txn ledgerdomain.Transaction
	require.NoError(t, f.db.First(&txn, "user_id = ?", 1).Error)
	assert.Equal(t, 1.0, txn.Metadata["raw"])
	assert.Equal(t, 1.0, txn.Metadata["multiplier"])
	assert.Empty(t, f.sender.kinds())
}

func TestRunBillingFailureKeepsDeliveredResult(t *testing.T) {
	// Tracked cost far beyond the overdraft floor: the debit fails,
	// the stream outcome stands.
	runner := &scriptedRunner{records: []taskdomain.Record{
		taskdomain.TrackCost{TotalCost: 1000},
		taskdomain.Complete{TaskID: "t-1"},
	}}
	f := newFixture(t, runner)
	f.seedUser(t, userdomain.User{ID: 1, Balance: 0})

	emit, emitted := collectEmitted()
	require.NoError(t, f.svc.Run(context.Background(), taskdomain.RunRequest{UserID: 1}, emit))
	require.Len(t, *emitted, 1)

	assert.Equal(t, 0.0, f.balance(t, 1))
	var count int64
	require.NoError(t, f.db.Model(&ledgerdomain.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestRunFailedStreamIsNotBilled(t *testing.T) {
	runner := &scriptedRunner{records: []taskdomain.Record{
		taskdomain.TrackCost{TotalCost: 2.0},
		taskdomain.Failed{Message: "upstream exploded"},
	}}
	f := newFixture(t, runner)
	f.seedUser(t, userdomain.User{ID: 1, Balance: 100})

	emit, emitted := collectEmitted()
	require.NoError(t, f.svc.Run(context.Background(), taskdomain.RunRequest{UserID: 1}, emit))
	require.Len(t, *emitted, 1)
	assert.Equal(t, taskdomain.Failed{Message: "upstream exploded"}, (*emitted)[0])

	assert.Equal(t, 100.0, f.balance(t, 1))
}

func TestAdmission(t *testing.T) {
	f := newFixture(t, &scriptedRunner{})
	now := f.clock.Now()

	f.seedUser(t, userdomain.User{ID: 1, Balance: 10, IsBlocked: true})
	err := f.svc.Run(context.Background(), taskdomain.RunRequest{UserID: 1}, func(taskdomain.Record) error { return nil })
	assert.ErrorIs(t, err, ledgerdomain.ErrUserBlocked)

	lapsed := now.Add(-time.Hour)
	f.seedUser(t, userdomain.User{ID: 2, Balance: 10, SubscriptionEnd: &lapsed})
	err = f.svc.Run(context.Background(), taskdomain.RunRequest{UserID: 2}, func(taskdomain.Record) error { return nil })
	assert.ErrorIs(t, err, ledgerdomain.ErrSubscriptionExpired)

	f.seedUser(t, userdomain.User{ID: 3, Balance: -0.5})
	err = f.svc.Run(context.Background(), taskdomain.RunRequest{UserID: 3}, func(taskdomain.Record) error { return nil })
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)
}

func TestRunRejectsConcurrentTaskAndCancelAborts(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{})}
	f := newFixture(t, runner)
	f.seedUser(t, userdomain.User{ID: 1, Balance: 10})

	emit, emitted := collectEmitted()
	done := make(chan error, 1)
	go func() {
		done <- f.svc.Run(context.Background(), taskdomain.RunRequest{UserID: 1}, emit)
	}()
	<-runner.started

	err := f.svc.Run(context.Background(), taskdomain.RunRequest{UserID: 1}, func(taskdomain.Record) error { return nil })
	assert.ErrorIs(t, err, taskdomain.ErrTaskInFlight)

	require.True(t, f.svc.Cancel(1))
	require.NoError(t, <-done)
	require.Len(t, *emitted, 1)
	assert.Equal(t, taskdomain.Cancelled{}, (*emitted)[0])

	// The slot is free again.
	assert.False(t, f.svc.Cancel(1))
}
