package service

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/resumehub/billing/internal/clock"
	"github.com/resumehub/billing/internal/config"
	ledgerdomain "github.com/resumehub/billing/internal/ledger/domain"
	notifierdomain "github.com/resumehub/billing/internal/notifier/domain"
	"github.com/resumehub/billing/internal/observability/metrics"
	taskdomain "github.com/resumehub/billing/internal/taskbill/domain"
	userdomain "github.com/resumehub/billing/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// fallbackCost applies when the stream ends without a track_cost
// trailer. The multiplier is deliberately 1.0 on this path.
const fallbackCost = 1.0

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Config      config.Config
	Runner      taskdomain.Runner
	UserRepo    userdomain.Repository
	LedgerSvc   ledgerdomain.Service
	NotifierSvc notifierdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	cfg      config.Config
	runner   taskdomain.Runner
	userRepo userdomain.Repository
	ledger   ledgerdomain.Service
	notifier notifierdomain.Service

	// inflight maps user id to the cancel func of the running task.
	inflight sync.Map
}

func NewService(p Params) taskdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("taskbill.service"),
		clock:    p.Clock,
		cfg:      p.Config,
		runner:   p.Runner,
		userRepo: p.UserRepo,
		ledger:   p.LedgerSvc,
		notifier: p.NotifierSvc,
	}
}

func (s *Service) Run(ctx context.Context, req taskdomain.RunRequest, emit taskdomain.EmitFunc) error {
	if err := s.admit(ctx, req.UserID); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if _, loaded := s.inflight.LoadOrStore(req.UserID, cancel); loaded {
		return taskdomain.ErrTaskInFlight
	}
	defer s.inflight.Delete(req.UserID)

	var (
		rawCost     float64
		costTracked bool
	)
	err := s.runner.Run(runCtx, req, func(record taskdomain.Record) error {
		switch r := record.(type) {
		case taskdomain.Progress:
			return nil
		case taskdomain.TrackCost:
			rawCost = r.TotalCost
			costTracked = true
			return nil
		case taskdomain.BotOutput:
			return emit(r)
		case taskdomain.Complete:
			if err := emit(r); err != nil {
				return err
			}
			s.billCompleted(ctx, req.UserID, r.TaskID, rawCost, costTracked)
			metrics.TaskStreamsTotal.WithLabelValues("complete").Inc()
			return nil
		case taskdomain.Failed:
			metrics.TaskStreamsTotal.WithLabelValues("error").Inc()
			return emit(r)
		case taskdomain.Cancelled:
			metrics.TaskStreamsTotal.WithLabelValues("cancelled").Inc()
			return emit(r)
		default:
			return nil
		}
	})
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		// The caller pulled the cancel signal, not the connection.
		metrics.TaskStreamsTotal.WithLabelValues("cancelled").Inc()
		return emit(taskdomain.Cancelled{})
	}
	return err
}

// admit refuses a brand-new task for blocked users, lapsed
// subscriptions and already-overdrawn balances. Strict balance >= 0
// here; only the deferred debit on delivered work may overdraw.
func (s *Service) admit(ctx context.Context, userID int64) error {
	user, err := s.userRepo.GetByID(ctx, s.db, userID)
	if err != nil {
		return err
	}
	if user.IsBlocked {
		return ledgerdomain.ErrUserBlocked
	}
	if !user.SubscriptionActive(s.clock.Now()) {
		return ledgerdomain.ErrSubscriptionExpired
	}
	if user.Balance < 0 {
		return &ledgerdomain.InsufficientBalanceError{Required: 0, Available: user.Balance}
	}
	return nil
}

// billCompleted performs the deferred debit. Billing failures never
// claw back delivered work: they are logged, counted and swallowed.
func (s *Service) billCompleted(ctx context.Context, userID int64, taskID string, rawCost float64, costTracked bool) {
	raw := rawCost
	multiplier := s.cfg.CostMultiplier
	if !costTracked {
		raw = fallbackCost
		multiplier = 1.0
	}
	final := math.Round(raw*multiplier*100) / 100

	txn, err := s.ledger.Debit(ctx, ledgerdomain.DebitRequest{
		UserID:      userID,
		Amount:      final,
		Type:        ledgerdomain.TypeSpend,
		Description: "Оплата выполненной задачи",
		Metadata: datatypes.JSONMap{
			"raw":        raw,
			"multiplier": multiplier,
			"final":      final,
			"task_id":    taskID,
		},
	})
	if err != nil {
		metrics.TaskBillingFailuresTotal.Inc()
		s.log.Error("deferred task debit failed, result kept delivered",
			zap.Int64("user_id", userID),
			zap.String("task_id", taskID),
			zap.Float64("final_cost", final),
			zap.Error(err),
		)
		return
	}
	s.notifier.NotifyLowBalance(ctx, userID, txn.BalanceAfter)
}

func (s *Service) Cancel(userID int64) bool {
	v, ok := s.inflight.Load(userID)
	if !ok {
		return false
	}
	v.(context.CancelFunc)()
	return true
}

func (s *Service) RunnerHealthy(ctx context.Context) error {
	return s.runner.Ping(ctx)
}
