package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	auditdomain "github.com/resumehub/billing/internal/audit/domain"
	"github.com/resumehub/billing/internal/clock"
	"github.com/resumehub/billing/internal/config"
	ledgerdomain "github.com/resumehub/billing/internal/ledger/domain"
	"github.com/resumehub/billing/internal/observability/metrics"
	userdomain "github.com/resumehub/billing/internal/user/domain"
	"github.com/resumehub/billing/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxAttempts = 3

// errReplay aborts the enclosing transaction when a concurrent writer
// already committed the same idempotency key.
var errReplay = errors.New("idempotent_replay")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Config   config.Config
	Repo     ledgerdomain.Repository
	UserRepo userdomain.Repository
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	cfg      config.Config
	repo     ledgerdomain.Repository
	userRepo userdomain.Repository
	audit    auditdomain.Service
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ledger.service"),
		clock:    p.Clock,
		cfg:      p.Config,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		audit:    p.AuditSvc,
	}
}

func (s *Service) Credit(ctx context.Context, req ledgerdomain.CreditRequest) (*ledgerdomain.Transaction, error) {
	build, err := s.creditBuilder(req)
	if err != nil {
		return nil, err
	}
	txn, err := s.applyWithRetry(ctx, req.UserID, req.IdempotencyKey, build)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "ledger.credit", txn)
	return txn, nil
}

func (s *Service) CreditIn(ctx context.Context, tx *gorm.DB, req ledgerdomain.CreditRequest) (*ledgerdomain.Transaction, error) {
	build, err := s.creditBuilder(req)
	if err != nil {
		return nil, err
	}
	txn, err := s.applyIn(ctx, tx, req.UserID, req.IdempotencyKey, build)
	if errors.Is(err, errReplay) {
		return s.repo.GetByIdempotencyKey(ctx, tx, *req.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "ledger.credit", txn)
	return txn, nil
}

func (s *Service) Debit(ctx context.Context, req ledgerdomain.DebitRequest) (*ledgerdomain.Transaction, error) {
	build, err := s.debitBuilder(req)
	if err != nil {
		return nil, err
	}
	txn, err := s.applyWithRetry(ctx, req.UserID, req.IdempotencyKey, build)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "tokens.spent", txn)
	return txn, nil
}

func (s *Service) DebitIn(ctx context.Context, tx *gorm.DB, req ledgerdomain.DebitRequest) (*ledgerdomain.Transaction, error) {
	build, err := s.debitBuilder(req)
	if err != nil {
		return nil, err
	}
	txn, err := s.applyIn(ctx, tx, req.UserID, req.IdempotencyKey, build)
	if errors.Is(err, errReplay) {
		return s.repo.GetByIdempotencyKey(ctx, tx, *req.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "tokens.spent", txn)
	return txn, nil
}

func (s *Service) History(ctx context.Context, userID int64, limit, offset int) ([]ledgerdomain.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, s.db, userID, limit, offset)
}

func (s *Service) creditBuilder(req ledgerdomain.CreditRequest) (func(u *userdomain.User) (*ledgerdomain.Transaction, error), error) {
	if req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	txnType := req.Type
	if txnType == "" {
		txnType = ledgerdomain.TypeTopup
	}
	return func(u *userdomain.User) (*ledgerdomain.Transaction, error) {
		return &ledgerdomain.Transaction{
			ID:             uuid.New(),
			UserID:         req.UserID,
			Type:           txnType,
			TokensDelta:    req.Amount,
			BalanceAfter:   u.Balance + req.Amount,
			Description:    req.Description,
			IdempotencyKey: req.IdempotencyKey,
			InvoiceID:      req.InvoiceID,
			Metadata:       req.Metadata,
			CreatedAt:      s.clock.Now(),
		}, nil
	}, nil
}

func (s *Service) debitBuilder(req ledgerdomain.DebitRequest) (func(u *userdomain.User) (*ledgerdomain.Transaction, error), error) {
	if req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	txnType := req.Type
	if txnType == "" {
		txnType = ledgerdomain.TypeSpend
	}
	floor := -s.cfg.BalanceFloor
	return func(u *userdomain.User) (*ledgerdomain.Transaction, error) {
		if u.IsBlocked {
			return nil, ledgerdomain.ErrUserBlocked
		}
		if req.RequireActiveSubscription && !u.SubscriptionActive(s.clock.Now()) {
			return nil, ledgerdomain.ErrSubscriptionExpired
		}
		after := u.Balance - req.Amount
		if after < floor {
			return nil, &ledgerdomain.InsufficientBalanceError{
				Required:  req.Amount,
				Available: u.Balance,
			}
		}
		if after < 0 {
			s.log.Warn("balance went negative",
				zap.Int64("user_id", req.UserID),
				zap.Float64("balance_after", after),
				zap.String("description", req.Description),
			)
		}
		return &ledgerdomain.Transaction{
			ID:             uuid.New(),
			UserID:         req.UserID,
			Type:           txnType,
			TokensDelta:    -req.Amount,
			BalanceAfter:   after,
			Description:    req.Description,
			IdempotencyKey: req.IdempotencyKey,
			InvoiceID:      req.InvoiceID,
			Metadata:       req.Metadata,
			CreatedAt:      s.clock.Now(),
		}, nil
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, txn *ledgerdomain.Transaction) {
	s.audit.Record(ctx, auditdomain.Entry{
		Action:     action,
		EntityType: "transaction",
		EntityID:   txn.ID.String(),
		UserID:     &txn.UserID,
		NewValue: map[string]interface{}{
			"tokens_delta":  txn.TokensDelta,
			"description":   txn.Description,
			"balance_after": txn.BalanceAfter,
		},
	})
}

// applyWithRetry runs one optimistic balance update. The conditional
// UPDATE on balance_version detects concurrent writers; losers retry
// with exponential backoff before giving up with
// ErrConcurrentModification.
func (s *Service) applyWithRetry(
	ctx context.Context,
	userID int64,
	idempotencyKey *string,
	build func(u *userdomain.User) (*ledgerdomain.Transaction, error),
) (*ledgerdomain.Transaction, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.Multiplier = 4
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Second

	var result *ledgerdomain.Transaction
	attempt := func() error {
		txn, err := s.applyOnce(ctx, userID, idempotencyKey, build)
		if err != nil {
			if errors.Is(err, ledgerdomain.ErrConcurrentModification) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = txn
		return nil
	}
	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx))
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrConcurrentModification) {
			metrics.LedgerConflictsTotal.Inc()
			s.log.Warn("balance update lost optimistic race", zap.Int64("user_id", userID))
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) applyOnce(
	ctx context.Context,
	userID int64,
	idempotencyKey *string,
	build func(u *userdomain.User) (*ledgerdomain.Transaction, error),
) (*ledgerdomain.Transaction, error) {
	var result *ledgerdomain.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		txn, err := s.applyIn(ctx, tx, userID, idempotencyKey, build)
		if err != nil {
			return err
		}
		result = txn
		return nil
	})
	if err != nil {
		if errors.Is(err, errReplay) && idempotencyKey != nil {
			return s.repo.GetByIdempotencyKey(ctx, s.db, *idempotencyKey)
		}
		return nil, err
	}
	return result, nil
}

// applyIn performs the guarded balance mutation within tx. An
// idempotent replay returns the stored transaction without touching the
// balance.
func (s *Service) applyIn(
	ctx context.Context,
	tx *gorm.DB,
	userID int64,
	idempotencyKey *string,
	build func(u *userdomain.User) (*ledgerdomain.Transaction, error),
) (*ledgerdomain.Transaction, error) {
	if idempotencyKey != nil {
		existing, err := s.repo.GetByIdempotencyKey(ctx, tx, *idempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	user, err := s.userRepo.GetByID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	txn, err := build(user)
	if err != nil {
		return nil, err
	}

	affected, err := s.userRepo.UpdateBalance(ctx, tx, user.ID, txn.TokensDelta, user.BalanceVersion)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ledgerdomain.ErrConcurrentModification
	}

	if err := s.repo.Insert(ctx, tx, txn); err != nil {
		if db.IsDuplicateKeyErr(err) && idempotencyKey != nil {
			return nil, errReplay
		}
		return nil, err
	}

	if txn.TokensDelta > 0 {
		if err := s.userRepo.ResetBalanceNotification(ctx, tx, user.ID); err != nil {
			return nil, err
		}
	}
	metrics.LedgerTransactionsTotal.WithLabelValues(string(txn.Type)).Inc()
	return txn, nil
}
