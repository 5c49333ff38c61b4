package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/resumehub/billing/internal/clock"
	"github.com/resumehub/billing/internal/config"
	ledgerdomain "github.com/resumehub/billing/internal/ledger/domain"
	notifierdomain "github.com/resumehub/billing/internal/notifier/domain"
	"github.com/resumehub/billing/internal/observability/metrics"
	subscriptiondomain "github.com/resumehub/billing/internal/subscription/domain"
	userdomain "github.com/resumehub/billing/internal/user/domain"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// expiredMarker in last_subscription_notification means the lapsed
// notice has been sent for this cycle.
const expiredMarker = -1

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Config      config.Config
	UserRepo    userdomain.Repository
	LedgerSvc   ledgerdomain.Service
	NotifierSvc notifierdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	cfg      config.Config
	userRepo userdomain.Repository
	ledger   ledgerdomain.Service
	notifier notifierdomain.Service

	// renewalFailedAt dedupes renewal_failed notices to one per user
	// per day. The core is single-process; restart resets the map and
	// the worst case is one extra notice.
	mu              sync.Mutex
	renewalFailedAt map[int64]time.Time
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("subscription.service"),
		clock:           p.Clock,
		cfg:             p.Config,
		userRepo:        p.UserRepo,
		ledger:          p.LedgerSvc,
		notifier:        p.NotifierSvc,
		renewalFailedAt: make(map[int64]time.Time),
	}
}

func (s *Service) Status(ctx context.Context, userID int64) (*subscriptiondomain.Status, error) {
	user, err := s.userRepo.GetByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return s.statusOf(user), nil
}

func (s *Service) statusOf(user *userdomain.User) *subscriptiondomain.Status {
	now := s.clock.Now()
	fee := s.cfg.SubscriptionRenewalPrice
	st := &subscriptiondomain.Status{
		State:        subscriptiondomain.StateNone,
		End:          user.SubscriptionEnd,
		AutoRenew:    user.AutoRenew,
		RenewalPrice: fee,
		CanAutoRenew: user.Balance >= float64(fee),
	}
	if user.SubscriptionEnd == nil {
		return st
	}
	if user.SubscriptionEnd.After(now) {
		st.State = subscriptiondomain.StateActive
		st.DaysLeft = int(user.SubscriptionEnd.Sub(now).Hours() / 24)
	} else {
		st.State = subscriptiondomain.StateExpired
	}
	return st
}

func (s *Service) ManualRenew(ctx context.Context, userID int64) (*subscriptiondomain.Status, error) {
	user, err := s.userRepo.GetByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if err := s.renew(ctx, user, "manual"); err != nil {
		return nil, err
	}
	return s.Status(ctx, userID)
}

func (s *Service) ToggleAutoRenew(ctx context.Context, userID int64) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, s.db, userID)
	if err != nil {
		return false, err
	}
	enabled := !user.AutoRenew
	if err := s.userRepo.SetAutoRenew(ctx, s.db, userID, enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// renew debits the fee and advances subscription_end by the renewal
// period, anchored at the current end when still in the future.
func (s *Service) renew(ctx context.Context, user *userdomain.User, kind string) error {
	now := s.clock.Now()
	fee := float64(s.cfg.SubscriptionRenewalPrice)

	_, err := s.ledger.Debit(ctx, ledgerdomain.DebitRequest{
		UserID:      user.ID,
		Amount:      fee,
		Type:        ledgerdomain.TypeSubscription,
		Description: fmt.Sprintf("Продление подписки на %d дней", s.cfg.SubscriptionRenewalDays),
	})
	if err != nil {
		metrics.SubscriptionRenewalsTotal.WithLabelValues(kind, "failed").Inc()
		return err
	}

	base := now
	if user.SubscriptionEnd != nil && user.SubscriptionEnd.After(now) {
		base = *user.SubscriptionEnd
	}
	newEnd := base.AddDate(0, 0, s.cfg.SubscriptionRenewalDays)
	if err := s.userRepo.UpdateSubscriptionEnd(ctx, s.db, user.ID, newEnd); err != nil {
		return err
	}
	if err := s.userRepo.ResetSubscriptionNotification(ctx, s.db, user.ID); err != nil {
		return err
	}

	metrics.SubscriptionRenewalsTotal.WithLabelValues(kind, "success").Inc()
	s.notifier.Notify(ctx, notifierdomain.Notification{
		UserID:  user.ID,
		Kind:    notifierdomain.KindRenewalSuccess,
		Message: fmt.Sprintf("Подписка продлена до %s", newEnd.Format("02.01.2006")),
		Payload: map[string]interface{}{"subscription_end": newEnd},
	})
	return nil
}

func (s *Service) NotifyExpiring(ctx context.Context) (int, error) {
	now := s.clock.Now()
	buckets := s.cfg.SubscriptionNotifyDays
	maxBucket := lo.Max(buckets)

	users, err := s.userRepo.ExpiringWithin(ctx, s.db, now, time.Duration(maxBucket+1)*24*time.Hour)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range users {
		user := &users[i]
		daysLeft := int(user.SubscriptionEnd.Sub(now).Hours() / 24)
		bucket := pickBucket(buckets, daysLeft, user.LastSubscriptionNotification)
		if bucket == nil {
			continue
		}
		if err := s.userRepo.SetSubscriptionNotification(ctx, s.db, user.ID, *bucket); err != nil {
			s.log.Error("persisting expiry notification marker failed",
				zap.Int64("user_id", user.ID), zap.Error(err))
			continue
		}
		s.notifier.Notify(ctx, notifierdomain.Notification{
			UserID:  user.ID,
			Kind:    notifierdomain.KindSubscriptionExpiry,
			Message: expiryMessage(daysLeft),
			Payload: map[string]interface{}{"days_left": daysLeft, "subscription_end": user.SubscriptionEnd},
		})
		sent++
	}
	return sent, nil
}

// pickBucket returns the smallest bucket covering daysLeft that has not
// fired this cycle. Smaller buckets may fire after larger ones; never
// the reverse.
func pickBucket(buckets []int, daysLeft int, last *int) *int {
	best := (*int)(nil)
	for i := range buckets {
		b := buckets[i]
		if daysLeft > b {
			continue
		}
		if last != nil && *last <= b {
			continue
		}
		if best == nil || b < *best {
			best = &buckets[i]
		}
	}
	return best
}

func expiryMessage(daysLeft int) string {
	switch {
	case daysLeft <= 0:
		return "Подписка истекает сегодня"
	case daysLeft == 1:
		return "Подписка истекает завтра"
	default:
		return fmt.Sprintf("Подписка истекает через %d дн.", daysLeft)
	}
}

func (s *Service) AutoRenew(ctx context.Context) (int, error) {
	now := s.clock.Now()
	users, err := s.userRepo.AutoRenewCandidates(ctx, s.db, now.Add(24*time.Hour))
	if err != nil {
		return 0, err
	}

	renewed := 0
	for i := range users {
		user := &users[i]
		// Re-read: the sweep list may be stale by the time we act.
		fresh, err := s.userRepo.GetByID(ctx, s.db, user.ID)
		if err != nil {
			s.log.Error("auto-renew re-read failed", zap.Int64("user_id", user.ID), zap.Error(err))
			continue
		}
		if fresh.Balance < float64(s.cfg.SubscriptionRenewalPrice) {
			s.notifyRenewalFailed(ctx, fresh, now)
			continue
		}
		if err := s.renew(ctx, fresh, "auto"); err != nil {
			if errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
				s.notifyRenewalFailed(ctx, fresh, now)
				continue
			}
			s.log.Error("auto-renew failed", zap.Int64("user_id", user.ID), zap.Error(err))
			continue
		}
		renewed++
	}
	return renewed, nil
}

func (s *Service) notifyRenewalFailed(ctx context.Context, user *userdomain.User, now time.Time) {
	s.mu.Lock()
	last, seen := s.renewalFailedAt[user.ID]
	if seen && sameDay(last, now) {
		s.mu.Unlock()
		return
	}
	s.renewalFailedAt[user.ID] = now
	s.mu.Unlock()

	metrics.SubscriptionRenewalsTotal.WithLabelValues("auto", "insufficient_balance").Inc()
	s.notifier.Notify(ctx, notifierdomain.Notification{
		UserID:  user.ID,
		Kind:    notifierdomain.KindRenewalFailed,
		Message: fmt.Sprintf("Недостаточно токенов для продления подписки: нужно %d", s.cfg.SubscriptionRenewalPrice),
		Payload: map[string]interface{}{"required": s.cfg.SubscriptionRenewalPrice, "balance": user.Balance},
	})
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	users, err := s.userRepo.Expired(ctx, s.db, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range users {
		user := &users[i]
		if user.LastSubscriptionNotification != nil && *user.LastSubscriptionNotification == expiredMarker {
			continue
		}
		if err := s.userRepo.SetSubscriptionNotification(ctx, s.db, user.ID, expiredMarker); err != nil {
			s.log.Error("persisting expired marker failed",
				zap.Int64("user_id", user.ID), zap.Error(err))
			continue
		}
		s.notifier.Notify(ctx, notifierdomain.Notification{
			UserID:  user.ID,
			Kind:    notifierdomain.KindSubscriptionExpired,
			Message: "Подписка истекла",
			Payload: map[string]interface{}{"subscription_end": user.SubscriptionEnd},
		})
		sent++
	}
	return sent, nil
}
