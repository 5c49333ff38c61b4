package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/resumehub/billing/internal/config"
	notifierdomain "github.com/resumehub/billing/internal/notifier/domain"
	"github.com/resumehub/billing/internal/observability/metrics"
	userdomain "github.com/resumehub/billing/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Config   config.Config
	Sender   notifierdomain.Sender
	UserRepo userdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	thresholds []int
	sender     notifierdomain.Sender
	userRepo   userdomain.Repository
}

func NewService(p Params) notifierdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("notifier.service"),
		thresholds: p.Config.BalanceNotifyThresholds,
		sender:     p.Sender,
		userRepo:   p.UserRepo,
	}
}

func (s *Service) Notify(ctx context.Context, n notifierdomain.Notification) {
	err := s.sender.Send(ctx, n)
	switch {
	case err == nil:
		metrics.NotificationsTotal.WithLabelValues(n.Kind, "sent").Inc()
	case errors.Is(err, notifierdomain.ErrBlocked):
		metrics.NotificationsTotal.WithLabelValues(n.Kind, "blocked").Inc()
		s.log.Info("recipient blocked outbound channel",
			zap.Int64("user_id", n.UserID), zap.String("kind", n.Kind))
	case errors.Is(err, notifierdomain.ErrMalformed):
		metrics.NotificationsTotal.WithLabelValues(n.Kind, "malformed").Inc()
		s.log.Error("malformed notification payload",
			zap.Int64("user_id", n.UserID), zap.String("kind", n.Kind), zap.Error(err))
	default:
		metrics.NotificationsTotal.WithLabelValues(n.Kind, "failed").Inc()
		s.log.Error("notification delivery failed",
			zap.Int64("user_id", n.UserID), zap.String("kind", n.Kind), zap.Error(err))
	}
}

// ShouldNotifyLowBalance picks the largest threshold at or above the
// balance that has not been announced yet. A previously announced
// threshold suppresses itself and every larger one until a credit
// resets the marker.
func (s *Service) ShouldNotifyLowBalance(balanceAfter float64, lastNotified *int) *int {
	for _, t := range s.thresholds {
		if balanceAfter > float64(t) {
			continue
		}
		if lastNotified != nil && *lastNotified <= t {
			continue
		}
		threshold := t
		return &threshold
	}
	return nil
}

func (s *Service) NotifyLowBalance(ctx context.Context, userID int64, balanceAfter float64) {
	user, err := s.userRepo.GetByID(ctx, s.db, userID)
	if err != nil {
		s.log.Error("low balance check failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	threshold := s.ShouldNotifyLowBalance(balanceAfter, user.LastBalanceNotification)
	if threshold == nil {
		return
	}
	if err := s.userRepo.SetBalanceNotification(ctx, s.db, userID, *threshold); err != nil {
		s.log.Error("persisting balance notification marker failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	s.Notify(ctx, notifierdomain.Notification{
		UserID:  userID,
		Kind:    notifierdomain.KindLowBalance,
		Message: fmt.Sprintf("Баланс токенов опустился до %.2f", balanceAfter),
		Payload: map[string]interface{}{"balance": balanceAfter, "threshold": *threshold},
	})
}
