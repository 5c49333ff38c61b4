// Package sender ships the default outbound-channel implementation.
// The chat transport lives outside this service; the log sender stands
// in for it and is swapped for a real one at assembly time.
package sender

import (
	"context"

	notifierdomain "github.com/resumehub/billing/internal/notifier/domain"
	"go.uber.org/zap"
)

type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) notifierdomain.Sender {
	return &LogSender{log: log.Named("notifier.sender")}
}

func (s *LogSender) Send(_ context.Context, n notifierdomain.Notification) error {
	s.log.Info("notification",
		zap.Int64("user_id", n.UserID),
		zap.String("kind", n.Kind),
		zap.String("message", n.Message),
		zap.Any("payload", n.Payload),
	)
	return nil
}
