package notifier

import (
	"github.com/resumehub/billing/internal/notifier/sender"
	"github.com/resumehub/billing/internal/notifier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notifier.service",
	fx.Provide(sender.NewLogSender),
	fx.Provide(service.NewService),
)
