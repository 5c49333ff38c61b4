package payment

import (
	"github.com/resumehub/billing/internal/config"
	paymentdomain "github.com/resumehub/billing/internal/payment/domain"
	"github.com/resumehub/billing/internal/payment/providers/mock"
	"github.com/resumehub/billing/internal/payment/providers/robokassa"
	"github.com/resumehub/billing/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideProvider selects the payment gateway implementation from
// configuration.
func ProvideProvider(cfg config.Config, log *zap.Logger) paymentdomain.Provider {
	switch cfg.PaymentProvider {
	case "robokassa":
		return robokassa.New(cfg, log)
	default:
		return mock.New(cfg, log)
	}
}

var Module = fx.Module("payment.service",
	fx.Provide(ProvideProvider),
	fx.Provide(service.NewService),
)
