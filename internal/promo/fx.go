package promo

import (
	"github.com/resumehub/billing/internal/promo/repository"
	"github.com/resumehub/billing/internal/promo/service"
	"go.uber.org/fx"
)

var Module = fx.Module("promo.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
