package tariff

import (
	"github.com/resumehub/billing/internal/tariff/repository"
	"github.com/resumehub/billing/internal/tariff/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tariff.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
