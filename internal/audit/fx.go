package audit

import (
	"github.com/resumehub/billing/internal/audit/repository"
	"github.com/resumehub/billing/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
