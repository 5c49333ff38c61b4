package ledger

import (
	"github.com/resumehub/billing/internal/ledger/repository"
	"github.com/resumehub/billing/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
