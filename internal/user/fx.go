package user

import (
	"github.com/resumehub/billing/internal/user/repository"
	"github.com/resumehub/billing/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
