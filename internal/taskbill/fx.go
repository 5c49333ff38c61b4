package taskbill

import (
	taskdomain "github.com/resumehub/billing/internal/taskbill/domain"
	"github.com/resumehub/billing/internal/taskbill/runner"
	"github.com/resumehub/billing/internal/taskbill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("taskbill.service",
	fx.Provide(func(c *runner.Client) taskdomain.Runner { return c }),
	fx.Provide(runner.NewClient),
	fx.Provide(service.NewService),
)
