package main

import (
	"github.com/resumehub/billing/internal/audit"
	"github.com/resumehub/billing/internal/clock"
	"github.com/resumehub/billing/internal/config"
	"github.com/resumehub/billing/internal/invoice"
	"github.com/resumehub/billing/internal/ledger"
	"github.com/resumehub/billing/internal/logger"
	"github.com/resumehub/billing/internal/migration"
	"github.com/resumehub/billing/internal/notifier"
	"github.com/resumehub/billing/internal/payment"
	"github.com/resumehub/billing/internal/promo"
	"github.com/resumehub/billing/internal/ratelimit"
	"github.com/resumehub/billing/internal/scheduler"
	"github.com/resumehub/billing/internal/seed"
	"github.com/resumehub/billing/internal/server"
	"github.com/resumehub/billing/internal/subscription"
	"github.com/resumehub/billing/internal/tariff"
	"github.com/resumehub/billing/internal/taskbill"
	"github.com/resumehub/billing/internal/user"
	"github.com/resumehub/billing/pkg/db"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		db.Module,
		migration.Module,

		audit.Module,
		user.Module,
		tariff.Module,
		promo.Module,
		ledger.Module,
		invoice.Module,
		payment.Module,
		subscription.Module,
		notifier.Module,
		taskbill.Module,
		ratelimit.Module,

		seed.Module,
		scheduler.Module,
		server.Module,
	).Run()
}
