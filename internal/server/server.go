// Package server wires the HTTP surface: payment webhook, Token API,
// billing endpoints, task streaming and operational probes.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/resumehub/billing/internal/clock"
	"github.com/resumehub/billing/internal/config"
	invoicedomain "github.com/resumehub/billing/internal/invoice/domain"
	ledgerdomain "github.com/resumehub/billing/internal/ledger/domain"
	notifierdomain "github.com/resumehub/billing/internal/notifier/domain"
	paymentdomain "github.com/resumehub/billing/internal/payment/domain"
	"github.com/resumehub/billing/internal/ratelimit"
	subscriptiondomain "github.com/resumehub/billing/internal/subscription/domain"
	tariffdomain "github.com/resumehub/billing/internal/tariff/domain"
	taskdomain "github.com/resumehub/billing/internal/taskbill/domain"
	userdomain "github.com/resumehub/billing/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log             *zap.Logger
	Config          config.Config
	DB              *gorm.DB
	Clock           clock.Clock
	Limiter         ratelimit.Limiter
	UserSvc         userdomain.Service
	LedgerSvc       ledgerdomain.Service
	TariffSvc       tariffdomain.Service
	InvoiceSvc      invoicedomain.Service
	PaymentSvc      paymentdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	TaskSvc         taskdomain.Service
	NotifierSvc     notifierdomain.Service
}

type Server struct {
	log           *zap.Logger
	cfg           config.Config
	db            *gorm.DB
	clock         clock.Clock
	limiter       ratelimit.Limiter
	users         userdomain.Service
	ledger        ledgerdomain.Service
	tariffs       tariffdomain.Service
	invoices      invoicedomain.Service
	payment       paymentdomain.Service
	subscriptions subscriptiondomain.Service
	tasks         taskdomain.Service
	notifier      notifierdomain.Service

	engine *gin.Engine
}

func New(p Params) *Server {
	s := &Server{
		log:           p.Log.Named("server"),
		cfg:           p.Config,
		db:            p.DB,
		clock:         p.Clock,
		limiter:       p.Limiter,
		users:         p.UserSvc,
		ledger:        p.LedgerSvc,
		tariffs:       p.TariffSvc,
		invoices:      p.InvoiceSvc,
		payment:       p.PaymentSvc,
		subscriptions: p.SubscriptionSvc,
		tasks:         p.TaskSvc,
		notifier:      p.NotifierSvc,
	}
	s.engine = s.buildEngine()
	return s
}

func (s *Server) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(s.log))

	engine.GET("/health", s.handleHealth)
	engine.GET("/ready", s.handleReady)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.POST("/webhook/:provider", s.handleWebhook)
	if s.cfg.PaymentProvider == "mock" {
		engine.GET("/pay/:invoice_id", s.handlePaymentPage)
	}

	api := engine.Group("/api/v1", bearerAuth(s.cfg.APISecret))
	api.GET("/tariffs", s.handleTariffs)
	api.POST("/invoices/:invoice_id/cancel", s.handleInvoiceCancel)

	users := api.Group("/users/:id", rateLimit(s.limiter))
	users.PUT("", s.handleEnsureUser)
	users.GET("/balance", s.handleBalance)
	users.POST("/spend", s.handleSpend)
	users.GET("/transactions", s.handleTransactions)
	users.POST("/invoices/preview", s.handleInvoicePreview)
	users.POST("/invoices", s.handleInvoiceCreate)
	users.GET("/subscription", s.handleSubscriptionStatus)
	users.POST("/subscription/renew", s.handleSubscriptionRenew)
	users.POST("/subscription/auto-renew", s.handleToggleAutoRenew)
	users.POST("/tasks", s.handleTaskRun)
	users.POST("/tasks/cancel", s.handleTaskCancel)

	return engine
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReady pings the store; a failing store makes the process
// non-ready but not unhealthy. Compute-service reachability is
// reported but does not gate readiness.
func (s *Server) handleReady(c *gin.Context) {
	if err := s.db.WithContext(c.Request.Context()).Exec("SELECT 1").Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	runner := "ok"
	if err := s.tasks.RunnerHealthy(c.Request.Context()); err != nil {
		runner = "unreachable"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "runner": runner})
}

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(Register),
)

// Register binds the HTTP server to the fx lifecycle.
func Register(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
