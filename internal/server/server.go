package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/storefront/internal/cart"
	"github.com/smallbiznis/storefront/internal/catalog"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/catalogsync"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability"
	obsmiddleware "github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	obstracing "github.com/smallbiznis/storefront/internal/observability/tracing"
	"github.com/smallbiznis/storefront/internal/order"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/payment"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/smallbiznis/storefront/internal/pricetier"
	pricetierdomain "github.com/smallbiznis/storefront/internal/pricetier/domain"
	"github.com/smallbiznis/storefront/internal/processor"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	processor.Module,
	catalogsync.Module,
	catalog.Module,
	pricetier.Module,
	cart.Module,
	order.Module,
	payment.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	catalogSvc   catalogdomain.Service
	priceTierSvc pricetierdomain.Service
	orderSvc     orderdomain.Service
	webhookSvc   paymentdomain.Service
	orderLimiter *ratelimit.OrderLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	CatalogSvc   catalogdomain.Service
	PriceTierSvc pricetierdomain.Service
	OrderSvc     orderdomain.Service
	WebhookSvc   paymentdomain.Service
	OrderLimiter *ratelimit.OrderLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		catalogSvc:   p.CatalogSvc,
		priceTierSvc: p.PriceTierSvc,
		orderSvc:     p.OrderSvc,
		webhookSvc:   p.WebhookSvc,
		orderLimiter: p.OrderLimiter,
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Orders --------
	api.POST("/orders", s.OrderRateLimit(), s.CreateOrder)
	api.POST("/orders/:id/checkout", s.StartCheckout)
	// gin needs one wildcard name per segment; the public lookup key is the order number.
	api.GET("/orders/:id", s.GetOrderByNumber)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminRequired())

	// -------- Catalog --------
	admin.POST("/products", s.CreateProduct)
	admin.GET("/products/:id", s.GetProduct)
	admin.PATCH("/products/:id", s.UpdateProduct)
	admin.POST("/products/:id/archive", s.ArchiveProduct)
	admin.POST("/products/:id/sync", s.SyncProduct)
	admin.POST("/products/:id/variants", s.CreateVariant)

	admin.GET("/variants/:id", s.GetVariant)
	admin.PATCH("/variants/:id", s.UpdateVariant)
	admin.POST("/variants/:id/sync", s.SyncVariant)

	admin.POST("/keycard-designs", s.CreateKeycardDesign)
	admin.POST("/lock-technologies", s.CreateLockTechnology)

	// -------- Tiers --------
	admin.GET("/variants/:id/tiers", s.ListVariantTiers)
	admin.PUT("/variants/:id/tiers", s.ReplaceVariantTiers)
	admin.GET("/keycards/:design_id/lock-technologies/:lock_technology_id/tiers", s.ListKeycardTiers)
	admin.PUT("/keycards/:design_id/lock-technologies/:lock_technology_id/tiers", s.ReplaceKeycardTiers)

	// -------- Orders --------
	admin.POST("/orders", s.CreateAdminOrder)
	admin.GET("/orders/:id", s.GetOrder)
	admin.PATCH("/orders/:id", s.UpdateOrder)
	admin.POST("/orders/:id/session", s.AttachOrderSession)
}

func (s *Server) registerWebhookRoutes() {
	webhooks := s.engine.Group("/webhooks")

	webhooks.POST("/stripe", s.HandleStripeWebhook)
}
