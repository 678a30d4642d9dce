package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/kelaspay/kelaspay/internal/checkout"
	checkoutdomain "github.com/kelaspay/kelaspay/internal/checkout/domain"
	"github.com/kelaspay/kelaspay/internal/config"
	"github.com/kelaspay/kelaspay/internal/course"
	coursedomain "github.com/kelaspay/kelaspay/internal/course/domain"
	"github.com/kelaspay/kelaspay/internal/enrollment"
	"github.com/kelaspay/kelaspay/internal/notification"
	notificationdomain "github.com/kelaspay/kelaspay/internal/notification/domain"
	"github.com/kelaspay/kelaspay/internal/observability"
	obslogger "github.com/kelaspay/kelaspay/internal/observability/logger"
	obsmetrics "github.com/kelaspay/kelaspay/internal/observability/metrics"
	obstracing "github.com/kelaspay/kelaspay/internal/observability/tracing"
	"github.com/kelaspay/kelaspay/internal/payment"
	paymentdomain "github.com/kelaspay/kelaspay/internal/payment/domain"
	"github.com/kelaspay/kelaspay/internal/payment/webhook"
	"github.com/kelaspay/kelaspay/internal/promo"
	"github.com/kelaspay/kelaspay/internal/providers/email"
	"github.com/kelaspay/kelaspay/internal/providers/pdf"
	"github.com/kelaspay/kelaspay/internal/ratelimit"
	"github.com/kelaspay/kelaspay/internal/transaction"
	txndomain "github.com/kelaspay/kelaspay/internal/transaction/domain"
	"github.com/kelaspay/kelaspay/internal/user"
	userdomain "github.com/kelaspay/kelaspay/internal/user/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	ratelimit.Module,
	email.Module,
	pdf.Module,
	user.Module,
	course.Module,
	promo.Module,
	transaction.Module,
	enrollment.Module,
	notification.Module,
	payment.Module,
	checkout.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
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

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
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
	engine           *gin.Engine
	cfg              config.Config
	settings         *config.CheckoutConfigHolder
	db               *gorm.DB
	genID            *snowflake.Node
	checkoutSvc      checkoutdomain.Service
	webhookSvc       *webhook.Service
	gateway          paymentdomain.Gateway
	txnRepo          txndomain.Repository
	userRepo         userdomain.Repository
	courseRepo       coursedomain.Repository
	notificationRepo notificationdomain.Repository
	receipts         pdf.Provider
	obsMetrics       *obsmetrics.Metrics

	checkoutLimiter *rateLimiter
	channelsLimiter *rateLimiter
	channelsCache   *paymentChannelsCache
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	Settings         *config.CheckoutConfigHolder
	DB               *gorm.DB
	GenID            *snowflake.Node
	CheckoutSvc      checkoutdomain.Service
	WebhookSvc       *webhook.Service
	Gateway          paymentdomain.Gateway
	TxnRepo          txndomain.Repository
	UserRepo         userdomain.Repository
	CourseRepo       coursedomain.Repository
	NotificationRepo notificationdomain.Repository
	Receipts         pdf.Provider
	ObsMetrics       *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	channelsTTL := p.Settings.Get().ChannelsTTL
	if channelsTTL <= 0 {
		channelsTTL = 2 * time.Minute
	}

	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		settings:         p.Settings,
		db:               p.DB,
		genID:            p.GenID,
		checkoutSvc:      p.CheckoutSvc,
		webhookSvc:       p.WebhookSvc,
		gateway:          p.Gateway,
		txnRepo:          p.TxnRepo,
		userRepo:         p.UserRepo,
		courseRepo:       p.CourseRepo,
		notificationRepo: p.NotificationRepo,
		receipts:         p.Receipts,
		obsMetrics:       p.ObsMetrics,
		checkoutLimiter:  newRateLimiter(5, time.Minute),
		channelsLimiter:  newRateLimiter(30, time.Minute),
		channelsCache:    newPaymentChannelsCache(channelsTTL),
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/checkout", s.rateLimit(s.checkoutLimiter), s.Checkout)
	api.GET("/payment/channels", s.rateLimit(s.channelsLimiter), s.ListPaymentChannels)

	api.GET("/courses", s.ListCourses)
	api.GET("/courses/:slug", s.GetCourse)

	api.GET("/transactions", s.ListTransactions)
	api.GET("/transactions/:id", s.GetTransaction)
	api.GET("/transactions/:id/receipt", s.DownloadReceipt)

	api.GET("/notifications", s.ListNotifications)
}

func (s *Server) registerWebhookRoutes() {
	webhooks := s.engine.Group("/api/payments/webhooks")

	webhooks.POST("/tripay", s.TripayWebhook)
}
