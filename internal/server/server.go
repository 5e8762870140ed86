package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	_ "github.com/cyphera/grantpay/docs"
	"github.com/cyphera/grantpay/internal/accounts"
	httpclient "github.com/cyphera/grantpay/internal/client/http"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/cyphera/grantpay/internal/config"
	"github.com/cyphera/grantpay/internal/events"
	"github.com/cyphera/grantpay/internal/grants"
	"github.com/cyphera/grantpay/internal/handlers"
	"github.com/cyphera/grantpay/internal/ledger"
	"github.com/cyphera/grantpay/internal/middleware"
	"github.com/cyphera/grantpay/internal/notify"
	"github.com/cyphera/grantpay/internal/payments"
	"github.com/cyphera/grantpay/internal/qrbundle"
	"github.com/cyphera/grantpay/internal/services"
	"github.com/cyphera/grantpay/internal/session"
	"github.com/cyphera/grantpay/internal/store"
	"github.com/cyphera/grantpay/internal/wallet"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const (
	maxBodyBytes = 1 << 20
	qrImageSize  = 256
)

// Dependencies overrides the external collaborators of a Server. Nil fields are built from the
// configuration.
type Dependencies struct {
	Store     store.Store
	Wallets   openpayments.WalletClient
	Auth      openpayments.AuthClient
	Resources openpayments.ResourceClient
	Publisher events.Publisher
	Notifier  notify.Notifier
}

// Server owns the wired components and their handlers.
type Server struct {
	cfg         *config.Config
	logger      *zap.Logger
	closeStore  func() error
	rateLimiter *middleware.RateLimiter
	grants      *services.VendorGrantService

	healthHandler  *handlers.HealthHandler
	sessionHandler *handlers.SessionHandler
	accountHandler *handlers.AccountHandler
	grantHandler   *handlers.GrantHandler
	qrHandler      *handlers.QRHandler
}

// New wires every component from cfg, using deps where given.
func New(ctx context.Context, cfg *config.Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger, closeStore: func() error { return nil }}

	st := deps.Store
	if st == nil {
		var err error
		st, s.closeStore, err = openStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	if deps.Wallets == nil || deps.Auth == nil || deps.Resources == nil {
		client, err := newOpenPaymentsClient(cfg)
		if err != nil {
			return nil, err
		}
		if deps.Wallets == nil {
			deps.Wallets = client
		}
		if deps.Auth == nil {
			deps.Auth = client
		}
		if deps.Resources == nil {
			deps.Resources = client
		}
	}

	if deps.Publisher == nil {
		publisher, err := newPublisher(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		deps.Publisher = publisher
	}

	if deps.Notifier == nil {
		if cfg.ResendAPIKey != "" {
			deps.Notifier = notify.NewEmailNotifier(cfg.ResendAPIKey, cfg.EmailFromAddress, cfg.EmailFromName, logger)
		} else {
			logger.Info("RESEND_API_KEY not set, authorization e-mails are disabled")
			deps.Notifier = notify.NoopNotifier{}
		}
	}

	wallets := wallet.NewDirectory(deps.Wallets, cfg.WalletCacheTTL, logger)
	negotiator := grants.NewNegotiator(deps.Auth, cfg.ClientWalletAddress, logger)
	pipeline := payments.NewPipeline(negotiator, deps.Resources, cfg.IncomingPaymentTTL, logger)
	grantLedger := ledger.New(st, cfg.LedgerTimeZone, logger)
	directory := accounts.NewDirectory(st)

	instantPay := services.NewInstantPayService(
		wallets,
		negotiator,
		pipeline,
		session.NewCache(st),
		deps.Publisher,
		services.InstantPayConfig{
			PublicBaseURL: cfg.PublicBaseURL,
			SessionTTL:    cfg.SessionTTL,
			Timeout:       cfg.DownstreamTimeout,
		},
		logger,
	)
	s.grants = services.NewVendorGrantService(
		directory,
		wallets,
		grantLedger,
		negotiator,
		pipeline,
		deps.Notifier,
		deps.Publisher,
		services.VendorGrantConfig{
			PublicBaseURL: cfg.PublicBaseURL,
			Timeout:       cfg.DownstreamTimeout,
		},
		logger,
	)
	qr := services.NewQRService(
		directory,
		qrbundle.NewBundler(grantLedger, []byte(cfg.QRSigningSecret)),
		qrbundle.NewRenderer(qrImageSize),
		logger,
	)

	s.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	var probe handlers.Pinger
	if pinger, ok := st.(handlers.Pinger); ok {
		probe = pinger
	}
	s.healthHandler = handlers.NewHealthHandler(cfg.Stage, probe)
	s.sessionHandler = handlers.NewSessionHandler(instantPay)
	s.accountHandler = handlers.NewAccountHandler(s.grants)
	s.grantHandler = handlers.NewGrantHandler(s.grants)
	s.qrHandler = handlers.NewQRHandler(qr)

	return s, nil
}

// InitializeRoutes installs middleware and routes on router.
func (s *Server) InitializeRoutes(router *gin.Engine) {
	router.Use(middleware.CorrelationIDMiddleware())
	router.Use(configureCORS(s.cfg.CORSAllowedOrigins))
	router.Use(s.rateLimiter.Middleware())
	router.Use(middleware.RequestLoggingMiddleware())

	// if we are not in production, log request details
	if s.cfg.Stage != config.StageProd {
		router.Use(middleware.EnhancedLoggingMiddleware(true))
	}
	router.Use(middleware.MaxBodySize(maxBodyBytes))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", s.healthHandler.Health)

	terminal := middleware.RequireAPIKey(s.cfg.APIKey)

	v1 := router.Group("/api/v1")
	{
		// Payment sessions
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", s.sessionHandler.StartSession)
			sessions.GET("/:session_id/callback", s.sessionHandler.SessionCallback)
			sessions.POST("/:session_id/approve", s.sessionHandler.ApproveSession)
		}

		// Customers
		customers := v1.Group("/customers")
		{
			customers.POST("", s.accountHandler.CreateCustomer)
			customers.GET("/:customer_id", s.accountHandler.GetCustomer)
			customers.GET("/:customer_id/grants", s.grantHandler.ListCustomerGrants)
			customers.POST("/:customer_id/qr", s.qrHandler.IssueBundle)
		}

		// Vendors
		vendors := v1.Group("/vendors")
		{
			vendors.POST("", s.accountHandler.CreateVendor)
			vendors.GET("/:vendor_id", s.accountHandler.GetVendor)
		}

		// Vendor authorizations
		grantRoutes := v1.Group("/grants")
		{
			grantRoutes.POST("", s.grantHandler.AuthorizeVendor)
			grantRoutes.GET("/:grant_id", s.grantHandler.GetGrant)
			grantRoutes.GET("/:grant_id/callback", s.grantHandler.GrantCallback)
			grantRoutes.POST("/:grant_id/payments", terminal, s.grantHandler.ProcessPayment)
			grantRoutes.POST("/:grant_id/suspend", terminal, s.grantHandler.SuspendGrant)
		}

		// Vendor terminals
		v1.POST("/qr/verify", terminal, s.qrHandler.VerifyBundle)

		// Admin
		admin := v1.Group("/admin")
		admin.Use(terminal)
		{
			admin.POST("/sweep", s.grantHandler.Sweep)
		}
	}
}

// RunSweeper expires lapsed authorizations every interval until ctx is done.
func (s *Server) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.grants.Sweep(ctx); err != nil {
				s.logger.Error("Scheduled grant sweep failed", zap.Error(err))
			}
		}
	}
}

// Close releases the rate limiter and the store.
func (s *Server) Close() error {
	s.rateLimiter.Stop()
	return s.closeStore()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func() error, error) {
	if cfg.StoreDriver != config.StorePostgres {
		logger.Info("Using in-memory store")
		return store.NewMemoryStore(), func() error { return nil }, nil
	}

	pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	logger.Info("Using postgres store")
	return pg, pg.Close, nil
}

func newOpenPaymentsClient(cfg *config.Config) (*openpayments.Client, error) {
	var signer *httpclient.Signer
	if cfg.ClientPrivateKey != "" {
		key, err := httpclient.ParsePrivateKey(cfg.ClientPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid CLIENT_PRIVATE_KEY: %w", err)
		}
		signer = httpclient.NewSigner(cfg.ClientKeyID, key)
	}

	return openpayments.NewClient(openpayments.Config{
		Signer:        signer,
		Timeout:       cfg.DownstreamTimeout,
		WalletRetries: cfg.WalletLookupRetries,
	}), nil
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	if cfg.SQSQueueURL == "" {
		logger.Info("SQS_QUEUE_URL not set, settlement events are disabled")
		return events.NoopPublisher{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return events.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL, logger), nil
}

// configureCORS returns a configured CORS middleware
func configureCORS(origins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	if len(origins) == 0 {
		// Default to localhost if not set
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		corsConfig.AllowOrigins = origins
	}

	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.APIKeyHeader, middleware.CorrelationIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.CorrelationIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"}

	return cors.New(corsConfig)
}
