// Package server wires the platform's application services to a runnable
// HTTP server: config/logger bootstrap, database and Redis connections,
// the domain's application-layer services, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"

	"github.com/aidocs/platform/internal/application/access"
	"github.com/aidocs/platform/internal/application/artifact"
	"github.com/aidocs/platform/internal/application/entitlement"
	"github.com/aidocs/platform/internal/application/file"
	"github.com/aidocs/platform/internal/application/filestorage"
	"github.com/aidocs/platform/internal/application/ledger"
	"github.com/aidocs/platform/internal/application/marketplace"
	"github.com/aidocs/platform/internal/application/provider"
	"github.com/aidocs/platform/internal/application/queue"
	"github.com/aidocs/platform/internal/application/question"
	"github.com/aidocs/platform/internal/config"
	"github.com/aidocs/platform/internal/httpapi"
	"github.com/aidocs/platform/internal/identity"
	"github.com/aidocs/platform/internal/infrastructure/cache"
	"github.com/aidocs/platform/internal/infrastructure/logger"
	"github.com/aidocs/platform/internal/infrastructure/payout"
	"github.com/aidocs/platform/internal/infrastructure/storage"
	"github.com/aidocs/platform/internal/infrastructure/ws"
	"github.com/aidocs/platform/internal/observability"
	"github.com/aidocs/platform/internal/orchestrator"
)

// Server is the platform's HTTP server and the application services behind it.
type Server struct {
	config *config.Config
	logger *logger.Logger
	router *http.Server

	db         *bun.DB
	redisCache *cache.RedisCache

	identityVerifier *identity.Verifier

	ledgerSvc      *ledger.Service
	entitlementSvc *entitlement.Resolver
	accessEngine   *access.Engine
	jobQueue       *queue.Queue
	jobRepo        *storage.JobRepository
	providerFacade *provider.Facade
	artifactSvc    *artifact.Service
	questionSvc    *question.Service
	marketplaceSvc *marketplace.Service
	fileSvc         *file.Service
	orchestratorSvc *orchestrator.Orchestrator
	metrics         *observability.Metrics
	wsHub           *ws.Hub
	wsSubscriber    *ws.RedisSubscriber
	wsCancel        context.CancelFunc
}

// Option configures a Server during New.
type Option func(*Server) error

// WithConfig sets the server configuration, skipping config.Load.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) error {
		s.config = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) error {
		s.logger = l
		return nil
	}
}

// New builds a Server: loads configuration, connects to Postgres and Redis,
// constructs every application service, and registers the HTTP routes.
func New(opts ...Option) (*Server, error) {
	s := &Server{}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if s.config == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		s.config = cfg
	}
	if s.logger == nil {
		s.logger = logger.New(s.config.Logging)
		logger.SetDefault(s.logger)
	}

	if err := s.initStorage(); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	s.initServices()

	handlers := httpapi.NewHandlers(s.ledgerSvc, s.artifactSvc, s.accessEngine, s.marketplaceSvc, s.questionSvc, s.fileSvc, s.orchestratorSvc)
	authMiddleware := httpapi.NewAuthMiddleware(s.identityVerifier)
	wsHandler := ws.NewHandler(s.wsHub, s.identityVerifier, s.logger)
	router := httpapi.NewRouter(handlers, authMiddleware, s.logger, s.config.FileStorage.MaxFileSize, s.config.Metrics.Enabled, s.config.Metrics.Path, wsHandler)

	s.router = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

func (s *Server) initStorage() error {
	dbCfg := &storage.Config{
		DSN:             s.config.Database.URL,
		MaxOpenConns:    s.config.Database.MaxConnections,
		MaxIdleConns:    s.config.Database.MinConnections,
		ConnMaxLifetime: s.config.Database.MaxConnLifetime,
		ConnMaxIdleTime: s.config.Database.MaxIdleTime,
	}
	db, err := storage.NewDB(dbCfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	s.db = db

	redisCache, err := cache.NewRedisCache(s.config.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	s.redisCache = redisCache
	return nil
}

func (s *Server) initServices() {
	ledgerRepo := storage.NewLedgerRepository(s.db, s.config.Ledger.CASMaxRetries, s.config.Ledger.CASRetryBackoff)
	artifactRepo := storage.NewArtifactRepository(s.db)
	shareRepo := storage.NewShareRepository(s.db)
	purchaseRepo := storage.NewPurchaseRepository(s.db)
	planRepo := storage.NewPlanRepository(s.db)
	jobRepo := storage.NewJobRepository(s.db)
	fileRepo := storage.NewFileRepository(s.db)

	s.metrics = observability.New(prometheus.DefaultRegisterer)

	s.identityVerifier = identity.NewVerifier(s.config.Auth)
	s.ledgerSvc = ledger.NewService(ledgerRepo, s.logger, s.config.Ledger).WithMetrics(s.metrics)

	resolver, err := entitlement.NewResolver(ledgerRepo, planRepo, s.logger, entitlement.DefaultRules(), s.config.Ledger.FreeDailyChatLimit)
	if err != nil {
		s.logger.Error("entitlement resolver compile failed", "error", err)
	}
	s.entitlementSvc = resolver

	s.marketplaceSvc = marketplace.New(artifactRepo, shareRepo, purchaseRepo, s.ledgerSvc, s.logger).
		WithPayoutGateway(payout.NewGateway(s.config.Auth))
	s.accessEngine = access.NewEngine(artifactRepo, shareRepo, purchaseRepo, s.marketplaceSvc, s.logger)
	s.jobQueue = queue.New(s.redisCache.Client(), jobRepo, s.logger)
	s.jobRepo = jobRepo
	s.providerFacade = provider.New([]provider.Client{provider.NewOpenAIClient("default", s.config.Provider)}, s.config.Provider, s.logger).WithMetrics(s.metrics)
	s.artifactSvc = artifact.New(artifactRepo, s.logger)
	s.questionSvc = question.New(artifactRepo, s.ledgerSvc, s.providerFacade, s.logger)
	s.orchestratorSvc = orchestrator.New(s.entitlementSvc, s.accessEngine, s.ledgerSvc, s.jobQueue, s.jobRepo, s.logger)

	blobs, err := filestorage.NewLocalBlobStore(s.config.FileStorage.BasePath)
	if err != nil {
		s.logger.Error("blob store init failed", "error", err)
	}
	s.fileSvc = file.New(fileRepo, blobs, s.config.FileStorage.MaxFileSize, s.logger)

	s.wsHub = ws.NewHub(s.logger)
	go s.wsHub.Run()
	s.wsSubscriber = ws.NewRedisSubscriber(s.redisCache.Client(), s.wsHub, s.logger)
	wsCtx, wsCancel := context.WithCancel(context.Background())
	s.wsCancel = wsCancel
	go s.wsSubscriber.Run(wsCtx)
}

// Run starts the HTTP server and blocks until a shutdown signal arrives.
func (s *Server) Run() error {
	s.logger.Info("starting platform server", "host", s.config.Server.Host, "port", s.config.Server.Port)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- s.router.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-shutdown:
		s.logger.Info("shutdown initiated", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(ctx)
	}
}

// Shutdown gracefully stops the HTTP server and closes backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.wsCancel != nil {
		s.wsCancel()
	}
	if err := s.router.Shutdown(ctx); err != nil {
		s.logger.Error("graceful shutdown failed", "error", err)
		if err := s.router.Close(); err != nil {
			s.logger.Error("server close failed", "error", err)
		}
	}
	if s.redisCache != nil {
		if err := s.redisCache.Close(); err != nil {
			s.logger.Error("redis close failed", "error", err)
		}
	}
	if s.db != nil {
		if err := storage.Close(s.db); err != nil {
			s.logger.Error("database close failed", "error", err)
		}
	}
	s.logger.Info("server stopped")
	return nil
}

// Config returns the server configuration.
func (s *Server) Config() *config.Config { return s.config }

// Logger returns the server logger.
func (s *Server) Logger() *logger.Logger { return s.logger }

// DB returns the database connection.
func (s *Server) DB() *bun.DB { return s.db }

// Queue returns the job queue, for cmd/worker to attach worker loops to.
func (s *Server) Queue() *queue.Queue { return s.jobQueue }

// Files returns the file upload/download service.
func (s *Server) Files() *file.Service { return s.fileSvc }

// Ledger returns the points ledger service, for cmd/worker's watchdog
// refund path.
func (s *Server) Ledger() *ledger.Service { return s.ledgerSvc }

// Artifacts returns the artifact service, for cmd/worker's executors to
// read and persist generated content.
func (s *Server) Artifacts() *artifact.Service { return s.artifactSvc }

// ProviderFacade returns the AI provider facade, for cmd/worker's executors.
func (s *Server) ProviderFacade() *provider.Facade { return s.providerFacade }

// AccessEngine returns the access engine, for cmd/worker's expired-share
// sweep.
func (s *Server) AccessEngine() *access.Engine { return s.accessEngine }

// JobRepository returns the durable job record repository, for cmd/worker's
// orphan-reaper and watchdog sweeps.
func (s *Server) JobRepository() *storage.JobRepository { return s.jobRepo }

// Metrics returns the Prometheus metrics registry, for cmd/worker to attach
// to its worker loops and queue-depth sampler.
func (s *Server) Metrics() *observability.Metrics { return s.metrics }

// WSPublisher returns a job-event publisher for cmd/worker to attach to its
// worker loops, relaying job lifecycle events across the process boundary
// to whichever server process holds the subscriber's live connections.
func (s *Server) WSPublisher() *ws.RedisPublisher {
	return ws.NewRedisPublisher(s.redisCache.Client(), s.logger)
}
