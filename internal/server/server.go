// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/guardlens/internal/board"
	"github.com/mbd888/guardlens/internal/circuitbreaker"
	"github.com/mbd888/guardlens/internal/config"
	"github.com/mbd888/guardlens/internal/health"
	"github.com/mbd888/guardlens/internal/idgen"
	"github.com/mbd888/guardlens/internal/logging"
	"github.com/mbd888/guardlens/internal/metrics"
	"github.com/mbd888/guardlens/internal/ratelimit"
	"github.com/mbd888/guardlens/internal/realtime"
	"github.com/mbd888/guardlens/internal/retry"
	"github.com/mbd888/guardlens/internal/security"
	"github.com/mbd888/guardlens/internal/sessions"
	"github.com/mbd888/guardlens/internal/traces"
	"github.com/mbd888/guardlens/internal/validation"
)

// Product identity reported by /api and /health.
const (
	ProductName = "SecureAI"
	Version     = "2.0.0"
)

// redirects maps legacy paths to their page. All are permanent.
var redirects = map[string]string{
	"/home":            "/",
	"/dashboard":       "/",
	"/fraud-detection": "/detection",
	"/ai-agents":       "/agents",
	"/ml-models":       "/models",
	"/security":        "/privacy",
	"/reports":         "/analytics",
}

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	board       *board.Board
	hub         *realtime.Hub
	store       sessions.Store
	health      *health.Registry
	rateLimiter *ratelimit.Limiter
	db          *sql.DB // nil if using in-memory
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger

	drainDelay     time.Duration
	shutdownTracer func(context.Context) error
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStore replaces the session store chosen from DATABASE_URL.
func WithStore(store sessions.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithDrainDelay sets how long Shutdown waits for load balancers before
// closing listeners.
func WithDrainDelay(d time.Duration) Option {
	return func(s *Server) {
		s.drainDelay = d
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		health:     health.NewRegistry(),
		drainDelay: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Session history: Postgres if DATABASE_URL set, otherwise in-memory
	if s.store == nil {
		if cfg.DatabaseURL != "" {
			store, err := s.openPostgres(ctx)
			if err != nil {
				return nil, err
			}
			s.store = store
		} else {
			s.store = sessions.NewMemoryStore()
			s.logger.Info("using in-memory session storage")
		}
	}

	s.hub = realtime.NewHub(logging.Component(s.logger, "realtime"),
		realtime.WithAllowedOrigins(cfg.AllowedOrigins),
	)

	s.board = board.New(
		board.WithEmitter(s.hub),
		board.WithRecorder(s.store),
		board.WithLogger(logging.Component(s.logger, "board")),
		board.WithSeed(uint64(cfg.SimSeed)),
	)

	s.health.Register("simulation", func(_ context.Context) health.Status {
		mounted := 0
		for _, p := range s.board.Pages() {
			if p.Mounted {
				mounted++
			}
		}
		return health.Status{Name: "simulation", Healthy: true, Detail: fmt.Sprintf("%d pages mounted", mounted)}
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// openPostgres connects, waits for the database to accept connections,
// creates the schema and returns a breaker-guarded store.
func (s *Server) openPostgres(ctx context.Context) (sessions.Store, error) {
	db, err := sql.Open("postgres", s.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := retry.Do(ctx, retry.Connect, db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pg := sessions.NewPostgresStore(db)
	if err := pg.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sessions schema: %w", err)
	}

	s.db = db
	s.health.Register("database", health.PingChecker("database", db))
	s.logger.Info("using PostgreSQL session storage", "url", maskDSN(s.cfg.DatabaseURL))

	breaker := circuitbreaker.New(5, 30*time.Second,
		circuitbreaker.OnTransition(func(key string, from, to circuitbreaker.State) {
			metrics.BreakerTransitionsTotal.WithLabelValues(key, from.String(), to.String()).Inc()
			s.logger.Warn("session store circuit changed", "key", key, "from", from.String(), "to", to.String())
		}),
	)
	return sessions.NewGuardedStore(pg, breaker), nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CacheMiddleware("/static/"))
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))

	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	rl := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rl.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	if s.cfg.RateLimitBurst > 0 {
		rl.BurstSize = s.cfg.RateLimitBurst
	}
	s.rateLimiter = ratelimit.New(rl)
	s.router.Use(s.rateLimiter.Middleware())

	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Keep an upstream request ID when it looks sane
		requestID := validation.SanitizeString(c.GetHeader("X-Request-ID"), 64)
		if requestID == "" {
			requestID = idgen.New()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
		}

		switch {
		case status >= 500:
			logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			logger.Warn("request completed", attrs...)
		default:
			logger.Debug("request completed", attrs...)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.health.Handler(Version))
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/api/health", s.health.Handler(Version))
	s.router.GET("/metrics", metrics.Handler())
	s.router.GET("/api", s.infoHandler)

	boardHandler := board.NewHandler(s.board)

	// Pages: visiting one mounts it and returns its snapshot
	for _, p := range s.board.Pages() {
		s.router.GET(p.Path, boardHandler.PageHandler(p.Slug))
	}
	for from, to := range redirects {
		s.router.GET(from, redirectTo(to))
	}

	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	v1 := s.router.Group("/v1")
	boardHandler.RegisterRoutes(v1)
	sessions.NewHandler(s.store).RegisterRoutes(v1)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No route for " + c.Request.URL.Path,
		})
	})
}

func redirectTo(dst string) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := dst
		if q := c.Request.URL.RawQuery; q != "" {
			target += "?" + q
		}
		c.Redirect(http.StatusPermanentRedirect, target)
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	pages := s.board.Pages()
	mounted := 0
	for _, p := range pages {
		if p.Mounted {
			mounted++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        ProductName,
		"service":     "guardlens",
		"description": "Behavioral fraud detection dashboard with simulated telemetry",
		"version":     Version,
		"pages":       len(pages),
		"mounted":     mounted,
		"realtime":    s.hub.Stats(),
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start launches background work: tracing, stats collection, the realtime
// hub and, with AUTO_MOUNT, every page. Run calls it; tests may call it
// directly without a listener.
func (s *Server) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	shutdown, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, Version, s.logger,
		traces.WithEnvironment(s.cfg.Env),
		traces.WithSampleRatio(s.cfg.TraceSampleRatio),
	)
	if err != nil {
		s.logger.Warn("tracing init failed, continuing without export", "error", err)
		shutdown = func(context.Context) error { return nil }
	}
	s.shutdownTracer = shutdown

	metrics.StartStatsCollector(runCtx, s.db, 15*time.Second)
	go s.hub.Run(runCtx)

	if s.cfg.AutoMount {
		if err := s.board.MountAll(runCtx); err != nil {
			return fmt.Errorf("failed to mount pages: %w", err)
		}
		s.logger.Info("all pages mounted")
	}

	s.ready.Store(true)
	return nil
}

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env, "version", Version)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if err := s.Start(ctx); err != nil {
		_ = s.Shutdown()
		return err
	}
	s.logger.Info("server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		_ = s.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Give load balancers time to stop sending traffic
	if s.httpSrv != nil && s.drainDelay > 0 {
		time.Sleep(s.drainDelay)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}

	// Stop every simulation loop before the hub goes away
	s.board.UnmountAll(ctx)
	s.logger.Info("pages unmounted")

	// Cancel background goroutines (hub, stats collector)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.shutdownTracer != nil {
		if err := s.shutdownTracer(ctx); err != nil {
			s.logger.Error("tracer shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return shutdownErr
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Board returns the page board.
func (s *Server) Board() *board.Board {
	return s.board
}
