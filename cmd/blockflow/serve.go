package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/blockflow/api/handlers"
	"github.com/BaSui01/blockflow/config"
	"github.com/BaSui01/blockflow/internal/cache"
	"github.com/BaSui01/blockflow/internal/database"
	"github.com/BaSui01/blockflow/internal/metrics"
	"github.com/BaSui01/blockflow/internal/migration"
	"github.com/BaSui01/blockflow/internal/server"
	"github.com/BaSui01/blockflow/internal/telemetry"
	"github.com/BaSui01/blockflow/interp"
	"github.com/BaSui01/blockflow/interp/remote"
	"github.com/BaSui01/blockflow/session"
	"github.com/BaSui01/blockflow/store"
	"github.com/BaSui01/blockflow/trace"
)

// skipAuthPaths 无需认证的路径
var skipAuthPaths = []string{"/health", "/ready", "/version", "/metrics"}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, loader, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, level := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting BlockFlow",
		zap.String("version", telemetry.BuildVersion()),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("interpreter", cfg.Interpreter.Kind),
		zap.String("store", cfg.Store.Kind),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := NewServer(ctx, cfg, logger, metrics.NewCollector("blockflow", logger))
	if err != nil {
		return err
	}
	srv.EnableHotReload(*configPath, loader, level)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("BlockFlow stopped")
	return nil
}

// =============================================================================
// 📦 Server
// =============================================================================

// Server 组装存储、解释器、会话与 HTTP 层
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
	providers *telemetry.Providers

	db       *database.PoolManager
	cache    *cache.Manager
	graphs   store.GraphStore
	drafts   store.DraftStore
	runs     store.RunStore
	factory  interp.Factory
	builder  *trace.Builder
	registry *session.Registry
	limiter  *IPRateLimiter

	handler    http.Handler
	api        *server.Manager
	metricsSrv *server.Manager

	configPath string
	reloader   *config.Reloader
}

// NewServer 按配置初始化所有依赖；失败时释放已打开的资源
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (_ *Server, err error) {
	s := &Server{cfg: cfg, logger: logger, collector: collector}
	defer func() {
		if err != nil {
			s.closeResources(context.Background())
		}
	}()

	if s.providers, err = telemetry.Init(cfg.Telemetry, logger); err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}
	if err = s.initStores(ctx); err != nil {
		return nil, err
	}
	if s.factory, err = newFactory(cfg.Interpreter, logger); err != nil {
		return nil, err
	}

	engine, err := telemetry.NewInstruments(collector)
	if err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}
	tracer := otel.Tracer("github.com/BaSui01/blockflow")
	s.builder = trace.NewBuilder(
		trace.WithMaxItems(cfg.Trace.MaxItems),
		trace.WithReplay(cfg.Trace.Replay),
		trace.WithRecorder(engine),
		trace.WithTracer(tracer),
		trace.WithLogger(logger),
	)
	s.registry = session.NewRegistry(session.RegistryConfig{
		IdleTTL:       cfg.Session.IdleTTL,
		MaxSessions:   cfg.Session.MaxSessions,
		SweepInterval: cfg.Session.SweepInterval,
	}, s.factory, collector, logger,
		session.WithBuilder(s.builder),
		session.WithRecorder(engine),
		session.WithTracer(tracer),
		session.WithLogger(logger),
	)
	s.limiter = NewIPRateLimiter(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)
	s.handler = s.routes()
	return s, nil
}

func (s *Server) initStores(ctx context.Context) error {
	opts := []store.Option{store.WithRecorder(s.collector), store.WithLogger(s.logger)}
	mem := store.NewMemoryStore(opts...)
	s.graphs, s.drafts, s.runs = mem, mem, mem

	if s.cfg.Store.Kind == "database" {
		if s.cfg.Database.AutoMigrate {
			if err := migrateUp(ctx, s.cfg.Database); err != nil {
				return err
			}
		}
		db, err := database.Open(s.cfg.Database, database.DefaultPoolConfig(), s.logger)
		if err != nil {
			return err
		}
		db.SetRecorder(s.collector)
		s.db = db
		gs := store.NewGormStore(db, opts...)
		s.graphs, s.runs = gs, gs
		s.logger.Info("database store ready", zap.String("driver", s.cfg.Database.Driver))
	}

	if s.cfg.Redis.Addr != "" {
		cc := cache.DefaultConfig()
		cc.Addr = s.cfg.Redis.Addr
		cc.Password = s.cfg.Redis.Password
		cc.DB = s.cfg.Redis.DB
		cc.PoolSize = s.cfg.Redis.PoolSize
		cc.MinIdleConns = s.cfg.Redis.MinIdleConns
		cc.KeyPrefix = s.cfg.Redis.KeyPrefix
		cc.TLSEnabled = s.cfg.Redis.TLS
		m, err := cache.NewManager(cc, s.logger)
		if err != nil {
			return err
		}
		m.SetRecorder(s.collector)
		s.cache = m
		s.drafts = store.NewRedisDraftStore(m, s.cfg.Redis.DraftTTL, opts...)
		s.logger.Info("redis draft store ready", zap.String("addr", cc.Addr))
	}
	return nil
}

func migrateUp(ctx context.Context, cfg config.DatabaseConfig) error {
	m, err := migration.NewMigratorFromDatabaseConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// routes 注册所有处理器并套上中间件链
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(telemetry.BuildVersion(), s.logger)
	if s.db != nil {
		health.RegisterCheck(handlers.NewPingCheck("database", s.db.Ping))
	}
	if s.cache != nil {
		health.RegisterCheck(handlers.NewPingCheck("redis", s.cache.Ping))
	}
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion)

	handlers.NewWorkflowHandler(s.graphs, s.drafts, s.runs, s.logger).Register(mux)
	handlers.NewBuildHandler(s.logger).Register(mux)
	handlers.NewSessionHandler(s.registry, s.graphs, s.runs, s.logger,
		handlers.WithOriginPatterns(s.cfg.Server.CORSAllowedOrigins...),
	).Register(mux)

	// 远程解释器内核端点；remote 模式下转发到自身没有意义
	if s.cfg.Server.ExposeKernel && s.cfg.Interpreter.Kind != "remote" {
		mux.Handle("GET /api/v1/kernel", remote.Handler(s.factory, s.logger))
		s.logger.Info("kernel endpoint enabled", zap.String("path", "/api/v1/kernel"))
	}

	if s.cfg.Server.MetricsPort == 0 {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		s.limiter.Middleware(),
		Auth(s.cfg.Auth, skipAuthPaths, s.logger),
	)
}

// EnableHotReload 监听配置文件，日志级别与限流参数在变更后立即生效
func (s *Server) EnableHotReload(path string, loader *config.Loader, level zap.AtomicLevel) {
	if path == "" {
		return
	}
	s.configPath = path
	s.reloader = config.NewReloader(s.cfg, loader, s.logger)
	s.reloader.OnReload(func(old, next *config.Config) {
		if old.Log.Level != next.Log.Level {
			level.SetLevel(parseLevel(next.Log.Level))
		}
		if old.RateLimit != next.RateLimit {
			s.limiter.SetLimit(next.RateLimit.RPS, next.RateLimit.Burst)
		}
		if old.Trace.MaxItems != next.Trace.MaxItems {
			s.builder.SetMaxItems(next.Trace.MaxItems)
		}
	})
}

// Run 启动所有组件并阻塞到 ctx 结束或任一组件失败
func (s *Server) Run(ctx context.Context) error {
	serverCfg := server.Config{
		Addr:            ":" + strconv.Itoa(s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		MaxConnections:  s.cfg.Server.MaxConnections,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		TLSCertFile:     s.cfg.Server.TLSCertFile,
		TLSKeyFile:      s.cfg.Server.TLSKeyFile,
	}
	s.api = server.NewManager("api", s.handler, serverCfg, s.logger)
	// 通知事件流等长连接服务即将关闭
	s.api.RegisterOnShutdown(s.registry.CloseAll)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.api.Run(gctx) })
	g.Go(func() error { return s.registry.Run(gctx) })

	if s.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		mcfg := server.DefaultConfig()
		mcfg.Addr = ":" + strconv.Itoa(s.cfg.Server.MetricsPort)
		s.metricsSrv = server.NewManager("metrics", mux, mcfg, s.logger)
		g.Go(func() error { return s.metricsSrv.Run(gctx) })
	}

	if s.reloader != nil {
		w := config.NewWatcher(s.configPath, 0, s.logger)
		g.Go(func() error {
			w.Run(gctx, func() { _, _ = s.reloader.Reload() })
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.closeResources(shutdownCtx)
	return err
}

// closeResources 按依赖逆序释放资源
func (s *Server) closeResources(ctx context.Context) {
	if s.registry != nil {
		s.registry.CloseAll()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	if err := s.providers.Shutdown(ctx); err != nil {
		s.logger.Warn("failed to shutdown telemetry", zap.Error(err))
	}
}
