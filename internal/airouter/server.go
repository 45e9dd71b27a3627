// Package airouter 组装 AI 路由服务：配置、基础组件、业务层和 HTTP 接口。
package airouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/kart-io/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/kart-io/ai-router/internal/airouter/biz"
	"github.com/kart-io/ai-router/internal/airouter/handler"
	"github.com/kart-io/ai-router/internal/airouter/provider"
	"github.com/kart-io/ai-router/internal/airouter/router"
	"github.com/kart-io/ai-router/internal/airouter/store"
	"github.com/kart-io/ai-router/internal/model"
	"github.com/kart-io/ai-router/internal/pkg/conversation"
	"github.com/kart-io/ai-router/internal/pkg/metrics"
	ragbiz "github.com/kart-io/ai-router/internal/rag/biz"
	raghandler "github.com/kart-io/ai-router/internal/rag/handler"
	ragrouter "github.com/kart-io/ai-router/internal/rag/router"
	ragstore "github.com/kart-io/ai-router/internal/rag/store"
	"github.com/kart-io/ai-router/internal/rag/watcher"
	"github.com/kart-io/ai-router/pkg/authz"
	"github.com/kart-io/ai-router/pkg/component/database"
	rediscomp "github.com/kart-io/ai-router/pkg/component/redis"
	"github.com/kart-io/ai-router/pkg/id"
	"github.com/kart-io/ai-router/pkg/infra/app"
	"github.com/kart-io/ai-router/pkg/infra/middleware"
	"github.com/kart-io/ai-router/pkg/infra/pool"
	"github.com/kart-io/ai-router/pkg/infra/ratelimit"
	"github.com/kart-io/ai-router/pkg/infra/tracing"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/ai-router/pkg/llm/deepseek"
	_ "github.com/kart-io/ai-router/pkg/llm/openai"
	"github.com/kart-io/ai-router/pkg/llm/resilience"
	breakeropts "github.com/kart-io/ai-router/pkg/options/breaker"
	cacheopts "github.com/kart-io/ai-router/pkg/options/cache"
	ctxopts "github.com/kart-io/ai-router/pkg/options/conversation"
	dbopts "github.com/kart-io/ai-router/pkg/options/db"
	httpopts "github.com/kart-io/ai-router/pkg/options/http"
	llmopts "github.com/kart-io/ai-router/pkg/options/llm"
	logopts "github.com/kart-io/ai-router/pkg/options/logger"
	poolopts "github.com/kart-io/ai-router/pkg/options/pool"
	ragopts "github.com/kart-io/ai-router/pkg/options/rag"
	ratelimitopts "github.com/kart-io/ai-router/pkg/options/ratelimit"
	redisopts "github.com/kart-io/ai-router/pkg/options/redis"
	routeropts "github.com/kart-io/ai-router/pkg/options/router"
	"github.com/kart-io/ai-router/pkg/validator"
)

// Name is the name of the application.
const Name = "ai-router"

// auditPoolName 审计日志、查询日志等后台写入使用的协程池名称。
const auditPoolName = "audit"

// Config contains application-related configurations.
// RedisOptions 为 nil 表示不需要 redis。
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	LLMOptions       *llmopts.ProviderOptions
	DBOptions        *dbopts.Options
	RedisOptions     *redisopts.Options
	CacheOptions     *cacheopts.Options
	RateLimitOptions *ratelimitopts.Options
	BreakerOptions   *breakeropts.Options
	ContextOptions   *ctxopts.Options
	RouterOptions    *routeropts.Options
	RAGOptions       *ragopts.Options
	PoolOptions      *poolopts.Options
	TracingOptions   *tracing.Options
}

// Server represents the ai-router server.
type Server struct {
	cfg      *Config
	engine   *gin.Engine
	httpSrv  *http.Server
	watcher  *watcher.Watcher
	pool     *pool.Pool
	db       *gorm.DB
	redis    *rediscomp.Client
	tracer   *tracing.Provider
	router   *biz.Router
	registry *prometheus.Registry
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting ai-router service...")

	s := &Server{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	// 2. 链路追踪
	if cfg.TracingOptions != nil && cfg.TracingOptions.ServiceVersion == "" {
		cfg.TracingOptions.ServiceVersion = app.GetVersion()
	}
	tracer, err := tracing.NewProvider(cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.tracer = tracer

	// 3. 指标
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(s.registry)

	// 4. 数据库
	db, err := database.Open(ctx, cfg.DBOptions, model.AllModels()...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	// 5. Redis，仅在缓存或限流使用 redis 后端时连接
	if cfg.RedisOptions != nil {
		client, err := rediscomp.NewWithContext(ctx, cfg.RedisOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		s.redis = client
		logger.Infow("Redis client initialized", "addr", cfg.RedisOptions.Addr())
	}

	// 6. 后台协程池
	workers, err := pool.NewPool(auditPoolName, &pool.Config{
		Capacity:         cfg.PoolOptions.Capacity,
		ExpiryDuration:   cfg.PoolOptions.ExpiryDuration,
		MaxBlockingTasks: cfg.PoolOptions.MaxBlockingTasks,
		OnFallback:       m.RecordPoolFallback,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize worker pool: %w", err)
	}
	s.pool = workers

	// 7. 模型供应商
	modelProvider, err := provider.New(cfg.LLMOptions.Provider, cfg.LLMOptions.ToConfigMap(), provider.Config{
		ClassificationModel: cfg.LLMOptions.ClassificationModel,
		ResponseModel:       cfg.LLMOptions.ResponseModel,
		AllowedModels:       cfg.LLMOptions.AllowedModels,
		MaxTokens:           cfg.LLMOptions.MaxTokens,
		Timeout:             cfg.LLMOptions.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model provider: %w", err)
	}
	logger.Infow("Model provider initialized",
		"provider", modelProvider.Name(),
		"classification_model", modelProvider.ModelFor(provider.PurposeClassification),
		"response_model", modelProvider.ModelFor(provider.PurposeResponse),
	)

	// 8. 权限
	authorizer, err := newAuthorizer(cfg.RouterOptions.Admins, cfg.RAGOptions.Admins)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authorizer: %w", err)
	}

	// 9. 准入控制
	limiter := s.newLimiter(ratelimit.Config{
		MaxRequests: cfg.RateLimitOptions.MaxRequests,
		Window:      cfg.RateLimitOptions.Window,
	}, cfg.RateLimitOptions.KeyPrefix)
	breaker := resilience.NewCircuitBreaker(&resilience.Config{
		FailureThreshold:    cfg.BreakerOptions.FailureThreshold,
		RecoveryTimeout:     cfg.BreakerOptions.Recovery,
		HalfOpenSingleTrial: cfg.BreakerOptions.HalfOpenSingleTrial,
	}, resilience.WithStateChangeHook(func(from, to resilience.State) {
		m.RecordCircuitTransition(from.String(), to.String(), int(to))
	}))
	contexts := conversation.NewManager(conversation.Config{
		MaxMessages: cfg.ContextOptions.MaxMessages,
		TTL:         cfg.ContextOptions.TTL,
	})

	// 10. 知识库
	var ragService *ragbiz.RAGService
	if cfg.RAGOptions.Enabled {
		ragService = ragbiz.NewRAGService(
			ragstore.NewFactory(db),
			resilience.NewGuardedResponder(modelProvider, breaker),
			s.newAnswerCache(),
			ragConfig(cfg.RAGOptions),
			ragbiz.WithMetrics(m),
			ragbiz.WithPool(workers),
		)
		if cfg.RAGOptions.WatchDir != "" {
			w, err := watcher.New(watcher.Config{
				Dir:          cfg.RAGOptions.WatchDir,
				Debounce:     cfg.RAGOptions.WatchDebounce,
				ScanExisting: cfg.RAGOptions.WatchScanExisting,
				UploadedBy:   cfg.RAGOptions.WatchUploadedBy,
			}, ragService)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize document watcher: %w", err)
			}
			s.watcher = w
		}
		logger.Infow("Knowledge base initialized",
			"cache.backend", cfg.CacheOptions.Backend,
			"top_k", cfg.RAGOptions.TopK,
			"watch_dir", cfg.RAGOptions.WatchDir,
		)
	} else {
		logger.Info("Knowledge base is disabled")
	}

	// 11. 意图处理器与路由
	handlers := make([]biz.Handler, 0, len(cfg.RouterOptions.Webhooks))
	for _, wh := range cfg.RouterOptions.Webhooks {
		h, err := biz.NewWebhookHandler(biz.WebhookConfig(wh), nil)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	registry, err := biz.NewRegistry(handlers...)
	if err != nil {
		return nil, fmt.Errorf("failed to register intent handlers: %w", err)
	}
	gate := biz.NewStaticGate(cfg.RouterOptions.EnabledModules...)

	opts := []biz.Option{
		biz.WithLogStore(store.NewLogStore(db)),
		biz.WithPool(workers),
		biz.WithMetrics(m),
		biz.WithIDGenerator(id.NewGenerator()),
	}
	if ragService != nil {
		opts = append(opts, biz.WithKnowledge(ragService))
	}
	s.router = biz.NewRouter(routerConfig(cfg), modelProvider, registry, gate, limiter, breaker, contexts, opts...)
	logger.Infow("Intent router initialized",
		"intents", registry.Intents(),
		"enabled_modules", cfg.RouterOptions.EnabledModules,
	)

	// 12. HTTP
	s.engine = s.newEngine(gate, authorizer, ragService)
	s.httpSrv = &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      s.engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	ok = true
	logger.Info("ai-router service is ready")
	return s, nil
}

// Handler 返回 HTTP 处理器。
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the server and blocks until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	// 先等待监听器退出，避免入库过程中释放协程池和数据库
	defer func() {
		stopWatch()
		<-watchDone
		s.Close()
	}()
	if s.watcher == nil {
		close(watchDone)
	} else {
		go func() {
			defer close(watchDone)
			if err := s.watcher.Run(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorw("document watcher stopped", "error", err.Error())
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, open := <-errCh:
		if open && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down ai-router service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPOptions.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close 释放全部资源，可重复调用。Run 返回前会自动调用。
func (s *Server) Close() {
	if s.pool != nil {
		if err := s.pool.Release(s.cfg.PoolOptions.ReleaseTimeout); err != nil {
			logger.Warnw("worker pool release timed out", "error", err.Error())
		}
		s.pool = nil
	}
	if s.redis != nil {
		_ = s.redis.Close()
		s.redis = nil
	}
	if s.db != nil {
		_ = database.Close(s.db)
		s.db = nil
	}
	if s.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.tracer.Shutdown(ctx)
		cancel()
		s.tracer = nil
	}
}

func (s *Server) newLimiter(config ratelimit.Config, prefix string) ratelimit.Limiter {
	if s.cfg.RateLimitOptions.UsesRedis() && s.redis != nil {
		return ratelimit.NewRedisLimiter(s.redis.Client(), config, prefix)
	}
	return ratelimit.NewMemoryLimiter(config)
}

func (s *Server) newAnswerCache() ragbiz.AnswerCache {
	if s.cfg.CacheOptions.UsesRedis() && s.redis != nil {
		return ragbiz.NewRedisAnswerCache(s.redis.Client(), s.cfg.CacheOptions.KeyPrefix)
	}
	return ragbiz.NewMemoryAnswerCache(nil)
}

func (s *Server) newEngine(gate *biz.StaticGate, authorizer authz.Authorizer, ragService *ragbiz.RAGService) *gin.Engine {
	gin.SetMode(s.cfg.HTTPOptions.Mode)
	binding.Validator = validator.GinValidator{V: validator.Global()}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(id.NewGenerator()),
		middleware.Recovery(),
		middleware.Logger(middleware.DefaultSkipPaths...),
		middleware.Tracing(middleware.DefaultSkipPaths...),
		middleware.BodyLimit(s.cfg.HTTPOptions.MaxBodySize, "/v1/rag/documents"),
	)

	if s.cfg.HTTPOptions.MetricsPath != "" {
		engine.GET(s.cfg.HTTPOptions.MetricsPath, gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	router.Register(engine, handler.NewRouterHandler(s.router, gate, authorizer))

	if ragService != nil {
		var mws []gin.HandlerFunc
		if s.cfg.RateLimitOptions.APIMaxRequests > 0 {
			apiLimiter := s.newLimiter(ratelimit.Config{
				MaxRequests: s.cfg.RateLimitOptions.APIMaxRequests,
				Window:      s.cfg.RateLimitOptions.APIWindow,
			}, s.cfg.RateLimitOptions.KeyPrefix+"api:")
			mws = append(mws, ratelimit.Middleware(apiLimiter, ratelimit.ClientIPKey))
		}
		admin := ragbiz.NewAdminCommands(ragService, authorizer)
		ragrouter.Register(engine, raghandler.NewRAGHandler(ragService, admin, s.cfg.RAGOptions.MaxFileSizeMB), mws...)
	}

	return engine
}

// newAuthorizer 路由管理员和知识库管理员分属不同角色。
func newAuthorizer(routerAdmins, ragAdmins []int64) (*authz.Enforcer, error) {
	enf, err := authz.NewEnforcer(nil)
	if err != nil {
		return nil, err
	}
	if err := enf.AllowPermission(authz.RoleRouterAdmin, authz.ResourceRouter, "*"); err != nil {
		return nil, err
	}
	if err := enf.AllowPermission(authz.RoleRAGAdmin, authz.ResourceRAG, "*"); err != nil {
		return nil, err
	}
	for _, uid := range routerAdmins {
		if err := enf.GrantRole(uid, authz.RoleRouterAdmin); err != nil {
			return nil, err
		}
	}
	for _, uid := range ragAdmins {
		if err := enf.GrantRole(uid, authz.RoleRAGAdmin); err != nil {
			return nil, err
		}
	}
	return enf, nil
}

func routerConfig(cfg *Config) biz.Config {
	return biz.Config{
		ConfidenceThreshold:     cfg.RouterOptions.ConfidenceThreshold,
		ChatConfidenceThreshold: cfg.RouterOptions.ChatConfidenceThreshold,
		MaxInputLength:          cfg.RouterOptions.MaxInputLength,
		ContextReplyLength:      cfg.RouterOptions.ContextReplyLength,
		AuditInputLength:        cfg.RouterOptions.AuditInputLength,
		RateLimit: ratelimit.Config{
			MaxRequests: cfg.RateLimitOptions.MaxRequests,
			Window:      cfg.RateLimitOptions.Window,
		},
	}
}

func ragConfig(o *ragopts.Options) *ragbiz.Config {
	c := ragbiz.DefaultConfig()
	c.ChunkSize = o.ChunkSize
	c.ChunkOverlap = o.ChunkOverlap
	c.MaxChunksPerDoc = o.MaxChunksPerDoc
	c.MaxFileSizeMB = o.MaxFileSizeMB
	c.TopK = o.TopK
	c.MaxContextChars = o.MaxContextChars
	c.CandidateLimit = o.CandidateLimit
	c.CacheTTL = o.CacheTTL
	c.HTMLHeaderSplitter = o.HTMLHeaderSplitter
	return c
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Provider: %s (classification=%s, response=%s)\n",
		cfg.LLMOptions.Provider, cfg.LLMOptions.ClassificationModel, cfg.LLMOptions.ResponseModel)
	fmt.Printf("  Database: %s\n", cfg.DBOptions.Driver)
	fmt.Printf("  Knowledge base: %s\n", strconv.FormatBool(cfg.RAGOptions.Enabled))
}
