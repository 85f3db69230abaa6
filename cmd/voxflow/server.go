package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/api/handlers"
	"github.com/BaSui01/voxflow/api/ws"
	"github.com/BaSui01/voxflow/config"
	"github.com/BaSui01/voxflow/conversation"
	"github.com/BaSui01/voxflow/internal/cache"
	"github.com/BaSui01/voxflow/internal/metrics"
	"github.com/BaSui01/voxflow/internal/server"
	"github.com/BaSui01/voxflow/internal/telemetry"
	"github.com/BaSui01/voxflow/llm"
	"github.com/BaSui01/voxflow/speech"
	"github.com/BaSui01/voxflow/storage"
	"github.com/BaSui01/voxflow/stt"
	"github.com/BaSui01/voxflow/tts"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 Voxflow 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 核心组件
	cacheStore cache.Store
	audioStore *storage.LocalStore
	sessions   *conversation.Store
	generator  *llm.Generator
	ttsService *tts.Service
	sttService *stt.Service

	// Handlers
	healthHandler  *handlers.HealthHandler
	sessionHandler *handlers.SessionHandler
	chatHandler    *handlers.ChatHandler
	speechHandler  *handlers.SpeechHandler
	voiceHandler   *ws.VoiceHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// 遥测
	telemetry *telemetry.Providers

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("voxflow", nil, s.logger)

	// 2. 初始化遥测
	providers, err := telemetry.Init(telemetry.Config{
		Enabled:      s.cfg.Telemetry.Enabled,
		OTLPEndpoint: s.cfg.Telemetry.OTLPEndpoint,
		ServiceName:  s.cfg.Telemetry.ServiceName,
		SampleRate:   s.cfg.Telemetry.SampleRate,
	}, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		s.telemetry = providers
	}

	// 3. 初始化核心组件
	if err := s.initComponents(); err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}

	// 4. 初始化 Handlers
	s.initHandlers()

	// 5. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 6. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("cache_backend", s.cfg.Cache.Backend),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initComponents 初始化缓存、存储与三个核心服务
func (s *Server) initComponents() error {
	s.cacheStore = s.openCache()

	store, err := storage.NewLocalStore(s.cfg.Storage.Dir, s.logger)
	if err != nil {
		return err
	}
	s.audioStore = store

	s.sessions = conversation.NewStore(s.cacheStore, s.cfg.Session.TTL, s.logger)

	ttsClient := speech.NewTTSClient(s.cfg.TTS.ClientConfig())
	s.ttsService = tts.NewService(ttsClient, s.cfg.TTS.Credentials(),
		s.cacheStore, s.audioStore, s.cfg.TTS.CacheTTL, s.logger)

	sttClient := speech.NewSTTClient(s.cfg.STT.ClientConfig())
	s.sttService = stt.NewService(sttClient, s.cfg.STT.Credentials(),
		s.cacheStore, s.audioStore, s.cfg.STT.CacheTTL, s.logger)

	provider := llm.NewMistralProvider(s.cfg.LLM.ProviderConfig(), s.logger)
	s.generator = llm.NewGenerator(provider, s.cacheStore, s.cfg.LLM.GeneratorConfig(), s.logger)

	if s.cfg.LLM.APIKey == "" {
		s.logger.Warn("LLM API key not configured, reply generation will fail")
	}
	if len(s.cfg.TTS.Credentials()) == 0 {
		s.logger.Warn("TTS credentials not configured, speech synthesis will fail")
	}
	if len(s.cfg.STT.Credentials()) == 0 {
		s.logger.Warn("STT credentials not configured, transcription will fail")
	}

	return nil
}

// openCache 根据配置选择缓存后端。
// Redis 不可达时降级为内存缓存,服务仍然可用。
func (s *Server) openCache() cache.Store {
	if !s.cfg.Cache.Enabled {
		s.logger.Info("cache disabled")
		return cache.Noop{}
	}

	switch s.cfg.Cache.Backend {
	case "redis":
		store, err := cache.NewRedisStore(s.cfg.Cache.RedisStoreConfig(), s.logger)
		if err != nil {
			s.logger.Warn("redis not available, falling back to in-memory cache",
				zap.String("addr", s.cfg.Cache.Redis.Addr),
				zap.Error(err))
			return cache.NewMemoryStore(s.cfg.Cache.DefaultTTL)
		}
		return store
	default:
		return cache.NewMemoryStore(s.cfg.Cache.DefaultTTL)
	}
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.CheckFunc{
		CheckName: "cache",
		Fn:        s.cacheStore.Ping,
	})

	s.sessionHandler = handlers.NewSessionHandler(s.sessions, s.logger)
	s.chatHandler = handlers.NewChatHandler(s.sessions, s.generator, s.metricsCollector, s.logger)
	s.speechHandler = handlers.NewSpeechHandler(s.ttsService, s.sttService,
		s.audioStore, s.metricsCollector, s.cfg.Server.MaxUploadBytes, s.logger)
	s.voiceHandler = ws.NewVoiceHandler(s.sessions, s.sttService, s.generator,
		s.ttsService, s.audioStore, s.metricsCollector,
		s.cfg.Server.CORSAllowedOrigins, s.cfg.Server.MaxUploadBytes, s.logger)

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// 健康检查与版本
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)

	// API 路由
	mux.HandleFunc("POST /api/v1/session", s.sessionHandler.HandleCreate)
	mux.HandleFunc("GET /api/v1/conversation/{id}", s.sessionHandler.HandleGet)
	mux.HandleFunc("DELETE /api/v1/conversation/{id}", s.sessionHandler.HandleDelete)
	mux.HandleFunc("POST /api/v1/chat", s.chatHandler.HandleChat)
	mux.HandleFunc("POST /api/v1/tts", s.speechHandler.HandleTTS)
	mux.HandleFunc("POST /api/v1/transcribe", s.speechHandler.HandleTranscribe)
	mux.HandleFunc("GET /api/v1/audio/{ref}", s.speechHandler.HandleAudio)

	// WebSocket 语音通道
	mux.Handle("GET /ws/voice", s.voiceHandler)

	// 构建中间件链
	skipAuthPaths := []string{"/health", "/healthz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	}
	if len(s.cfg.Server.APIKeys) > 0 {
		middlewares = append(middlewares, APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger))
	}
	if s.cfg.Server.JWTSecret != "" {
		middlewares = append(middlewares, JWTAuth(s.cfg.Server.JWTSecret, skipAuthPaths, s.logger))
	}
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// handleVersion 返回构建信息
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	handlers.WriteSuccess(w, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 1. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 2. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭遥测
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	// 5. 关闭缓存
	if s.cacheStore != nil {
		if err := s.cacheStore.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
