package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/aiterminal/backend/internal/api/http"
	"github.com/aiterminal/backend/internal/api/middleware"
	"github.com/aiterminal/backend/internal/api/ws"
	"github.com/aiterminal/backend/internal/domain/exec"
	"github.com/aiterminal/backend/internal/domain/pty"
	"github.com/aiterminal/backend/internal/domain/session"
	"github.com/aiterminal/backend/internal/events"
	"github.com/aiterminal/backend/internal/infrastructure/config"
	"github.com/aiterminal/backend/internal/infrastructure/logging"
	"github.com/aiterminal/backend/internal/infrastructure/monitoring"
	"github.com/aiterminal/backend/internal/providers"
	"github.com/aiterminal/backend/internal/service"
)

// Server wires the terminal backend together: session registry, command
// engine, PTY manager, provider registry, event bus and the HTTP surface.
type Server struct {
	router   *gin.Engine
	httpSrv  *http.Server
	bus      *events.Bus
	sessions *session.Registry
	engine   *exec.Engine
	ptyMgr   *pty.Manager
	registry *service.Registry
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("initializing terminal backend",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
	)

	metrics := monitoring.NewMetrics()

	bus := events.NewBus()
	bus.OnPublish = func(ev events.Event) {
		metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	}

	sessions := session.NewRegistry()
	engine := exec.NewEngine(sessions, bus, logger).WithMetrics(metrics)
	ptyMgr := pty.NewManager(bus, logger, cfg.Shell).WithMetrics(metrics)

	registry := service.NewRegistry().WithMetrics(metrics)
	for _, p := range []service.Provider{
		providers.NewAutocomplete(sessions),
		providers.NewGit(sessions),
		providers.NewSystem(),
		providers.NewAI(cfg.AI),
	} {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	logger.Info("providers registered", zap.Int("count", len(registry.List(nil))))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(engine, ptyMgr, sessions, registry, logger, metrics)
	wsHandler := ws.NewHandler(bus, logger).WithMetrics(metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Command execution
	router.POST("/execute", handlers.Execute)
	router.POST("/execute-sudo", handlers.ExecuteSudo)
	router.GET("/sessions/:id", handlers.GetSession)

	// PTY sessions
	router.POST("/pty/create", handlers.PTYCreate)
	router.POST("/pty/write", handlers.PTYWrite)
	router.POST("/pty/resize", handlers.PTYResize)
	router.POST("/pty/close", handlers.PTYClose)

	// Provider tools
	router.GET("/services", handlers.ListServices)
	router.POST("/services/discover", handlers.DiscoverServices)
	router.POST("/services/execute", handlers.ExecuteService)

	// Event stream
	router.GET("/stream", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		router:   router,
		bus:      bus,
		sessions: sessions,
		engine:   engine,
		ptyMgr:   ptyMgr,
		registry: registry,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("starting HTTP server", zap.String("addr", addr))

	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the server down: stop accepting requests, kill PTY shells,
// close the event bus.
func (s *Server) Close() error {
	s.logger.Info("shutting down")

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}

	s.ptyMgr.CloseAll()
	s.logger.Sync()
	return nil
}
