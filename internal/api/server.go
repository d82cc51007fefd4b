package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"queuedesk/internal/auth"
	"queuedesk/internal/cache"
	"queuedesk/internal/config"
	"queuedesk/internal/database"
	"queuedesk/internal/events"
	"queuedesk/internal/external"
	"queuedesk/internal/handlers"
	"queuedesk/internal/keylock"
	"queuedesk/internal/messaging"
	"queuedesk/internal/metrics"
	"queuedesk/internal/middleware"
	"queuedesk/internal/models"
	"queuedesk/internal/realtime"
	"queuedesk/internal/repository"
	"queuedesk/internal/repository/memory"
	"queuedesk/internal/search"
	"queuedesk/internal/service"
	"queuedesk/internal/telemetry"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "queuedesk-api"

// Deps are the collaborators a Server runs on. Nil optional parts disable
// the matching feature.
type Deps struct {
	Store     repository.Store
	Validator auth.Validator
	Searcher  service.TicketSearcher // optional
	Now       func() time.Time       // optional, tests only

	DB     *database.DB                // optional, health and cleanup
	NATS   *messaging.NATSClient       // optional
	Search *search.ElasticsearchClient // optional, health
	Cache  *cache.ValkeyClient         // optional, cleanup
}

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	deps     Deps
	bus      *events.Bus
	hub      *realtime.Hub
	services *service.Services
}

// NewServer подключается ко всем зависимостям согласно конфигурации и создает сервер
func NewServer(cfg *config.Config) (*Server, error) {
	deps := Deps{}
	s, err := connect(cfg, &deps)
	if err != nil {
		closeDeps(deps)
		return nil, err
	}
	return s, nil
}

func connect(cfg *config.Config, deps *Deps) (*Server, error) {
	switch cfg.StoreDriver {
	case "memory":
		slog.Warn("Using in-memory store; data is lost on restart")
		deps.Store = memory.New()
	default:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		deps.DB = db
		if err := db.RunMigrations(); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		metrics.RegisterDBStats(db.DB, cfg.Database.DBName)
		deps.Store = repository.NewPostgresStore(db)
	}

	if cfg.NATS.Enabled {
		natsClient, err := messaging.NewNATSClient(cfg.NATS.Config)
		if err != nil {
			return nil, err
		}
		deps.NATS = natsClient
	}

	if cfg.Elasticsearch.Enabled {
		es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			return nil, err
		}
		deps.Search = es
		deps.Searcher = es
	}

	validator, err := newValidator(cfg, deps)
	if err != nil {
		return nil, err
	}
	deps.Validator = validator

	return New(cfg, *deps), nil
}

// newValidator builds the token validator, optionally fronted by the Valkey identity cache.
func newValidator(cfg *config.Config, deps *Deps) (auth.Validator, error) {
	var validator auth.Validator
	switch cfg.Auth.Mode {
	case "remote":
		validator = external.NewAuthClient(cfg.Auth.Remote)
	default:
		validator = auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Leeway)
	}

	if cfg.Auth.CacheTTL <= 0 {
		return validator, nil
	}
	valkey, err := cache.NewValkeyClient(cfg.Redis)
	if err != nil {
		return nil, err
	}
	deps.Cache = valkey
	return auth.NewCachingValidator(validator, valkey, cfg.Auth.CacheTTL, slog.Default()), nil
}

// New собирает сервер из готовых зависимостей
func New(cfg *config.Config, deps Deps) *Server {
	gin.SetMode(cfg.GinMode)

	bus := events.NewBus(slog.Default())
	services := service.NewServices(deps.Store, bus, keylock.New(), service.Options{
		Location: cfg.Location,
		Now:      deps.Now,
		Searcher: deps.Searcher,
	})

	hub := realtime.NewHub(slog.Default())
	broadcaster := realtime.NewBroadcaster(hub, services.Queries, cfg.Realtime.SnapshotTimeout, slog.Default())

	bus.Subscribe("metrics", metrics.Observer{})
	bus.Subscribe("realtime", broadcaster)
	if deps.NATS != nil {
		bus.Subscribe("nats", deps.NATS)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(telemetry.TracingMiddleware())
	router.Use(metrics.Middleware())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSOrigin))

	s := &Server{
		router:   router,
		config:   cfg,
		deps:     deps,
		bus:      bus,
		hub:      hub,
		services: services,
	}

	s.setupRoutes(broadcaster)
	return s
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes(broadcaster *realtime.Broadcaster) {
	h := handlers.NewHandlers(s.services)

	authed := middleware.Authenticate(s.deps.Validator)
	staff := middleware.RequireRole(models.RoleCounterStaff, models.RoleAdmin)
	admin := middleware.RequireRole(models.RoleAdmin)

	api := s.router.Group("/api")
	{
		queue := api.Group("/queue")
		{
			queue.GET("/status", h.QueueStatus)
			queue.GET("/user-ticket", authed, h.UserTicket)
			queue.POST("/virtual-ticket", authed, h.CreateVirtualTicket)
			queue.PATCH("/tickets/:id/present", authed, h.MarkPresent)
			queue.POST("/next-customer", authed, staff, h.NextCustomer)
			queue.POST("/skip", authed, staff, h.SkipCurrent)
		}

		services := api.Group("/services")
		{
			services.GET("", h.ListServices)
			services.GET("/:id", h.GetService)
			services.POST("", authed, admin, h.CreateService)
			services.DELETE("/:id", authed, admin, h.DeleteService)
		}

		counters := api.Group("/counters")
		{
			counters.GET("", h.ListCounters)
			counters.GET("/service/:serviceId", h.CountersByService)
			counters.GET("/:id", h.GetCounter)
			counters.POST("", authed, admin, h.CreateCounter)
			counters.DELETE("/:id", authed, admin, h.DeleteCounter)
		}

		stats := api.Group("/statistics")
		{
			stats.GET("/today", h.TodayStatistics)
			stats.GET("", authed, admin, h.StatisticsOverview)
			stats.GET("/daily/:date", authed, admin, h.DailyStatistics)
			stats.GET("/service/:id", authed, admin, h.ServiceStatistics)
			stats.GET("/range", authed, admin, h.StatisticsRange)
			stats.POST("/reconcile/:date", authed, admin, h.ReconcileStatistics)
		}

		api.GET("/tickets/search", authed, staff, h.SearchTickets)
	}

	prefix := s.config.Realtime.Prefix
	sock := realtime.NewHandler(prefix, s.hub, broadcaster, s.deps.Validator, s.config.Realtime.SendBuffer, slog.Default())
	s.router.Any(prefix+"/*path", gin.WrapH(otelhttp.NewHandler(sock, "realtime")))

	s.router.GET("/metrics", metrics.Handler())
	s.router.GET("/health", s.healthCheck)
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}

	if s.deps.DB != nil {
		hc := s.deps.DB.HealthCheck(ctx)
		checks["database"] = hc
		if hc.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
	}
	if s.deps.Search != nil {
		if err := s.deps.Search.HealthCheck(ctx); err != nil {
			checks["elasticsearch"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			checks["elasticsearch"] = gin.H{"status": "healthy"}
		}
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(ctx); err != nil {
			checks["cache"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			checks["cache"] = gin.H{"status": "healthy"}
		}
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": serviceName,
		"version": s.config.Telemetry.ServiceVersion,
		"viewers": s.hub.Len(),
		"checks":  checks,
	})
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Services exposes the domain services, e.g. for the seed tool
func (s *Server) Services() *service.Services {
	return s.services
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	s.hub.Close()
	return closeDeps(s.deps)
}

func closeDeps(deps Deps) error {
	if deps.NATS != nil {
		if err := deps.NATS.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}
	if deps.Cache != nil {
		if err := deps.Cache.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}
	if deps.DB != nil {
		if err := deps.DB.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}
	return nil
}
