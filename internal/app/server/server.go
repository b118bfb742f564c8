package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/linkboard/linkboard/internal/app/service"
	inthttp "github.com/linkboard/linkboard/internal/http/handler"
	"github.com/linkboard/linkboard/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server needs.
type Dependencies struct {
	Logger         *zap.Logger
	Postgres       *pgxpool.Pool
	Redis          *redis.Client
	Links          service.LinkService
	Stats          service.StatsService
	Aggregator     *service.Aggregator
	Dispatcher     *service.ClickDispatcher
	ReservedPaths  []string
	ResolveTimeout time.Duration
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying Fiber app for in-memory tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) registerRoutes() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS())
	if s.deps.Redis != nil {
		s.app.Use(middleware.RateLimit(s.deps.Redis, middleware.DefaultRateLimitConfig(), s.deps.Logger))
	}

	s.app.Get("/healthz", s.health)

	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.Links,
	})
	apiHandler.Register(s.app)

	statsHandler := inthttp.NewStatsHandler(inthttp.StatsDeps{
		Logger:     s.deps.Logger,
		Stats:      s.deps.Stats,
		Aggregator: s.deps.Aggregator,
	})
	statsHandler.Register(s.app)

	// The catch-all redirect route registers last so /api, /healthz and
	// friends keep routing to their handlers.
	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:         s.deps.Logger,
		Links:          s.deps.Links,
		Dispatcher:     s.deps.Dispatcher,
		ReservedPaths:  s.deps.ReservedPaths,
		ResolveTimeout: s.deps.ResolveTimeout,
	})
	redirectHandler.Register(s.app)
}

func (s *Server) health(c *fiber.Ctx) error {
	status := "ok"
	code := fiber.StatusOK

	if s.deps.Postgres != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := s.deps.Postgres.Ping(ctx); err != nil {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"service":      "linkboard",
		"status":       status,
		"ingest_depth": s.deps.Dispatcher.Depth(),
		"time":         time.Now().UTC().Format(time.RFC3339),
	})
}
