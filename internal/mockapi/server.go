package mockapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"questline/internal/achievements"
	"questline/internal/config"
	"questline/internal/models"
	"questline/internal/observability"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
)

// Server holds the mock backend's dependencies and handlers.
type Server struct {
	config  *config.Config
	store   Store
	catalog *achievements.Catalog
	prom    *fiberprometheus.FiberPrometheus
	app     *fiber.App
	now     func() time.Time
}

// NewServer creates a server over store. A nil catalog uses the built-in one.
func NewServer(cfg *config.Config, store Store, catalog *achievements.Catalog) *Server {
	if catalog == nil {
		catalog = achievements.Default()
	}
	// Each server gets its own registry so several can coexist in one process.
	prom := fiberprometheus.NewWithRegistry(prometheus.NewRegistry(), "questline-mockapi", "questline", "mockapi", nil)
	return &Server{
		config:  cfg,
		store:   store,
		catalog: catalog,
		prom:    prom,
		now:     time.Now,
	}
}

// App builds the Fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:               "questline-mockapi",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return respondError(c, code, models.CodeInternal, err.Error())
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(contextMiddleware())
	app.Use(s.prom.Middleware)
	app.Use(structuredLogger())
}

// SetupRoutes registers every route the client calls.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.Health)
	s.prom.RegisterAt(app, "/metrics")

	api := app.Group("", s.AuthRequired())

	posts := api.Group("/posts")
	posts.Get("/feed", s.GetFeed)
	posts.Get("/community/:id", s.GetCommunityPosts)
	posts.Get("/", s.GetPosts)
	posts.Post("/", s.CreatePost)
	posts.Delete("/:id", s.DeletePost)
	posts.Post("/:id/like", s.LikePost)
	posts.Post("/:id/unlike", s.UnlikePost)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", s.CreateComment)

	comments := api.Group("/comments")
	comments.Post("/:id/like", s.LikeComment)
	comments.Post("/:id/unlike", s.UnlikeComment)

	communities := api.Group("/communities")
	communities.Get("/", s.GetCommunities)
	communities.Get("/joined", s.GetJoinedCommunities)
	communities.Post("/:id/join", s.JoinCommunity)
	communities.Post("/:id/leave", s.LeaveCommunity)

	users := api.Group("/achievements/users/:userId", s.SelfOnly)
	users.Get("/progress/:category", s.GetProgress)
	users.Post("/goals", s.RecordGoal)
	users.Get("/achievements", s.GetAchievements)
	users.Post("/achievements/unlock", s.UnlockAchievement)
	users.Get("/achievements/:category/:milestone", s.GetAchievement)
	users.Post("/rewards", s.GrantReward)
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	app := s.App()
	observability.GlobalLogger.Info("mock backend starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app == nil {
		return nil
	}
	return s.app.ShutdownWithContext(ctx)
}

// contextMiddleware carries the request id into the request context so
// store and handler logs pick it up.
func contextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			c.SetUserContext(observability.WithCorrelationID(c.UserContext(), rid))
		}
		return c.Next()
	}
}

// structuredLogger logs every request through slog.
func structuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := []any{
			slog.Int("status", c.Response().StatusCode()),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Duration("latency", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
			observability.GlobalLogger.ErrorContext(c.UserContext(), "request failed", fields...)
		} else {
			observability.GlobalLogger.InfoContext(c.UserContext(), "request processed", fields...)
		}
		return err
	}
}

// respondError writes a standardized error body.
func respondError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(models.ErrorResponse{Error: message, Code: code})
}
