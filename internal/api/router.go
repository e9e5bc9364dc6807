package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clientcheck/trust-system/internal/api/handler"
	"github.com/clientcheck/trust-system/internal/api/middleware"
	"github.com/clientcheck/trust-system/internal/core/domain"
	"github.com/clientcheck/trust-system/internal/core/ports"
)

// RouterDeps carries the constructed services the router wires to routes.
type RouterDeps struct {
	Auth       ports.AuthService
	Moderation ports.ModerationService
	Trust      ports.TrustService
	Limiter    ports.RateLimiter
	Clients    ports.ClientRepository
	Dispatcher handler.AssessmentDispatcher
	JWTSecret  string
	Logger     zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(db *mongo.Database, rdb *redis.Client, deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("trust"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	reviewHandler := handler.NewReviewHandler(deps.Moderation)
	clientHandler := handler.NewClientHandler(deps.Clients, deps.Trust)
	assessmentHandler := handler.NewAssessmentHandler(deps.Dispatcher, deps.Trust)

	authMW := middleware.Auth(deps.JWTSecret)

	// --- Auth routes ---
	// Login throttling keys on the target account, not the caller: the caller
	// has no token here, so AuthService.Login resolves the account and invokes
	// the limiter itself rather than going through route middleware.
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Client routes ---
	clients := e.Group("/v1/clients", authMW)
	clients.POST("", clientHandler.Create,
		middleware.RBAC(domain.RoleUser, domain.RoleManager, domain.RoleAdmin),
		middleware.RateLimit(deps.Limiter, domain.ActionSubmitPhone))
	clients.GET("/:client_id", clientHandler.Get,
		middleware.RateLimit(deps.Limiter, domain.ActionSearchClient))
	clients.POST("/:client_id/reviews", reviewHandler.Submit,
		middleware.RateLimit(deps.Limiter, domain.ActionCreateReview))
	clients.POST("/:client_id/assessments", assessmentHandler.Receive,
		middleware.RBAC(domain.RoleManager, domain.RoleAdmin))

	// --- Review moderation routes ---
	reviews := e.Group("/v1/reviews", authMW)
	reviews.POST("/:id/flag", reviewHandler.Flag,
		middleware.RateLimit(deps.Limiter, domain.ActionFlagReview))
	reviews.PATCH("/:id", reviewHandler.Update)
	reviews.DELETE("/:id", reviewHandler.Delete)

	// --- Admin routes ---
	admin := e.Group("/v1/admin", authMW, middleware.RBAC(domain.RoleAdmin))
	admin.POST("/recompute", clientHandler.RecomputeAll)
	admin.PATCH("/assessments/:id/confidence", assessmentHandler.Correct)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
