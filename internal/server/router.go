package server

import (
	"context"
	"net/http"

	"github.com/abduss/memorylane/internal/auth"
	"github.com/abduss/memorylane/internal/config"
	"github.com/abduss/memorylane/internal/logger"
	"github.com/abduss/memorylane/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable. *pgxpool.Pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config      config.Config
	DB          Pinger // nil for the in-memory store
	AuthService *auth.Service
	Logger      *zap.Logger
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(logger.RequestLogger(log))
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/api")
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService, deps.Config.Auth)
	}

	return router
}

// NewHandler wraps the router with the credentialed CORS policy browsers
// need to send the session cookies cross-origin.
func NewHandler(deps Dependencies) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", logger.CorrelationIDHeader},
		ExposedHeaders:   []string{logger.CorrelationIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})(NewRouter(deps))
}
