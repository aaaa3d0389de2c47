package apirouter

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/dbcv/platform/internal/credentials"
	"github.com/dbcv/platform/internal/integrations"
	"github.com/dbcv/platform/internal/logging"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type AuthScope string

const (
	AuthScopePublic AuthScope = "public"
	AuthScopeBearer AuthScope = "bearer"
)

type RouteDefinition struct {
	Method      string
	Path        string
	Handler     gin.HandlerFunc
	AuthScope   AuthScope
	Middlewares []gin.HandlerFunc
}

type RouterConfig struct {
	ServiceName string
	APIPrefix   string
	JWTSecret   string
	GinMode     string
	CORS        CORSPolicy
	StaticRoot  string
	MediaURL    string
	MaxLogSize  int
	// SentryEnabled installs the Sentry middleware; the SDK must already be
	// initialised.
	SentryEnabled bool
}

type RouterDeps struct {
	Logger   *logging.Logger
	Registry *integrations.Registry
	Resolver credentials.Resolver
	Health   HealthChecker
	// Optional surfaces; their routes are skipped when nil.
	Socket  gin.HandlerFunc
	Objects ObjectGetter
	IconURL func(key string) string
}

// registerRoutes registers routes to the given router based on route definitions and config
func registerRoutes(router *gin.RouterGroup, cfg RouterConfig, routes []RouteDefinition) {
	for _, route := range routes {
		handlers := buildMiddlewareChain(cfg, route)
		router.Handle(route.Method, route.Path, handlers...)
	}
}

func buildMiddlewareChain(cfg RouterConfig, def RouteDefinition) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0)

	if def.AuthScope == AuthScopeBearer {
		chain = append(chain, AuthMiddleware(cfg.JWTSecret))
	}

	chain = append(chain, def.Middlewares...)
	chain = append(chain, def.Handler)

	return chain
}

func NewRouter(cfg RouterConfig, deps RouterDeps) http.Handler {
	// Only set mode from config if we're not in test mode
	if gin.Mode() != gin.TestMode && cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	r := gin.New()
	// Core middlewares
	r.Use(RecoveryMiddleware(deps.Logger, cfg.CORS))
	if cfg.SentryEnabled {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(cfg.CORS.Middleware())
	r.Use(LoggerMiddleware(deps.Logger))

	// Application logic
	r.Use(ErrorHandlerMiddleware())

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}

	r.GET("/health", Health)
	r.GET("/healthz", HealthzHandler(deps.Health))

	if deps.Socket != nil {
		r.GET("/ws/:session_id", deps.Socket)
	}
	if deps.Objects != nil && cfg.MediaURL != "" {
		r.GET("/"+strings.Trim(cfg.MediaURL, "/")+"/*key", MediaHandler(deps.Objects))
	}
	if cfg.StaticRoot != "" {
		r.Use(static.Serve("/static", static.LocalFile(cfg.StaticRoot, false)))
	}

	integrationHandlers := NewIntegrationHandlers(deps.Logger, deps.Registry, deps.Resolver, deps.IconURL, cfg.MaxLogSize)

	routes := []RouteDefinition{
		{
			Method:    http.MethodGet,
			Path:      "/integrations",
			Handler:   integrationHandlers.List,
			AuthScope: AuthScopePublic,
		},
		{
			Method:    http.MethodGet,
			Path:      "/integrations/:integration_id",
			Handler:   integrationHandlers.Retrieve,
			AuthScope: AuthScopePublic,
		},
		{
			Method:    http.MethodPost,
			Path:      "/bots/:bot_id/integrations/:integration_id/execute",
			Handler:   integrationHandlers.Execute,
			AuthScope: AuthScopeBearer,
		},
	}

	apiRouter := r.Group(cfg.APIPrefix)
	registerRoutes(apiRouter, cfg, routes)

	return r
}
