package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hookrelay/pkg/accounts"
	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/destinations"
	"github.com/platinummonkey/hookrelay/pkg/httputil"
	"github.com/platinummonkey/hookrelay/pkg/middleware"
	"github.com/platinummonkey/hookrelay/pkg/observability"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/users"
	"github.com/platinummonkey/hookrelay/pkg/webhooks"
)

// Config wires the services behind the HTTP surface. Limiter, Health,
// Metrics and Gatherer are optional.
type Config struct {
	Users        *users.Service
	Accounts     *accounts.Service
	Destinations *destinations.Service
	Logs         *webhooks.LogService
	Gateway      *webhooks.Gateway
	Resolver     *rbac.Resolver

	Limiter   middleware.Limiter
	RateLimit *middleware.RateLimitConfig

	Health   *observability.HealthChecker
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer

	Logger       *logrus.Logger
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	cfg     Config
	audit   *auth.AuditLogger
	logger  logrus.FieldLogger
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	s := &Server{
		router: mux.NewRouter(),
		cfg:    cfg,
		audit:  auth.NewAuditLogger(cfg.Logger),
		logger: cfg.Logger.WithField("component", "api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.handler = stripTrailingSlash(s.router)
	return s
}

// setupMiddleware installs the request pipeline. Metrics run inside the
// router so they can label by route template.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logging(s.cfg.Logger))
	if s.cfg.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.cfg.Metrics))
	}
	s.router.Use(httputil.RecoveryMiddleware)
	if s.cfg.MaxBodyBytes > 0 {
		s.router.Use(httputil.MaxBytesMiddleware(s.cfg.MaxBodyBytes))
	}
	s.router.Use(middleware.NewAuthMiddleware(s.cfg.Users.Tokens(), true).Handler)
	s.router.Use(rbac.NewPrincipalMiddleware(s.cfg.Resolver).Handler)
	if s.cfg.Limiter != nil {
		s.router.Use(middleware.NewRateLimitMiddleware(s.cfg.Limiter, s.cfg.RateLimit, s.logger).Handler)
	}
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	registrars := []RouteRegistrar{
		&userHandlers{svc: s.cfg.Users, audit: s.audit},
		&accountHandlers{svc: s.cfg.Accounts},
		&destinationHandlers{svc: s.cfg.Destinations},
		&logHandlers{svc: s.cfg.Logs},
		&ingestHandlers{gateway: s.cfg.Gateway},
	}
	for _, r := range registrars {
		s.RegisterRoutes(r)
	}

	if s.cfg.Health != nil {
		s.router.HandleFunc("/health/live", s.cfg.Health.Liveness).Methods(http.MethodGet)
		s.router.HandleFunc("/health/ready", s.cfg.Health.Readiness).Methods(http.MethodGet)
	}
	if s.cfg.Gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.cfg.Gatherer)).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "Not found.")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(httputil.WriteMethodNotAllowed)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// stripTrailingSlash makes "/accounts/" and "/accounts" the same route
func stripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > 1 && strings.HasSuffix(r.URL.Path, "/") {
			r.URL.Path = strings.TrimRight(r.URL.Path, "/")
			if r.URL.RawPath != "" {
				r.URL.RawPath = strings.TrimRight(r.URL.RawPath, "/")
			}
		}
		next.ServeHTTP(w, r)
	})
}
