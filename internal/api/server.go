package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/heron/internal/claims"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/fraud"
	"github.com/opensource-finance/heron/internal/notify"
	"github.com/opensource-finance/heron/internal/policy"
	"github.com/opensource-finance/heron/internal/renewal"
	"github.com/opensource-finance/heron/internal/sla"
	"github.com/opensource-finance/heron/internal/workflow"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services bundles what the handlers call into.
type Services struct {
	Repo      domain.Repository
	Cache     domain.Cache
	Bus       domain.EventBus
	Claims    *claims.Service
	Policies  *policy.Service
	SLA       *sla.Tracker
	Renewals  *renewal.Service
	Notifier  *notify.Service
	Workflows *workflow.Service
	Scorer    *fraud.Scorer

	// MaxFormMemory is the multipart memory budget for claim submissions.
	MaxFormMemory int64
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, svc Services, version string) *Server {
	handler := NewHandler(svc, version)
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(ActorMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.Compress(5))

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Handle("/metrics", promhttp.Handler())

	// Claim intake and decisions
	router.Post("/claims", handler.SubmitClaim)
	router.Get("/claims", handler.ListClaims)
	router.Get("/claims/{id}", handler.GetClaim)
	router.Post("/claims/{id}/decision", handler.DecideClaim)
	router.Post("/eligibility", handler.CheckEligibility)

	// Policy applications and underwriting
	router.Post("/policies", handler.ApplyPolicy)
	router.Get("/policies", handler.ListPolicies)
	router.Get("/policies/{id}", handler.GetPolicy)
	router.Patch("/policies/{id}", handler.UpdatePolicy)
	router.Get("/underwriting", handler.UnderwritingQueue)

	// Operations
	router.Get("/sla", handler.SLASummary)
	router.Post("/renewals", handler.ScheduleRenewal)
	router.Get("/renewals", handler.ListRenewals)
	router.Post("/renewals/sweep", handler.SweepRenewals)
	router.Get("/notifications", handler.ListNotifications)
	router.Patch("/notifications", handler.MarkNotificationRead)
	router.Get("/audit", handler.ListAudit)

	router.Route("/workflows", func(r chi.Router) {
		r.Get("/", handler.ListWorkflows)
		r.Post("/", handler.CreateWorkflow)
		r.Get("/{id}", handler.GetWorkflow)
		r.Patch("/{id}", handler.UpdateWorkflow)
		r.Delete("/{id}", handler.DeleteWorkflow)
	})

	// Fraud rule management
	router.Get("/rules", handler.ListRules)
	router.Post("/rules", handler.CreateRule)
	router.Post("/rules/reload", handler.ReloadRules)

	// Users
	router.Post("/users", handler.CreateUser)
	router.Get("/users", handler.ListUsers)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
