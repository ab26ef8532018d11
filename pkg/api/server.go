// Package api implements the thin Gin admin/health HTTP surface: the
// WebSocket upgrade adapter in front of the Transport & Channel Registry
// (C1), scoring-config activation, experiment admin, and job-run listing.
// Grounded on the teacher's gin usage in `cmd/tarsy/main.go` and
// `pkg/api/handlers.go` — the package never uses the echo-based handlers
// also present in the teacher's tree, since gin is the only HTTP framework
// the teacher's own go.mod declares.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/mswim/pkg/transport"
)

// healthTimeout bounds the /health handler's DB ping, mirroring the
// teacher's 5s context.WithTimeout around database.Health.
const healthTimeout = 5 * time.Second

// HealthChecker is the narrow capability the /health route depends on.
// *database.Client implements it.
type HealthChecker interface {
	Health(ctx context.Context) (map[string]any, error)
}

// Server wires the admin/health routes to their collaborators. Every
// dependency is a narrow interface so the router can be exercised with
// fakes in tests without a live Postgres or WebSocket connection.
type Server struct {
	health         HealthChecker
	registry       *transport.Registry
	scoringConfigs ScoringConfigAdmin
	experiments    ExperimentAdmin
	jobs           JobReader
	log            *slog.Logger
}

// Deps bundles the Server's collaborators.
type Deps struct {
	Health         HealthChecker
	Registry       *transport.Registry
	ScoringConfigs ScoringConfigAdmin
	Experiments    ExperimentAdmin
	Jobs           JobReader
	Log            *slog.Logger
}

// New builds a Server.
func New(d Deps) *Server {
	logger := d.Log
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		health:         d.Health,
		registry:       d.Registry,
		scoringConfigs: d.ScoringConfigs,
		experiments:    d.Experiments,
		jobs:           d.Jobs,
		log:            logger,
	}
}

// Router builds the Gin engine with every route registered, mirroring the
// teacher's `gin.Default()` + method-per-route wiring in cmd/tarsy/main.go.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.HandleHealth)
	router.GET("/ws", s.Upgrade)

	admin := router.Group("/admin")
	{
		admin.POST("/scoring-configs", s.CreateScoringConfig)
		admin.POST("/scoring-configs/:id/activate", s.ActivateScoringConfig)
		admin.GET("/scoring-configs/active", s.ActiveScoringConfig)

		admin.POST("/experiments", s.CreateExperiment)
		admin.GET("/experiments/running", s.RunningExperiments)

		admin.GET("/jobs/:name/last", s.LastJobRun)
	}

	return router
}

// HandleHealth reports DB connectivity and live client counts, grounded on
// cmd/tarsy/main.go's inline /health handler.
func (s *Server) HandleHealth(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	dbHealth, err := s.health.Health(reqCtx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": dbHealth,
			"error":    err.Error(),
		})
		return
	}

	body := gin.H{
		"status":   "healthy",
		"database": dbHealth,
	}
	if s.registry != nil {
		body["clients"] = s.registry.ClientCounts()
	}
	c.JSON(http.StatusOK, body)
}
