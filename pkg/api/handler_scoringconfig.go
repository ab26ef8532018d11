package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// ScoringConfigAdmin is the narrow slice of pkg/scoringconfig.Store the
// admin routes depend on (§4.12).
type ScoringConfigAdmin interface {
	Create(ctx context.Context, cfg models.ScoringConfig) error
	GetActiveConfig(siteURL string) (models.ScoringConfig, bool)
	Activate(ctx context.Context, cfgID, siteURL string) error
}

// CreateScoringConfig handles POST /admin/scoring-configs.
func (s *Server) CreateScoringConfig(c *gin.Context) {
	var cfg models.ScoringConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.scoringConfigs.Create(c.Request.Context(), cfg); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

// ActivateScoringConfig handles POST /admin/scoring-configs/:id/activate.
// siteUrl is an optional query param; omitted means the global scope.
func (s *Server) ActivateScoringConfig(c *gin.Context) {
	id := c.Param("id")
	siteURL := c.Query("siteUrl")

	if err := s.scoringConfigs.Activate(c.Request.Context(), id, siteURL); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActiveScoringConfig handles GET /admin/scoring-configs/active?siteUrl=.
func (s *Server) ActiveScoringConfig(c *gin.Context) {
	siteURL := c.Query("siteUrl")
	cfg, ok := s.scoringConfigs.GetActiveConfig(siteURL)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active scoring config for scope"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}
