package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/store"
)

// ExperimentAdmin is the narrow slice of pkg/store.ExperimentStore the
// admin routes depend on (§4.5, §3).
type ExperimentAdmin interface {
	Create(ctx context.Context, exp models.Experiment) error
	RunningForSite(ctx context.Context, siteURL string) ([]models.Experiment, error)
}

// CreateExperiment handles POST /admin/experiments.
func (s *Server) CreateExperiment(c *gin.Context) {
	var exp models.Experiment
	if err := c.ShouldBindJSON(&exp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := store.ValidateExperiment(exp); err != nil {
		writeError(c, err)
		return
	}

	if err := s.experiments.Create(c.Request.Context(), exp); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exp)
}

// RunningExperiments handles GET /admin/experiments/running?siteUrl=.
func (s *Server) RunningExperiments(c *gin.Context) {
	siteURL := c.Query("siteUrl")
	exps, err := s.experiments.RunningForSite(c.Request.Context(), siteURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, exps)
}
