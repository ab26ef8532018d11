package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// JobReader is the narrow slice of pkg/store.JobStore the admin route
// depends on (§4.11).
type JobReader interface {
	LastCompleted(ctx context.Context, name models.JobName) (models.JobRun, error)
}

// LastJobRun handles GET /admin/jobs/:name/last.
func (s *Server) LastJobRun(c *gin.Context) {
	name := models.JobName(c.Param("name"))
	run, err := s.jobs.LastCompleted(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
