package fakehmc

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Jeomhps/hmc-go/internal/db"
)

// Job statuses.
const (
	jobRunning  = "running"
	jobComplete = "complete"
	jobCanceled = "canceled"
)

// completeJob records a job that already completed with the given result.
// Operations are applied synchronously, so their jobs never run.
func (s *Server) completeJob(c *gin.Context, statusCode, reasonCode int, results map[string]any) (db.Resource, error) {
	oid := uuid.NewString()
	props := map[string]any{
		"status":          jobComplete,
		"job-status-code": statusCode,
		"job-reason-code": reasonCode,
	}
	if results != nil {
		props["job-results"] = results
	}
	job := db.Resource{URI: "/api/jobs/" + oid, Class: db.ClassJob, Properties: props}
	return job, s.store.PutResource(c.Request.Context(), job)
}

// GetJob returns the status of a job.
func (s *Server) GetJob(c *gin.Context) {
	job, err := s.lookup(c.Request.Context(), db.ClassJob, "/api/jobs/"+c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job.Properties)
}

// DeleteJob deletes a job that has ended. A running job is 409 reason 2.
func (s *Server) DeleteJob(c *gin.Context) {
	ctx := c.Request.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.lookup(ctx, db.ClassJob, "/api/jobs/"+c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if status, _ := job.Properties["status"].(string); status != jobComplete && status != jobCanceled {
		s.fail(c, conflict(2, "Job %s has not completed: status %s", job.URI, status))
		return
	}
	if err := s.store.DeleteResource(ctx, job.URI); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
