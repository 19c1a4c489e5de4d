package fakehmc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jeomhps/hmc-go/internal/db"
	"github.com/Jeomhps/hmc-go/internal/middleware"
)

// apiError is an HMC error response.
type apiError struct {
	status  int
	reason  int
	message string
}

func (e *apiError) Error() string { return fmt.Sprintf("%d,%d: %s", e.status, e.reason, e.message) }

func badRequest(reason int, format string, args ...any) error {
	return &apiError{status: http.StatusBadRequest, reason: reason, message: fmt.Sprintf(format, args...)}
}

func conflict(reason int, format string, args ...any) error {
	return &apiError{status: http.StatusConflict, reason: reason, message: fmt.Sprintf(format, args...)}
}

func unknownResource(uri string) error {
	return &apiError{status: http.StatusNotFound, reason: 1, message: "Unknown resource with URI: " + uri}
}

// fail renders err as an HMC error body.
func (s *Server) fail(c *gin.Context, err error) {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		middleware.AbortWithHMCError(c, ae.status, ae.reason, ae.message)
	case errors.Is(err, db.ErrNotFound):
		middleware.AbortWithHMCError(c, http.StatusNotFound, 1, "Unknown resource with URI: "+c.Request.URL.Path)
	default:
		s.log.Error("request failed", zap.String("uri", c.Request.URL.RequestURI()), zap.Error(err))
		middleware.AbortWithHMCError(c, http.StatusInternalServerError, 0, "Internal error")
	}
}
