package fakehmc

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jeomhps/hmc-go/internal/db"
	"github.com/Jeomhps/hmc-go/internal/middleware"
)

// Version returns the API version. No session is required.
func (s *Server) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api-major-version": APIMajorVersion,
		"api-minor-version": APIMinorVersion,
		"hmc-version":       HMCVersion,
		"hmc-name":          s.opts.HMCName,
	})
}

// Logon creates an API session for valid credentials.
// 1) Validate payload
// 2) Load user record and check password
// 3) Sign a session token and return it as api-session
func (s *Server) Logon(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := requireFields(body, "userid", "password"); err != nil {
		s.fail(c, err)
		return
	}
	userID, _ := body["userid"].(string)
	password, _ := body["password"].(string)

	u, err := s.store.GetUser(c.Request.Context(), userID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && !db.CheckPassword(u, password)) {
		s.log.Info("logon rejected", zap.String("userid", userID))
		s.fail(c, &apiError{status: http.StatusForbidden, reason: 0, message: "Logon failed: invalid userid or password"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": s.opts.HMCName,
		"sub": u.UserID,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(s.opts.SessionTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"api-session":       signed,
		"api-major-version": APIMajorVersion,
		"api-minor-version": APIMinorVersion,
	})
}

// Logoff revokes the API session the request was made with.
func (s *Server) Logoff(c *gin.Context) {
	s.revoke(c.GetString(middleware.KeySessionID), time.Now().Add(s.opts.SessionTTL))
	c.Status(http.StatusNoContent)
}
