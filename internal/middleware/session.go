package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SessionHeader is the header carrying the HMC API session token.
const SessionHeader = "X-API-Session"

// Context keys set by APISession.
const (
	KeyUserID    = "userid"
	KeySessionID = "session-id"
)

// ReasonSessionInvalid is the HMC reason code for a missing, expired or
// otherwise invalid API session.
const ReasonSessionInvalid = 5

// Revocations reports whether a session was logged off.
type Revocations interface {
	Revoked(sessionID string) bool
}

// APISession validates the API session token (an HS256 JWT) and stores the
// user and session id in the gin context. Every failure is a 403 with
// reason 5, which tells clients to log on again.
func APISession(secret string, revoked Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := strings.TrimSpace(c.GetHeader(SessionHeader))
		if tokenStr == "" {
			AbortWithHMCError(c, http.StatusForbidden, ReasonSessionInvalid, "No API session provided")
			return
		}
		claims := jwt.MapClaims{}
		tok, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !tok.Valid {
			AbortWithHMCError(c, http.StatusForbidden, ReasonSessionInvalid, "API session is invalid or expired")
			return
		}
		sub, _ := claims["sub"].(string)
		jti, _ := claims["jti"].(string)
		if sub == "" || jti == "" {
			AbortWithHMCError(c, http.StatusForbidden, ReasonSessionInvalid, "API session has no subject")
			return
		}
		if revoked != nil && revoked.Revoked(jti) {
			AbortWithHMCError(c, http.StatusForbidden, ReasonSessionInvalid, "API session has been logged off")
			return
		}
		c.Set(KeyUserID, sub)
		c.Set(KeySessionID, jti)
		c.Next()
	}
}

// AbortWithHMCError stops the chain with an HMC error response body.
func AbortWithHMCError(c *gin.Context, status, reason int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"http-status":    status,
		"reason":         reason,
		"message":        message,
		"request-method": c.Request.Method,
		"request-uri":    c.Request.URL.RequestURI(),
	})
}
