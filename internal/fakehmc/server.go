// Package fakehmc serves a faked HMC Web Services API: sessions, CPCs,
// partitions with their lifecycle operations, and asynchronous jobs.
//
// It implements the subset of the API the zhmc client uses, with the status
// checks and error reason codes of the real HMC, so that the client and the
// CLI can be exercised without hardware.
//
// Handler methods are split into focused files:
//   - sessions.go:   logon, logoff, version
//   - cpcs.go:       list and get CPCs
//   - partitions.go: list, create, get, update, delete partitions
//   - operations.go: start, stop, dump, PSW restart, ISO, crypto
//   - elements.go:   HBA and NIC elements of a partition
//   - jobs.go:       query and delete jobs
package fakehmc

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jeomhps/hmc-go/internal/db"
	"github.com/Jeomhps/hmc-go/internal/middleware"
)

// API version reported by GET /api/version.
const (
	APIMajorVersion = 2
	APIMinorVersion = 20
	HMCVersion      = "2.14.1"
)

// Options configures a Server.
type Options struct {
	Store      db.Store
	JWTSecret  string
	SessionTTL time.Duration
	HMCName    string
	Logger     *zap.Logger
}

// Server holds the faked HMC state and its HTTP handlers.
type Server struct {
	store db.Store
	opts  Options
	log   *zap.Logger

	// mu serializes read-modify-write sequences on the store.
	mu sync.Mutex

	sessMu  sync.Mutex
	revoked map[string]time.Time
}

// New returns a Server for opts.
func New(opts Options) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.HMCName == "" {
		opts.HMCName = "fakehmc"
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{store: opts.Store, opts: opts, log: log, revoked: map[string]time.Time{}}
}

// Engine returns the gin engine serving the API.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(s.log))

	r.NoRoute(func(c *gin.Context) {
		middleware.AbortWithHMCError(c, http.StatusNotFound, 1, "Unknown resource with URI: "+c.Request.URL.Path)
	})
	r.NoMethod(func(c *gin.Context) {
		middleware.AbortWithHMCError(c, http.StatusNotFound, 1, "Invalid HTTP method "+c.Request.Method+" on URI: "+c.Request.URL.Path)
	})

	// Public
	r.GET("/api/version", s.Version)
	r.POST("/api/sessions", s.Logon)

	// Logged on
	api := r.Group("/api")
	api.Use(middleware.APISession(s.opts.JWTSecret, s))
	{
		api.DELETE("/sessions/this-session", s.Logoff)

		api.GET("/cpcs", s.ListCpcs)
		api.GET("/cpcs/:id", s.GetCpc)
		api.GET("/cpcs/:id/partitions", s.ListPartitions)
		api.POST("/cpcs/:id/partitions", s.CreatePartition)

		api.GET("/partitions/:id", s.GetPartition)
		api.POST("/partitions/:id", s.UpdatePartition)
		api.DELETE("/partitions/:id", s.DeletePartition)
		api.POST("/partitions/:id/operations/:op", s.PartitionOperation)
		api.GET("/partitions/:id/hbas/:eid", s.GetElement)
		api.GET("/partitions/:id/nics/:eid", s.GetElement)

		api.GET("/jobs/:id", s.GetJob)
		api.DELETE("/jobs/:id", s.DeleteJob)
	}
	return r
}

// Revoked reports whether the API session was logged off.
func (s *Server) Revoked(sessionID string) bool {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	_, ok := s.revoked[sessionID]
	return ok
}

func (s *Server) revoke(sessionID string, expires time.Time) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	now := time.Now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[sessionID] = expires
}
