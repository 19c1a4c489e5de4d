package fakehmc

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Jeomhps/hmc-go/internal/db"
)

// ListCpcs returns the CPCs matching the query parameters.
func (s *Server) ListCpcs(c *gin.Context) {
	filter, err := parseQuery(c.Request.URL.RawQuery)
	if err != nil {
		s.fail(c, err)
		return
	}
	cpcs, err := s.store.ListResources(c.Request.Context(), db.ClassCpc, "")
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]map[string]any, 0, len(cpcs))
	for _, cpc := range cpcs {
		if filter.matches(cpc.Properties) {
			out = append(out, shortProperties(cpc.Properties))
		}
	}
	c.JSON(http.StatusOK, gin.H{"cpcs": out})
}

// GetCpc returns the full properties of a CPC.
func (s *Server) GetCpc(c *gin.Context) {
	cpc, err := s.lookup(c.Request.Context(), db.ClassCpc, "/api/cpcs/"+c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cpc.Properties)
}
