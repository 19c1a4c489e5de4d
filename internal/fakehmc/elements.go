package fakehmc

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Jeomhps/hmc-go/internal/db"
)

// GetElement returns an HBA or NIC of a partition.
func (s *Server) GetElement(c *gin.Context) {
	uri := c.Request.URL.Path
	class := db.ClassNIC
	if strings.Contains(uri, "/hbas/") {
		class = db.ClassHBA
	}
	e, err := s.lookup(c.Request.Context(), class, uri)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e.Properties)
}

// NewElement returns an HBA or NIC of the partition at partitionURI.
func NewElement(class, partitionURI, oid string, props map[string]any) db.Resource {
	kind := "nics"
	if class == db.ClassHBA {
		kind = "hbas"
	}
	uri := partitionURI + "/" + kind + "/" + oid
	all := map[string]any{"description": ""}
	for k, v := range props {
		all[k] = v
	}
	all["element-id"] = oid
	all["element-uri"] = uri
	all["parent"] = partitionURI
	all["class"] = class
	return db.Resource{URI: uri, Class: class, Parent: partitionURI, Properties: all}
}
