package fakehmc

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Jeomhps/hmc-go/internal/db"
)

// Properties of a partition that Update Partition Properties rejects.
var readOnlyPartitionProperties = []string{"object-uri", "object-id", "parent", "class", "status"}

// ListPartitions returns the partitions of a CPC matching the query
// parameters. A CPC not in DPM mode has no partitions.
func (s *Server) ListPartitions(c *gin.Context) {
	ctx := c.Request.Context()
	cpc, err := s.lookup(ctx, db.ClassCpc, "/api/cpcs/"+c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	out := []map[string]any{}
	if dpm, _ := cpc.Properties["dpm-enabled"].(bool); !dpm {
		c.JSON(http.StatusOK, gin.H{"partitions": out})
		return
	}
	filter, err := parseQuery(c.Request.URL.RawQuery)
	if err != nil {
		s.fail(c, err)
		return
	}
	parts, err := s.store.ListResources(ctx, db.ClassPartition, cpc.URI)
	if err != nil {
		s.fail(c, err)
		return
	}
	for _, p := range parts {
		if filter.matches(p.Properties) {
			out = append(out, shortProperties(p.Properties))
		}
	}
	c.JSON(http.StatusOK, gin.H{"partitions": out})
}

// CreatePartition creates a stopped partition in a CPC in DPM mode.
func (s *Server) CreatePartition(c *gin.Context) {
	ctx := c.Request.Context()
	uri := c.Request.URL.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	cpc, err := s.lookup(ctx, db.ClassCpc, "/api/cpcs/"+c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if dpm, _ := cpc.Properties["dpm-enabled"].(bool); !dpm {
		s.fail(c, conflict(5, "CPC is not in DPM mode: %s", cpc.URI))
		return
	}
	if err := checkCpcStatus(uri, cpc); err != nil {
		s.fail(c, err)
		return
	}
	body, err := readBody(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := requireFields(body, "name", "initial-memory", "maximum-memory"); err != nil {
		s.fail(c, err)
		return
	}
	name, _ := body["name"].(string)
	if err := s.checkUniqueName(c, cpc.URI, name, ""); err != nil {
		s.fail(c, err)
		return
	}

	p := NewPartition(cpc.URI, body)
	if err := s.store.PutResource(ctx, p); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"object-uri": p.URI})
}

// NewPartition returns a stopped partition below cpcURI with the default
// properties of a new partition, overridden by props.
func NewPartition(cpcURI string, props map[string]any) db.Resource {
	oid := uuid.NewString()
	uri := "/api/partitions/" + oid
	all := map[string]any{
		"status":                    "stopped",
		"type":                      "linux",
		"description":               "",
		"processor-mode":            "shared",
		"cp-processors":             0,
		"ifl-processors":            0,
		"boot-device":               "none",
		"boot-iso-image-name":       nil,
		"boot-iso-ins-file":         nil,
		"hba-uris":                  []string{},
		"nic-uris":                  []string{},
		"crypto-configuration":      nil,
		"auto-start":                false,
		"partition-type":            "linux",
		"os-type":                   "",
		"os-name":                   "",
		"reserve-resources":         false,
		"initial-memory":            1024,
		"maximum-memory":            1024,
		"threads-per-processor":     1,
		"acceptable-status":         []string{"active"},
		"has-unacceptable-status":   false,
		"short-name":                "",
		"boot-ftp-host":             nil,
		"boot-ftp-username":         nil,
		"boot-ftp-password":         nil,
		"boot-ftp-insfile":          nil,
		"boot-removable-media":      nil,
		"boot-removable-media-type": nil,
		"boot-timeout":              60,
	}
	for k, v := range props {
		all[k] = v
	}
	all["object-id"] = oid
	all["object-uri"] = uri
	all["parent"] = cpcURI
	all["class"] = db.ClassPartition
	return db.Resource{URI: uri, Class: db.ClassPartition, Parent: cpcURI, Properties: all}
}

// GetPartition returns the full properties of a partition.
func (s *Server) GetPartition(c *gin.Context) {
	p, err := s.lookup(c.Request.Context(), db.ClassPartition, "/api/partitions/"+c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p.Properties)
}

// UpdatePartition merges writable properties into a partition.
func (s *Server) UpdatePartition(c *gin.Context) {
	ctx := c.Request.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, _, err := s.partitionAndCpc(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	body, err := readBody(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := requireFields(body); err != nil {
		s.fail(c, err)
		return
	}
	for _, k := range readOnlyPartitionProperties {
		if _, ok := body[k]; ok {
			s.fail(c, badRequest(6, "Property is read-only: %s", k))
			return
		}
	}
	if name, ok := body["name"].(string); ok && name != p.Name() {
		if err := s.checkUniqueName(c, p.Parent, name, p.URI); err != nil {
			s.fail(c, err)
			return
		}
	}
	for k, v := range body {
		p.Properties[k] = v
	}
	if err := s.store.PutResource(ctx, p); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeletePartition deletes a stopped partition and its elements.
func (s *Server) DeletePartition(c *gin.Context) {
	ctx := c.Request.Context()
	uri := c.Request.URL.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	p, cpc, err := s.partitionAndCpc(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := checkCpcStatus(uri, cpc); err != nil {
		s.fail(c, err)
		return
	}
	if err := checkPartitionStatus(p, []string{"stopped"}, nil); err != nil {
		s.fail(c, err)
		return
	}
	for _, class := range []string{db.ClassHBA, db.ClassNIC} {
		elems, err := s.store.ListResources(ctx, class, p.URI)
		if err != nil {
			s.fail(c, err)
			return
		}
		for _, e := range elems {
			if err := s.store.DeleteResource(ctx, e.URI); err != nil && !errors.Is(err, db.ErrNotFound) {
				s.fail(c, err)
				return
			}
		}
	}
	if err := s.store.DeleteResource(ctx, p.URI); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// checkUniqueName fails with 409 reason 3 when another partition of the CPC
// already has name.
func (s *Server) checkUniqueName(c *gin.Context, cpcURI, name, self string) error {
	other, err := s.store.FindResourceByName(c.Request.Context(), db.ClassPartition, cpcURI, name)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if other.URI == self {
		return nil
	}
	return conflict(3, "A partition with name %s already exists in CPC %s", name, cpcURI)
}
