package fakehmc

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Jeomhps/hmc-go/internal/db"
)

// Valid CPC statuses for operations that change partitions.
var validCpcStatuses = []string{"active", "service-required", "degraded", "exceptions"}

// lookup returns the resource at uri if it has the given class.
func (s *Server) lookup(ctx context.Context, class, uri string) (db.Resource, error) {
	r, err := s.store.GetResource(ctx, uri)
	if errors.Is(err, db.ErrNotFound) || (err == nil && r.Class != class) {
		return db.Resource{}, unknownResource(uri)
	}
	return r, err
}

// partitionAndCpc loads the partition named by the :id parameter and its CPC.
func (s *Server) partitionAndCpc(c *gin.Context) (db.Resource, db.Resource, error) {
	ctx := c.Request.Context()
	p, err := s.lookup(ctx, db.ClassPartition, "/api/partitions/"+c.Param("id"))
	if err != nil {
		return db.Resource{}, db.Resource{}, err
	}
	cpc, err := s.lookup(ctx, db.ClassCpc, p.Parent)
	if err != nil {
		return db.Resource{}, db.Resource{}, err
	}
	return p, cpc, nil
}

// checkCpcStatus fails with 409 when the CPC status does not allow the
// operation: reason 1 when uri targets the CPC itself, 6 when it targets a
// resource hosted by the CPC. A CPC without status passes.
func checkCpcStatus(uri string, cpc db.Resource) error {
	status, ok := cpc.Properties["status"].(string)
	if !ok || contains(validCpcStatuses, status) {
		return nil
	}
	if strings.HasPrefix(uri, cpc.URI) {
		return conflict(1, "The operation cannot be performed because the targeted CPC %s has a status that is not valid for the operation: %s", cpc.Name(), status)
	}
	return conflict(6, "The operation cannot be performed because CPC %s hosting the targeted resource has a status that is not valid for the operation: %s", cpc.Name(), status)
}

// checkPartitionStatus fails with 409 reason 1 when the partition status is
// not in valid (if given) or is in invalid (if given).
func checkPartitionStatus(p db.Resource, valid, invalid []string) error {
	status, ok := p.Properties["status"].(string)
	if !ok {
		return nil
	}
	if (len(valid) > 0 && !contains(valid, status)) || contains(invalid, status) {
		return conflict(1, "The operation cannot be performed because the targeted partition %s has a status that is not valid for the operation: %s", p.Name(), status)
	}
	return nil
}

// readBody binds an optional JSON object body. An empty body yields nil.
func readBody(c *gin.Context) (map[string]any, error) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, badRequest(9, "Request body is not a valid JSON object: %v", err)
	}
	return body, nil
}

// requireFields fails with 400 reason 3 without a body and 400 reason 5
// for a missing field.
func requireFields(body map[string]any, fields ...string) error {
	if body == nil {
		return badRequest(3, "Missing request body")
	}
	for _, f := range fields {
		if _, ok := body[f]; !ok {
			return badRequest(5, "Missing required field in request body: %s", f)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
