package fakehmc

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Jeomhps/hmc-go/internal/db"
)

var (
	stoppableStatuses  = []string{"active", "paused", "terminated"}
	transitionStatuses = []string{"starting", "stopping"}
	startableStatuses  = []string{"stopped"}
	dumpRequiredFields = []string{"dump-load-hba-uri", "dump-world-wide-port-name", "dump-logical-unit-number"}
)

// PartitionOperation dispatches POST /api/partitions/:id/operations/:op.
// Start, stop, dump and PSW restart are asynchronous and answer 202 with a
// job; the other operations complete synchronously with 204.
func (s *Server) PartitionOperation(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, cpc, err := s.partitionAndCpc(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := checkCpcStatus(c.Request.URL.Path, cpc); err != nil {
		s.fail(c, err)
		return
	}

	var async bool
	switch c.Param("op") {
	case "start":
		async, err = true, s.start(p)
	case "stop":
		async, err = true, s.stop(p)
	case "scsi-dump":
		async, err = true, s.scsiDump(c, p)
	case "psw-restart":
		async, err = true, checkPartitionStatus(p, stoppableStatuses, nil)
	case "mount-iso-image":
		err = s.mountISO(c, p)
	case "unmount-iso-image":
		err = s.unmountISO(p)
	case "increase-crypto-configuration":
		err = s.increaseCrypto(c, p)
	case "decrease-crypto-configuration":
		err = s.decreaseCrypto(c, p)
	default:
		err = unknownResource(c.Request.URL.Path)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := s.store.PutResource(ctx, p); err != nil {
		s.fail(c, err)
		return
	}
	if !async {
		c.Status(http.StatusNoContent)
		return
	}
	job, err := s.completeJob(c, http.StatusOK, 0, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job-uri": job.URI})
}

func (s *Server) start(p db.Resource) error {
	if err := checkPartitionStatus(p, startableStatuses, nil); err != nil {
		return err
	}
	p.Properties["status"] = "active"
	return nil
}

func (s *Server) stop(p db.Resource) error {
	if err := checkPartitionStatus(p, stoppableStatuses, nil); err != nil {
		return err
	}
	p.Properties["status"] = "stopped"
	return nil
}

// scsiDump validates the request; the dump itself leaves no trace.
func (s *Server) scsiDump(c *gin.Context, p db.Resource) error {
	if err := checkPartitionStatus(p, stoppableStatuses, nil); err != nil {
		return err
	}
	body, err := readBody(c)
	if err != nil {
		return err
	}
	return requireFields(body, dumpRequiredFields...)
}

func (s *Server) mountISO(c *gin.Context, p db.Resource) error {
	if err := checkPartitionStatus(p, nil, transitionStatuses); err != nil {
		return err
	}
	image := c.Query("image-name")
	if image == "" {
		return badRequest(1, "Missing required URI query parameter 'image-name'")
	}
	insFile := c.Query("ins-file-name")
	if insFile == "" {
		return badRequest(1, "Missing required URI query parameter 'ins-file-name'")
	}
	// The image content is not kept.
	if _, err := io.Copy(io.Discard, c.Request.Body); err != nil {
		return err
	}
	p.Properties["boot-iso-image-name"] = image
	p.Properties["boot-iso-ins-file"] = insFile
	return nil
}

func (s *Server) unmountISO(p db.Resource) error {
	if err := checkPartitionStatus(p, nil, transitionStatuses); err != nil {
		return err
	}
	p.Properties["boot-iso-image-name"] = nil
	p.Properties["boot-iso-ins-file"] = nil
	return nil
}

func (s *Server) increaseCrypto(c *gin.Context, p db.Resource) error {
	if err := checkPartitionStatus(p, nil, transitionStatuses); err != nil {
		return err
	}
	body, err := readBody(c)
	if err != nil {
		return err
	}
	if err := requireFields(body); err != nil {
		return err
	}
	adapters, domains := cryptoConfig(p)
	for _, u := range asSlice(body["crypto-adapter-uris"]) {
		if !containsValue(adapters, u) {
			adapters = append(adapters, u)
		}
	}
	for _, dc := range asSlice(body["crypto-domain-configurations"]) {
		if !containsValue(domains, dc) {
			domains = append(domains, dc)
		}
	}
	setCryptoConfig(p, adapters, domains)
	return nil
}

func (s *Server) decreaseCrypto(c *gin.Context, p db.Resource) error {
	if err := checkPartitionStatus(p, nil, transitionStatuses); err != nil {
		return err
	}
	body, err := readBody(c)
	if err != nil {
		return err
	}
	if err := requireFields(body); err != nil {
		return err
	}
	adapters, domains := cryptoConfig(p)
	remove := asSlice(body["crypto-adapter-uris"])
	keptAdapters := []any{}
	for _, u := range adapters {
		if !containsValue(remove, u) {
			keptAdapters = append(keptAdapters, u)
		}
	}
	indexes := asSlice(body["crypto-domain-indexes"])
	keptDomains := []any{}
	for _, dc := range domains {
		m, _ := dc.(map[string]any)
		if m != nil && containsValue(indexes, m["domain-index"]) {
			continue
		}
		keptDomains = append(keptDomains, dc)
	}
	setCryptoConfig(p, keptAdapters, keptDomains)
	return nil
}

// cryptoConfig returns the adapter URIs and domain configurations of the
// partition's crypto-configuration, empty when not yet set.
func cryptoConfig(p db.Resource) ([]any, []any) {
	cfg, _ := p.Properties["crypto-configuration"].(map[string]any)
	if cfg == nil {
		return []any{}, []any{}
	}
	return asSlice(cfg["crypto-adapter-uris"]), asSlice(cfg["crypto-domain-configurations"])
}

func setCryptoConfig(p db.Resource, adapters, domains []any) {
	p.Properties["crypto-configuration"] = map[string]any{
		"crypto-adapter-uris":          adapters,
		"crypto-domain-configurations": domains,
	}
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	if s == nil {
		return []any{}
	}
	return s
}

// containsValue compares JSON-decoded values; numbers are float64 on both
// sides, objects compare member-wise.
func containsValue(list []any, v any) bool {
	for _, e := range list {
		if jsonEqual(e, v) {
			return true
		}
	}
	return false
}

func jsonEqual(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok || bok {
		if !aok || !bok || len(am) != len(bm) {
			return false
		}
		for k, v := range am {
			if !jsonEqual(v, bm[k]) {
				return false
			}
		}
		return true
	}
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok || bok {
		if !aok || !bok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !jsonEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}
