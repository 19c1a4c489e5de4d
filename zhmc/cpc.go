package zhmc

import "context"

// CpcManager lists the CPCs managed by an HMC.
type CpcManager struct {
	base baseManager
}

// List returns the CPCs matching opts.
func (m *CpcManager) List(ctx context.Context, opts ListOptions) ([]*Cpc, error) {
	rs, err := m.base.list(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*Cpc, 0, len(rs))
	for _, r := range rs {
		out = append(out, &Cpc{Resource: r})
	}
	return out, nil
}

// Find returns the single CPC matching filter.
func (m *CpcManager) Find(ctx context.Context, filter map[string]string) (*Cpc, error) {
	r, err := m.base.find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Cpc{Resource: r}, nil
}

// FindByName returns the CPC with the given name.
func (m *CpcManager) FindByName(ctx context.Context, name string) (*Cpc, error) {
	return m.Find(ctx, map[string]string{"name": regexpLiteral(name)})
}

// Cpc is a central processor complex.
type Cpc struct {
	*Resource
}

// DPMEnabled reports the locally known "dpm-enabled" property.
func (c *Cpc) DPMEnabled() bool {
	v, _ := c.Property("dpm-enabled")
	b, _ := v.(bool)
	return b
}

// Partitions returns the manager for the partitions of this CPC.
func (c *Cpc) Partitions() *PartitionManager {
	return &PartitionManager{
		cpc: c,
		base: baseManager{
			session:    c.session,
			listURI:    c.uri + "/partitions",
			listKey:    "partitions",
			queryProps: []string{"name", "status"},
		},
	}
}
