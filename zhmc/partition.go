package zhmc

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Partition statuses.
const (
	PartitionStatusStopped                 = "stopped"
	PartitionStatusStarting                = "starting"
	PartitionStatusActive                  = "active"
	PartitionStatusStopping                = "stopping"
	PartitionStatusDegraded                = "degraded"
	PartitionStatusReservationError        = "reservation-error"
	PartitionStatusPaused                  = "paused"
	PartitionStatusTerminated              = "terminated"
	PartitionStatusCommunicationsNotActive = "communications-not-active"
	PartitionStatusStatusCheck             = "status-check"
)

// PartitionManager lists and creates the partitions of one CPC.
//
// A partition is a subset of a CPC in DPM mode. Partitions can be created
// and deleted dynamically, and their processors, memory and devices can be
// reconfigured while they exist.
type PartitionManager struct {
	cpc  *Cpc
	base baseManager
}

// Cpc returns the CPC defining the scope of this manager.
func (m *PartitionManager) Cpc() *Cpc { return m.cpc }

// List returns the partitions of the CPC matching opts.
func (m *PartitionManager) List(ctx context.Context, opts ListOptions) ([]*Partition, error) {
	rs, err := m.base.list(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*Partition, 0, len(rs))
	for _, r := range rs {
		out = append(out, &Partition{Resource: r, manager: m})
	}
	return out, nil
}

// Find returns the single partition matching filter.
func (m *PartitionManager) Find(ctx context.Context, filter map[string]string) (*Partition, error) {
	r, err := m.base.find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Partition{Resource: r, manager: m}, nil
}

// FindByName returns the partition with the given name.
func (m *PartitionManager) FindByName(ctx context.Context, name string) (*Partition, error) {
	return m.Find(ctx, map[string]string{"name": regexpLiteral(name)})
}

// Create creates a partition with the given properties. The returned
// partition holds the input properties plus the object-uri assigned by the
// HMC.
func (m *PartitionManager) Create(ctx context.Context, properties map[string]any) (*Partition, error) {
	res, err := m.base.session.Post(ctx, m.base.listURI, properties, true)
	if err != nil {
		return nil, err
	}
	uri, _ := res["object-uri"].(string)
	if uri == "" {
		return nil, &ParseError{Message: fmt.Sprintf("POST %s returned no object-uri", m.base.listURI)}
	}
	props := copyProperties(properties)
	props["object-uri"] = uri
	r, err := newResource(m.base.session, props)
	if err != nil {
		return nil, err
	}
	return &Partition{Resource: r, manager: m}, nil
}

// Partition is a handle on one partition.
type Partition struct {
	*Resource
	manager *PartitionManager
}

// Manager returns the manager the partition was obtained from.
func (p *Partition) Manager() *PartitionManager { return p.manager }

// Status returns the locally known "status" property.
func (p *Partition) Status() string { return p.PropertyString("status") }

// Start activates the partition. With wait set the completed job status is
// returned (members "status", "job-status-code", "job-reason-code"),
// otherwise an object holding the "job-uri" to query.
func (p *Partition) Start(ctx context.Context, wait bool) (map[string]any, error) {
	return p.session.Post(ctx, p.uri+"/operations/start", nil, wait)
}

// Stop deactivates the partition. The result is as for Start.
func (p *Partition) Stop(ctx context.Context, wait bool) (map[string]any, error) {
	return p.session.Post(ctx, p.uri+"/operations/stop", nil, wait)
}

// Delete deletes the partition.
func (p *Partition) Delete(ctx context.Context) error {
	return p.session.Delete(ctx, p.uri)
}

// UpdateProperties changes writable properties of the partition. The local
// properties are updated once the HMC accepted the change.
func (p *Partition) UpdateProperties(ctx context.Context, properties map[string]any) error {
	if _, err := p.session.Post(ctx, p.uri, properties, true); err != nil {
		return err
	}
	p.update(properties)
	return nil
}

// DumpPartition performs a SCSI dump. params must name
// "dump-load-hba-uri", "dump-world-wide-port-name" and
// "dump-logical-unit-number".
func (p *Partition) DumpPartition(ctx context.Context, params map[string]any, wait bool) (map[string]any, error) {
	return p.session.Post(ctx, p.uri+"/operations/scsi-dump", params, wait)
}

// PSWRestart performs a PSW restart of the partition.
func (p *Partition) PSWRestart(ctx context.Context, wait bool) (map[string]any, error) {
	return p.session.Post(ctx, p.uri+"/operations/psw-restart", nil, wait)
}

// MountISOImage uploads an ISO image to the HMC and mounts it to the
// partition as its boot image.
func (p *Partition) MountISOImage(ctx context.Context, image []byte, imageName, insFileName string) error {
	q := url.Values{}
	q.Set("image-name", imageName)
	q.Set("ins-file-name", insFileName)
	uri := p.uri + "/operations/mount-iso-image?" + q.Encode()
	if _, err := p.session.Post(ctx, uri, RawBody{ContentType: "application/octet-stream", Data: image}, true); err != nil {
		return err
	}
	p.update(map[string]any{"boot-iso-image-name": imageName, "boot-iso-ins-file": insFileName})
	return nil
}

// UnmountISOImage unmounts the ISO image of the partition.
func (p *Partition) UnmountISOImage(ctx context.Context) error {
	if _, err := p.session.Post(ctx, p.uri+"/operations/unmount-iso-image", nil, true); err != nil {
		return err
	}
	p.update(map[string]any{"boot-iso-image-name": nil, "boot-iso-ins-file": nil})
	return nil
}

// CryptoDomainConfig assigns one crypto domain to the partition.
type CryptoDomainConfig struct {
	DomainIndex int    `json:"domain-index"`
	AccessMode  string `json:"access-mode"`
}

// IncreaseCryptoConfig adds crypto adapters and domains to the partition.
func (p *Partition) IncreaseCryptoConfig(ctx context.Context, adapterURIs []string, domains []CryptoDomainConfig) error {
	body := map[string]any{
		"crypto-adapter-uris":          nonNil(adapterURIs),
		"crypto-domain-configurations": domains,
	}
	if domains == nil {
		body["crypto-domain-configurations"] = []CryptoDomainConfig{}
	}
	_, err := p.session.Post(ctx, p.uri+"/operations/increase-crypto-configuration", body, true)
	return err
}

// DecreaseCryptoConfig removes crypto adapters and domains from the partition.
func (p *Partition) DecreaseCryptoConfig(ctx context.Context, adapterURIs []string, domainIndexes []int) error {
	if domainIndexes == nil {
		domainIndexes = []int{}
	}
	body := map[string]any{
		"crypto-adapter-uris":   nonNil(adapterURIs),
		"crypto-domain-indexes": domainIndexes,
	}
	_, err := p.session.Post(ctx, p.uri+"/operations/decrease-crypto-configuration", body, true)
	return err
}

// WaitForStatus polls the partition status until it is one of statuses.
// A timeout <= 0 waits until ctx is done.
func (p *Partition) WaitForStatus(ctx context.Context, statuses []string, pollInterval, timeout time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = defaultJobPollInterval
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if err := p.PullFullProperties(ctx); err != nil {
			return err
		}
		status := p.Status()
		for _, s := range statuses {
			if status == s {
				return nil
			}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return &OperationTimeoutError{
				Message: fmt.Sprintf("partition %s did not reach status %v within %s (status %s)", p.Name(), statuses, timeout, status),
			}
		}
		t := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// FindHBAByName returns the HBA element of the partition with the given name.
func (p *Partition) FindHBAByName(ctx context.Context, name string) (*Resource, error) {
	return p.findElement(ctx, "hba-uris", name)
}

// FindNICByName returns the NIC element of the partition with the given name.
func (p *Partition) FindNICByName(ctx context.Context, name string) (*Resource, error) {
	return p.findElement(ctx, "nic-uris", name)
}

func (p *Partition) findElement(ctx context.Context, listProp, name string) (*Resource, error) {
	if _, ok := p.properties[listProp]; !ok {
		if err := p.PullFullProperties(ctx); err != nil {
			return nil, err
		}
	}
	uris, _ := p.properties[listProp].([]any)
	for _, u := range uris {
		uri, ok := u.(string)
		if !ok {
			continue
		}
		props, err := p.session.Get(ctx, uri)
		if err != nil {
			return nil, err
		}
		if props == nil {
			return nil, &ParseError{Message: fmt.Sprintf("GET %s returned no properties", uri)}
		}
		if n, _ := props["name"].(string); n == name {
			if _, ok := props["element-uri"]; !ok {
				props["element-uri"] = uri
			}
			r, err := newResource(p.session, props)
			if err != nil {
				return nil, err
			}
			r.full = true
			return r, nil
		}
	}
	return nil, &NotFoundError{Filter: map[string]string{"name": name}}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
