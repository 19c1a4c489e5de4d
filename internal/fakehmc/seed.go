package fakehmc

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Jeomhps/hmc-go/internal/db"
)

// Seed is the initial content of a faked HMC, read from YAML:
//
//	cpcs:
//	  - name: CPC1
//	    dpm-enabled: true
//	    status: active
//	    partitions:
//	      - name: PART1
//	        status: active
//	        hbas:
//	          - name: hba1
//	            properties: {wwpn: "c05076ffeb800010"}
type Seed struct {
	Cpcs []SeedCpc `yaml:"cpcs"`
}

// SeedCpc describes one CPC and its partitions.
type SeedCpc struct {
	Name       string          `yaml:"name"`
	DPMEnabled bool            `yaml:"dpm-enabled"`
	Status     string          `yaml:"status"`
	Properties map[string]any  `yaml:"properties"`
	Partitions []SeedPartition `yaml:"partitions"`
}

// SeedPartition describes one partition and its elements.
type SeedPartition struct {
	Name       string         `yaml:"name"`
	Status     string         `yaml:"status"`
	Properties map[string]any `yaml:"properties"`
	HBAs       []SeedElement  `yaml:"hbas"`
	NICs       []SeedElement  `yaml:"nics"`
}

// SeedElement describes one HBA or NIC.
type SeedElement struct {
	Name       string         `yaml:"name"`
	Properties map[string]any `yaml:"properties"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// Apply adds the CPCs and partitions of the seed that do not exist yet,
// matched by name. It returns the number of resources added.
func (seed *Seed) Apply(ctx context.Context, store db.Store) (int, error) {
	added := 0
	for _, sc := range seed.Cpcs {
		if sc.Name == "" {
			return added, errors.New("seed: cpc without name")
		}
		cpc, err := store.FindResourceByName(ctx, db.ClassCpc, "", sc.Name)
		if errors.Is(err, db.ErrNotFound) {
			cpc = NewCpc(sc.Name, sc.DPMEnabled, sc.Status, sc.Properties)
			if err := store.PutResource(ctx, cpc); err != nil {
				return added, err
			}
			added++
		} else if err != nil {
			return added, err
		}

		for _, sp := range sc.Partitions {
			n, err := seedPartition(ctx, store, cpc.URI, sp)
			added += n
			if err != nil {
				return added, err
			}
		}
	}
	return added, nil
}

func seedPartition(ctx context.Context, store db.Store, cpcURI string, sp SeedPartition) (int, error) {
	if sp.Name == "" {
		return 0, fmt.Errorf("seed: partition without name in %s", cpcURI)
	}
	_, err := store.FindResourceByName(ctx, db.ClassPartition, cpcURI, sp.Name)
	if err == nil {
		return 0, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return 0, err
	}

	props := map[string]any{}
	for k, v := range sp.Properties {
		props[k] = v
	}
	props["name"] = sp.Name
	if sp.Status != "" {
		props["status"] = sp.Status
	}
	p := NewPartition(cpcURI, props)

	added := 0
	for _, group := range []struct {
		class string
		prop  string
		elems []SeedElement
	}{
		{db.ClassHBA, "hba-uris", sp.HBAs},
		{db.ClassNIC, "nic-uris", sp.NICs},
	} {
		uris := []string{}
		for _, se := range group.elems {
			eprops := map[string]any{}
			for k, v := range se.Properties {
				eprops[k] = v
			}
			eprops["name"] = se.Name
			e := NewElement(group.class, p.URI, uuid.NewString(), eprops)
			if err := store.PutResource(ctx, e); err != nil {
				return added, err
			}
			uris = append(uris, e.URI)
			added++
		}
		p.Properties[group.prop] = uris
	}
	if err := store.PutResource(ctx, p); err != nil {
		return added, err
	}
	return added + 1, nil
}

// NewCpc returns a CPC resource.
func NewCpc(name string, dpm bool, status string, props map[string]any) db.Resource {
	oid := uuid.NewString()
	uri := "/api/cpcs/" + oid
	all := map[string]any{
		"description":        "",
		"machine-type":       "3906",
		"machine-model":      "M05",
		"is-ensemble-member": false,
		"iml-mode":           "dpm",
	}
	if !dpm {
		all["iml-mode"] = "lpar"
	}
	for k, v := range props {
		all[k] = v
	}
	all["name"] = name
	all["dpm-enabled"] = dpm
	if status != "" {
		all["status"] = status
	}
	all["object-id"] = oid
	all["object-uri"] = uri
	all["class"] = db.ClassCpc
	return db.Resource{URI: uri, Class: db.ClassCpc, Properties: all}
}
