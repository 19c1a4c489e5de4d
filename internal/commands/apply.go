package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/Jeomhps/hmc-go/zhmc"
)

// partitionEntry is one partition of an apply file.
type partitionEntry struct {
	Cpc        string
	Name       string
	Properties map[string]any
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "create the partitions listed in a YAML file that do not exist yet",
		ArgsUsage: "FILE",
		Action:    partitionApply,
	}
}

func partitionApply(c *cli.Context) error {
	a, err := args(c, "FILE")
	if err != nil {
		return err
	}
	entries, err := loadPartitionEntries(a[0])
	if err != nil {
		return fmt.Errorf("Failed to read %s: %w", a[0], err)
	}
	cc := contextOf(c)
	if len(entries) == 0 {
		fmt.Fprintln(cc.out, "No partitions to create.")
		return nil
	}
	client, err := cc.zhmcClient(c)
	if err != nil {
		return err
	}

	cpcs := map[string]*zhmc.Cpc{}
	var failed int
	for _, e := range entries {
		if e.Cpc == "" || e.Name == "" {
			failed++
			fmt.Fprintf(cc.errOut, "Skipping incomplete entry: cpc=%q name=%q\n", e.Cpc, e.Name)
			continue
		}
		created, err := applyEntry(c.Context, client, cpcs, e)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(cc.errOut, "Failed to create partition %s in CPC %s: %v\n", e.Name, e.Cpc, err)
		case created:
			fmt.Fprintf(cc.out, "New partition %s has been created in CPC %s.\n", e.Name, e.Cpc)
		default:
			fmt.Fprintf(cc.out, "Partition %s already exists in CPC %s.\n", e.Name, e.Cpc)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d partitions could not be created", failed, len(entries))
	}
	return nil
}

// applyEntry creates the partition of e unless it exists. cpcs caches the
// CPCs looked up so far.
func applyEntry(ctx context.Context, client *zhmc.Client, cpcs map[string]*zhmc.Cpc, e partitionEntry) (bool, error) {
	cpc, ok := cpcs[e.Cpc]
	if !ok {
		var err error
		cpc, err = findCpc(ctx, client, e.Cpc)
		if err != nil {
			return false, err
		}
		cpcs[e.Cpc] = cpc
	}
	_, err := cpc.Partitions().FindByName(ctx, e.Name)
	if err == nil {
		return false, nil
	}
	if !zhmc.IsNotFound(err) {
		return false, failure(err)
	}
	props := make(map[string]any, len(e.Properties)+3)
	for k, v := range e.Properties {
		props[k] = v
	}
	props["name"] = e.Name
	withDefaultMemory(props)
	if _, err := cpc.Partitions().Create(ctx, props); err != nil {
		return false, failure(err)
	}
	return true, nil
}

func loadPartitionEntries(path string) ([]partitionEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parsePartitionEntries(b)
}

// parsePartitionEntries accepts a list or {partitions: [...]}.
func parsePartitionEntries(b []byte) ([]partitionEntry, error) {
	var data any
	if err := yaml.Unmarshal(b, &data); err != nil {
		return nil, err
	}

	var items []any
	switch v := data.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case map[string]any:
		pv, ok := v["partitions"]
		if !ok {
			return nil, fmt.Errorf("expected a list or a mapping with key \"partitions\"")
		}
		arr, ok := pv.([]any)
		if !ok && pv != nil {
			return nil, fmt.Errorf("\"partitions\" is not a list")
		}
		items = arr
	default:
		return nil, fmt.Errorf("expected a list or a mapping with key \"partitions\"")
	}

	out := make([]partitionEntry, 0, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %d is not a mapping", i+1)
		}
		e := partitionEntry{
			Cpc:  strings.TrimSpace(stringValue(m["cpc"])),
			Name: strings.TrimSpace(stringValue(m["name"])),
		}
		if pv, ok := m["properties"]; ok && pv != nil {
			props, ok := pv.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("entry %d: properties is not a mapping", i+1)
			}
			e.Properties = props
		}
		out = append(out, e)
	}
	return out, nil
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
