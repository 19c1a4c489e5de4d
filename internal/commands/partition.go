package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/Jeomhps/hmc-go/internal/output"
	"github.com/Jeomhps/hmc-go/zhmc"
)

func partitionCommand() *cli.Command {
	createFlags := append([]cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "the name of the new partition", Required: true},
	}, propertyFlags(false)...)
	createFlags = append(createFlags, ftpFlags()...)

	updateFlags := append([]cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "the new name of the partition"},
	}, propertyFlags(true)...)
	updateFlags = append(updateFlags,
		&cli.StringFlag{Name: "boot-storage-hba", Usage: "boot from an FCP LUN: the name of the HBA to be used"},
		&cli.StringFlag{Name: "boot-storage-lun", Usage: "boot from an FCP LUN: the LUN to boot from"},
		&cli.StringFlag{Name: "boot-storage-wwpn", Usage: "boot from an FCP LUN: the WWPN of the storage controller exposing the LUN"},
		&cli.StringFlag{Name: "boot-network-nic", Usage: "boot from a PXE server: the name of the NIC to be used"},
	)
	updateFlags = append(updateFlags, ftpFlags()...)
	updateFlags = append(updateFlags,
		&cli.StringFlag{Name: "boot-iso", Usage: "boot from an ISO image mounted to this partition"},
	)

	return &cli.Command{
		Name:  "partition",
		Usage: "command group for managing partitions",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "list the partitions in a CPC",
				ArgsUsage: "CPC",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "type", Usage: "show the partition and OS type"},
					&cli.BoolFlag{Name: "uri", Usage: "show the resource URI"},
				},
				Action: partitionList,
			},
			{
				Name:      "show",
				Usage:     "show the details of a partition in a CPC",
				ArgsUsage: "CPC PARTITION",
				Action:    partitionShow,
			},
			{
				Name:      "start",
				Usage:     "start a partition",
				ArgsUsage: "CPC PARTITION",
				Action:    partitionStart,
			},
			{
				Name:      "stop",
				Usage:     "stop a partition",
				ArgsUsage: "CPC PARTITION",
				Action:    partitionStop,
			},
			{
				Name:      "create",
				Usage:     "create a partition in a CPC",
				ArgsUsage: "CPC",
				Flags:     createFlags,
				Action:    partitionCreate,
			},
			{
				Name:      "update",
				Usage:     "update the properties of a partition",
				ArgsUsage: "CPC PARTITION",
				Flags:     updateFlags,
				Action:    partitionUpdate,
			},
			{
				Name:      "delete",
				Usage:     "delete a partition",
				ArgsUsage: "CPC PARTITION",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Usage: "skip prompt to confirm deletion of the partition"},
				},
				Action: partitionDelete,
			},
			applyCommand(),
			provisionCommand(),
		},
	}
}

// args returns the n positional arguments of the command.
func args(c *cli.Context, names ...string) ([]string, error) {
	if c.NArg() != len(names) {
		return nil, fmt.Errorf("expected arguments %v, got %d", names, c.NArg())
	}
	return c.Args().Slice(), nil
}

func partitionList(c *cli.Context) error {
	a, err := args(c, "CPC")
	if err != nil {
		return err
	}
	cc := contextOf(c)
	client, err := cc.zhmcClient(c)
	if err != nil {
		return err
	}
	cpc, err := findCpc(c.Context, client, a[0])
	if err != nil {
		return err
	}
	columns := []string{"name", "status"}
	if c.Bool("type") {
		columns = append(columns, "partition-type", "os-type")
	}
	if c.Bool("uri") {
		columns = append(columns, "object-uri")
	}
	partitions, err := cpc.Partitions().List(c.Context, zhmc.ListOptions{FullProperties: c.Bool("type")})
	if err != nil {
		return failure(err)
	}
	rows := make([][]any, 0, len(partitions))
	for _, p := range partitions {
		rows = append(rows, row(p.Resource, columns))
	}
	return output.Resources(cc.out, cc.format, columns, rows)
}

func partitionShow(c *cli.Context) error {
	cc, p, err := lookupPartition(c)
	if err != nil {
		return err
	}
	if err := p.PullFullProperties(c.Context); err != nil {
		return failure(err)
	}
	return output.Properties(cc.out, cc.format, p.Properties())
}

func partitionStart(c *cli.Context) error {
	cc, p, err := lookupPartition(c)
	if err != nil {
		return err
	}
	if _, err := p.Start(c.Context, true); err != nil {
		return failure(err)
	}
	if err := cc.awaitStatus(c.Context, p, zhmc.PartitionStatusActive); err != nil {
		return failure(err)
	}
	fmt.Fprintf(cc.out, "Partition %s has been started.\n", p.Name())
	return nil
}

func partitionStop(c *cli.Context) error {
	cc, p, err := lookupPartition(c)
	if err != nil {
		return err
	}
	if _, err := p.Stop(c.Context, true); err != nil {
		return failure(err)
	}
	if err := cc.awaitStatus(c.Context, p, zhmc.PartitionStatusStopped); err != nil {
		return failure(err)
	}
	fmt.Fprintf(cc.out, "Partition %s has been stopped.\n", p.Name())
	return nil
}

func partitionCreate(c *cli.Context) error {
	a, err := args(c, "CPC")
	if err != nil {
		return err
	}
	props, err := createProperties(c)
	if err != nil {
		return err
	}
	cc := contextOf(c)
	client, err := cc.zhmcClient(c)
	if err != nil {
		return err
	}
	cpc, err := findCpc(c.Context, client, a[0])
	if err != nil {
		return err
	}
	p, err := cpc.Partitions().Create(c.Context, props)
	if err != nil {
		return failure(err)
	}
	fmt.Fprintf(cc.out, "New partition %s has been created.\n", p.Name())
	return nil
}

// createProperties builds the properties of a new partition from the
// create options.
func createProperties(o options) (map[string]any, error) {
	props, err := propertiesFromOptions(o)
	if err != nil {
		return nil, err
	}
	withDefaultMemory(props)
	boot, err := bootFromOptions(o, false)
	if err != nil {
		return nil, err
	}
	for k, v := range boot.Properties {
		props[k] = v
	}
	return props, nil
}

func withDefaultMemory(props map[string]any) {
	for _, name := range []string{"initial-memory", "maximum-memory"} {
		if _, ok := props[name]; !ok {
			props[name] = defaultMemory
		}
	}
}

func partitionUpdate(c *cli.Context) error {
	a, err := args(c, "CPC", "PARTITION")
	if err != nil {
		return err
	}
	props, err := propertiesFromOptions(c)
	if err != nil {
		return err
	}
	boot, err := bootFromOptions(c, true)
	if err != nil {
		return err
	}
	cc := contextOf(c)
	client, err := cc.zhmcClient(c)
	if err != nil {
		return err
	}
	cpcName, name := a[0], a[1]
	p, err := findPartition(c.Context, client, cpcName, name)
	if err != nil {
		return err
	}

	switch {
	case boot.HBA != "":
		hba, err := p.FindHBAByName(c.Context, boot.HBA)
		if err != nil {
			if zhmc.IsNotFound(err) {
				return fmt.Errorf("Could not find HBA %s in partition %s in CPC %s.", boot.HBA, name, cpcName)
			}
			return failure(err)
		}
		boot.Properties["boot-storage-device"] = hba.URI()
	case boot.NIC != "":
		nic, err := p.FindNICByName(c.Context, boot.NIC)
		if err != nil {
			if zhmc.IsNotFound(err) {
				return fmt.Errorf("Could not find NIC %s in partition %s in CPC %s.", boot.NIC, name, cpcName)
			}
			return failure(err)
		}
		boot.Properties["boot-network-device"] = nic.URI()
	}
	for k, v := range boot.Properties {
		props[k] = v
	}

	if len(props) == 0 {
		fmt.Fprintf(cc.out, "No properties specified for updating partition %s.\n", name)
		return nil
	}
	if err := p.UpdateProperties(c.Context, props); err != nil {
		return failure(err)
	}
	if newName, ok := props["name"].(string); ok && newName != name {
		fmt.Fprintf(cc.out, "Partition %s has been renamed to %s and was updated.\n", name, newName)
	} else {
		fmt.Fprintf(cc.out, "Partition %s has been updated.\n", name)
	}
	return nil
}

func partitionDelete(c *cli.Context) error {
	a, err := args(c, "CPC", "PARTITION")
	if err != nil {
		return err
	}
	cc := contextOf(c)
	if !c.Bool("yes") && !confirm(cc.in, cc.errOut, "Are you sure you want to delete this partition ?") {
		return errors.New("Aborted!")
	}
	client, err := cc.zhmcClient(c)
	if err != nil {
		return err
	}
	p, err := findPartition(c.Context, client, a[0], a[1])
	if err != nil {
		return err
	}
	if err := p.Delete(c.Context); err != nil {
		return failure(err)
	}
	fmt.Fprintf(cc.out, "Partition %s has been deleted.\n", a[1])
	return nil
}

// awaitStatus waits up to the configured status timeout for the partition
// to reach status once its job has completed.
func (cc *cmdContext) awaitStatus(ctx context.Context, p *zhmc.Partition, status string) error {
	return p.WaitForStatus(ctx, []string{status}, cc.cfg.JobPollInterval, cc.cfg.StatusTimeout)
}

func lookupPartition(c *cli.Context) (*cmdContext, *zhmc.Partition, error) {
	a, err := args(c, "CPC", "PARTITION")
	if err != nil {
		return nil, nil, err
	}
	cc := contextOf(c)
	client, err := cc.zhmcClient(c)
	if err != nil {
		return nil, nil, err
	}
	p, err := findPartition(c.Context, client, a[0], a[1])
	if err != nil {
		return nil, nil, err
	}
	return cc, p, nil
}
