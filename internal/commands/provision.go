package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Jeomhps/hmc-go/internal/runner"
	"github.com/Jeomhps/hmc-go/zhmc"
)

func provisionCommand() *cli.Command {
	return &cli.Command{
		Name:      "provision",
		Usage:     "run an Ansible playbook against the operating system of an active partition",
		ArgsUsage: "CPC PARTITION",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "playbook", Usage: "path to the playbook", Required: true},
			&cli.StringFlag{Name: "target-host", Usage: "SSH host of the partition's operating system", Required: true},
			&cli.IntFlag{Name: "target-port", Usage: "SSH port", Value: 22},
			&cli.StringFlag{Name: "target-user", Usage: "SSH user", Value: "root"},
			&cli.StringSliceFlag{Name: "extra-var", Usage: "extra playbook variable as key=value (repeatable)"},
		},
		Action: partitionProvision,
	}
}

func partitionProvision(c *cli.Context) error {
	a, err := args(c, "CPC", "PARTITION")
	if err != nil {
		return err
	}
	extra, err := parseExtraVars(c.StringSlice("extra-var"))
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
	if err := p.PullFullProperties(c.Context); err != nil {
		return failure(err)
	}
	if status := p.Status(); status != zhmc.PartitionStatusActive {
		return fmt.Errorf("Partition %s is not active (status: %s).", name, status)
	}

	r := runner.PlaybookRunner{
		Playbook:  c.String("playbook"),
		Forks:     cc.cfg.AnsibleForks,
		Verbosity: c.String("log-level"),
		Stdout:    cc.out,
		Stderr:    cc.errOut,
	}
	target := runner.Target{
		Partition:    name,
		PartitionURI: p.URI(),
		Cpc:          cpcName,
		Host:         c.String("target-host"),
		Port:         c.Int("target-port"),
		User:         c.String("target-user"),
		ExtraVars:    extra,
	}
	cc.log.Info("provisioning partition",
		zap.String("partition", name),
		zap.String("cpc", cpcName),
		zap.String("playbook", r.Playbook),
		zap.String("host", target.Host))
	status, err := r.RunPartition(c.Context, target)
	if err != nil {
		return fmt.Errorf("Provisioning partition %s failed (%s): %w", name, status, err)
	}
	if status != "ok" {
		return fmt.Errorf("Provisioning partition %s failed (%s).", name, status)
	}
	fmt.Fprintf(cc.out, "Partition %s has been provisioned.\n", name)
	return nil
}
