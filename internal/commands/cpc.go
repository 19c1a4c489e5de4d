package commands

import (
	"github.com/urfave/cli/v2"

	"github.com/Jeomhps/hmc-go/internal/output"
	"github.com/Jeomhps/hmc-go/zhmc"
)

func cpcCommand() *cli.Command {
	return &cli.Command{
		Name:  "cpc",
		Usage: "command group for managing CPCs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list the CPCs managed by the HMC",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "uri", Usage: "show the resource URI"},
				},
				Action: cpcList,
			},
		},
	}
}

func cpcList(c *cli.Context) error {
	cc := contextOf(c)
	client, err := cc.zhmcClient(c)
	if err != nil {
		return err
	}
	cpcs, err := client.Cpcs().List(c.Context, zhmc.ListOptions{})
	if err != nil {
		return failure(err)
	}
	columns := []string{"name", "status"}
	if c.Bool("uri") {
		columns = append(columns, "object-uri")
	}
	rows := make([][]any, 0, len(cpcs))
	for _, cpc := range cpcs {
		rows = append(rows, row(cpc.Resource, columns))
	}
	return output.Resources(cc.out, cc.format, columns, rows)
}

func row(r *zhmc.Resource, columns []string) []any {
	out := make([]any, len(columns))
	for i, col := range columns {
		out[i], _ = r.Property(col)
	}
	return out
}
