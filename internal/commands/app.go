// Package commands implements the zhmc command line client.
package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Jeomhps/hmc-go/internal/config"
	"github.com/Jeomhps/hmc-go/internal/logging"
	"github.com/Jeomhps/hmc-go/internal/output"
	"github.com/Jeomhps/hmc-go/zhmc"
)

const metaKey = "zhmc"

// cmdContext is shared by all commands of one invocation.
type cmdContext struct {
	out    io.Writer
	errOut io.Writer
	in     io.Reader
	format string
	cfg    config.Client
	log    *zap.Logger

	session *zhmc.HTTPSession
	client  *zhmc.Client
}

// NewApp returns the zhmc application writing to stdout and stderr.
func NewApp(stdout, stderr io.Writer) *cli.App {
	// -h selects the HMC host, help is only reachable as --help.
	cli.HelpFlag = &cli.BoolFlag{Name: "help", Usage: "show help"}

	app := cli.NewApp()
	app.Name = "zhmc"
	app.Usage = "manage partitions of IBM Z and LinuxONE machines in DPM mode"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Reader = os.Stdin
	app.Metadata = map[string]interface{}{}
	app.ExitErrHandler = func(*cli.Context, error) {}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Usage:   "hostname or IP address of the HMC",
			Name:    "host",
			Aliases: []string{"h"},
			EnvVars: []string{"ZHMC_HOST"},
		},
		&cli.StringFlag{
			Usage:   "username for the HMC",
			Name:    "userid",
			Aliases: []string{"u"},
			EnvVars: []string{"ZHMC_USERID"},
		},
		&cli.StringFlag{
			Usage:   "password for the HMC, prompted for when omitted",
			Name:    "password",
			Aliases: []string{"p"},
			EnvVars: []string{"ZHMC_PASSWORD"},
		},
		&cli.StringFlag{
			Usage:   "output format (table, json, yaml)",
			Name:    "output-format",
			Aliases: []string{"o"},
			Value:   output.FormatTable,
		},
		&cli.BoolFlag{
			Usage:   "do not verify the HMC certificate",
			Name:    "insecure",
			EnvVars: []string{"ZHMC_INSECURE"},
		},
		&cli.DurationFlag{
			Usage: "timeout of a single HTTP request",
			Name:  "timeout",
			Value: 30 * time.Second,
		},
		&cli.StringFlag{
			Usage:   "log level (debug, info, warn, error)",
			Name:    "log-level",
			EnvVars: []string{"LOG_LEVEL"},
			Value:   "warn",
		},
	}

	app.Commands = []*cli.Command{
		cpcCommand(),
		partitionCommand(),
	}

	app.Before = func(c *cli.Context) error {
		format := c.String("output-format")
		if err := output.CheckFormat(format); err != nil {
			return err
		}
		log, err := logging.New(c.String("log-level"))
		if err != nil {
			return err
		}
		cc := &cmdContext{
			out:    stdout,
			errOut: stderr,
			in:     c.App.Reader,
			format: format,
			cfg:    config.LoadClient(),
			log:    log,
		}
		c.App.Metadata[metaKey] = cc
		return nil
	}

	app.After = func(c *cli.Context) error {
		cc, ok := c.App.Metadata[metaKey].(*cmdContext)
		if !ok {
			return nil
		}
		defer func() { _ = cc.log.Sync() }()
		if cc.session != nil && cc.session.IsLoggedOn() {
			if err := cc.session.Logoff(context.Background()); err != nil {
				cc.log.Warn("logoff failed", zap.Error(err))
			}
		}
		return nil
	}

	return app
}

// Run executes the application and returns the process exit status.
func Run(args []string, stdout, stderr io.Writer) int {
	if err := NewApp(stdout, stderr).Run(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func contextOf(c *cli.Context) *cmdContext {
	return c.App.Metadata[metaKey].(*cmdContext)
}

// zhmcClient returns the client, creating the session on first use.
func (cc *cmdContext) zhmcClient(c *cli.Context) (*zhmc.Client, error) {
	if cc.client != nil {
		return cc.client, nil
	}
	host := c.String("host")
	if host == "" {
		return nil, errors.New("no HMC host specified (use --host or ZHMC_HOST)")
	}
	userid := c.String("userid")
	if userid == "" {
		return nil, errors.New("no HMC userid specified (use --userid or ZHMC_USERID)")
	}
	password := c.String("password")
	if password == "" {
		p, err := promptPassword(cc.errOut, userid, host)
		if err != nil {
			return nil, err
		}
		password = p
	}
	cc.session = zhmc.NewSession(zhmc.SessionOptions{
		Host:            host,
		Port:            cc.cfg.Port,
		UserID:          userid,
		Password:        password,
		Insecure:        c.Bool("insecure"),
		Timeout:         c.Duration("timeout"),
		JobPollInterval: cc.cfg.JobPollInterval,
		JobTimeout:      cc.cfg.JobTimeout,
		Logger:          cc.log,
	})
	cc.client = zhmc.NewClient(cc.session)
	return cc.client, nil
}

func promptPassword(w io.Writer, userid, host string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no HMC password specified (use --password or ZHMC_PASSWORD)")
	}
	fmt.Fprintf(w, "Enter password (for user %s at HMC %s): ", userid, host)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// confirm asks a yes/no question on in, defaulting to no.
func confirm(in io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// failure formats an error of the zhmc package the way all commands report it.
func failure(err error) error {
	return fmt.Errorf("%s: %w", zhmc.ErrorType(err), err)
}

func findCpc(ctx context.Context, client *zhmc.Client, name string) (*zhmc.Cpc, error) {
	cpc, err := client.Cpcs().FindByName(ctx, name)
	if err != nil {
		if zhmc.IsNotFound(err) {
			return nil, fmt.Errorf("Could not find CPC %s.", name)
		}
		return nil, failure(err)
	}
	return cpc, nil
}

func findPartition(ctx context.Context, client *zhmc.Client, cpcName, name string) (*zhmc.Partition, error) {
	cpc, err := findCpc(ctx, client, cpcName)
	if err != nil {
		return nil, err
	}
	p, err := cpc.Partitions().FindByName(ctx, name)
	if err != nil {
		if zhmc.IsNotFound(err) {
			return nil, fmt.Errorf("Could not find partition %s in CPC %s.", name, cpcName)
		}
		return nil, failure(err)
	}
	return p, nil
}
