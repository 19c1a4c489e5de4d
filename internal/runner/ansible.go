package runner

// Runner wraps ansible-playbook invocations used to provision partitions
// once their operating system is up.

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/apenella/go-ansible/v2/pkg/execute"
	playbook "github.com/apenella/go-ansible/v2/pkg/playbook"
)

// Target is the operating system of one partition, reachable over SSH.
type Target struct {
	Partition    string
	PartitionURI string
	Cpc          string
	Host         string
	Port         int
	User         string
	ExtraVars    map[string]any
}

// PlaybookRunner holds minimal settings to run a playbook.
type PlaybookRunner struct {
	Playbook  string
	Forks     int
	Verbosity string // LOG_LEVEL value, mapped to -v flags
	Stdout    io.Writer
	Stderr    io.Writer
}

// RunPartition writes a one-host inventory for t and runs the playbook
// against it. It returns the host status parsed from the PLAY RECAP
// ("ok", "unreachable", "failed", or "unknown").
func (r PlaybookRunner) RunPartition(ctx context.Context, t Target) (string, error) {
	inv, cleanup, err := WriteInventory(t)
	if err != nil {
		return "unknown", err
	}
	defer cleanup()

	var out strings.Builder
	stdout, stderr := r.Stdout, r.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	opts := &playbook.AnsiblePlaybookOptions{
		Inventory: inv,
		Forks:     fmt.Sprintf("%d", r.forks()),
		ExtraVars: ExtraVars(t),
	}
	applyVerbosity(opts, r.Verbosity)
	cmd := playbook.NewAnsiblePlaybookCmd(
		playbook.WithPlaybooks(r.Playbook),
		playbook.WithPlaybookOptions(opts),
	)
	exec := execute.NewDefaultExecute(
		execute.WithCmd(cmd),
		execute.WithWrite(io.MultiWriter(stdout, &out)),
		execute.WithWriteError(stderr),
		execute.WithErrorEnrich(playbook.NewAnsiblePlaybookErrorEnrich()),
	)
	err = exec.Execute(ctx)

	status, ok := ParseRecap(out.String())[inventoryName(t)]
	if !ok {
		status = "unknown"
	}
	return status, err
}

func (r PlaybookRunner) forks() int {
	if r.Forks > 0 {
		return r.Forks
	}
	return 1
}

// ExtraVars returns the variables passed to the playbook: the partition
// identity plus the caller's extra vars, which win on conflict.
func ExtraVars(t Target) map[string]interface{} {
	vars := map[string]interface{}{
		"partition_name":      t.Partition,
		"partition_uri":       t.PartitionURI,
		"cpc_name":            t.Cpc,
		"ansible_ssh_timeout": 15,
	}
	for k, v := range t.ExtraVars {
		vars[k] = v
	}
	return vars
}

// WriteInventory writes a temporary one-host INI inventory for t. The
// returned func removes the file.
func WriteInventory(t Target) (string, func(), error) {
	f, err := os.CreateTemp("", "inv-*.ini")
	if err != nil {
		return "", func() {}, err
	}
	port := t.Port
	if port <= 0 {
		port = 22
	}
	user := t.User
	if user == "" {
		user = "root"
	}
	line := fmt.Sprintf("%s ansible_host=%s ansible_port=%d ansible_user=%s\n",
		inventoryName(t), SafeInvVal(t.Host), port, SafeInvVal(user))
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", func() {}, err
	}
	_ = f.Close()
	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}

var reInvName = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// inventoryName is the inventory host name for the partition.
func inventoryName(t Target) string {
	name := reInvName.ReplaceAllString(t.Partition, "_")
	if name == "" {
		return "partition"
	}
	return name
}

// SafeInvVal escapes characters that can break simple INI-like key=value formats.
func SafeInvVal(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ` `, `\ `)
	s = strings.ReplaceAll(s, `=`, `\=`)
	return s
}

// applyVerbosity maps LOG_LEVEL to ansible-playbook -v flags.
func applyVerbosity(opts *playbook.AnsiblePlaybookOptions, level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace3", "trace-3":
		opts.VerboseVVV = true
	case "trace2", "trace-2":
		opts.VerboseVV = true
	case "trace", "trace1", "trace-1":
		opts.VerboseV = true
	}
}

var reRecap = regexp.MustCompile(`(?m)^\s*([^\s:]+)\s*:\s*ok=(\d+)\s+changed=\d+\s+unreachable=(\d+)\s+failed=(\d+)`)

// ParseRecap extracts per-host status from Ansible PLAY RECAP lines.
// Example line:
// host1 : ok=1 changed=0 unreachable=0 failed=0 skipped=0 rescued=0 ignored=0
func ParseRecap(s string) map[string]string {
	result := map[string]string{}
	for _, m := range reRecap.FindAllStringSubmatch(s, -1) {
		switch {
		case m[3] != "0":
			result[m[1]] = "unreachable"
		case m[4] != "0":
			result[m[1]] = "failed"
		default:
			result[m[1]] = "ok"
		}
	}
	return result
}
