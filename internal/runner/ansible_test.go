package runner

import (
	"os"
	"testing"

	playbook "github.com/apenella/go-ansible/v2/pkg/playbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteInventory(t *testing.T) {
	path, cleanup, err := WriteInventory(Target{Partition: "my part", Host: "10.0.0.5"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "my_part ansible_host=10.0.0.5 ansible_port=22 ansible_user=root\n", string(data))

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestExtraVars(t *testing.T) {
	vars := ExtraVars(Target{
		Partition:    "P1",
		PartitionURI: "/api/partitions/p1",
		Cpc:          "CPC1",
		ExtraVars:    map[string]any{"role": "web", "ansible_ssh_timeout": 30},
	})
	assert.Equal(t, "P1", vars["partition_name"])
	assert.Equal(t, "/api/partitions/p1", vars["partition_uri"])
	assert.Equal(t, "CPC1", vars["cpc_name"])
	assert.Equal(t, "web", vars["role"])
	assert.Equal(t, 30, vars["ansible_ssh_timeout"])
}

func TestParseRecap(t *testing.T) {
	out := `
PLAY RECAP *********************************************************************
P1                         : ok=3    changed=1    unreachable=0    failed=0    skipped=0    rescued=0    ignored=0
P2                         : ok=0    changed=0    unreachable=1    failed=0    skipped=0    rescued=0    ignored=0
P3                         : ok=1    changed=0    unreachable=0    failed=2    skipped=0    rescued=0    ignored=0
`
	assert.Equal(t, map[string]string{"P1": "ok", "P2": "unreachable", "P3": "failed"}, ParseRecap(out))
	assert.Empty(t, ParseRecap("no recap here"))
}

func TestApplyVerbosity(t *testing.T) {
	tests := []struct {
		level string
		check func(o *playbook.AnsiblePlaybookOptions) bool
	}{
		{level: "trace", check: func(o *playbook.AnsiblePlaybookOptions) bool { return o.VerboseV }},
		{level: "trace-2", check: func(o *playbook.AnsiblePlaybookOptions) bool { return o.VerboseVV }},
		{level: "TRACE3", check: func(o *playbook.AnsiblePlaybookOptions) bool { return o.VerboseVVV }},
		{level: "info", check: func(o *playbook.AnsiblePlaybookOptions) bool { return !o.VerboseV && !o.VerboseVV && !o.VerboseVVV }},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			opts := &playbook.AnsiblePlaybookOptions{}
			applyVerbosity(opts, tt.level)
			assert.True(t, tt.check(opts))
		})
	}
}
