package zhmc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCpcManager(t *testing.T) {
	h := newTestHMC(t)
	ctx := context.Background()
	c := h.client(t)

	cpcs, err := c.Cpcs().List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, cpcs, 2)
	assert.Equal(t, "CPC1", cpcs[0].Name())
	assert.False(t, cpcs[0].FullPropertiesLoaded())

	cpc, err := c.Cpcs().FindByName(ctx, "CPC1")
	require.NoError(t, err)
	assert.Equal(t, h.cpc.URI, cpc.URI())
	assert.False(t, cpc.DPMEnabled(), "short properties do not carry dpm-enabled")
	require.NoError(t, cpc.PullFullProperties(ctx))
	assert.True(t, cpc.DPMEnabled())

	_, err = c.Cpcs().FindByName(ctx, "CPC9")
	assert.True(t, IsNotFound(err))

	full, err := c.Cpcs().List(ctx, ListOptions{Filter: map[string]string{"dpm-enabled": "false"}})
	require.NoError(t, err)
	require.Len(t, full, 1)
	assert.Equal(t, "CPC2", full[0].Name())
	assert.True(t, full[0].FullPropertiesLoaded())
}

func TestPartitionManager_List(t *testing.T) {
	h := newTestHMC(t)
	ctx := context.Background()
	c := h.client(t)
	cpc, err := c.Cpcs().FindByName(ctx, "CPC1")
	require.NoError(t, err)
	mgr := cpc.Partitions()
	assert.Same(t, cpc, mgr.Cpc())

	parts, err := mgr.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "PART1", parts[0].Name())
	assert.Equal(t, PartitionStatusActive, parts[0].Status())
	assert.Same(t, mgr, parts[0].Manager())
	_, hasType := parts[0].Property("type")
	assert.False(t, hasType)

	parts, err = mgr.List(ctx, ListOptions{FullProperties: true, Filter: map[string]string{"status": "stopped"}})
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "PART2", parts[0].Name())
	assert.Equal(t, "linux", parts[0].PropertyString("type"))

	lpar, err := c.Cpcs().FindByName(ctx, "CPC2")
	require.NoError(t, err)
	parts, err = lpar.Partitions().List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestPartition_Lifecycle(t *testing.T) {
	h := newTestHMC(t)
	ctx := context.Background()
	c := h.client(t)
	cpc, err := c.Cpcs().FindByName(ctx, "CPC1")
	require.NoError(t, err)
	mgr := cpc.Partitions()

	input := map[string]any{"name": "NEW", "initial-memory": 4096, "maximum-memory": 8192}
	p, err := mgr.Create(ctx, input)
	require.NoError(t, err)
	assert.NotEmpty(t, p.URI())
	assert.Equal(t, p.URI(), p.PropertyString("object-uri"))
	assert.Equal(t, 4096, p.Properties()["initial-memory"])
	_, mutated := input["object-uri"]
	assert.False(t, mutated)

	_, err = mgr.Create(ctx, input)
	assert.True(t, IsConflict(err))

	found, err := mgr.FindByName(ctx, "NEW")
	require.NoError(t, err)
	assert.Equal(t, p.URI(), found.URI())
	assert.Equal(t, PartitionStatusStopped, found.Status())

	res, err := p.Start(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, JobStatusComplete, res["status"])
	require.NoError(t, p.PullFullProperties(ctx))
	assert.Equal(t, PartitionStatusActive, p.Status())

	_, err = p.Start(ctx, true)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, 409, he.HTTPStatus)
	assert.Equal(t, 1, he.Reason)

	err = p.Delete(ctx)
	assert.True(t, IsConflict(err))

	res, err = p.Stop(ctx, false)
	require.NoError(t, err)
	jobURI, _ := res["job-uri"].(string)
	require.NotEmpty(t, jobURI)
	job := NewJob(c.Session(), jobURI, "POST", p.URI()+"/operations/stop")
	st, err := job.QueryStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, JobStatusComplete, st.Status)
	assert.Equal(t, 200, st.StatusCode)
	_, err = job.WaitForCompletion(ctx, 10*time.Millisecond, time.Second)
	require.NoError(t, err)
	_, err = job.QueryStatus(ctx)
	assert.True(t, IsNotFound(err), "completed job is deleted")

	require.NoError(t, p.WaitForStatus(ctx, []string{PartitionStatusStopped}, 10*time.Millisecond, time.Second))

	require.NoError(t, p.UpdateProperties(ctx, map[string]any{"description": "updated", "name": "RENAMED"}))
	assert.Equal(t, "RENAMED", p.Name())
	assert.Equal(t, "updated", p.PropertyString("description"))

	err = p.UpdateProperties(ctx, map[string]any{"status": "active"})
	require.ErrorAs(t, err, &he)
	assert.Equal(t, 400, he.HTTPStatus)
	assert.Equal(t, PartitionStatusStopped, p.Status())

	require.NoError(t, p.Delete(ctx))
	_, err = mgr.FindByName(ctx, "RENAMED")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(p.PullFullProperties(ctx)))
}

func TestPartition_CreateRequiresDPM(t *testing.T) {
	h := newTestHMC(t)
	ctx := context.Background()
	c := h.client(t)
	lpar, err := c.Cpcs().FindByName(ctx, "CPC2")
	require.NoError(t, err)

	_, err = lpar.Partitions().Create(ctx, map[string]any{"name": "X", "initial-memory": 1024, "maximum-memory": 1024})
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, 409, he.HTTPStatus)
	assert.Equal(t, 5, he.Reason)
}

func TestPartition_Operations(t *testing.T) {
	h := newTestHMC(t)
	ctx := context.Background()
	c := h.client(t)
	cpc, err := c.Cpcs().FindByName(ctx, "CPC1")
	require.NoError(t, err)
	p, err := cpc.Partitions().FindByName(ctx, "PART1")
	require.NoError(t, err)

	t.Run("elements", func(t *testing.T) {
		hba, err := p.FindHBAByName(ctx, "hba1")
		require.NoError(t, err)
		assert.Equal(t, "c05076ffeb800010", hba.PropertyString("wwpn"))
		assert.Contains(t, hba.URI(), p.URI()+"/hbas/")

		nic, err := p.FindNICByName(ctx, "nic1")
		require.NoError(t, err)
		assert.Equal(t, "nic1", nic.Name())

		_, err = p.FindHBAByName(ctx, "hba9")
		assert.True(t, IsNotFound(err))
	})

	t.Run("dump and psw restart", func(t *testing.T) {
		_, err := p.PSWRestart(ctx, true)
		require.NoError(t, err)
		_, err = p.DumpPartition(ctx, map[string]any{
			"dump-load-hba-uri":         "/api/partitions/x/hbas/y",
			"dump-world-wide-port-name": "5005076810260382",
			"dump-logical-unit-number":  "0000000000000000",
		}, true)
		require.NoError(t, err)
	})

	t.Run("iso image", func(t *testing.T) {
		require.NoError(t, p.MountISOImage(ctx, []byte("iso"), "boot image.iso", "/boot.ins"))
		assert.Equal(t, "boot image.iso", p.PropertyString("boot-iso-image-name"))
		require.NoError(t, p.PullFullProperties(ctx))
		assert.Equal(t, "boot image.iso", p.PropertyString("boot-iso-image-name"))

		require.NoError(t, p.UnmountISOImage(ctx))
		require.NoError(t, p.PullFullProperties(ctx))
		assert.Equal(t, "", p.PropertyString("boot-iso-image-name"))
	})

	t.Run("crypto configuration", func(t *testing.T) {
		require.NoError(t, p.IncreaseCryptoConfig(ctx, []string{"/api/adapters/a1"}, []CryptoDomainConfig{{DomainIndex: 3, AccessMode: "control-usage"}}))
		require.NoError(t, p.PullFullProperties(ctx))
		cfg, _ := p.Properties()["crypto-configuration"].(map[string]any)
		require.NotNil(t, cfg)
		assert.Equal(t, []any{"/api/adapters/a1"}, cfg["crypto-adapter-uris"])
		assert.Len(t, cfg["crypto-domain-configurations"], 1)

		require.NoError(t, p.DecreaseCryptoConfig(ctx, nil, []int{3}))
		require.NoError(t, p.PullFullProperties(ctx))
		cfg, _ = p.Properties()["crypto-configuration"].(map[string]any)
		assert.Empty(t, cfg["crypto-domain-configurations"])
		assert.Len(t, cfg["crypto-adapter-uris"], 1)
	})

	t.Run("wait for status times out", func(t *testing.T) {
		err := p.WaitForStatus(ctx, []string{PartitionStatusPaused}, 10*time.Millisecond, 50*time.Millisecond)
		var te *OperationTimeoutError
		assert.ErrorAs(t, err, &te)
	})
}
