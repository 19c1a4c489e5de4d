package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSQL_Resources runs against a real MySQL when FAKEHMC_TEST_DSN is set,
// e.g. "appuser:apppass@tcp(127.0.0.1:3306)/fakehmc_test?parseTime=true".
func TestSQL_Resources(t *testing.T) {
	dsn := os.Getenv("FAKEHMC_TEST_DSN")
	if dsn == "" {
		t.Skip("FAKEHMC_TEST_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenSQL(ctx, dsn, 5*time.Second)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.EnsureSchema(ctx, "fakehmc-test-schema", 5))

	uri := "/api/partitions/sql-test-" + time.Now().Format("150405.000000")
	r := Resource{URI: uri, Class: ClassPartition, Parent: "/api/cpcs/sql-test", Properties: map[string]any{"name": uri, "status": "stopped"}}
	require.NoError(t, s.PutResource(ctx, r))
	defer func() { _ = s.DeleteResource(ctx, uri) }()

	got, err := s.GetResource(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, "stopped", got.Properties["status"])

	found, err := s.FindResourceByName(ctx, ClassPartition, r.Parent, uri)
	require.NoError(t, err)
	assert.Equal(t, uri, found.URI)

	for _, other := range []string{strings.ToUpper(uri), uri + " "} {
		_, err = s.FindResourceByName(ctx, ClassPartition, r.Parent, other)
		assert.ErrorIs(t, err, ErrNotFound, "name lookup must be exact: %q", other)
		_, err = s.GetResource(ctx, other)
		assert.ErrorIs(t, err, ErrNotFound, "uri lookup must be exact: %q", other)
	}

	require.NoError(t, s.DeleteResource(ctx, uri))
	_, err = s.GetResource(ctx, uri)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, EnsureDefaultAdmin(ctx, s, "sql-test-admin", "pw"))
	u, err := s.GetUser(ctx, "sql-test-admin")
	require.NoError(t, err)
	assert.True(t, CheckPassword(u, "pw"))
}
