package zhmc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Jeomhps/hmc-go/internal/db"
	"github.com/Jeomhps/hmc-go/internal/fakehmc"
)

const (
	testUser     = "admin"
	testPassword = "secret"
)

// testHMC is a faked HMC served over plain HTTP.
type testHMC struct {
	server *httptest.Server
	store  *db.Memory
	cpc    db.Resource
	lpar   db.Resource
}

func newTestHMC(t *testing.T) *testHMC {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	store := db.NewMemory()
	require.NoError(t, db.EnsureDefaultAdmin(ctx, store, testUser, testPassword))

	seed := &fakehmc.Seed{Cpcs: []fakehmc.SeedCpc{
		{
			Name: "CPC1", DPMEnabled: true, Status: "active",
			Partitions: []fakehmc.SeedPartition{
				{
					Name: "PART1", Status: "active",
					HBAs: []fakehmc.SeedElement{{Name: "hba1", Properties: map[string]any{"wwpn": "c05076ffeb800010"}}},
					NICs: []fakehmc.SeedElement{{Name: "nic1"}},
				},
				{Name: "PART2", Status: "stopped"},
			},
		},
		{Name: "CPC2", DPMEnabled: false, Status: "operating"},
	}}
	_, err := seed.Apply(ctx, store)
	require.NoError(t, err)

	h := &testHMC{store: store}
	h.cpc, err = store.FindResourceByName(ctx, db.ClassCpc, "", "CPC1")
	require.NoError(t, err)
	h.lpar, err = store.FindResourceByName(ctx, db.ClassCpc, "", "CPC2")
	require.NoError(t, err)

	srv := fakehmc.New(fakehmc.Options{Store: store, JWTSecret: "test-secret"})
	h.server = httptest.NewServer(srv.Engine())
	t.Cleanup(h.server.Close)
	return h
}

func (h *testHMC) session(password string) *HTTPSession {
	return NewSession(SessionOptions{
		Host:            h.server.URL,
		UserID:          testUser,
		Password:        password,
		Timeout:         5 * time.Second,
		JobPollInterval: 10 * time.Millisecond,
		JobTimeout:      5 * time.Second,
		HTTPClient:      h.server.Client(),
	})
}

func (h *testHMC) client(t *testing.T) *Client {
	t.Helper()
	s := h.session(testPassword)
	t.Cleanup(func() { _ = s.Logoff(context.Background()) })
	return NewClient(s)
}

// rawDelete sends a DELETE with an explicit session token.
func (h *testHMC) rawDelete(t *testing.T, uri, token string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, h.server.URL+uri, nil)
	require.NoError(t, err)
	req.Header.Set(SessionHeader, token)
	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
