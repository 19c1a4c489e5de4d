package zhmc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Get(ctx context.Context, uri string) (map[string]any, error) {
	args := m.Called(ctx, uri)
	res, _ := args.Get(0).(map[string]any)
	return res, args.Error(1)
}

func (m *mockSession) Post(ctx context.Context, uri string, body any, wait bool) (map[string]any, error) {
	args := m.Called(ctx, uri, body, wait)
	res, _ := args.Get(0).(map[string]any)
	return res, args.Error(1)
}

func (m *mockSession) Delete(ctx context.Context, uri string) error {
	return m.Called(ctx, uri).Error(0)
}

func testPartitionManager(s Session) *PartitionManager {
	cpc := &Cpc{Resource: &Resource{session: s, uri: "/api/cpcs/c1", properties: map[string]any{"object-uri": "/api/cpcs/c1", "name": "CPC1"}}}
	return cpc.Partitions()
}

func TestPartitionManager_ListURIs(t *testing.T) {
	tests := []struct {
		name   string
		filter map[string]string
		uri    string
	}{
		{name: "no filter", filter: nil, uri: "/api/cpcs/c1/partitions"},
		{name: "name", filter: map[string]string{"name": "P1"}, uri: "/api/cpcs/c1/partitions?name=P1"},
		{name: "sorted and escaped", filter: map[string]string{"status": "active", "name": "a b&c"}, uri: "/api/cpcs/c1/partitions?name=a+b%26c&status=active"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mockSession{}
			s.On("Get", mock.Anything, tt.uri).Return(map[string]any{"partitions": []any{}}, nil).Once()
			parts, err := testPartitionManager(s).List(context.Background(), ListOptions{Filter: tt.filter})
			require.NoError(t, err)
			assert.Empty(t, parts)
			s.AssertExpectations(t)
		})
	}
}

func TestPartitionManager_ListResponses(t *testing.T) {
	ctx := context.Background()

	t.Run("nil response is an empty list", func(t *testing.T) {
		s := &mockSession{}
		s.On("Get", mock.Anything, "/api/cpcs/c1/partitions").Return(nil, nil)
		parts, err := testPartitionManager(s).List(ctx, ListOptions{})
		require.NoError(t, err)
		assert.NotNil(t, parts)
		assert.Empty(t, parts)
	})

	t.Run("missing key is an empty list", func(t *testing.T) {
		s := &mockSession{}
		s.On("Get", mock.Anything, "/api/cpcs/c1/partitions").Return(map[string]any{}, nil)
		parts, err := testPartitionManager(s).List(ctx, ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, parts)
	})

	t.Run("errors pass through unchanged", func(t *testing.T) {
		herr := &HTTPError{HTTPStatus: 404, Reason: 1, Message: "gone"}
		s := &mockSession{}
		s.On("Get", mock.Anything, "/api/cpcs/c1/partitions").Return(nil, herr)
		_, err := testPartitionManager(s).List(ctx, ListOptions{})
		assert.Same(t, herr, err)
	})

	t.Run("item without object-uri", func(t *testing.T) {
		s := &mockSession{}
		s.On("Get", mock.Anything, "/api/cpcs/c1/partitions").Return(map[string]any{"partitions": []any{map[string]any{"name": "P1"}}}, nil)
		_, err := testPartitionManager(s).List(ctx, ListOptions{})
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("client-side regex and full pull", func(t *testing.T) {
		s := &mockSession{}
		s.On("Get", mock.Anything, "/api/cpcs/c1/partitions").Return(map[string]any{"partitions": []any{
			map[string]any{"object-uri": "/api/partitions/p1", "name": "P1", "status": "active"},
			map[string]any{"object-uri": "/api/partitions/p2", "name": "P2", "status": "active"},
		}}, nil)
		s.On("Get", mock.Anything, "/api/partitions/p1").Return(map[string]any{"object-uri": "/api/partitions/p1", "name": "P1", "ifl-processors": float64(2)}, nil)
		s.On("Get", mock.Anything, "/api/partitions/p2").Return(map[string]any{"object-uri": "/api/partitions/p2", "name": "P2", "ifl-processors": float64(4)}, nil)

		parts, err := testPartitionManager(s).List(ctx, ListOptions{Filter: map[string]string{"ifl-processors": "4"}})
		require.NoError(t, err)
		require.Len(t, parts, 1)
		assert.Equal(t, "P2", parts[0].Name())
		assert.True(t, parts[0].FullPropertiesLoaded())
		s.AssertExpectations(t)
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := testPartitionManager(&mockSession{}).List(ctx, ListOptions{Filter: map[string]string{"name": "("}})
		assert.Error(t, err)
	})
}

func TestPartitionManager_Find(t *testing.T) {
	ctx := context.Background()
	two := map[string]any{"partitions": []any{
		map[string]any{"object-uri": "/api/partitions/p1", "name": "P1"},
		map[string]any{"object-uri": "/api/partitions/p2", "name": "P2"},
	}}
	s := &mockSession{}
	s.On("Get", mock.Anything, "/api/cpcs/c1/partitions?name=P.%2A").Return(two, nil)
	s.On("Get", mock.Anything, "/api/cpcs/c1/partitions?name=P9").Return(map[string]any{"partitions": []any{}}, nil)
	s.On("Get", mock.Anything, "/api/cpcs/c1/partitions?name=P1").Return(two, nil)
	mgr := testPartitionManager(s)

	_, err := mgr.Find(ctx, map[string]string{"name": "P.*"})
	var num *NoUniqueMatchError
	require.ErrorAs(t, err, &num)
	assert.Equal(t, 2, num.Count)

	_, err = mgr.FindByName(ctx, "P9")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "NotFound", ErrorType(err))

	// The filter is matched locally even if the HMC ignores it.
	p, err := mgr.FindByName(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "/api/partitions/p1", p.URI())
}

func TestPartitionManager_Create(t *testing.T) {
	ctx := context.Background()
	props := map[string]any{"name": "NEW", "initial-memory": 1024, "maximum-memory": 1024}

	t.Run("uses the returned object-uri", func(t *testing.T) {
		s := &mockSession{}
		s.On("Post", mock.Anything, "/api/cpcs/c1/partitions", props, true).Return(map[string]any{"object-uri": "/api/partitions/new"}, nil)
		p, err := testPartitionManager(s).Create(ctx, props)
		require.NoError(t, err)
		assert.Equal(t, "/api/partitions/new", p.URI())
		assert.Equal(t, "NEW", p.Name())
		assert.Equal(t, 1024, p.Properties()["initial-memory"])
		assert.False(t, p.FullPropertiesLoaded())
		_, leaked := props["object-uri"]
		assert.False(t, leaked)
	})

	t.Run("missing object-uri", func(t *testing.T) {
		s := &mockSession{}
		s.On("Post", mock.Anything, "/api/cpcs/c1/partitions", props, true).Return(nil, nil)
		_, err := testPartitionManager(s).Create(ctx, props)
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("error passes through", func(t *testing.T) {
		herr := &HTTPError{HTTPStatus: 409, Reason: 5}
		s := &mockSession{}
		s.On("Post", mock.Anything, "/api/cpcs/c1/partitions", props, true).Return(nil, herr)
		_, err := testPartitionManager(s).Create(ctx, props)
		assert.Same(t, herr, err)
	})
}

func testPartition(s Session) *Partition {
	r := &Resource{session: s, uri: "/api/partitions/p1", properties: map[string]any{"object-uri": "/api/partitions/p1", "name": "P1", "description": "old"}}
	return &Partition{Resource: r, manager: testPartitionManager(s)}
}

func TestPartition_Delegation(t *testing.T) {
	ctx := context.Background()

	t.Run("start and stop", func(t *testing.T) {
		s := &mockSession{}
		s.On("Post", mock.Anything, "/api/partitions/p1/operations/start", nil, true).Return(map[string]any{"status": "complete"}, nil)
		s.On("Post", mock.Anything, "/api/partitions/p1/operations/stop", nil, false).Return(map[string]any{"job-uri": "/api/jobs/j1"}, nil)
		p := testPartition(s)

		res, err := p.Start(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, "complete", res["status"])

		res, err = p.Stop(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, "/api/jobs/j1", res["job-uri"])
		s.AssertExpectations(t)
	})

	t.Run("delete", func(t *testing.T) {
		s := &mockSession{}
		s.On("Delete", mock.Anything, "/api/partitions/p1").Return(nil)
		require.NoError(t, testPartition(s).Delete(ctx))
		s.AssertExpectations(t)
	})

	t.Run("update changes local properties on success only", func(t *testing.T) {
		s := &mockSession{}
		ok := map[string]any{"description": "new"}
		bad := map[string]any{"description": "rejected"}
		s.On("Post", mock.Anything, "/api/partitions/p1", ok, true).Return(nil, nil)
		s.On("Post", mock.Anything, "/api/partitions/p1", bad, true).Return(nil, &HTTPError{HTTPStatus: 400, Reason: 6})
		p := testPartition(s)

		require.NoError(t, p.UpdateProperties(ctx, ok))
		assert.Equal(t, "new", p.PropertyString("description"))

		require.Error(t, p.UpdateProperties(ctx, bad))
		assert.Equal(t, "new", p.PropertyString("description"))
	})

	t.Run("mount iso escapes the query", func(t *testing.T) {
		s := &mockSession{}
		s.On("Post", mock.Anything, "/api/partitions/p1/operations/mount-iso-image?image-name=a+b.iso&ins-file-name=%2Fx.ins",
			RawBody{ContentType: "application/octet-stream", Data: []byte("x")}, true).Return(nil, nil)
		require.NoError(t, testPartition(s).MountISOImage(ctx, []byte("x"), "a b.iso", "/x.ins"))
		s.AssertExpectations(t)
	})

	t.Run("element lookup", func(t *testing.T) {
		s := &mockSession{}
		s.On("Get", mock.Anything, "/api/partitions/p1/hbas/h1").Return(map[string]any{"name": "hba1", "element-uri": "/api/partitions/p1/hbas/h1"}, nil)
		s.On("Get", mock.Anything, "/api/partitions/p1/hbas/h2").Return(nil, nil)
		p := testPartition(s)
		p.update(map[string]any{"hba-uris": []any{"/api/partitions/p1/hbas/h1"}})

		hba, err := p.FindHBAByName(ctx, "hba1")
		require.NoError(t, err)
		assert.Equal(t, "/api/partitions/p1/hbas/h1", hba.URI())

		_, err = p.FindHBAByName(ctx, "hba9")
		assert.True(t, IsNotFound(err))

		p.update(map[string]any{"hba-uris": []any{"/api/partitions/p1/hbas/h2"}})
		_, err = p.FindHBAByName(ctx, "hba1")
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})
}

func TestJob_WaitForCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("polls until complete and deletes the job", func(t *testing.T) {
		s := &mockSession{}
		s.On("Get", mock.Anything, "/api/jobs/j1").Return(map[string]any{"status": "running"}, nil).Twice()
		s.On("Get", mock.Anything, "/api/jobs/j1").Return(map[string]any{"status": "complete", "job-status-code": float64(200)}, nil).Once()
		s.On("Delete", mock.Anything, "/api/jobs/j1").Return(nil).Once()

		res, err := NewJob(s, "/api/jobs/j1", "POST", "/api/partitions/p1/operations/start").WaitForCompletion(ctx, time.Millisecond, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "complete", res["status"])
		s.AssertExpectations(t)
	})

	t.Run("failed job is an HTTPError", func(t *testing.T) {
		s := &mockSession{}
		s.On("Get", mock.Anything, "/api/jobs/j2").Return(map[string]any{
			"status": "complete", "job-status-code": float64(409), "job-reason-code": float64(1),
			"job-results": map[string]any{"message": "partition busy"},
		}, nil)
		s.On("Delete", mock.Anything, "/api/jobs/j2").Return(errors.New("ignored"))

		_, err := NewJob(s, "/api/jobs/j2", "POST", "/api/partitions/p1/operations/stop").WaitForCompletion(ctx, time.Millisecond, time.Second)
		var he *HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, 409, he.HTTPStatus)
		assert.Equal(t, 1, he.Reason)
		assert.Equal(t, "partition busy", he.Message)
		assert.Equal(t, "/api/partitions/p1/operations/stop", he.RequestURI)
	})

	t.Run("timeout", func(t *testing.T) {
		s := &mockSession{}
		s.On("Get", mock.Anything, "/api/jobs/j3").Return(map[string]any{"status": "running"}, nil)
		_, err := NewJob(s, "/api/jobs/j3", "POST", "/x").WaitForCompletion(ctx, time.Millisecond, 20*time.Millisecond)
		var te *OperationTimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "OperationTimeout", ErrorType(err))
	})

	t.Run("missing status", func(t *testing.T) {
		s := &mockSession{}
		s.On("Get", mock.Anything, "/api/jobs/j4").Return(map[string]any{}, nil)
		_, err := NewJob(s, "/api/jobs/j4", "POST", "/x").WaitForCompletion(ctx, time.Millisecond, time.Second)
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("context canceled", func(t *testing.T) {
		s := &mockSession{}
		s.On("Get", mock.Anything, "/api/jobs/j5").Return(map[string]any{"status": "running"}, nil)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewJob(s, "/api/jobs/j5", "POST", "/x").WaitForCompletion(cctx, time.Hour, 0)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
