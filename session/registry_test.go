package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/blockflow/testutil"
	"github.com/BaSui01/blockflow/testutil/mocks"
)

type gaugeRecorder struct {
	mu   sync.Mutex
	last int
}

func (g *gaugeRecorder) SetActiveSessions(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = n
}

func (g *gaugeRecorder) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func TestRegistry_Lifecycle(t *testing.T) {
	gauge := &gaugeRecorder{}
	r := NewRegistry(RegistryConfig{}, mocks.NewMockFactory(nil).Create, gauge, nil)

	a, err := r.Create("wf-1")
	require.NoError(t, err)
	b, err := r.Create("")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
	assert.Equal(t, 2, gauge.value())

	got, err := r.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a.Controller, got.Controller)
	assert.Equal(t, "wf-1", got.WorkflowID)

	require.NoError(t, r.Remove(a.ID))
	_, err = r.Get(a.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, r.Remove(a.ID), ErrSessionNotFound)
	assert.Equal(t, StateClosed, a.Controller.Snapshot(false).State)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, gauge.value())
}

func TestRegistry_Limit(t *testing.T) {
	r := NewRegistry(RegistryConfig{MaxSessions: 1}, mocks.NewMockFactory(nil).Create, nil, nil)
	_, err := r.Create("")
	require.NoError(t, err)
	_, err = r.Create("")
	require.ErrorIs(t, err, ErrSessionLimit)
}

func TestRegistry_SweepClosesIdleSessions(t *testing.T) {
	r := NewRegistry(RegistryConfig{IdleTTL: time.Minute}, mocks.NewMockFactory(nil).Create, nil, nil)
	a, err := r.Create("")
	require.NoError(t, err)

	assert.Zero(t, r.Sweep(), "fresh sessions are kept")

	r.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, r.Sweep())
	assert.Zero(t, r.Len())
	assert.Equal(t, StateClosed, a.Controller.Snapshot(false).State)
}

func TestRegistry_SweepSkipsRunningSessions(t *testing.T) {
	ctx := testutil.TestContext(t)
	f := mocks.NewMockFactory(func() *mocks.MockInterpreter {
		return mocks.NewMockInterpreter().WithDelay(200 * time.Millisecond)
	})
	r := NewRegistry(RegistryConfig{IdleTTL: time.Minute}, f.Create, nil, nil)
	e, err := r.Create("")
	require.NoError(t, err)
	_, _ = e.Controller.SetQueue(queueOf("slow"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.Controller.Step(ctx)
	}()
	testutil.AssertEventuallyTrue(t, func() bool { return e.Controller.Snapshot(false).State == StateRunning }, 2*time.Second)

	r.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Zero(t, r.Sweep())
	<-done
}

func TestRegistry_RunClosesEverythingOnShutdown(t *testing.T) {
	r := NewRegistry(RegistryConfig{SweepInterval: 10 * time.Millisecond}, mocks.NewMockFactory(nil).Create, nil, nil)
	e, err := r.Create("")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	cancel()

	err, ok := testutil.WaitForChannel(errCh, 2*time.Second)
	require.True(t, ok)
	require.NoError(t, err)
	assert.Zero(t, r.Len())
	assert.Equal(t, StateClosed, e.Controller.Snapshot(false).State)
}

func TestRegistry_ListOldestFirst(t *testing.T) {
	r := NewRegistry(RegistryConfig{}, mocks.NewMockFactory(nil).Create, nil, nil)
	base := time.Now()
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	first, _ := r.Create("")
	second, _ := r.Create("")

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}
