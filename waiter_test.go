package canlink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// manualSource is a StateSource driven by the test.
type manualSource struct {
	mu     sync.Mutex
	state  State
	states *Dispatcher[State]
	// onSubscribe runs inside CreateStateListener, after registration.
	onSubscribe func()
}

func newManualSource(s State) *manualSource {
	return &manualSource{state: s, states: NewDispatcher[State]()}
}

func (m *manualSource) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *manualSource) CreateStateListener(fn StateFunc) *Listener {
	l := m.states.CreateListener(fn)
	if m.onSubscribe != nil {
		m.onSubscribe()
	}
	return l
}

func (m *manualSource) set(status LinkStatus) {
	m.mu.Lock()
	m.state.Status = status
	s := m.state
	m.mu.Unlock()
	m.states.Dispatch(s)
}

func TestWaiterReturnsImmediatelyWhenAlreadyThere(t *testing.T) {
	src := newManualSource(State{Status: Ready})
	w := NewStateWaiter(src)
	defer w.Close()

	start := time.Now()
	require.True(t, w.Wait(Ready, time.Second))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaiterSeesLaterTransition(t *testing.T) {
	src := newManualSource(State{Status: Closed})
	w := NewStateWaiter(src)
	defer w.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		src.set(Open)
		src.set(Ready)
	}()
	require.True(t, w.Wait(Ready, time.Second))
	require.Equal(t, Ready, w.State().Status)
}

func TestWaiterTimesOut(t *testing.T) {
	src := newManualSource(State{Status: Open})
	timeout := 80 * time.Millisecond

	start := time.Now()
	require.False(t, WaitFor(src, Ready, timeout))
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, timeout)
	require.Less(t, elapsed, timeout+500*time.Millisecond)
	require.Zero(t, src.states.Len())
}

func TestWaiterKeepsTransitionDuringConstruction(t *testing.T) {
	src := newManualSource(State{Status: Closed})
	// The transition lands between subscription and the snapshot; the
	// snapshot must not overwrite it.
	src.onSubscribe = func() { src.states.Dispatch(State{Status: Ready}) }

	w := NewStateWaiter(src)
	defer w.Close()
	require.Equal(t, Ready, w.State().Status)
	require.True(t, w.Wait(Ready, 10*time.Millisecond))
}

func TestWaiterContextCancel(t *testing.T) {
	src := newManualSource(State{Status: Closed})
	w := NewStateWaiter(src)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	require.False(t, w.WaitContext(ctx, Ready))
}

func TestWaiterCloseUnsubscribes(t *testing.T) {
	src := newManualSource(State{})
	w := NewStateWaiter(src)
	require.Equal(t, 1, src.states.Len())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.Zero(t, src.states.Len())

	src.set(Ready)
	require.Equal(t, Closed, w.State().Status)
}
