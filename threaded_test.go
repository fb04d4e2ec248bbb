package canlink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stuckDriver opens its transport but its loop never reaches Ready.
type stuckDriver struct {
	*Core
}

func (s stuckDriver) Run(ctx context.Context) {
	s.setDriverState(s.openStatus())
	<-ctx.Done()
}

func TestThreadedInitWaitsForReady(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()

	d := NewThreaded(NewCore(bus.Transport()))
	defer d.Shutdown()

	require.NoError(t, d.Init("vcan0", false))
	require.True(t, d.State().IsReady())
	require.True(t, d.Running())

	// A second Init reports readiness of the running loop.
	require.NoError(t, d.Init("vcan0", false))
}

func TestThreadedInitTimesOut(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()

	timeout := 60 * time.Millisecond
	d := NewThreaded(stuckDriver{NewCore(bus.Transport())}, WithStartTimeout(timeout))

	start := time.Now()
	err := d.Init("vcan0", false)
	require.ErrorIs(t, err, ErrNotReady)
	require.GreaterOrEqual(t, time.Since(start), timeout)

	// The loop keeps running until Shutdown.
	require.True(t, d.Running())
	require.Equal(t, Open, d.State().Status)
	require.ErrorIs(t, d.Init("vcan0", false), ErrNotReady)

	d.Shutdown()
	require.False(t, d.Running())
}

func TestThreadedInitOpenFailure(t *testing.T) {
	openErr := errors.New("permission denied")
	d := NewThreaded(NewCore(&fakeTransport{openErr: openErr}))

	require.ErrorIs(t, d.Init("can0", false), openErr)
	require.False(t, d.Running())
	d.Join()
}

func TestThreadedRestart(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()
	d := NewThreaded(NewCore(bus.Transport()))

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Init("vcan0", false))
		require.Equal(t, Ready, d.State().Status)
		d.Shutdown()
		require.Equal(t, Closed, d.State().Status)
		d.Join()
	}
}
