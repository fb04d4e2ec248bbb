package reactor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunReturnsWhenIdle(t *testing.T) {
	r := New()
	require.NoError(t, r.Run())

	var n int
	r.Post(func() { n++ })
	r.Post(func() { n++ })
	require.NoError(t, r.Run())
	require.Equal(t, 2, n)
	require.Zero(t, r.Outstanding())
}

func TestHandlersRunInPostOrder(t *testing.T) {
	r := New()
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		r.Post(func() { got = append(got, i) })
	}
	require.NoError(t, r.Run())
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestWorkKeepsRunAlive(t *testing.T) {
	r := New()
	w := r.Work()

	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	select {
	case <-done:
		t.Fatal("Run returned while work was held")
	case <-time.After(50 * time.Millisecond):
	}

	w.Release()
	w.Release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Release")
	}
	require.Zero(t, r.Outstanding())
}

func TestOpCompletion(t *testing.T) {
	r := New()
	op := r.Start()
	require.Equal(t, 1, r.Outstanding())

	var ran atomic.Bool
	go func() {
		time.Sleep(20 * time.Millisecond)
		op.Complete(func() { ran.Store(true) })
		op.Complete(func() { t.Error("second completion ran") })
	}()

	require.NoError(t, r.Run())
	require.True(t, ran.Load())
	require.Zero(t, r.Outstanding())
}

func TestStopAndReset(t *testing.T) {
	r := New()
	w := r.Work()
	defer w.Release()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Run(); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	r.Stop()
	wg.Wait()
	require.True(t, r.Stopped())

	// Queued handlers survive a stop and run after Reset.
	var ran bool
	r.Post(func() { ran = true })
	require.NoError(t, r.Run())
	require.False(t, ran)

	r.Reset()
	require.False(t, r.Stopped())
	w.Release()
	require.NoError(t, r.Run())
	require.True(t, ran)
}

func TestHandlerPanicBecomesError(t *testing.T) {
	r := New()
	r.Post(func() { panic("boom") })
	var after bool
	r.Post(func() { after = true })

	err := r.Run()
	require.ErrorContains(t, err, "boom")
	require.Equal(t, 1, r.Outstanding())

	require.NoError(t, r.Run())
	require.True(t, after)
}
