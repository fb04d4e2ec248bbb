package canlink

import (
	"context"
	"sync"
	"time"
)

// DefaultStartTimeout bounds how long Threaded.Init waits for Ready.
const DefaultStartTimeout = time.Second

// Threaded runs a Driver's loop on its own goroutine. Init starts the loop
// and returns once the driver is ready; Shutdown stops it again.
type Threaded struct {
	Driver

	startTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// ThreadedOption configures a Threaded driver.
type ThreadedOption func(*Threaded)

// WithStartTimeout sets how long Init waits for the driver to become ready.
func WithStartTimeout(d time.Duration) ThreadedOption {
	return func(t *Threaded) { t.startTimeout = d }
}

// NewThreaded wraps d. Nothing runs until Init.
func NewThreaded(d Driver, opts ...ThreadedOption) *Threaded {
	t := &Threaded{Driver: d, startTimeout: DefaultStartTimeout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Init opens the wrapped driver and starts its loop. It returns ErrNotReady
// when the driver does not become ready within the start timeout; the loop
// keeps running in that case. When a loop is already running Init only
// reports whether the driver is ready.
func (t *Threaded) Init(device string, loopback bool) error {
	t.mu.Lock()
	if t.done != nil {
		t.mu.Unlock()
		if !t.State().IsReady() {
			return ErrNotReady
		}
		return nil
	}
	if err := t.Driver.Init(device, loopback); err != nil {
		t.mu.Unlock()
		return err
	}

	// Subscribe before the loop starts so the transition to Ready is seen.
	w := NewStateWaiter(t.Driver)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel, t.done = cancel, done
	go func() {
		defer close(done)
		t.Driver.Run(ctx)
	}()
	t.mu.Unlock()

	if !w.Wait(Ready, t.startTimeout) {
		return ErrNotReady
	}
	return nil
}

// Shutdown shuts the wrapped driver down, interrupts the loop goroutine and
// waits for it to exit. A later Init starts a new loop.
func (t *Threaded) Shutdown() {
	t.Driver.Shutdown()

	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
}

// Join blocks until the loop goroutine exits on its own. It returns
// immediately if no loop is running.
func (t *Threaded) Join() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether a loop goroutine is tracked.
func (t *Threaded) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done != nil
}
