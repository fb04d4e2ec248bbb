package canlink

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/notnil/canlink/internal/reactor"
)

// DefaultWorkers is the number of goroutines servicing a driver's reactor
// during Run: the caller plus one spawned worker.
const DefaultWorkers = 2

// Core is the transport-independent part of a driver. It owns the
// transport, runs a reactor loop that keeps one read outstanding at all
// times, and publishes frames and state changes to listeners.
//
// Two locks guard a Core: one for its State and one for the transport
// handle. They are never held at the same time.
type Core struct {
	id      uuid.UUID
	log     zerolog.Logger
	workers int

	frames *FrameDispatcher
	states *Dispatcher[State]

	stateMu  sync.Mutex
	state    State
	pending  []State
	draining bool
	running  bool

	// readMu guards the read chain: at most one read is in flight across
	// all Run calls, tagged with the Run generation that armed it.
	readMu  sync.Mutex
	reading bool
	gen     uint64

	transportMu sync.Mutex
	transport   Transport

	reactor *reactor.Reactor
}

// Option configures a Core.
type Option func(*Core)

// WithWorkers sets how many goroutines service the reactor during Run.
// Values below one are treated as one.
func WithWorkers(n int) Option {
	return func(c *Core) { c.workers = n }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Core) { c.log = l }
}

// NewCore returns a closed driver for t.
func NewCore(t Transport, opts ...Option) *Core {
	c := &Core{
		id:        uuid.New(),
		log:       zerolog.Nop(),
		workers:   DefaultWorkers,
		frames:    NewFrameDispatcher(),
		states:    NewDispatcher[State](),
		transport: t,
		reactor:   reactor.New(),
		state:     State{Status: Closed},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = 1
	}
	c.log = c.log.With().Str("module", "canlink.core").Str("driver", c.id.String()).Logger()
	return c
}

// ID identifies the driver in log records.
func (c *Core) ID() uuid.UUID { return c.id }

// Init opens the transport unless it is open already. An open failure is
// recorded as the transport error and the link stays closed.
func (c *Core) Init(device string, loopback bool) error {
	c.transportMu.Lock()
	var err error
	if !c.transport.IsOpen() {
		err = c.transport.Open(device, loopback)
	}
	c.transportMu.Unlock()

	if err != nil {
		c.log.Error().Err(err).Str("device", device).Msg("open failed")
		c.setErrorCode(err)
		return fmt.Errorf("canlink: open %s: %w", device, err)
	}
	c.log.Info().Str("device", device).Bool("loopback", loopback).Msg("transport open")
	return nil
}

// State returns a snapshot of the driver state.
func (c *Core) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Run services the link until Shutdown, cancellation of ctx, or a failing
// handler stops the reactor. The final state is always dispatched once more
// when Run returns, even if it did not change.
func (c *Core) Run(ctx context.Context) {
	c.setDriverState(c.openStatus())

	if c.State().Status == Open {
		c.reactor.Reset()
		work := c.reactor.Work()
		// A Shutdown that closed the transport before the reset above
		// would otherwise leave the reactor running.
		if !c.isOpen() {
			c.reactor.Stop()
		}
		// A read left in flight by an earlier Run is adopted instead of
		// arming a second one.
		c.readMu.Lock()
		c.gen++
		arm := !c.reading
		c.readMu.Unlock()

		c.setRunning(true)
		c.setDriverState(Ready)
		stop := context.AfterFunc(ctx, c.reactor.Stop)

		var g errgroup.Group
		for i := 1; i < c.workers; i++ {
			g.Go(c.serve)
		}
		c.log.Debug().Int("workers", c.workers).Msg("reactor running")

		if arm {
			c.triggerRead()
		}
		err := c.serve()
		work.Release()
		if werr := g.Wait(); err == nil {
			err = werr
		}
		stop()
		c.setRunning(false)

		if err != nil {
			c.setErrorCode(err)
		}
		c.setDriverState(c.openStatus())
		c.log.Info().Stringer("status", c.State().Status).Msg("reactor stopped")
	}
	c.publish(nil)
}

func (c *Core) serve() error {
	err := c.reactor.Run()
	if err != nil {
		c.log.Error().Err(err).Msg("reactor handler failed")
		c.reactor.Stop()
	}
	return err
}

// Send writes f if the link is ready. It reports whether the transport
// accepted the frame; it never retries.
func (c *Core) Send(f Frame) bool {
	if c.State().Status != Ready {
		return false
	}
	c.transportMu.Lock()
	err := c.transport.Write(f)
	c.transportMu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Stringer("frame", f).Msg("write failed")
		c.setErrorCode(err)
		return false
	}
	return true
}

// Shutdown cancels pending operations, closes the transport and stops the
// reactor. It may be called any number of times from any goroutine.
func (c *Core) Shutdown() {
	c.transportMu.Lock()
	if c.transport.IsOpen() {
		_ = c.transport.Cancel()
		if err := c.transport.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close failed")
		}
	}
	c.transportMu.Unlock()
	c.reactor.Stop()
}

// Recover promotes an open link back to Ready and clears the internal error
// code, e.g. after the controller left bus-off. It only applies while Run is
// servicing the link and reports whether the link is ready afterwards.
func (c *Core) Recover() bool {
	if !c.isOpen() {
		return false
	}
	c.recoverLink()
	return c.State().Status == Ready
}

func (c *Core) recoverLink() {
	c.setInternalError(0)
	c.publish(func(s *State) bool {
		if !c.running || s.Status == Ready {
			return false
		}
		s.Status = Ready
		return true
	})
}

func (c *Core) setRunning(v bool) {
	c.stateMu.Lock()
	c.running = v
	c.stateMu.Unlock()
}

// CreateMsgListener registers fn for every received frame.
func (c *Core) CreateMsgListener(fn FrameFunc) *Listener {
	return c.frames.CreateListener(fn)
}

// CreateHeaderListener registers fn for frames whose header key equals h's.
func (c *Core) CreateHeaderListener(h Header, fn FrameFunc) *Listener {
	return c.frames.CreateHeaderListener(h, fn)
}

// CreateFilterListener registers fn for frames accepted by filter.
func (c *Core) CreateFilterListener(filter FrameFilter, fn FrameFunc) *Listener {
	return c.frames.CreateFilterListener(filter, fn)
}

// CreateStateListener registers fn for state changes.
func (c *Core) CreateStateListener(fn StateFunc) *Listener {
	return c.states.CreateListener(fn)
}

func (c *Core) isOpen() bool {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()
	return c.transport.IsOpen()
}

func (c *Core) openStatus() LinkStatus {
	if c.isOpen() {
		return Open
	}
	return Closed
}

// errClassRestarted is CAN_ERR_RESTARTED: the controller left bus-off.
const errClassRestarted = 0x00000100

// triggerRead arms the next read. Exactly one read is outstanding while the
// chain is alive, so frames are dispatched in arrival order.
func (c *Core) triggerRead() {
	c.readMu.Lock()
	c.reading = true
	gen := c.gen
	c.readMu.Unlock()

	op := c.reactor.Start()
	go func() {
		f, err := c.transport.Read()
		op.Complete(func() { c.frameReceived(gen, f, err) })
	}()
}

func (c *Core) frameReceived(gen uint64, f Frame, err error) {
	c.readMu.Lock()
	c.reading = false
	stale := gen != c.gen
	c.readMu.Unlock()

	if err != nil {
		if stale {
			// The failure belongs to an earlier Run; this Run adopted the
			// read and still needs its chain.
			c.log.Debug().Err(err).Msg("stale read failed, re-arming")
			c.triggerRead()
			return
		}
		c.log.Debug().Err(err).Msg("read chain ended")
		c.setErrorCode(err)
		return
	}
	if f.Error {
		if f.ID&errClassRestarted != 0 {
			c.log.Info().Uint32("code", f.ID).Msg("controller restarted")
			c.recoverLink()
		} else {
			c.log.Warn().Uint32("code", f.ID).Msg("controller error frame")
			c.setInternalError(f.ID)
			c.setDriverState(c.openStatus())
		}
	}
	c.frames.Dispatch(f)
	c.triggerRead()
}

func (c *Core) setErrorCode(err error) {
	c.publish(func(s *State) bool {
		if sameError(s.TransportErr, err) {
			return false
		}
		s.TransportErr = err
		return true
	})
}

func (c *Core) setInternalError(code uint32) {
	c.publish(func(s *State) bool {
		if s.InternalErr == code {
			return false
		}
		s.InternalErr = code
		return true
	})
}

func (c *Core) setDriverState(status LinkStatus) {
	c.publish(func(s *State) bool {
		if s.Status == status {
			return false
		}
		s.Status = status
		return true
	})
}

// publish applies mutate under the state lock and queues the resulting state
// for the listeners when it reports a change. A nil mutate queues the
// current state unconditionally.
//
// Queued states are delivered outside the lock by whichever caller found
// the queue idle, one at a time and in the order they were queued, so a
// listener may call back into the driver.
func (c *Core) publish(mutate func(*State) bool) {
	c.stateMu.Lock()
	if mutate != nil && !mutate(&c.state) {
		c.stateMu.Unlock()
		return
	}
	c.pending = append(c.pending, c.state)
	if c.draining {
		c.stateMu.Unlock()
		return
	}
	c.draining = true
	c.stateMu.Unlock()

	done := false
	defer func() {
		if !done {
			c.stateMu.Lock()
			c.draining = false
			c.stateMu.Unlock()
		}
	}()
	for {
		c.stateMu.Lock()
		if len(c.pending) == 0 {
			c.pending = nil
			c.draining = false
			done = true
			c.stateMu.Unlock()
			return
		}
		s := c.pending[0]
		c.pending = c.pending[1:]
		c.stateMu.Unlock()
		c.states.Dispatch(s)
	}
}
