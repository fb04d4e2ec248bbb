// Package reactor implements a small completion queue serviced by any number
// of goroutines calling Run.
//
// Work is accounted the way an I/O service does it: every posted handler,
// every started operation that has not completed yet and every held Work
// token counts as outstanding. Run returns once nothing is outstanding or
// Stop has been called. A stopped reactor stays stopped until Reset.
package reactor

import (
	"fmt"
	"sync"
)

// Reactor is a completion queue. The zero value is not usable; call New.
type Reactor struct {
	mu          sync.Mutex
	cond        sync.Cond
	queue       []func()
	outstanding int
	stopped     bool
}

// New returns an idle, running reactor.
func New() *Reactor {
	r := &Reactor{}
	r.cond.L = &r.mu
	return r
}

// Post queues fn to be run by one of the Run callers.
func (r *Reactor) Post(fn func()) {
	r.mu.Lock()
	r.outstanding++
	r.queue = append(r.queue, fn)
	r.mu.Unlock()
	r.cond.Signal()
}

// Op is a started asynchronous operation. It keeps the reactor busy until
// Complete hands its completion handler over to the queue.
type Op struct {
	r    *Reactor
	once sync.Once
}

// Start registers a pending operation.
func (r *Reactor) Start() *Op {
	r.mu.Lock()
	r.outstanding++
	r.mu.Unlock()
	return &Op{r: r}
}

// Complete queues the completion handler. The operation's share of the
// outstanding count moves to the handler. Only the first call has effect.
func (o *Op) Complete(fn func()) {
	o.once.Do(func() {
		r := o.r
		r.mu.Lock()
		r.queue = append(r.queue, fn)
		r.mu.Unlock()
		r.cond.Signal()
	})
}

// Work keeps Run from returning while the reactor is idle.
type Work struct {
	r    *Reactor
	once sync.Once
}

// Work takes a keep-alive token. Release it to let Run return when idle.
func (r *Reactor) Work() *Work {
	r.mu.Lock()
	r.outstanding++
	r.mu.Unlock()
	return &Work{r: r}
}

// Release drops the token. Safe to call more than once.
func (w *Work) Release() {
	w.once.Do(func() { w.r.finish() })
}

func (r *Reactor) finish() {
	r.mu.Lock()
	r.outstanding--
	done := r.outstanding == 0
	r.mu.Unlock()
	if done {
		r.cond.Broadcast()
	}
}

// Stop makes every Run call return as soon as its current handler is done.
// Queued handlers stay queued.
func (r *Reactor) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

// Stopped reports whether Stop was called since the last Reset.
func (r *Reactor) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Reset clears the stopped flag so Run can be called again.
func (r *Reactor) Reset() {
	r.mu.Lock()
	r.stopped = false
	r.mu.Unlock()
}

// Outstanding returns the amount of pending work.
func (r *Reactor) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outstanding
}

// Run services the queue until it is stopped or runs out of work. A handler
// that panics ends this Run call with an error; the reactor itself is left
// running for other callers.
func (r *Reactor) Run() error {
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.stopped && r.outstanding > 0 {
			r.cond.Wait()
		}
		if r.stopped || r.outstanding == 0 {
			r.mu.Unlock()
			return nil
		}
		fn := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.mu.Unlock()

		if err := r.call(fn); err != nil {
			return err
		}
	}
}

func (r *Reactor) call(fn func()) (err error) {
	defer r.finish()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reactor: handler panic: %v", p)
		}
	}()
	fn()
	return nil
}
