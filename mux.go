package canlink

import (
	"sync"
)

// Mux turns a driver's frame listeners into channels.
//
// Each subscription owns a buffered channel; frames for a full channel are
// dropped. All channels are closed when the Mux is closed or when the
// driver's link goes from open to closed.
type Mux struct {
	d Driver

	mu     sync.Mutex
	closed bool
	last   LinkStatus
	subs   map[uint64]*subscriber
	next   uint64
	state  *Listener
}

type subscriber struct {
	mu       sync.Mutex
	done     bool
	ch       chan Frame
	listener *Listener
}

// NewMux creates a multiplexer bound to d.
func NewMux(d Driver) *Mux {
	m := &Mux{
		d:    d,
		last: d.State().Status,
		subs: make(map[uint64]*subscriber),
	}
	m.state = d.CreateStateListener(m.stateChanged)
	return m
}

// Close closes all subscriber channels and detaches from the driver.
func (m *Mux) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	m.state.Close()
	for _, s := range subs {
		s.stop()
	}
	return nil
}

// Subscribe registers a new subscriber with the provided filter and channel
// buffer. The cancel function closes the channel; it is safe to call more
// than once.
func (m *Mux) Subscribe(filter FrameFilter, buffer int) (<-chan Frame, func()) {
	if buffer < 0 {
		buffer = 0
	}
	s := &subscriber{ch: make(chan Frame, buffer)}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	id := m.next
	m.next++
	m.subs[id] = s
	s.listener = m.d.CreateFilterListener(filter, s.deliver)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if m.subs != nil {
			delete(m.subs, id)
		}
		m.mu.Unlock()
		s.stop()
	}
	return s.ch, cancel
}

func (m *Mux) stateChanged(st State) {
	m.mu.Lock()
	prev := m.last
	m.last = st.Status
	m.mu.Unlock()
	if prev != Closed && st.Status == Closed {
		m.Close()
	}
}

func (s *subscriber) deliver(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	select {
	case s.ch <- f:
	default:
	}
}

func (s *subscriber) stop() {
	s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
