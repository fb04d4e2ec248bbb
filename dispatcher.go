package canlink

import (
	"encoding/binary"
	"hash/maphash"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v2"
)

// FrameFunc receives frames. It may be called from several goroutines.
type FrameFunc func(Frame)

// StateFunc receives state changes, one at a time and in order.
type StateFunc func(State)

// Listener is the owning handle of an observer registration. Close removes
// the observer; a handle that is dropped without Close is removed once it
// is garbage collected, since dispatchers never reference handles.
type Listener struct {
	once    sync.Once
	remove  func()
	cleanup runtime.Cleanup
}

func newListener(remove func()) *Listener {
	l := &Listener{remove: remove}
	l.cleanup = runtime.AddCleanup(l, func(rm func()) { rm() }, remove)
	return l
}

// Close unregisters the observer. It is idempotent.
func (l *Listener) Close() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		l.cleanup.Stop()
		l.remove()
	})
	return nil
}

// Dispatcher fans a value out to every registered delegate. Dispatch,
// registration and removal may run concurrently.
type Dispatcher[T any] struct {
	next      atomic.Uint64
	listeners *xsync.MapOf[uint64, func(T)]
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher[T any]() *Dispatcher[T] {
	return &Dispatcher[T]{
		listeners: xsync.NewTypedMapOf[uint64, func(T)](hashUint64),
	}
}

// CreateListener registers fn until the returned handle is closed.
func (d *Dispatcher[T]) CreateListener(fn func(T)) *Listener {
	id := d.add(fn)
	listeners := d.listeners
	return newListener(func() { listeners.Delete(id) })
}

func (d *Dispatcher[T]) add(fn func(T)) uint64 {
	id := d.next.Add(1)
	d.listeners.Store(id, fn)
	return id
}

// Dispatch calls every registered delegate with v.
func (d *Dispatcher[T]) Dispatch(v T) {
	d.listeners.Range(func(_ uint64, fn func(T)) bool {
		fn(v)
		return true
	})
}

// Len returns the number of registered delegates.
func (d *Dispatcher[T]) Len() int { return d.listeners.Size() }

// FrameDispatcher delivers frames to unfiltered listeners and to listeners
// registered for the frame's header key.
type FrameDispatcher struct {
	all   *Dispatcher[Frame]
	byKey *xsync.MapOf[uint32, *Dispatcher[Frame]]
}

// NewFrameDispatcher returns a dispatcher with no listeners.
func NewFrameDispatcher() *FrameDispatcher {
	return &FrameDispatcher{
		all:   NewDispatcher[Frame](),
		byKey: xsync.NewTypedMapOf[uint32, *Dispatcher[Frame]](hashUint32),
	}
}

// CreateListener registers fn for every frame.
func (d *FrameDispatcher) CreateListener(fn FrameFunc) *Listener {
	return d.all.CreateListener(fn)
}

// CreateHeaderListener registers fn for frames whose Key equals h.Key().
// The per-key dispatcher is dropped again with its last listener.
func (d *FrameDispatcher) CreateHeaderListener(h Header, fn FrameFunc) *Listener {
	key := h.Key()
	var id uint64
	d.byKey.Compute(key, func(kd *Dispatcher[Frame], loaded bool) (*Dispatcher[Frame], bool) {
		if !loaded {
			kd = NewDispatcher[Frame]()
		}
		id = kd.add(fn)
		return kd, false
	})
	byKey := d.byKey
	return newListener(func() {
		byKey.Compute(key, func(kd *Dispatcher[Frame], loaded bool) (*Dispatcher[Frame], bool) {
			if !loaded {
				return kd, true
			}
			kd.listeners.Delete(id)
			return kd, kd.Len() == 0
		})
	})
}

// CreateFilterListener registers fn for frames accepted by filter. A nil
// filter accepts everything.
func (d *FrameDispatcher) CreateFilterListener(filter FrameFilter, fn FrameFunc) *Listener {
	if filter == nil {
		return d.all.CreateListener(fn)
	}
	return d.all.CreateListener(func(f Frame) {
		if filter(f) {
			fn(f)
		}
	})
}

// Dispatch delivers f to all matching listeners.
func (d *FrameDispatcher) Dispatch(f Frame) {
	d.all.Dispatch(f)
	if kd, ok := d.byKey.Load(f.Key()); ok {
		kd.Dispatch(f)
	}
}

func hashUint64(seed maphash.Seed, k uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], k)
	return maphash.Bytes(seed, b[:])
}

func hashUint32(seed maphash.Seed, k uint32) uint64 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], k)
	return maphash.Bytes(seed, b[:])
}
