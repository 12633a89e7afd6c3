package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit discard instead of waiting when the queue is full.
	DropIfFull bool
	// OnDrop is called for every event discarded because the queue was full.
	OnDrop func(Event)
}

// Dispatcher relays events to a Sink on one background goroutine, so slow
// sinks never sit on the login or refresh path.
//
// A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	cfg  Config
	sink Sink

	// mu guards closed and the close of queue. Emit holds it shared while
	// sending so Close cannot close the channel under a pending send.
	mu     sync.RWMutex
	closed bool
	queue  chan Event
	idle   chan struct{}

	dropped  atomic.Uint64
	panicked atomic.Uint64
}

// NewDispatcher starts the relay goroutine. It returns nil when cfg is
// disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		idle:  make(chan struct{}),
	}
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer close(d.idle)
	for ev := range d.queue {
		d.deliver(ev)
	}
}

// deliver isolates the relay from a misbehaving sink.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if recover() != nil {
			d.panicked.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues ev. With DropIfFull it never blocks; otherwise it waits for
// room or for ctx to end.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- ev:
		default:
			d.drop(ev)
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
	}
}

func (d *Dispatcher) drop(ev Event) {
	d.dropped.Add(1)
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(ev)
	}
}

// Close stops accepting events and waits until queued ones reach the sink.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.idle
}

// Dropped reports how many events were discarded on a full queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// SinkPanics reports how many deliveries panicked inside the sink.
func (d *Dispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panicked.Load()
}
