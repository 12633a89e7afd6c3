package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DispatcherConfig controls buffering and per-send timeout.
type DispatcherConfig struct {
	BufferSize  int
	SendTimeout time.Duration
	// OnDrop is called when a notification is discarded, either because the
	// queue was full or because the dispatcher is closed.
	OnDrop func(Notification)
	// OnFailure is called when the Notifier returns an error.
	OnFailure func(Notification, error)
}

// Dispatcher queues notifications for a single background sender. Enqueue
// never blocks.
type Dispatcher struct {
	cfg       DispatcherConfig
	notifier  Notifier
	log       *zap.Logger
	ch        chan Notification
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the sender goroutine.
func NewDispatcher(cfg DispatcherConfig, n Notifier, log *zap.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	if n == nil {
		n = NewLogNotifier(log)
	}
	d := &Dispatcher{
		cfg:      cfg,
		notifier: n,
		log:      log.With(zap.String("component", "notify.dispatcher")),
		ch:       make(chan Notification, cfg.BufferSize),
		done:     make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.ch:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.ch:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("notifier panicked", zap.String("kind", n.Kind), zap.Any("panic", r))
		}
	}()
	if err := d.notifier.Send(ctx, n); err != nil {
		d.log.Warn("notification delivery failed",
			zap.String("kind", n.Kind),
			zap.String("recipient", n.Recipient),
			zap.Error(err),
		)
		if d.cfg.OnFailure != nil {
			d.cfg.OnFailure(n, err)
		}
	}
}

// Enqueue schedules n and reports whether it was accepted.
func (d *Dispatcher) Enqueue(n Notification) bool {
	if d == nil {
		return false
	}
	if d.closed.Load() {
		d.drop(n)
		return false
	}
	select {
	case d.ch <- n:
		return true
	default:
		d.drop(n)
		return false
	}
}

func (d *Dispatcher) drop(n Notification) {
	d.dropped.Add(1)
	d.log.Warn("notification dropped", zap.String("kind", n.Kind))
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(n)
	}
}

// Dropped returns how many notifications were discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close stops accepting notifications and waits for queued ones to be sent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
