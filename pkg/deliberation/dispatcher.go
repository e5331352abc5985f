package deliberation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/telemetry/tracing"
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// QueueSize bounds the number of pending handoffs.
	// Default: 1000
	QueueSize int

	// Workers is the number of delivery goroutines.
	// Default: 2
	Workers int

	// DeliveryTimeout bounds one Trigger call.
	// Default: 10 seconds
	DeliveryTimeout time.Duration
}

// DefaultDispatcherConfig returns the default configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:       1000,
		Workers:         2,
		DeliveryTimeout: 10 * time.Second,
	}
}

// Dispatcher delivers handoffs to a Trigger from a bounded queue.
type Dispatcher struct {
	trigger  Trigger
	config   DispatcherConfig
	observer Observer
	logger   *slog.Logger

	queue     chan Handoff
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver reports handoff outcomes, typically to metrics.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// NewDispatcher creates a dispatcher and starts its workers.
func NewDispatcher(trigger Trigger, config DispatcherConfig, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = defaults.DeliveryTimeout
	}
	if trigger == nil {
		trigger = NoopTrigger{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		trigger: trigger,
		config:  config,
		logger:  logger.With("component", "deliberation.dispatcher"),
		queue:   make(chan Handoff, config.QueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	for i := 0; i < config.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit enqueues a handoff for the event and verdict. It never blocks.
func (d *Dispatcher) Submit(ctx context.Context, event *policy.Event, verdict *policy.Verdict) {
	if event == nil || verdict == nil || !verdict.RequiresDeliberation() {
		return
	}
	h := NewHandoff(event, verdict)
	tracing.InjectToMap(ctx, h.TraceContext)
	if err := d.Enqueue(h); err != nil {
		d.logger.Error("deliberation handoff dropped",
			"handoff_id", h.ID,
			"workspace_id", h.WorkspaceID,
			"event_id", event.ID,
			"action", h.Action,
			"queue_size", d.config.QueueSize,
			"error", err,
		)
	}
}

// Enqueue queues a prepared handoff.
func (d *Dispatcher) Enqueue(h Handoff) error {
	if d.closed.Load() {
		d.observe("dropped", &d.dropped)
		return ErrClosed
	}
	select {
	case d.queue <- h:
		return nil
	default:
		d.observe("dropped", &d.dropped)
		return ErrQueueFull
	}
}

// Stats returns how many handoffs were sent, dropped and failed.
func (d *Dispatcher) Stats() (sent, dropped, failed uint64) {
	return d.sent.Load(), d.dropped.Load(), d.failed.Load()
}

// Close stops intake, delivers what is queued and closes the trigger.
func (d *Dispatcher) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
		err = d.trigger.Close()
		sent, dropped, failed := d.Stats()
		d.logger.Info("deliberation dispatcher stopped",
			"sent", sent,
			"dropped", dropped,
			"failed", failed,
		)
	})
	return err
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case h := <-d.queue:
			d.deliver(h)
		case <-d.done:
			for {
				select {
				case h := <-d.queue:
					d.deliver(h)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(h Handoff) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.DeliveryTimeout)
	defer cancel()

	if err := d.trigger.Trigger(ctx, h); err != nil {
		d.observe("failed", &d.failed)
		d.logger.Error("deliberation handoff failed",
			"handoff_id", h.ID,
			"workspace_id", h.WorkspaceID,
			"error", err,
		)
		return
	}
	d.observe("sent", &d.sent)
}

func (d *Dispatcher) observe(result string, counter *atomic.Uint64) {
	counter.Add(1)
	if d.observer != nil {
		d.observer.RecordDeliberationHandoff(result)
	}
}
