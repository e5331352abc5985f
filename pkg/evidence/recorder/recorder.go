package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

// Config contains configuration for the verdict recorder.
type Config struct {
	// Enabled enables recording. A disabled recorder discards everything.
	Enabled bool

	// AsyncBuffer is the capacity of the write queue.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds a single storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// HashContent stores the SHA-256 of event content.
	// Default: true
	HashContent bool
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
		HashContent:  true,
	}
}

// Observer is notified of every write outcome: "written", "dropped" or
// "failed".
type Observer interface {
	RecordAuditWrite(result string)
}

// Recorder writes verdict records asynchronously.
type Recorder struct {
	storage    evidence.Storage
	config     *Config
	observer   Observer
	recordChan chan *evidence.VerdictRecord
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool
	logger     *slog.Logger

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithObserver reports write outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(r *Recorder) { r.observer = o }
}

// NewRecorder creates a recorder and starts its worker.
func NewRecorder(storage evidence.Storage, config *Config, logger *slog.Logger, opts ...Option) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *evidence.VerdictRecord, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "evidence.recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("verdict recorder initialized",
		"enabled", config.Enabled,
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// Record builds a record for the verdict and enqueues it. It never blocks;
// failures are logged.
func (r *Recorder) Record(ctx context.Context, event *policy.Event, verdict *policy.Verdict) {
	if !r.config.Enabled || event == nil || verdict == nil {
		return
	}
	if err := r.Enqueue(r.BuildRecord(event, verdict)); err != nil {
		r.logger.Error("verdict record dropped",
			"workspace_id", event.WorkspaceID,
			"event_id", event.ID,
			"action", verdict.Action,
			"error", err,
		)
	}
}

// BuildRecord converts an evaluated event into a verdict record.
func (r *Recorder) BuildRecord(event *policy.Event, verdict *policy.Verdict) *evidence.VerdictRecord {
	now := time.Now().UTC()
	record := &evidence.VerdictRecord{
		ID:             uuid.NewString(),
		EventID:        event.ID,
		WorkspaceID:    event.WorkspaceID,
		AgentID:        event.AgentID,
		EventType:      event.EventType,
		SourceIP:       event.SourceIP,
		Action:         verdict.Action,
		Violations:     append([]policy.Violation(nil), verdict.Violations...),
		RulesEvaluated: verdict.Evaluated,
		ShortCircuited: verdict.ShortCircuited,
		Duration:       verdict.Duration,
		ContentSize:    len(event.Content),
		EvaluatedAt:    now.Add(-verdict.Duration),
		RecordedAt:     now,
	}
	if r.config.HashContent {
		record.ContentHash = HashString(event.Content)
	}
	return record
}

// Enqueue queues a record for writing without blocking.
func (r *Recorder) Enqueue(record *evidence.VerdictRecord) error {
	if r.closed.Load() {
		r.observe("dropped", &r.dropped)
		return evidence.NewRecorderError(record.ID, evidence.ErrRecorderClosed)
	}

	select {
	case r.recordChan <- record:
		return nil
	default:
		r.observe("dropped", &r.dropped)
		return evidence.NewRecorderError(record.ID, evidence.ErrQueueFull)
	}
}

// Stats returns how many records were written, dropped and failed.
func (r *Recorder) Stats() (written, dropped, failed uint64) {
	return r.written.Load(), r.dropped.Load(), r.failed.Load()
}

// Pending returns the number of queued records.
func (r *Recorder) Pending() int {
	return len(r.recordChan)
}

// Close stops intake and waits for queued records to be written.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.logger.Info("shutting down verdict recorder")
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()
		written, dropped, failed := r.Stats()
		r.logger.Info("verdict recorder shut down complete",
			"written", written,
			"dropped", dropped,
			"failed", failed,
		)
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			r.logger.Info("draining verdict queue before shutdown", "pending_count", len(r.recordChan))
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *evidence.VerdictRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		r.observe("failed", &r.failed)
		r.logger.Error("failed to store verdict record",
			"record_id", record.ID,
			"workspace_id", record.WorkspaceID,
			"error", err,
		)
		return
	}
	r.observe("written", &r.written)

	duration := time.Since(start)
	r.logger.Debug("verdict recorded",
		"record_id", record.ID,
		"workspace_id", record.WorkspaceID,
		"action", record.Action,
		"duration_ms", duration.Milliseconds(),
	)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow verdict write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}

func (r *Recorder) observe(result string, counter *atomic.Uint64) {
	counter.Add(1)
	if r.observer != nil {
		r.observer.RecordAuditWrite(result)
	}
}
