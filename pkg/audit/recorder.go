package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig configures the audit recorder.
type RecorderConfig struct {
	// BufferSize is the size of the async event channel. Default: 1000.
	BufferSize int

	// WriteTimeout is the per-event timeout for sink writes.
	// Default: 5 seconds.
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes audit events to a sink asynchronously so management
// writes never block on audit I/O.
type Recorder struct {
	sink      Sink
	config    RecorderConfig
	eventChan chan *Event
	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
	logger    *slog.Logger
}

// NewRecorder creates a recorder draining into the provided sink and starts
// its background worker.
func NewRecorder(sink Sink, cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		sink:      sink,
		config:    cfg,
		eventChan: make(chan *Event, cfg.BufferSize),
		done:      make(chan struct{}),
		logger:    logger.With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record stamps the event with an ID and timestamp and enqueues it. It
// never blocks: when the buffer is full the event is dropped and counted.
func (r *Recorder) Record(event Event) {
	event.ID = uuid.NewString()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	select {
	case r.eventChan <- &event:
	default:
		dropped := r.dropped.Add(1)
		r.logger.Warn("audit buffer full, dropping event",
			"action", string(event.Action),
			"flag_key", event.FlagKey,
			"dropped_total", dropped,
		)
	}
}

// Dropped returns the number of events dropped due to a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains buffered events into the sink and stops the worker. The
// recorder must not be used after Close.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
	return r.sink.Close()
}

// worker drains the event channel into the sink.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.eventChan:
			r.write(event)
		case <-r.done:
			// Drain whatever is left before stopping.
			for {
				select {
				case event := <-r.eventChan:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.sink.Append(ctx, event); err != nil {
		r.logger.Error("failed to write audit event",
			"action", string(event.Action),
			"flag_key", event.FlagKey,
			"error", err,
		)
	}
}
