// Package journal records every bot event for the session and fans it out to
// the optional downstreams: the Redis signal bus, the Postgres event store,
// chat notifications and live websocket clients. Delivery is asynchronous;
// a slow or failing downstream never holds up trading.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

const (
	defaultQueueSize   = 256
	defaultSinkTimeout = 5 * time.Second
	defaultMaxRetained = 100_000
)

// Notifier forwards selected events to people.
type Notifier interface {
	Notify(ctx context.Context, evt domain.Event) error
}

// Broadcaster pushes events to live subscribers.
type Broadcaster interface {
	Broadcast(evt domain.Event)
}

// Archiver stores the session's full event list at shutdown.
type Archiver interface {
	ArchiveSession(ctx context.Context, session string, started time.Time, events []domain.Event) (string, error)
}

// Sinks are the optional downstreams. Nil fields are skipped.
type Sinks struct {
	Bus       domain.SignalBus
	Channel   string
	Stream    string
	Store     domain.EventStore
	Notifier  Notifier
	Broadcast Broadcaster
}

// Config describes the session being journaled.
type Config struct {
	Session     string
	Paper       bool
	QueueSize   int
	SinkTimeout time.Duration

	// Retain keeps events in memory for Archive. Only the newest
	// MaxRetained are kept.
	Retain      bool
	MaxRetained int
}

// Journal implements domain.EventSink.
type Journal struct {
	cfg     Config
	sinks   Sinks
	logger  *slog.Logger
	started time.Time

	mu     sync.Mutex
	events []domain.Event
	closed bool

	queue   chan domain.Event
	done    chan struct{}
	dropped atomic.Int64
	failed  atomic.Int64
	evicted atomic.Int64
}

// New creates a journal. Start must be called before events are delivered
// downstream.
func New(cfg Config, sinks Sinks, logger *slog.Logger) *Journal {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = defaultMaxRetained
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	return &Journal{
		cfg:     cfg,
		sinks:   sinks,
		logger:  logger.With(slog.String("component", "journal"), slog.String("session", cfg.Session)),
		started: time.Now().UTC(),
		queue:   make(chan domain.Event, cfg.QueueSize),
		done:    make(chan struct{}),
	}
}

// Session returns the session ID stamped on every event.
func (j *Journal) Session() string { return j.cfg.Session }

// StartedAt returns when the journal was created.
func (j *Journal) StartedAt() time.Time { return j.started }

// Dropped returns how many events were not delivered because the queue was
// full.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// Failed returns how many downstream deliveries returned an error.
func (j *Journal) Failed() int64 { return j.failed.Load() }

// Evicted returns how many retained events were discarded to stay within
// MaxRetained.
func (j *Journal) Evicted() int64 { return j.evicted.Load() }

// Emit stamps evt with the session, mode and time, retains it when
// configured and queues it for delivery. It never blocks and never fails: a
// full queue drops the delivery but a retained event is still archived.
func (j *Journal) Emit(_ context.Context, evt domain.Event) error {
	evt.Session = j.cfg.Session
	evt.Paper = j.cfg.Paper
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cfg.Retain {
		j.retain(evt)
	}
	if j.closed {
		return nil
	}
	select {
	case j.queue <- evt:
	default:
		j.dropped.Add(1)
		j.logger.Warn("journal: queue full, dropping delivery", slog.String("type", string(evt.Type)))
	}
	return nil
}

// retain appends evt, dropping the oldest tenth of the buffer when it is
// full. Callers hold j.mu.
func (j *Journal) retain(evt domain.Event) {
	if len(j.events) >= j.cfg.MaxRetained {
		n := max(1, j.cfg.MaxRetained/10)
		j.events = append(j.events[:0], j.events[n:]...)
		if j.evicted.Add(int64(n)) == int64(n) {
			j.logger.Warn("journal: retention limit reached, evicting oldest events",
				slog.Int("max_retained", j.cfg.MaxRetained))
		}
	}
	j.events = append(j.events, evt)
}

// Events returns a copy of the retained events.
func (j *Journal) Events() []domain.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.Event, len(j.events))
	copy(out, j.events)
	return out
}

// Start launches the delivery worker.
func (j *Journal) Start() {
	go j.run()
}

// Close stops accepting deliveries and waits for the queue to drain or ctx
// to expire. Events emitted after Close are still recorded.
func (j *Journal) Close(ctx context.Context) error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("journal: drain: %w", ctx.Err())
	}
}

// Archive hands the recorded events to a.
func (j *Journal) Archive(ctx context.Context, a Archiver) (string, error) {
	key, err := a.ArchiveSession(ctx, j.cfg.Session, j.started, j.Events())
	if err != nil {
		return "", fmt.Errorf("journal: archive: %w", err)
	}
	return key, nil
}

func (j *Journal) run() {
	defer close(j.done)
	for evt := range j.queue {
		j.deliver(evt)
	}
}

func (j *Journal) deliver(evt domain.Event) {
	if j.sinks.Broadcast != nil {
		j.sinks.Broadcast.Broadcast(evt)
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.SinkTimeout)
	defer cancel()

	if j.sinks.Bus != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			j.fail("marshal", evt, err)
		} else {
			if j.sinks.Channel != "" {
				if err := j.sinks.Bus.Publish(ctx, j.sinks.Channel, payload); err != nil {
					j.fail("publish", evt, err)
				}
			}
			if j.sinks.Stream != "" {
				if err := j.sinks.Bus.StreamAppend(ctx, j.sinks.Stream, payload); err != nil {
					j.fail("stream", evt, err)
				}
			}
		}
	}
	if j.sinks.Store != nil {
		if err := j.sinks.Store.Append(ctx, evt); err != nil {
			j.fail("store", evt, err)
		}
	}
	if j.sinks.Notifier != nil {
		if err := j.sinks.Notifier.Notify(ctx, evt); err != nil {
			j.fail("notify", evt, err)
		}
	}
}

func (j *Journal) fail(sink string, evt domain.Event, err error) {
	j.failed.Add(1)
	j.logger.Warn("journal: delivery failed",
		slog.String("sink", sink),
		slog.String("type", string(evt.Type)),
		slog.String("error", err.Error()),
	)
}

var _ domain.EventSink = (*Journal)(nil)
