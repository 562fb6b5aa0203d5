package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/esc-funnel/internal/tenant"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

// Sink delivers an envelope somewhere. Errors are logged by the dispatcher.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, env Envelope) error
}

type observer interface {
	ObserveAnalytics(event, status string)
}

type tenantLookup func(slug string) tenant.Config

// Dispatcher fans events out to sinks from a single background goroutine.
// Notify never blocks: when the buffer is full the event is dropped.
type Dispatcher struct {
	sinks    []Sink
	logger   *logging.Logger
	metrics  observer
	tenants  tenantLookup
	timeout  time.Duration
	events   chan Event
	done     chan struct{}
	closeMu  sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewDispatcher starts a dispatcher with the given buffer size.
func NewDispatcher(buffer int, logger *logging.Logger, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		sinks:   sinks,
		logger:  logger,
		timeout: 5 * time.Second,
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// WithMetrics records delivery outcomes.
func (d *Dispatcher) WithMetrics(m observer) *Dispatcher {
	d.metrics = m
	return d
}

// WithTenants resolves pixel and tag-manager ids per tenant slug.
func (d *Dispatcher) WithTenants(lookup func(slug string) tenant.Config) *Dispatcher {
	d.tenants = lookup
	return d
}

// WithTimeout bounds each sink delivery.
func (d *Dispatcher) WithTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

// Notify queues event for delivery.
func (d *Dispatcher) Notify(_ context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		d.observe(event.Name, "dropped")
		return
	}
	select {
	case d.events <- event:
	default:
		d.observe(event.Name, "dropped")
		d.logger.Warn("analytics buffer full, dropping event", "event", event.Name, "session_id", event.SessionID)
	}
}

// Close stops accepting events and waits for queued ones to drain or ctx to
// expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.closeMu.Lock()
		d.closed = true
		close(d.events)
		d.closeMu.Unlock()
	})
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.events {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	var pixelID, gtmID string
	if d.tenants != nil {
		cfg := d.tenants(event.Tenant)
		pixelID, gtmID = cfg.AnalyticsPixelID, cfg.TagManagerID
	}
	env := NewEnvelope(event, pixelID, gtmID)
	status := "delivered"
	for _, sink := range d.sinks {
		if err := d.deliverTo(sink, env); err != nil {
			status = "failed"
			d.logger.Warn("analytics sink failed", "sink", sink.Name(), "event", event.Name, "error", err)
		}
	}
	d.observe(event.Name, status)
}

// deliverTo turns a sink panic into an error so one bad sink cannot stop the
// dispatch loop.
func (d *Dispatcher) deliverTo(sink Sink, env Envelope) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analytics: sink panic: %v", r)
		}
	}()
	return sink.Deliver(ctx, env)
}

func (d *Dispatcher) observe(event, status string) {
	if d.metrics != nil {
		d.metrics.ObserveAnalytics(event, status)
	}
}
