// Package dispatch serializes station events onto a single goroutine.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/autopeer-io/groundpeer/internal/pkg/metrics"
	"github.com/autopeer-io/groundpeer/internal/station/model"
)

var (
	ErrQueueFull    = errors.New("dispatch queue full")
	ErrUnknownEvent = errors.New("unknown event type")
)

type EventType string

// Event is one unit of work. Source is the vehicle the transport attributed
// the event to, NoVehicle when it carries none.
type Event struct {
	Type    EventType
	Source  model.VehicleID
	Payload []byte
}

type HandlerFunc func(ctx context.Context, ev Event) error

// JSON adapts a handler taking a decoded payload. An empty payload decodes
// to the zero value of T.
func JSON[T any](handler func(ctx context.Context, ev Event, msg *T) error) HandlerFunc {
	return func(ctx context.Context, ev Event) error {
		msg := new(T)
		if len(ev.Payload) > 0 {
			if err := json.Unmarshal(ev.Payload, msg); err != nil {
				return fmt.Errorf("decode %s payload: %w", ev.Type, err)
			}
		}
		return handler(ctx, ev, msg)
	}
}

// Dispatcher runs one handler at a time, in submission order. Routes must be
// registered before Run is called.
type Dispatcher struct {
	queue  chan Event
	routes map[EventType]HandlerFunc
	after  []func(Event, error)
	logger logr.Logger
}

func New(size int, logger logr.Logger) *Dispatcher {
	return &Dispatcher{
		queue:  make(chan Event, size),
		routes: make(map[EventType]HandlerFunc),
		logger: logger,
	}
}

// Handle registers the handler for t, replacing any previous one.
func (d *Dispatcher) Handle(t EventType, h HandlerFunc) {
	d.routes[t] = h
}

// AfterEach registers fn to run on the dispatch goroutine after every
// handled event.
func (d *Dispatcher) AfterEach(fn func(Event, error)) {
	d.after = append(d.after, fn)
}

// Known reports whether a handler is registered for t.
func (d *Dispatcher) Known(t EventType) bool {
	_, ok := d.routes[t]
	return ok
}

// Submit queues ev without blocking.
func (d *Dispatcher) Submit(ev Event) error {
	if !d.Known(ev.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	select {
	case d.queue <- ev:
		return nil
	default:
		metrics.QueueDropped.Inc()
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, ev.Type)
	}
}

// Run handles queued events until ctx is done. Handler errors are logged and
// counted; they never stop the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Event dispatcher started", "queueSize", cap(d.queue))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Event dispatcher stopped", "pending", len(d.queue))
			return nil
		case ev := <-d.queue:
			d.dispatch(ctx, ev)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) {
	start := time.Now()
	err := d.routes[ev.Type](ctx, ev)
	metrics.DispatchLatency.WithLabelValues(string(ev.Type)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.DispatchErrors.WithLabelValues(string(ev.Type)).Inc()
		d.logger.Error(err, "Event handler failed", "event", ev.Type, "source", ev.Source)
	}
	for _, fn := range d.after {
		fn(ev, err)
	}
}
