// Package ticketing hands ticket events to the ticketing backend without
// making the caller wait for the outcome.
package ticketing

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/bus"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/metrics"
)

const defaultDeliverTimeout = 15 * time.Second

type envelope struct {
	Kind domain.TicketKind
	Body []byte
}

// Dispatcher implements domain.TicketDispatcher on top of an EventBus.
// Dispatch serializes the ticket and emits it asynchronously; a handler
// registered on the bus delivers it to the Sink.
type Dispatcher struct {
	events  *bus.EventBus
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger
}

// DispatcherConfig holds configuration for Dispatcher.
type DispatcherConfig struct {
	Events  *bus.EventBus
	Sink    Sink
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDeliverTimeout
	}
	if cfg.Events == nil {
		cfg.Events = bus.NewEventBus(cfg.Logger)
	}
	if cfg.Sink == nil {
		cfg.Sink = LogSink{Logger: cfg.Logger}
	}
	d := &Dispatcher{
		events:  cfg.Events,
		sink:    cfg.Sink,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
	d.events.On(bus.EventTicketDispatch, d.deliver)
	return d
}

// Dispatch queues the ticket for delivery and returns immediately.
func (d *Dispatcher) Dispatch(ev domain.TicketEvent) {
	kind := domain.TicketKind("UNKNOWN")
	if ev.Payload != nil {
		kind = ev.Payload.Kind()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		d.logger.Error("marshal ticket event", "kind", kind, "error", err)
		metrics.TicketDelivered(string(kind), "error").Inc()
		return
	}
	d.logger.Info("dispatching ticket", "kind", kind, "itsm", ev.ITSM)
	d.events.EmitAsync(bus.Event{
		Type:    bus.EventTicketDispatch,
		Payload: envelope{Kind: kind, Body: body},
	})
}

// Flush waits for queued deliveries to finish, or for ctx to be done.
func (d *Dispatcher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.events.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(e bus.Event) {
	env, ok := e.Payload.(envelope)
	if !ok {
		d.logger.Warn("unexpected ticket payload", "type", e.Type)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Deliver(ctx, env.Kind, env.Body); err != nil {
		d.logger.Error("ticket delivery failed", "kind", env.Kind, "error", err)
		metrics.TicketDelivered(string(env.Kind), "error").Inc()
		return
	}
	metrics.TicketDelivered(string(env.Kind), "ok").Inc()
}
