package generate

import (
	"context"
	"log/slog"

	"github.com/cexll/structgen/pkg/event"
)

// EventSink receives lifecycle events from a generation run. *event.Stream
// satisfies it.
type EventSink interface {
	Send(evt event.Event) error
}

// WithEvents publishes lifecycle events to sink. conversationID stamps
// every event so multiplexed consumers can tell runs apart.
func WithEvents(sink EventSink, conversationID string) Option {
	return func(g *Generator) {
		g.events = sink
		g.eventConv = conversationID
	}
}

// publish delivers one event to the sink. Delivery failures are logged,
// never fatal to the run.
func (g *Generator) publish(ctx context.Context, typ event.EventType, data any) {
	if g.events == nil {
		return
	}
	if err := g.events.Send(event.NewEvent(typ, g.eventConv, data)); err != nil && g.logger != nil {
		g.logger.WarnContext(ctx, "event delivery failed",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}
