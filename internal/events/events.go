package events

import (
	"context"
	"errors"
	"time"

	"github.com/marzanneub/stadia-map/internal/geo"
)

// Event types emitted by map sessions
const (
	TypeLocationFixed  = "location_fixed"
	TypeLocationFailed = "location_failed"
	TypeLotsGenerated  = "lots_generated"
	TypeUserMoved      = "user_moved"
	TypeRouteRequested = "route_requested"
	TypeCleared        = "cleared"
)

// Event is a single session activity record
type Event struct {
	Type      string         `json:"event_type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Position  *geo.Position  `json:"position,omitempty"`
	Lots      []geo.Position `json:"lots,omitempty"`
	LotLabel  string         `json:"lot_label,omitempty"`
	DistanceM float64        `json:"distance_m,omitempty"`
	Fallback  bool           `json:"fallback,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// Sink receives session events. Publishing is best effort: implementations
// log failures rather than surfacing them to the workflow.
type Sink interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

func (Nop) Close() error { return nil }

// Multi fans events out to several sinks
type Multi []Sink

func (m Multi) Publish(ctx context.Context, event Event) {
	for _, sink := range m {
		sink.Publish(ctx, event)
	}
}

func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
