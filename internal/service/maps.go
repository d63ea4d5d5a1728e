package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marzanneub/stadia-map/internal/events"
	"github.com/marzanneub/stadia-map/internal/geo"
	"github.com/marzanneub/stadia-map/internal/locate"
	"github.com/marzanneub/stadia-map/internal/mapview"
	"github.com/marzanneub/stadia-map/internal/routing"
	"github.com/marzanneub/stadia-map/internal/session"
	"github.com/marzanneub/stadia-map/internal/storage"
)

// ErrSessionNotFound is returned for ids with no live session
var ErrSessionNotFound = errors.New("session not found")

// AddressGeocoder resolves a free-text address into a Geolocator
type AddressGeocoder interface {
	Address(query string) locate.Geolocator
}

type entry struct {
	session     *session.Session
	subscribers map[chan session.Snapshot]struct{}
}

func (e *entry) closeSubscribers() {
	for ch := range e.subscribers {
		delete(e.subscribers, ch)
		close(ch)
	}
}

// MapService owns the live map sessions and wires them to route history and
// the event stream.
type MapService struct {
	router   routing.Router
	geocoder AddressGeocoder
	routes   storage.RouteStorage
	sink     events.Sink
	opts     []session.Option

	sessions map[string]*entry
	mu       sync.RWMutex
}

// NewMapService creates a new map service. geocoder may be nil.
func NewMapService(router routing.Router, geocoder AddressGeocoder, routes storage.RouteStorage, sink events.Sink, opts ...session.Option) *MapService {
	if sink == nil {
		sink = events.Nop{}
	}
	return &MapService{
		router:   router,
		geocoder: geocoder,
		routes:   routes,
		sink:     sink,
		opts:     opts,
		sessions: make(map[string]*entry),
	}
}

// CreateSession starts an empty map session
func (m *MapService) CreateSession(ctx context.Context) session.Snapshot {
	id := uuid.New().String()
	s := session.New(id, mapview.NewLayers(), m.router, m.opts...)

	m.mu.Lock()
	m.sessions[id] = &entry{
		session:     s,
		subscribers: make(map[chan session.Snapshot]struct{}),
	}
	m.mu.Unlock()

	slog.Info("Map session created", "session_id", id)
	return s.Snapshot()
}

// DeleteSession drops a session and disconnects its subscribers
func (m *MapService) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		e.closeSubscribers()
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	slog.Info("Map session deleted", "session_id", id)
	return nil
}

// Snapshot returns the current state of a session
func (m *MapService) Snapshot(ctx context.Context, id string) (session.Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// AddressLocator returns a geolocator for query, or nil when no geocoder is configured
func (m *MapService) AddressLocator(query string) locate.Geolocator {
	if m.geocoder == nil {
		return nil
	}
	return m.geocoder.Address(query)
}

// RequestLocation runs the "Get My Location" workflow on a session
func (m *MapService) RequestLocation(ctx context.Context, id string, locator locate.Geolocator) (session.Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return session.Snapshot{}, err
	}

	pos, err := s.RequestLocation(ctx, locator)
	if err != nil {
		if errors.Is(err, session.ErrGeolocationUnsupported) || errors.Is(err, session.ErrGeolocationFailed) {
			slog.Warn("Geolocation failed", "session_id", id, "error", err)
			m.sink.Publish(ctx, events.Event{
				Type:      events.TypeLocationFailed,
				SessionID: id,
				Timestamp: time.Now().UTC(),
				Message:   err.Error(),
			})
		}
		return session.Snapshot{}, err
	}

	snap := s.Snapshot()
	slog.Info("Location fixed", "session_id", id, "lat", pos.Lat, "lng", pos.Lng, "lots", len(snap.Lots))

	now := time.Now().UTC()
	m.sink.Publish(ctx, events.Event{
		Type:      events.TypeLocationFixed,
		SessionID: id,
		Timestamp: now,
		Position:  &pos,
	})
	m.sink.Publish(ctx, events.Event{
		Type:      events.TypeLotsGenerated,
		SessionID: id,
		Timestamp: now,
		Position:  &pos,
		Lots:      lotPositions(snap.Lots),
	})

	m.notify(id, snap)
	return snap, nil
}

// SelectLot routes the session's user to the chosen lot. The returned route
// is nil when the session has no user marker yet.
func (m *MapService) SelectLot(ctx context.Context, id string, lotID mapview.MarkerHandle) (session.Snapshot, *routing.Route, error) {
	s, err := m.lookup(id)
	if err != nil {
		return session.Snapshot{}, nil, err
	}

	lot, _ := s.Lot(lotID)
	route, err := s.SelectLot(ctx, lotID)
	if err != nil {
		return session.Snapshot{}, nil, err
	}

	snap := s.Snapshot()
	if route == nil {
		slog.Debug("Lot selected without a user marker", "session_id", id, "lot_id", lotID)
		return snap, nil, nil
	}

	m.recordRoute(ctx, id, lot.Label, route)
	m.notify(id, snap)
	return snap, route, nil
}

// MoveUser drags the session's user marker to pos and re-routes to the
// requested lot, if any. The returned route is nil when nothing was re-routed.
func (m *MapService) MoveUser(ctx context.Context, id string, pos geo.Position) (session.Snapshot, *routing.Route, error) {
	s, err := m.lookup(id)
	if err != nil {
		return session.Snapshot{}, nil, err
	}

	route, err := s.MoveUser(ctx, pos)
	if err != nil {
		return session.Snapshot{}, nil, err
	}

	snap := s.Snapshot()
	slog.Info("User marker moved", "session_id", id, "lat", pos.Lat, "lng", pos.Lng, "rerouted", route != nil)

	m.sink.Publish(ctx, events.Event{
		Type:      events.TypeUserMoved,
		SessionID: id,
		Timestamp: time.Now().UTC(),
		Position:  &pos,
	})
	if route != nil && snap.Route != nil {
		m.recordRoute(ctx, id, snap.Route.Lot.Label, route)
	}

	m.notify(id, snap)
	return snap, route, nil
}

// recordRoute writes the route to history and the event stream
func (m *MapService) recordRoute(ctx context.Context, id, lotLabel string, route *routing.Route) {
	slog.Info("Route requested",
		"session_id", id,
		"lot", lotLabel,
		"distance_m", route.DistanceM,
		"duration_s", route.DurationS,
		"fallback", route.Fallback)

	record := &storage.RouteRecord{
		SessionID:   id,
		Origin:      route.Origin,
		Destination: route.Destination,
		LotLabel:    lotLabel,
		DistanceM:   route.DistanceM,
		DurationS:   route.DurationS,
		Fallback:    route.Fallback,
	}
	if err := m.routes.CreateRoute(ctx, record); err != nil {
		slog.Error("Failed to record route", "session_id", id, "error", err)
	}

	m.sink.Publish(ctx, events.Event{
		Type:      events.TypeRouteRequested,
		SessionID: id,
		Timestamp: time.Now().UTC(),
		Position:  &route.Destination,
		LotLabel:  lotLabel,
		DistanceM: route.DistanceM,
		Fallback:  route.Fallback,
	})
}

// ClearAll runs the "Clear Route" workflow on a session
func (m *MapService) ClearAll(ctx context.Context, id string) (session.Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return session.Snapshot{}, err
	}

	s.ClearAll()
	snap := s.Snapshot()

	m.sink.Publish(ctx, events.Event{
		Type:      events.TypeCleared,
		SessionID: id,
		Timestamp: time.Now().UTC(),
	})

	m.notify(id, snap)
	return snap, nil
}

// RouteHistory returns the routes requested from a session
func (m *MapService) RouteHistory(ctx context.Context, id string) ([]*storage.RouteRecord, error) {
	return m.routes.GetRoutesBySession(ctx, id)
}

// Subscribe returns a channel that receives the session's snapshot after
// every change. The channel is closed when the session is deleted.
func (m *MapService) Subscribe(id string) (<-chan session.Snapshot, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	ch := make(chan session.Snapshot, 1)
	e.subscribers[ch] = struct{}{}

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, live := e.subscribers[ch]; live {
			delete(e.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// EvictIdle removes sessions unused since before cutoff and returns how many were removed
func (m *MapService) EvictIdle(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, e := range m.sessions {
		if e.session.IdleSince().Before(cutoff) {
			e.closeSubscribers()
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// SessionCount returns the number of live sessions
func (m *MapService) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

func (m *MapService) lookup(id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e.session, nil
}

// notify delivers the latest snapshot, replacing any undelivered older one
func (m *MapService) notify(id string, snap session.Snapshot) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[id]
	if !ok {
		return
	}
	for ch := range e.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func lotPositions(lots []session.Lot) []geo.Position {
	out := make([]geo.Position, len(lots))
	for i, lot := range lots {
		out[i] = lot.Position
	}
	return out
}
