package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/marzanneub/stadia-map/internal/geo"
	"github.com/marzanneub/stadia-map/internal/locate"
	"github.com/marzanneub/stadia-map/internal/mapview"
	"github.com/marzanneub/stadia-map/internal/routing"
)

const (
	// LotCount is the number of mock parking lots generated per location fix
	LotCount = 5

	userLabel = "Your Location"
)

// Lot is a mock parking lot marker. ID is the marker handle on the surface.
type Lot struct {
	ID       mapview.MarkerHandle `json:"id"`
	Label    string               `json:"label"`
	Position geo.Position         `json:"position"`
}

// UserMarker is the marker placed at the last location fix
type UserMarker struct {
	ID       mapview.MarkerHandle `json:"id"`
	Position geo.Position         `json:"position"`
}

// ActiveRoute is the single route overlay currently shown
type ActiveRoute struct {
	ID    mapview.OverlayHandle `json:"id"`
	Lot   Lot                   `json:"lot"`
	Route *routing.Route        `json:"route"`
}

// Snapshot is a point-in-time copy of the session state
type Snapshot struct {
	ID         string       `json:"id"`
	User       *UserMarker  `json:"user"`
	Lots       []Lot        `json:"lots"`
	Route      *ActiveRoute `json:"route"`
	View       mapview.View `json:"view"`
	LastActive time.Time    `json:"last_active"`
}

// Option configures a Session
type Option func(*Session)

// WithRand replaces the jitter source
func WithRand(rnd geo.Rand) Option {
	return func(s *Session) {
		s.rnd = rnd
	}
}

// Session owns the user marker, the lot markers and the route overlay of one
// map. Calls to the geolocator and the router happen outside the lock; each
// takes a generation ticket first and its result is dropped if a newer
// request (or a clear) was issued in the meantime.
type Session struct {
	id      string
	surface mapview.Surface
	router  routing.Router
	rnd     geo.Rand

	mu          sync.Mutex
	user        *UserMarker
	lots        []Lot
	lotIndex    map[mapview.MarkerHandle]Lot
	route       *ActiveRoute
	target      *Lot
	view        mapview.View
	locationGen uint64
	routeGen    uint64
	lastActive  time.Time
}

// New creates an empty session drawing onto surface
func New(id string, surface mapview.Surface, router routing.Router, opts ...Option) *Session {
	s := &Session{
		id:         id,
		surface:    surface,
		router:     router,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		lotIndex:   make(map[mapview.MarkerHandle]Lot),
		view:       mapview.View{Center: mapview.DefaultCenter, Zoom: mapview.DefaultZoom},
		lastActive: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// RequestLocation asks locator for the current position. On success the user
// marker is replaced, the view recentered and a fresh batch of lots
// generated. On failure the map is left untouched.
func (s *Session) RequestLocation(ctx context.Context, locator locate.Geolocator) (geo.Position, error) {
	if locator == nil {
		return geo.Position{}, ErrGeolocationUnsupported
	}

	s.mu.Lock()
	s.locationGen++
	ticket := s.locationGen
	s.lastActive = time.Now()
	s.mu.Unlock()

	pos, err := locator.Locate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return geo.Position{}, ctx.Err()
		}
		return geo.Position{}, &GeolocationError{Message: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket != s.locationGen {
		return geo.Position{}, ErrSuperseded
	}

	// Routes to the old lots are stale, including one still in flight
	s.removeRouteLocked()
	s.routeGen++
	s.target = nil

	if s.user != nil {
		s.surface.RemoveMarker(s.user.ID)
	}
	s.user = &UserMarker{
		ID:       s.surface.AddMarker(pos, userLabel, true),
		Position: pos,
	}

	s.view = mapview.View{Center: pos, Zoom: mapview.DefaultZoom}
	s.surface.SetView(pos, mapview.DefaultZoom)

	s.generateMockLotsLocked(pos)
	return pos, nil
}

// GenerateMockLots discards the current lots and places LotCount new ones
// jittered around center.
func (s *Session) GenerateMockLots(center geo.Position) []Lot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
	return s.generateMockLotsLocked(center)
}

func (s *Session) generateMockLotsLocked(center geo.Position) []Lot {
	s.clearLotsLocked()

	points := geo.Scatter(center, LotCount, geo.DefaultSpread, s.rnd)
	for i, p := range points {
		label := fmt.Sprintf("Parking Lot %d", i+1)
		lot := Lot{
			ID:       s.surface.AddMarker(p, label, false),
			Label:    label,
			Position: p,
		}
		s.lots = append(s.lots, lot)
		s.lotIndex[lot.ID] = lot
	}

	out := make([]Lot, len(s.lots))
	copy(out, s.lots)
	return out
}

func (s *Session) clearLotsLocked() {
	for _, lot := range s.lots {
		s.surface.RemoveMarker(lot.ID)
	}
	s.lots = nil
	s.lotIndex = make(map[mapview.MarkerHandle]Lot)
}

// SelectLot routes from the user marker to the chosen lot. Without a user
// marker it does nothing and returns a nil route. The previous overlay is
// removed before the router is called.
func (s *Session) SelectLot(ctx context.Context, lotID mapview.MarkerHandle) (*routing.Route, error) {
	s.mu.Lock()
	s.lastActive = time.Now()
	if s.user == nil {
		s.mu.Unlock()
		return nil, nil
	}
	lot, ok := s.lotIndex[lotID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownLot, lotID)
	}
	return s.routeToLocked(ctx, lot)
}

// MoveUser moves the user marker to pos, as when it is dragged. The lots stay
// where they are. If a route was requested it is recomputed from pos.
func (s *Session) MoveUser(ctx context.Context, pos geo.Position) (*routing.Route, error) {
	s.mu.Lock()
	s.lastActive = time.Now()
	if s.user == nil {
		s.mu.Unlock()
		return nil, ErrNoUserMarker
	}

	s.surface.MoveMarker(s.user.ID, pos)
	s.user.Position = pos

	if s.target == nil {
		s.mu.Unlock()
		return nil, nil
	}
	return s.routeToLocked(ctx, *s.target)
}

// routeToLocked must be called with s.mu held. It releases the lock while
// the router runs.
func (s *Session) routeToLocked(ctx context.Context, lot Lot) (*routing.Route, error) {
	s.removeRouteLocked()
	s.routeGen++
	s.target = &lot
	ticket := s.routeGen
	origin := s.user.Position
	s.mu.Unlock()

	route, err := s.router.Route(ctx, origin, lot.Position)
	if err != nil {
		return nil, fmt.Errorf("failed to route to %s: %w", lot.Label, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket != s.routeGen {
		return nil, ErrSuperseded
	}

	s.route = &ActiveRoute{
		ID:    s.surface.AddOverlay(route),
		Lot:   lot,
		Route: route,
	}
	return route, nil
}

func (s *Session) removeRouteLocked() {
	if s.route != nil {
		s.surface.RemoveOverlay(s.route.ID)
		s.route = nil
	}
}

// ClearAll removes every marker and the route overlay. In-flight location and
// route requests issued before the call are dropped when they complete.
func (s *Session) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user != nil {
		s.surface.RemoveMarker(s.user.ID)
		s.user = nil
	}
	s.clearLotsLocked()
	s.removeRouteLocked()
	s.target = nil

	s.locationGen++
	s.routeGen++
	s.lastActive = time.Now()
}

// Lot looks up a lot by marker id
func (s *Session) Lot(id mapview.MarkerHandle) (Lot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.lotIndex[id]
	return lot, ok
}

// Snapshot copies the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.id,
		Lots:       make([]Lot, len(s.lots)),
		View:       s.view,
		LastActive: s.lastActive,
	}
	copy(snap.Lots, s.lots)
	if s.user != nil {
		user := *s.user
		snap.User = &user
	}
	if s.route != nil {
		route := *s.route
		snap.Route = &route
	}
	return snap
}

// IdleSince reports when the session was last used
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastActive
}
