package mapview

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marzanneub/stadia-map/internal/geo"
	"github.com/marzanneub/stadia-map/internal/routing"
)

// DefaultCenter is the initial map view (Sylhet City)
var DefaultCenter = geo.Position{Lat: 24.8949, Lng: 91.8687}

// DefaultZoom is the zoom level used for the initial view and for recentering
const DefaultZoom = 13

// MarkerHandle identifies a marker placed on a Surface
type MarkerHandle string

// OverlayHandle identifies a route overlay placed on a Surface
type OverlayHandle string

// Surface is the map-rendering collaborator. Handles are opaque to callers.
type Surface interface {
	AddMarker(pos geo.Position, label string, draggable bool) MarkerHandle
	RemoveMarker(h MarkerHandle)
	MoveMarker(h MarkerHandle, pos geo.Position)
	SetView(center geo.Position, zoom int)
	AddOverlay(route *routing.Route) OverlayHandle
	RemoveOverlay(h OverlayHandle)
}

// Marker is a labelled point on the map
type Marker struct {
	Handle    MarkerHandle `json:"id"`
	Position  geo.Position `json:"position"`
	Label     string       `json:"label"`
	Draggable bool         `json:"draggable"`
	AddedAt   time.Time    `json:"added_at"`
}

// Overlay is a rendered route
type Overlay struct {
	Handle OverlayHandle  `json:"id"`
	Route  *routing.Route `json:"route"`
}

// View is the map viewport
type View struct {
	Center geo.Position `json:"center"`
	Zoom   int          `json:"zoom"`
}

// Layers is an in-memory Surface that records what the browser map shows
type Layers struct {
	markers  map[MarkerHandle]*Marker
	overlays map[OverlayHandle]*Overlay
	view     View
	mu       sync.RWMutex
}

// NewLayers creates an empty map centered on the default view
func NewLayers() *Layers {
	return &Layers{
		markers:  make(map[MarkerHandle]*Marker),
		overlays: make(map[OverlayHandle]*Overlay),
		view:     View{Center: DefaultCenter, Zoom: DefaultZoom},
	}
}

func (l *Layers) AddMarker(pos geo.Position, label string, draggable bool) MarkerHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := MarkerHandle(uuid.New().String())
	l.markers[h] = &Marker{
		Handle:    h,
		Position:  pos,
		Label:     label,
		Draggable: draggable,
		AddedAt:   time.Now(),
	}
	return h
}

func (l *Layers) RemoveMarker(h MarkerHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.markers, h)
}

func (l *Layers) MoveMarker(h MarkerHandle, pos geo.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.markers[h]; ok {
		m.Position = pos
	}
}

func (l *Layers) SetView(center geo.Position, zoom int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.view = View{Center: center, Zoom: zoom}
}

func (l *Layers) AddOverlay(route *routing.Route) OverlayHandle {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := OverlayHandle(uuid.New().String())
	l.overlays[h] = &Overlay{Handle: h, Route: route}
	return h
}

func (l *Layers) RemoveOverlay(h OverlayHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.overlays, h)
}

// Marker looks up a single marker
func (l *Layers) Marker(h MarkerHandle) (Marker, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.markers[h]
	if !ok {
		return Marker{}, false
	}
	return *m, true
}

// Markers returns copies of all markers ordered by insertion time
func (l *Layers) Markers() []Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]Marker, 0, len(l.markers))
	for _, m := range l.markers {
		result = append(result, *m)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].AddedAt.Equal(result[j].AddedAt) {
			return result[i].AddedAt.Before(result[j].AddedAt)
		}
		return result[i].Label < result[j].Label
	})
	return result
}

// Overlays returns copies of all overlays
func (l *Layers) Overlays() []Overlay {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]Overlay, 0, len(l.overlays))
	for _, o := range l.overlays {
		result = append(result, *o)
	}
	return result
}

// View returns the current viewport
func (l *Layers) View() View {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.view
}
