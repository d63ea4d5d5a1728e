package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marzanneub/stadia-map/internal/geo"
	"github.com/marzanneub/stadia-map/internal/locate"
	"github.com/marzanneub/stadia-map/internal/mapview"
	"github.com/marzanneub/stadia-map/internal/service"
	"github.com/marzanneub/stadia-map/internal/session"
)

// MapConfig is what the browser needs to set up the Leaflet map
type MapConfig struct {
	TileURL     string       `json:"tile_url"`
	Attribution string       `json:"attribution"`
	DefaultView mapview.View `json:"default_view"`
}

// HTTPHandler handles HTTP requests for the map service
type HTTPHandler struct {
	mapService *service.MapService
	mapConfig  MapConfig
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(mapService *service.MapService, tileURL string) *HTTPHandler {
	return &HTTPHandler{
		mapService: mapService,
		mapConfig: MapConfig{
			TileURL:     tileURL,
			Attribution: "© Stadia Maps",
			DefaultView: mapview.View{Center: mapview.DefaultCenter, Zoom: mapview.DefaultZoom},
		},
	}
}

// RegisterRoutes sets up HTTP routes
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/config", h.GetConfig).Methods("GET")
	router.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	router.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	router.HandleFunc("/sessions/{id}", h.DeleteSession).Methods("DELETE")
	router.HandleFunc("/sessions/{id}/location", h.RequestLocation).Methods("POST")
	router.HandleFunc("/sessions/{id}/user", h.MoveUser).Methods("PUT")
	router.HandleFunc("/sessions/{id}/lots/{lotId}/select", h.SelectLot).Methods("POST")
	router.HandleFunc("/sessions/{id}/clear", h.ClearAll).Methods("POST")
	router.HandleFunc("/sessions/{id}/route.geojson", h.GetRouteGeoJSON).Methods("GET")
	router.HandleFunc("/sessions/{id}/routes", h.GetRouteHistory).Methods("GET")
	router.HandleFunc("/sessions/{id}/ws", h.ServeWS).Methods("GET")
}

// Health returns service health status
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GetConfig returns the tile layer settings
func (h *HTTPHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mapConfig)
}

// CreateSession starts a new map session
func (h *HTTPHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	snap := h.mapService.CreateSession(r.Context())
	writeJSON(w, http.StatusCreated, snap)
}

// GetSession returns a session snapshot
func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.mapService.Snapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// DeleteSession drops a session
func (h *HTTPHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.mapService.DeleteSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// locationRequest is the browser's geolocation outcome. Supported defaults to
// true; Query asks the server to geocode an address instead.
type locationRequest struct {
	Supported *bool    `json:"supported"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Error     string   `json:"error"`
	Query     string   `json:"query"`
}

// RequestLocation handles the "Get My Location" button
func (h *HTTPHandler) RequestLocation(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode location request", "session_id", sessionID, "error", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	var locator locate.Geolocator
	switch {
	case req.Supported != nil && !*req.Supported:
		locator = nil
	case req.Query != "":
		locator = h.mapService.AddressLocator(req.Query)
	case req.Error != "":
		locator = locate.FailedWith(req.Error)
	default:
		if req.Lat == nil || req.Lng == nil {
			http.Error(w, "Missing required parameters", http.StatusBadRequest)
			return
		}
		pos := geo.Position{Lat: *req.Lat, Lng: *req.Lng}
		if err := pos.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		locator = locate.Succeeded(pos)
	}

	snap, err := h.mapService.RequestLocation(r.Context(), sessionID, locator)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type positionRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// MoveUser handles the end of a drag on the user marker
func (h *HTTPHandler) MoveUser(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode move request", "session_id", sessionID, "error", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		http.Error(w, "Missing required parameters", http.StatusBadRequest)
		return
	}
	pos := geo.Position{Lat: *req.Lat, Lng: *req.Lng}
	if err := pos.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, _, err := h.mapService.MoveUser(r.Context(), sessionID, pos)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SelectLot handles a click on a parking lot marker
func (h *HTTPHandler) SelectLot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	snap, _, err := h.mapService.SelectLot(r.Context(), vars["id"], mapview.MarkerHandle(vars["lotId"]))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ClearAll handles the "Clear Route" button
func (h *HTTPHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	snap, err := h.mapService.ClearAll(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetRouteGeoJSON returns the active route overlay as GeoJSON
func (h *HTTPHandler) GetRouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	snap, err := h.mapService.Snapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if snap.Route == nil {
		http.Error(w, "no active route", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	json.NewEncoder(w).Encode(snap.Route.Route.FeatureCollection())
}

// GetRouteHistory returns the routes requested from a session
func (h *HTTPHandler) GetRouteHistory(w http.ResponseWriter, r *http.Request) {
	routes, err := h.mapService.RouteHistory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, session.ErrUnknownLot):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrGeolocationUnsupported), errors.Is(err, session.ErrGeolocationFailed):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, session.ErrSuperseded), errors.Is(err, session.ErrNoUserMarker):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("Request failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// CORS adds CORS headers for frontend access. It must wrap the router, not be
// registered as mux middleware, so OPTIONS preflights never reach route matching.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
