package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marzanneub/stadia-map/internal/geo"
	"github.com/marzanneub/stadia-map/internal/locate"
	"github.com/marzanneub/stadia-map/internal/routing"
	"github.com/marzanneub/stadia-map/internal/service"
	"github.com/marzanneub/stadia-map/internal/session"
	"github.com/marzanneub/stadia-map/internal/storage"
)

// straightRouter answers every request with a straight line
type straightRouter struct{}

func (straightRouter) Route(_ context.Context, origin, destination geo.Position) (*routing.Route, error) {
	return routing.StraightLine(origin, destination), nil
}

func setupTestHandler() (*mux.Router, *service.MapService) {
	mapService := service.NewMapService(straightRouter{}, nil, storage.NewMemoryRouteStorage(), nil,
		session.WithRand(rand.New(rand.NewSource(11))))
	handler := NewHTTPHandler(mapService, "https://tiles.example/{z}/{x}/{y}.png?api_key=test")

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router, mapService
}

func doJSON(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func createSession(t *testing.T, router http.Handler) string {
	t.Helper()
	rr := doJSON(router, "POST", "/sessions", nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	var snap session.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	require.NotEmpty(t, snap.ID)
	return snap.ID
}

func TestHTTPHandler_Health(t *testing.T) {
	router, _ := setupTestHandler()

	rr := doJSON(router, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestHTTPHandler_GetConfig(t *testing.T) {
	router, _ := setupTestHandler()

	rr := doJSON(router, "GET", "/config", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var cfg MapConfig
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&cfg))
	assert.Equal(t, "https://tiles.example/{z}/{x}/{y}.png?api_key=test", cfg.TileURL)
	assert.Equal(t, 13, cfg.DefaultView.Zoom)
	assert.Equal(t, 24.8949, cfg.DefaultView.Center.Lat)
}

func TestHTTPHandler_Scenario(t *testing.T) {
	router, _ := setupTestHandler()
	id := createSession(t, router)

	// Get My Location
	rr := doJSON(router, "POST", "/sessions/"+id+"/location", map[string]any{"lat": 25.00, "lng": 91.00})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var snap session.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	require.NotNil(t, snap.User)
	assert.Equal(t, geo.Position{Lat: 25.00, Lng: 91.00}, snap.User.Position)
	require.Len(t, snap.Lots, 5)
	for _, lot := range snap.Lots {
		assert.True(t, lot.Position.Lat >= 24.99 && lot.Position.Lat <= 25.01)
		assert.True(t, lot.Position.Lng >= 90.99 && lot.Position.Lng <= 91.01)
	}

	// Click lot #1
	lot1 := snap.Lots[0]
	rr = doJSON(router, "POST", "/sessions/"+id+"/lots/"+string(lot1.ID)+"/select", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	require.NotNil(t, snap.Route)
	assert.Equal(t, geo.Position{Lat: 25.00, Lng: 91.00}, snap.Route.Route.Origin)
	assert.Equal(t, lot1.Position, snap.Route.Route.Destination)

	// Route overlay as GeoJSON
	rr = doJSON(router, "GET", "/sessions/"+id+"/route.geojson", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `"LineString"`)

	// History
	rr = doJSON(router, "GET", "/sessions/"+id+"/routes", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var history []storage.RouteRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&history))
	require.Len(t, history, 1)
	assert.Equal(t, "Parking Lot 1", history[0].LotLabel)

	// Clear Route
	rr = doJSON(router, "POST", "/sessions/"+id+"/clear", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Lots)
	assert.Nil(t, snap.Route)

	rr = doJSON(router, "GET", "/sessions/"+id+"/route.geojson", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHTTPHandler_RequestLocation_Unsupported(t *testing.T) {
	router, _ := setupTestHandler()
	id := createSession(t, router)

	rr := doJSON(router, "POST", "/sessions/"+id+"/location", map[string]any{"supported": false})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "geolocation unsupported", strings.TrimSpace(rr.Body.String()))
}

func TestHTTPHandler_RequestLocation_PlatformError(t *testing.T) {
	router, mapService := setupTestHandler()
	id := createSession(t, router)

	rr := doJSON(router, "POST", "/sessions/"+id+"/location", map[string]any{"error": "User denied Geolocation"})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "User denied Geolocation", strings.TrimSpace(rr.Body.String()))

	snap, err := mapService.Snapshot(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, snap.User)
}

func TestHTTPHandler_RequestLocation_BadInput(t *testing.T) {
	router, _ := setupTestHandler()
	id := createSession(t, router)

	rr := doJSON(router, "POST", "/sessions/"+id+"/location", map[string]any{"lat": 25.0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(router, "POST", "/sessions/"+id+"/location", map[string]any{"lat": 95.0, "lng": 91.0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest("POST", "/sessions/"+id+"/location", strings.NewReader("{not json"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHTTPHandler_RequestLocation_AddressWithoutGeocoder(t *testing.T) {
	router, _ := setupTestHandler()
	id := createSession(t, router)

	rr := doJSON(router, "POST", "/sessions/"+id+"/location", map[string]any{"query": "Zindabazar, Sylhet"})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHTTPHandler_SelectLot_NoUserIsNoop(t *testing.T) {
	router, _ := setupTestHandler()
	id := createSession(t, router)

	rr := doJSON(router, "POST", "/sessions/"+id+"/lots/some-lot/select", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var snap session.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	assert.Nil(t, snap.Route)
}

func TestHTTPHandler_SelectLot_UnknownLot(t *testing.T) {
	router, _ := setupTestHandler()
	id := createSession(t, router)
	doJSON(router, "POST", "/sessions/"+id+"/location", map[string]any{"lat": 25.00, "lng": 91.00})

	rr := doJSON(router, "POST", "/sessions/"+id+"/lots/not-a-lot/select", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHTTPHandler_ClearAll_Idempotent(t *testing.T) {
	router, _ := setupTestHandler()
	id := createSession(t, router)

	for i := 0; i < 2; i++ {
		rr := doJSON(router, "POST", "/sessions/"+id+"/clear", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestHTTPHandler_UnknownSession(t *testing.T) {
	router, _ := setupTestHandler()

	assert.Equal(t, http.StatusNotFound, doJSON(router, "GET", "/sessions/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(router, "POST", "/sessions/missing/clear", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(router, "DELETE", "/sessions/missing", nil).Code)
}

func TestHTTPHandler_DeleteSession(t *testing.T) {
	router, _ := setupTestHandler()
	id := createSession(t, router)

	rr := doJSON(router, "DELETE", "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(router, "GET", "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHTTPHandler_MoveUser(t *testing.T) {
	router, _ := setupTestHandler()
	id := createSession(t, router)

	rr := doJSON(router, "PUT", "/sessions/"+id+"/user", map[string]any{"lat": 25.003, "lng": 91.002})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(router, "POST", "/sessions/"+id+"/location", map[string]any{"lat": 25.00, "lng": 91.00})
	require.Equal(t, http.StatusOK, rr.Code)
	var snap session.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	lot := snap.Lots[2]
	rr = doJSON(router, "POST", "/sessions/"+id+"/lots/"+string(lot.ID)+"/select", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(router, "PUT", "/sessions/"+id+"/user", map[string]any{"lat": 25.003, "lng": 91.002})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	dragged := geo.Position{Lat: 25.003, Lng: 91.002}
	assert.Equal(t, dragged, snap.User.Position)
	require.NotNil(t, snap.Route)
	assert.Equal(t, dragged, snap.Route.Route.Origin)
	assert.Equal(t, lot.Position, snap.Route.Route.Destination)

	rr = doJSON(router, "PUT", "/sessions/"+id+"/user", map[string]any{"lat": 25.003})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCORS_Preflight(t *testing.T) {
	router, _ := setupTestHandler()
	handler := CORS(router)

	for _, path := range []string{"/sessions/abc/location", "/sessions/abc/lots/lot-1/select", "/sessions/abc/clear", "/sessions/abc/user"} {
		req := httptest.NewRequest("OPTIONS", path, nil)
		req.Header.Set("Origin", "https://map.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST", path)
	}
}

func TestCORS_HeadersOnRequests(t *testing.T) {
	router, _ := setupTestHandler()

	rr := doJSON(CORS(router), "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestHTTPHandler_ServeWS(t *testing.T) {
	router, mapService := setupTestHandler()
	server := httptest.NewServer(router)
	defer server.Close()

	id := mapService.CreateSession(context.Background()).ID
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/" + id + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial session.Snapshot
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, id, initial.ID)
	assert.Nil(t, initial.User)

	_, err = mapService.RequestLocation(context.Background(), id, locate.Succeeded(geo.Position{Lat: 25.00, Lng: 91.00}))
	require.NoError(t, err)

	var update session.Snapshot
	require.NoError(t, conn.ReadJSON(&update))
	require.NotNil(t, update.User)
	assert.Len(t, update.Lots, 5)
}
