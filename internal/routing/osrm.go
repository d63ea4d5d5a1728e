package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/marzanneub/stadia-map/internal/geo"
)

// DefaultServiceURL is the public OSRM demo server
const DefaultServiceURL = "https://router.project-osrm.org/route/v1"

// DefaultProfile is the OSRM travel profile used when none is configured
const DefaultProfile = "driving"

// fallbackSpeedMps is the assumed average speed for straight-line routes (50 km/h)
const fallbackSpeedMps = 13.89

// Router computes a route between two positions
type Router interface {
	Route(ctx context.Context, origin, destination geo.Position) (*Route, error)
}

// Route represents a complete route with waypoints
type Route struct {
	Origin      geo.Position   `json:"origin"`
	Destination geo.Position   `json:"destination"`
	Points      []geo.Position `json:"points"`
	DistanceM   float64        `json:"distance_m"`
	DurationS   float64        `json:"duration_s"`
	Fallback    bool           `json:"fallback"`
}

// osrmResponse represents the response from the OSRM route API
type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// OSRMRouter handles route calculations against an OSRM service
type OSRMRouter struct {
	client     *http.Client
	serviceURL string
	profile    string
}

// NewOSRMRouter creates a router for the given OSRM service endpoint
func NewOSRMRouter(serviceURL, profile string) *OSRMRouter {
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	if profile == "" {
		profile = DefaultProfile
	}
	return &OSRMRouter{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		serviceURL: strings.TrimRight(serviceURL, "/"),
		profile:    profile,
	}
}

// Route calculates a route between two points using OSRM. Any failure to get
// a usable answer from the service degrades to a straight-line route; only a
// canceled context is returned as an error.
func (r *OSRMRouter) Route(ctx context.Context, origin, destination geo.Position) (*Route, error) {
	url := fmt.Sprintf("%s/%s/%f,%f;%f,%f?overview=full&geometries=geojson",
		r.serviceURL, r.profile, origin.Lng, origin.Lat, destination.Lng, destination.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build route request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Error("OSRM routing API failed, using straight-line fallback",
			"error", err,
			"origin", origin.String(),
			"destination", destination.String(),
			"url", url)
		return StraightLine(origin, destination), nil
	}
	defer resp.Body.Close()

	var osrmResp osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&osrmResp); err != nil {
		slog.Error("OSRM response parsing failed, using straight-line fallback",
			"error", err,
			"status_code", resp.StatusCode,
			"origin", origin.String(),
			"destination", destination.String())
		return StraightLine(origin, destination), nil
	}

	if osrmResp.Code != "Ok" || len(osrmResp.Routes) == 0 {
		slog.Error("OSRM returned no routes, using straight-line fallback",
			"osrm_code", osrmResp.Code,
			"osrm_message", osrmResp.Message,
			"origin", origin.String(),
			"destination", destination.String())
		return StraightLine(origin, destination), nil
	}

	best := osrmResp.Routes[0]
	slog.Info("OSRM routing successful",
		"distance_m", best.Distance,
		"duration_s", best.Duration,
		"waypoints", len(best.Geometry.Coordinates))

	points := make([]geo.Position, 0, len(best.Geometry.Coordinates))
	for _, coord := range best.Geometry.Coordinates {
		if len(coord) < 2 {
			continue
		}
		points = append(points, geo.Position{
			Lat: coord[1], // OSRM returns [lng, lat]
			Lng: coord[0],
		})
	}

	return &Route{
		Origin:      origin,
		Destination: destination,
		Points:      points,
		DistanceM:   best.Distance,
		DurationS:   best.Duration,
	}, nil
}

// StraightLine creates a fallback 11-point route directly between two points
func StraightLine(origin, destination geo.Position) *Route {
	points := make([]geo.Position, 11)
	for i := 0; i <= 10; i++ {
		points[i] = geo.Lerp(origin, destination, float64(i)/10.0)
	}

	distance := geo.HaversineKm(origin, destination) * 1000 // convert to meters

	return &Route{
		Origin:      origin,
		Destination: destination,
		Points:      points,
		DistanceM:   distance,
		DurationS:   distance / fallbackSpeedMps,
		Fallback:    true,
	}
}
