package locate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marzanneub/stadia-map/internal/geo"
)

// DefaultNominatimURL is the public OpenStreetMap search endpoint
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// nominatimResponse is shaped for the search API response
type nominatimResponse []struct {
	PlaceID     int64  `json:"place_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
}

// Nominatim geocodes free-text addresses
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatim creates a geocoder for the given search endpoint
func NewNominatim(baseURL, userAgent string) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &Nominatim{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Geocode looks up a place name and returns the coordinates of the best match
func (n *Nominatim) Geocode(ctx context.Context, query string) (geo.Position, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("accept-language", "en")

	u := fmt.Sprintf("%s?%s", n.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return geo.Position{}, err
	}
	if n.userAgent != "" {
		// Nominatim's usage policy requires an identifying User-Agent
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return geo.Position{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Position{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geo.Position{}, err
	}

	if len(results) == 0 {
		return geo.Position{}, fmt.Errorf("no results for %s", query)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return geo.Position{}, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return geo.Position{}, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}

	return geo.Position{Lat: lat, Lng: lng}, nil
}

// Address binds a query to the geocoder so it can stand in for the browser's
// geolocation on platforms without one.
func (n *Nominatim) Address(query string) Geolocator {
	return addressLocator{geocoder: n, query: strings.TrimSpace(query)}
}

type addressLocator struct {
	geocoder *Nominatim
	query    string
}

func (a addressLocator) Locate(ctx context.Context) (geo.Position, error) {
	if a.query == "" {
		return geo.Position{}, fmt.Errorf("empty address")
	}
	return a.geocoder.Geocode(ctx, a.query)
}
