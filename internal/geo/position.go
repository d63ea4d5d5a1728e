package geo

import (
	"fmt"
	"math"
)

// Position is a latitude/longitude pair in degrees
type Position struct {
	Lat float64 `json:"lat" dynamodbav:"lat"`
	Lng float64 `json:"lng" dynamodbav:"lng"`
}

// Validate rejects coordinates outside the WGS84 range
func (p Position) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %f out of range", p.Lat)
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %f out of range", p.Lng)
	}
	return nil
}

func (p Position) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}

// HaversineKm calculates the great-circle distance between two points in kilometers
func HaversineKm(a, b Position) float64 {
	const earthRadius = 6371 // Earth's radius in kilometers

	dLat := (b.Lat - a.Lat) * (math.Pi / 180)
	dLng := (b.Lng - a.Lng) * (math.Pi / 180)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*(math.Pi/180))*math.Cos(b.Lat*(math.Pi/180))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}

// Lerp returns the point a fraction t of the way from a to b
func Lerp(a, b Position, t float64) Position {
	return Position{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}
