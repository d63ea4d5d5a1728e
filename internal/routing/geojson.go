package routing

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders the route as a GeoJSON overlay: the path as a
// LineString plus origin and destination points.
func (r *Route) FeatureCollection() *geojson.FeatureCollection {
	line := make(orb.LineString, len(r.Points))
	for i, p := range r.Points {
		line[i] = orb.Point{p.Lng, p.Lat}
	}

	path := geojson.NewFeature(line)
	path.Properties["kind"] = "route"
	path.Properties["distance_m"] = r.DistanceM
	path.Properties["duration_s"] = r.DurationS
	path.Properties["fallback"] = r.Fallback

	origin := geojson.NewFeature(orb.Point{r.Origin.Lng, r.Origin.Lat})
	origin.Properties["kind"] = "origin"

	destination := geojson.NewFeature(orb.Point{r.Destination.Lng, r.Destination.Lat})
	destination.Properties["kind"] = "destination"

	fc := geojson.NewFeatureCollection()
	fc.Append(path)
	fc.Append(origin)
	fc.Append(destination)
	return fc
}
