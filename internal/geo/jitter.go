package geo

// Rand is the uniform source used for jitter; *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// DefaultSpread is the full width of the jitter square in degrees. A spread of
// 0.02 keeps every generated point within ±0.01° of the center on both axes.
const DefaultSpread = 0.02

// Jitter offsets center independently on each axis by (U-0.5)*spread
func Jitter(center Position, spread float64, rnd Rand) Position {
	return Position{
		Lat: center.Lat + (rnd.Float64()-0.5)*spread,
		Lng: center.Lng + (rnd.Float64()-0.5)*spread,
	}
}

// Scatter produces n jittered positions around center
func Scatter(center Position, n int, spread float64, rnd Rand) []Position {
	points := make([]Position, n)
	for i := range points {
		points[i] = Jitter(center, spread, rnd)
	}
	return points
}
