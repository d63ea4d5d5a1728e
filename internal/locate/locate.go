package locate

import (
	"context"
	"errors"

	"github.com/marzanneub/stadia-map/internal/geo"
)

// Geolocator obtains the current position of the user
type Geolocator interface {
	Locate(ctx context.Context) (geo.Position, error)
}

// Fix is a position reported by the browser's geolocation API, either the
// coordinates it resolved or the error message it produced.
type Fix struct {
	Position geo.Position
	Message  string
	Failed   bool
}

// Succeeded builds a fix for a resolved position
func Succeeded(pos geo.Position) Fix {
	return Fix{Position: pos}
}

// FailedWith builds a fix for a platform error, keeping its message verbatim
func FailedWith(message string) Fix {
	return Fix{Message: message, Failed: true}
}

// Locate returns the reported position or the reported error
func (f Fix) Locate(ctx context.Context) (geo.Position, error) {
	if err := ctx.Err(); err != nil {
		return geo.Position{}, err
	}
	if f.Failed {
		return geo.Position{}, errors.New(f.Message)
	}
	return f.Position, nil
}
