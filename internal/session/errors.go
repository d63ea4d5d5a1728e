package session

import "errors"

var (
	// ErrGeolocationUnsupported means the platform has no geolocation capability
	ErrGeolocationUnsupported = errors.New("geolocation unsupported")

	// ErrGeolocationFailed matches every *GeolocationError
	ErrGeolocationFailed = errors.New("geolocation failed")

	// ErrSuperseded is returned when a newer request was issued while this one was in flight
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrUnknownLot is returned when a lot id is not on the map
	ErrUnknownLot = errors.New("unknown parking lot")

	// ErrNoUserMarker is returned when moving the user marker before a location fix
	ErrNoUserMarker = errors.New("no user location")
)

// GeolocationError carries the platform-supplied message unchanged
type GeolocationError struct {
	Message string
}

func (e *GeolocationError) Error() string {
	return e.Message
}

func (e *GeolocationError) Is(target error) bool {
	return target == ErrGeolocationFailed
}
