package storage

import (
	"context"
	"time"

	"github.com/marzanneub/stadia-map/internal/geo"
)

// RouteRecord is one route request made from a map session
type RouteRecord struct {
	ID          string       `json:"id" dynamodbav:"id"`
	SessionID   string       `json:"session_id" dynamodbav:"session_id"`
	Origin      geo.Position `json:"origin" dynamodbav:"origin"`
	Destination geo.Position `json:"destination" dynamodbav:"destination"`
	LotLabel    string       `json:"lot_label" dynamodbav:"lot_label"`
	DistanceM   float64      `json:"distance_m" dynamodbav:"distance_m"`
	DurationS   float64      `json:"duration_s" dynamodbav:"duration_s"`
	Fallback    bool         `json:"fallback" dynamodbav:"fallback"`
	CreatedAt   time.Time    `json:"created_at" dynamodbav:"created_at"`
}

// RouteStorage defines the interface for route history operations
type RouteStorage interface {
	// CreateRoute appends a record to the history
	CreateRoute(ctx context.Context, record *RouteRecord) error

	// GetRoutesBySession returns a session's records, oldest first
	GetRoutesBySession(ctx context.Context, sessionID string) ([]*RouteRecord, error)

	// GetAllRoutes returns every record, oldest first
	GetAllRoutes(ctx context.Context) ([]*RouteRecord, error)
}
