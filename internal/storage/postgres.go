package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CreateRouteHistoryTable is the DDL applied by EnsureSchema
const CreateRouteHistoryTable = `
CREATE TABLE IF NOT EXISTS route_history (
	id              TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	origin_lat      DOUBLE PRECISION NOT NULL,
	origin_lng      DOUBLE PRECISION NOT NULL,
	destination_lat DOUBLE PRECISION NOT NULL,
	destination_lng DOUBLE PRECISION NOT NULL,
	lot_label       TEXT NOT NULL,
	distance_m      DOUBLE PRECISION NOT NULL,
	duration_s      DOUBLE PRECISION NOT NULL,
	fallback        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS route_history_session_idx ON route_history (session_id, created_at);
`

const selectRouteColumns = `
	SELECT id, session_id, origin_lat, origin_lng, destination_lat, destination_lng,
	       lot_label, distance_m, duration_s, fallback, created_at
	FROM route_history
`

// PgxAPI is the subset of *pgxpool.Pool used here, for mocking
type PgxAPI interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PostgresRouteStorage struct {
	pool PgxAPI
}

func NewPostgresRouteStorage(pool PgxAPI) *PostgresRouteStorage {
	return &PostgresRouteStorage{pool: pool}
}

// EnsureSchema creates the route_history table if it is missing
func (p *PostgresRouteStorage) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, CreateRouteHistoryTable); err != nil {
		return fmt.Errorf("create route_history: %w", err)
	}
	return nil
}

func (p *PostgresRouteStorage) CreateRoute(ctx context.Context, record *RouteRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO route_history (id, session_id, origin_lat, origin_lng, destination_lat, destination_lng,
		                           lot_label, distance_m, duration_s, fallback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := p.pool.Exec(ctx, query,
		record.ID,
		record.SessionID,
		record.Origin.Lat,
		record.Origin.Lng,
		record.Destination.Lat,
		record.Destination.Lng,
		record.LotLabel,
		record.DistanceM,
		record.DurationS,
		record.Fallback,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert route: %w", err)
	}

	return nil
}

func (p *PostgresRouteStorage) GetRoutesBySession(ctx context.Context, sessionID string) ([]*RouteRecord, error) {
	rows, err := p.pool.Query(ctx, selectRouteColumns+" WHERE session_id = $1 ORDER BY created_at, id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query routes by session: %w", err)
	}
	return collectRoutes(rows)
}

func (p *PostgresRouteStorage) GetAllRoutes(ctx context.Context) ([]*RouteRecord, error) {
	rows, err := p.pool.Query(ctx, selectRouteColumns+" ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	return collectRoutes(rows)
}

func collectRoutes(rows pgx.Rows) ([]*RouteRecord, error) {
	routes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*RouteRecord, error) {
		var r RouteRecord
		err := row.Scan(
			&r.ID,
			&r.SessionID,
			&r.Origin.Lat,
			&r.Origin.Lng,
			&r.Destination.Lat,
			&r.Destination.Lng,
			&r.LotLabel,
			&r.DistanceM,
			&r.DurationS,
			&r.Fallback,
			&r.CreatedAt,
		)
		return &r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan routes: %w", err)
	}
	return routes, nil
}
