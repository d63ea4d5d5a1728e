package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRouteStorage implements RouteStorage using in-memory maps
type MemoryRouteStorage struct {
	routes map[string]*RouteRecord
	mu     sync.RWMutex
}

// NewMemoryRouteStorage creates a new in-memory storage instance
func NewMemoryRouteStorage() *MemoryRouteStorage {
	return &MemoryRouteStorage{
		routes: make(map[string]*RouteRecord),
	}
}

func (m *MemoryRouteStorage) CreateRoute(ctx context.Context, record *RouteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if _, exists := m.routes[record.ID]; exists {
		return fmt.Errorf("route %s already exists", record.ID)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	stored := *record
	m.routes[record.ID] = &stored
	return nil
}

func (m *MemoryRouteStorage) GetRoutesBySession(ctx context.Context, sessionID string) ([]*RouteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*RouteRecord
	for _, record := range m.routes {
		if record.SessionID == sessionID {
			r := *record
			result = append(result, &r)
		}
	}

	sortByCreated(result)
	return result, nil
}

func (m *MemoryRouteStorage) GetAllRoutes(ctx context.Context) ([]*RouteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*RouteRecord, 0, len(m.routes))
	for _, record := range m.routes {
		r := *record
		result = append(result, &r)
	}

	sortByCreated(result)
	return result, nil
}

func sortByCreated(records []*RouteRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
