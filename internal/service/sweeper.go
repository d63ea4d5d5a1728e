package service

import (
	"log/slog"
	"sync"
	"time"
)

// Sweeper evicts map sessions that have been idle longer than a TTL
type Sweeper struct {
	mapService *MapService
	ttl        time.Duration
	interval   time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewSweeper creates a new session sweeper
func NewSweeper(mapService *MapService, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		mapService: mapService,
		ttl:        ttl,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the background sweep loop
func (sw *Sweeper) Start() {
	go sw.sweepLoop()
	slog.Info("Session sweeper started", "ttl", sw.ttl, "interval", sw.interval)
}

// Stop stops the background sweep loop
func (sw *Sweeper) Stop() {
	sw.stopOnce.Do(func() {
		close(sw.stopChan)
		slog.Info("Session sweeper stopped")
	})
}

func (sw *Sweeper) sweepLoop() {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			sw.Sweep(now)
		case <-sw.stopChan:
			return
		}
	}
}

// Sweep evicts sessions idle since before now-ttl
func (sw *Sweeper) Sweep(now time.Time) int {
	evicted := sw.mapService.EvictIdle(now.Add(-sw.ttl))
	if evicted > 0 {
		slog.Info("Evicted idle sessions", "count", evicted, "remaining", sw.mapService.SessionCount())
	}
	return evicted
}
