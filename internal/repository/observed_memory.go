package repository

import (
	"sync"
	"time"

	"irrigation_monitor/internal/models"
)

// ObservedMemory keeps only the latest poll result; nothing carries over between ticks.
type ObservedMemory struct {
	mu        sync.RWMutex
	zones     map[models.ZoneID]models.ObservedState
	updatedAt time.Time
}

func NewObservedMemory() *ObservedMemory {
	return &ObservedMemory{zones: make(map[models.ZoneID]models.ObservedState)}
}

var _ ObservedStateRepo = (*ObservedMemory)(nil)

func (m *ObservedMemory) Replace(states map[models.ZoneID]models.ObservedState, at time.Time) {
	next := make(map[models.ZoneID]models.ObservedState, len(states))
	for z, s := range states {
		next[z] = s
	}
	m.mu.Lock()
	m.zones = next
	m.updatedAt = at
	m.mu.Unlock()
}

func (m *ObservedMemory) Snapshot() (map[models.ZoneID]models.ObservedState, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[models.ZoneID]models.ObservedState, len(m.zones))
	for z, s := range m.zones {
		out[z] = s
	}
	return out, m.updatedAt
}
