package repository

import (
	"sync"
	"time"

	"irrigation_monitor/internal/models"
)

// DesiredMemory is the process-wide desired-state store.
type DesiredMemory struct {
	mu    sync.RWMutex
	zones map[models.ZoneID]models.DesiredState
}

func NewDesiredMemory() *DesiredMemory {
	return &DesiredMemory{zones: make(map[models.ZoneID]models.DesiredState)}
}

var _ DesiredStateRepo = (*DesiredMemory)(nil)

func (m *DesiredMemory) Get(zone models.ZoneID) (models.DesiredState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.zones[zone]
	return d, ok
}

func (m *DesiredMemory) Snapshot() map[models.ZoneID]models.DesiredState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[models.ZoneID]models.DesiredState, len(m.zones))
	for z, d := range m.zones {
		out[z] = d
	}
	return out
}

func (m *DesiredMemory) Command(zone models.ZoneID, active bool, at time.Time) (models.DesiredState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, existed := m.zones[zone]
	m.zones[zone] = models.DesiredState{ExpectedActive: active, CommandedAt: at}
	return prev, existed
}

func (m *DesiredMemory) Rollback(zone models.ZoneID, at time.Time, prev models.DesiredState, existed bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.zones[zone]
	if !ok || !cur.CommandedAt.Equal(at) {
		return false
	}
	if !existed {
		delete(m.zones, zone)
		return true
	}
	m.zones[zone] = models.DesiredState{ExpectedActive: prev.ExpectedActive}
	return true
}

func (m *DesiredMemory) InitIfAbsent(zone models.ZoneID, active bool) (models.DesiredState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.zones[zone]; ok {
		return d, false
	}
	d := models.DesiredState{ExpectedActive: active}
	m.zones[zone] = d
	return d, true
}

func (m *DesiredMemory) ClearMarker(zone models.ZoneID, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.zones[zone]
	if !ok || cur.CommandedAt.IsZero() || !cur.CommandedAt.Equal(at) {
		return false
	}
	cur.CommandedAt = time.Time{}
	m.zones[zone] = cur
	return true
}
