package repository

import (
	"context"
	"database/sql"
	"time"

	"irrigation_monitor/internal/models"
)

// DesiredStateRepo holds the last commanded state per zone.
// Commands own ExpectedActive; the reconciler may only initialize unknown
// zones and clear a marker it has seen resolve.
type DesiredStateRepo interface {
	Get(zone models.ZoneID) (models.DesiredState, bool)
	Snapshot() map[models.ZoneID]models.DesiredState
	// Command sets the target and re-arms the in-flight marker, returning what it replaced.
	Command(zone models.ZoneID, active bool, at time.Time) (prev models.DesiredState, existed bool)
	// Rollback restores prev if the command issued at `at` is still the latest one.
	Rollback(zone models.ZoneID, at time.Time, prev models.DesiredState, existed bool) bool
	InitIfAbsent(zone models.ZoneID, active bool) (models.DesiredState, bool)
	// ClearMarker ends the transition issued at `at`; a newer command is left untouched.
	ClearMarker(zone models.ZoneID, at time.Time) bool
}

// ObservedStateRepo holds the latest polled state; the poller is its only writer.
type ObservedStateRepo interface {
	Replace(states map[models.ZoneID]models.ObservedState, at time.Time)
	Snapshot() (map[models.ZoneID]models.ObservedState, time.Time)
}

type EventRepo interface {
	Append(ctx context.Context, e models.ZoneEvent) error
	List(ctx context.Context, f EventQuery) ([]models.ZoneEvent, error)
}

// CacheRepo persists the resolved time cache so a same-day restart can reuse it.
type CacheRepo interface {
	Save(ctx context.Context, c models.ResolvedTimeCache) error
	Load(ctx context.Context) (models.ResolvedTimeCache, error)
}

// EventQuery filters journal reads. Zero values disable a filter.
type EventQuery struct {
	From time.Time
	To   time.Time
	Type string
	Zone models.ZoneID
}

type Repository struct {
	Desired  DesiredStateRepo
	Observed ObservedStateRepo
	Events   EventRepo
	Cache    CacheRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Desired:  NewDesiredMemory(),
		Observed: NewObservedMemory(),
		Events:   NewEventSQLite(db),
		Cache:    NewCacheSQLite(db),
	}
}
