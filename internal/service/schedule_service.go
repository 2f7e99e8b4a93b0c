package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"irrigation_monitor/internal/backend"
	"irrigation_monitor/internal/logger"
	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/repository"
	"irrigation_monitor/internal/schedule"

	"github.com/google/uuid"
)

const dayLayout = "2006-01-02"

// ScheduleBackend provides schedules and resolves symbolic time codes.
type ScheduleBackend interface {
	Schedule(ctx context.Context) ([]models.ScheduleSpec, error)
	ResolveTimes(ctx context.Context, req backend.ResolveRequest) ([]string, error)
}

// ScheduleService keeps the zone schedules and their resolved codes for the current day.
type ScheduleService struct {
	backend  ScheduleBackend
	cache    repository.CacheRepo
	events   repository.EventRepo
	log      *logger.Logger
	loc      *time.Location
	lat, lon float64
	now      func() time.Time

	mu       sync.RWMutex
	specs    []models.ScheduleSpec
	fetched  bool
	resolved models.ResolvedTimeCache
	restored bool
}

func NewScheduleService(be ScheduleBackend, cache repository.CacheRepo, events repository.EventRepo, opts Options) *ScheduleService {
	opts = opts.withDefaults()
	return &ScheduleService{
		backend: be,
		cache:   cache,
		events:  events,
		log:     opts.Log,
		loc:     opts.Location,
		lat:     opts.Lat,
		lon:     opts.Lon,
		now:     time.Now,
	}
}

// Refresh re-fetches schedules and re-resolves symbolic codes regardless of the cache.
func (s *ScheduleService) Refresh(ctx context.Context) error {
	return s.refresh(ctx, true)
}

// RunRefresh refreshes once, then every interval; resolution only reruns on a new day or a changed schedule.
func (s *ScheduleService) RunRefresh(ctx context.Context, interval time.Duration) {
	if err := s.refresh(ctx, false); err != nil {
		s.log.Warnw("schedule_refresh_failed", "err", err)
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.refresh(ctx, false); err != nil {
				s.log.Warnw("schedule_refresh_failed", "err", err)
			}
		}
	}
}

// NextRuns computes the next run of every zone, fetching schedules on first use.
func (s *ScheduleService) NextRuns(ctx context.Context) ([]models.ZoneNextRun, error) {
	s.mu.RLock()
	fetched := s.fetched
	s.mu.RUnlock()
	if !fetched {
		if err := s.refresh(ctx, false); err != nil {
			return nil, err
		}
	}

	now := s.now().In(s.loc)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ZoneNextRun, 0, len(s.specs))
	for _, spec := range s.specs {
		rt := s.resolved.Zones[spec.Zone]
		// Resolved values from another day are stale; symbolic codes fall back to unresolved.
		if s.resolved.Day != now.Format(dayLayout) {
			rt = nil
		}
		nr := models.ZoneNextRun{
			Zone:     spec.Zone,
			Period:   spec.Period,
			Mode:     spec.Mode,
			Display:  schedule.Placeholder,
			NextTime: schedule.Placeholder,
		}
		if date := schedule.NextRunDate(spec, rt, now); date != nil {
			nr.NextRunDate = date
			nr.Display = schedule.FormatNextRun(*date, now)
		}
		if spec.Mode != models.ModeDisabled {
			nr.NextTime = schedule.NextDailyTime(spec, rt, now)
		}
		out = append(out, nr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Zone < out[j].Zone })
	return out, nil
}

func (s *ScheduleService) refresh(ctx context.Context, force bool) error {
	specs, err := s.backend.Schedule(ctx)
	if err != nil {
		return fmt.Errorf("fetch schedule: %w", err)
	}
	now := s.now().In(s.loc)
	day := now.Format(dayLayout)
	fp, err := fingerprint(specs)
	if err != nil {
		return err
	}

	s.restoreCache(ctx)

	s.mu.Lock()
	s.specs, s.fetched = specs, true
	current := !force && s.resolved.Day == day && s.resolved.Fingerprint == fp
	s.mu.Unlock()
	if current {
		return nil
	}

	zones, complete := s.resolveAll(ctx, specs, day)
	c := models.ResolvedTimeCache{Day: day, Fingerprint: fp, Zones: zones, UpdatedAt: now.UTC()}
	if !complete {
		// Retry on the next refresh.
		c.Fingerprint = ""
	}

	s.mu.Lock()
	s.resolved = c
	s.mu.Unlock()

	if complete {
		if err := s.cache.Save(ctx, c); err != nil {
			s.log.Warnw("schedule_cache_save_failed", "err", err)
		}
	}
	s.log.Infow("schedule_refreshed", "zones", len(specs), "day", day, "complete", complete, "forced", force)
	if err := s.events.Append(ctx, models.ZoneEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now.UTC(),
		Type:        models.EventScheduleRefresh,
		Level:       models.LevelInfo,
		Description: fmt.Sprintf("Resolved start times for %d zones", len(zones)),
		Metadata:    map[string]any{"day": day, "complete": complete, "forced": force},
	}); err != nil {
		s.log.Warnw("journal_append_failed", "type", models.EventScheduleRefresh, "err", err)
	}
	return nil
}

// restoreCache loads the persisted cache once per process. The load runs without the lock.
func (s *ScheduleService) restoreCache(ctx context.Context) {
	s.mu.RLock()
	done := s.restored
	s.mu.RUnlock()
	if done {
		return
	}

	c, err := s.cache.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restored {
		return
	}
	s.restored = true
	if err != nil {
		s.log.Warnw("schedule_cache_load_failed", "err", err)
		return
	}
	s.resolved = c
}

// resolveAll asks the controller for every symbolic code of every zone. A failed zone gets
// Unresolved for its codes and makes the result incomplete.
func (s *ScheduleService) resolveAll(ctx context.Context, specs []models.ScheduleSpec, day string) (map[models.ZoneID]models.ResolvedTimes, bool) {
	zones := make(map[models.ZoneID]models.ResolvedTimes, len(specs))
	complete := true
	for _, spec := range specs {
		codes := schedule.SymbolicCodes(spec)
		if len(codes) == 0 {
			continue
		}
		rt := make(models.ResolvedTimes, len(codes))
		vals, err := s.backend.ResolveTimes(ctx, backend.ResolveRequest{Codes: codes, Date: day, Lat: s.lat, Lon: s.lon})
		if err != nil {
			complete = false
			s.log.Warnw("resolve_times_failed", "zone", spec.Zone, "err", err)
		}
		for i, code := range codes {
			rt[code] = models.Unresolved
			if err == nil {
				rt[code] = vals[i]
			}
		}
		zones[spec.Zone] = rt
	}
	return zones, complete
}

func fingerprint(specs []models.ScheduleSpec) (string, error) {
	b, err := json.Marshal(specs)
	if err != nil {
		return "", fmt.Errorf("fingerprint schedule: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
