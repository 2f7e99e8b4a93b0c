package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"irrigation_monitor/internal/logger"
	"irrigation_monitor/internal/metrics"
	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/publisher"
	"irrigation_monitor/internal/repository"

	"github.com/google/uuid"
)

// DefaultReconcileTimeout is how long a commanded transition may stay unconfirmed before it is red.
const DefaultReconcileTimeout = 30 * time.Second

const publishTimeout = 5 * time.Second

// Verdict is the outcome of evaluating one zone, with the side effects the caller owes.
type Verdict struct {
	State models.ValidationState
	// Init: no desired record existed; adopt the observed state.
	Init bool
	// Resolved: the in-flight transition converged; clear its marker.
	Resolved bool
	// TimedOut: the in-flight transition missed the timeout.
	TimedOut bool
	// Drift: hardware disagrees with a settled desired state.
	Drift bool
}

// Evaluate derives the validation state of one zone. It has no side effects.
func Evaluate(desired models.DesiredState, hasDesired bool, observed models.ObservedState, now time.Time, timeout time.Duration) Verdict {
	if !hasDesired {
		return Verdict{State: models.Settled(observed.Active), Init: true}
	}
	match := desired.ExpectedActive == observed.Active

	if desired.InFlight() {
		switch {
		case match:
			return Verdict{State: models.Settled(observed.Active), Resolved: true}
		case now.Sub(desired.CommandedAt) < timeout:
			return Verdict{State: models.StateOrange}
		default:
			return Verdict{State: models.StateRed, TimedOut: true}
		}
	}

	if match {
		return Verdict{State: models.Settled(observed.Active)}
	}
	return Verdict{State: models.StateRed, Drift: true}
}

// ReconcilerService applies Evaluate to every known zone each tick and keeps the status board.
type ReconcilerService struct {
	desired repository.DesiredStateRepo
	events  repository.EventRepo
	alerts  *Alerter
	metrics metrics.Recorder
	publish publisher.Publisher
	log     *logger.Logger
	timeout time.Duration
	zones   int

	publishTimeout time.Duration

	mu    sync.RWMutex
	board map[models.ZoneID]models.ZoneStatus
	// alerted holds the CommandedAt of the transition already escalated per zone.
	alerted  map[models.ZoneID]time.Time
	drifting map[models.ZoneID]bool
}

func NewReconcilerService(desired repository.DesiredStateRepo, events repository.EventRepo, alerts *Alerter, opts Options) *ReconcilerService {
	opts = opts.withDefaults()
	return &ReconcilerService{
		desired:  desired,
		events:   events,
		alerts:   alerts,
		metrics:  opts.Metrics,
		publish:  opts.Publish,
		log:      opts.Log,
		timeout:  opts.ReconcileTimeout,
		zones:    opts.Zones,
		board:    make(map[models.ZoneID]models.ZoneStatus),
		alerted:  make(map[models.ZoneID]time.Time),
		drifting: make(map[models.ZoneID]bool),

		publishTimeout: publishTimeout,
	}
}

// Reconcile evaluates the union of desired, observed and configured zones against observed at now.
// Running it twice with the same inputs yields the same board and no further side effects.
func (r *ReconcilerService) Reconcile(ctx context.Context, observed map[models.ZoneID]models.ObservedState, now time.Time) []models.ZoneStatus {
	out, changed := r.evaluateAll(ctx, observed, now)
	for _, st := range changed {
		r.publishZone(ctx, st)
	}
	return out
}

func (r *ReconcilerService) evaluateAll(ctx context.Context, observed map[models.ZoneID]models.ObservedState, now time.Time) (out, changed []models.ZoneStatus) {
	desired := r.desired.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()

	out = make([]models.ZoneStatus, 0, len(desired)+len(observed))
	for _, zone := range r.knownZones(desired, observed) {
		d, ok := desired[zone]
		o := observed[zone]

		v := Evaluate(d, ok, o, now, r.timeout)
		if v.Init {
			var created bool
			d, created = r.desired.InitIfAbsent(zone, o.Active)
			if created {
				r.log.Infow("zone_discovered", "zone", zone, "active", o.Active)
			} else {
				// A command landed after the snapshot.
				v = Evaluate(d, true, o, now, r.timeout)
			}
		}

		switch {
		case v.Resolved:
			r.resolve(ctx, zone, d, now)
		case v.TimedOut:
			r.escalate(ctx, zone, d, o, now)
		}
		r.trackDrift(ctx, zone, d, o, v.Drift, now)

		if v.Resolved {
			d.CommandedAt = time.Time{}
		}
		st := models.ZoneStatus{
			Zone:             zone,
			State:            v.State,
			ExpectedActive:   d.ExpectedActive,
			ObservedActive:   o.Active,
			RemainingSeconds: o.RemainingSeconds,
			InFlight:         d.InFlight(),
			UpdatedAt:        now,
		}
		if d.InFlight() {
			at := d.CommandedAt
			st.CommandedAt = &at
		}
		if r.record(st) {
			changed = append(changed, st)
		}
		out = append(out, st)
	}
	return out, changed
}

// Statuses returns the board ordered by zone.
func (r *ReconcilerService) Statuses() []models.ZoneStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ZoneStatus, 0, len(r.board))
	for _, st := range r.board {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Zone < out[j].Zone })
	return out
}

func (r *ReconcilerService) Status(zone models.ZoneID) (models.ZoneStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.board[zone]
	return st, ok
}

func (r *ReconcilerService) knownZones(desired map[models.ZoneID]models.DesiredState, observed map[models.ZoneID]models.ObservedState) []models.ZoneID {
	set := make(map[models.ZoneID]struct{}, len(desired)+len(observed)+r.zones)
	for z := range desired {
		set[z] = struct{}{}
	}
	for z := range observed {
		set[z] = struct{}{}
	}
	for z := 1; z <= r.zones; z++ {
		set[models.ZoneID(z)] = struct{}{}
	}
	out := make([]models.ZoneID, 0, len(set))
	for z := range set {
		if z.Valid() {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *ReconcilerService) resolve(ctx context.Context, zone models.ZoneID, d models.DesiredState, now time.Time) {
	// A newer command between snapshot and here keeps its marker.
	if !r.desired.ClearMarker(zone, d.CommandedAt) {
		return
	}
	delete(r.alerted, zone)
	r.journal(ctx, models.ZoneEvent{
		OccurredAt:  now,
		Zone:        zone,
		Type:        models.EventTransitionResolved,
		Level:       models.LevelInfo,
		Description: fmt.Sprintf("Zone %d confirmed %s", zone, activeWord(d.ExpectedActive)),
		Metadata:    map[string]any{"latency_ms": now.Sub(d.CommandedAt).Milliseconds()},
	})
}

func (r *ReconcilerService) escalate(ctx context.Context, zone models.ZoneID, d models.DesiredState, o models.ObservedState, now time.Time) {
	if last, ok := r.alerted[zone]; ok && last.Equal(d.CommandedAt) {
		return
	}
	r.alerted[zone] = d.CommandedAt
	r.alerts.Critical(ctx, models.ZoneEvent{
		EventID:    uuid.NewString(),
		OccurredAt: now,
		Zone:       zone,
		Type:       models.EventTransitionTimeout,
		Description: fmt.Sprintf("Zone %d expected %s but hardware reports %s after %s",
			zone, activeWord(d.ExpectedActive), activeWord(o.Active), r.timeout),
		Metadata: map[string]any{
			"expected_active": d.ExpectedActive,
			"observed_active": o.Active,
			"commanded_at":    d.CommandedAt.UTC(),
		},
	})
}

// trackDrift journals one WARN per drift episode; the episode ends on the first non-drift tick.
func (r *ReconcilerService) trackDrift(ctx context.Context, zone models.ZoneID, d models.DesiredState, o models.ObservedState, drift bool, now time.Time) {
	if !drift {
		delete(r.drifting, zone)
		return
	}
	if r.drifting[zone] {
		return
	}
	r.drifting[zone] = true
	r.log.Warnw("zone_drift", "zone", zone, "expected_active", d.ExpectedActive, "observed_active", o.Active)
	r.journal(ctx, models.ZoneEvent{
		OccurredAt:  now,
		Zone:        zone,
		Type:        models.EventDrift,
		Level:       models.LevelWarn,
		Description: fmt.Sprintf("Zone %d is %s without a command", zone, activeWord(o.Active)),
	})
}

// record stores st on the board and reports whether it differs from the previous entry.
func (r *ReconcilerService) record(st models.ZoneStatus) bool {
	prev, seen := r.board[st.Zone]
	r.board[st.Zone] = st
	r.metrics.SetZoneState(st.Zone, st.State)

	if seen && prev.State == st.State && prev.ObservedActive == st.ObservedActive &&
		prev.ExpectedActive == st.ExpectedActive && prev.InFlight == st.InFlight {
		return false
	}
	r.log.Infow("zone_state", "zone", st.Zone, "state", st.State, "expected_active", st.ExpectedActive, "observed_active", st.ObservedActive)
	return true
}

// publishZone runs without the board lock; a stalled broker only delays this tick.
func (r *ReconcilerService) publishZone(ctx context.Context, st models.ZoneStatus) {
	ctx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()
	if err := publisher.PublishZone(ctx, r.publish, st); err != nil {
		r.log.Warnw("zone_publish_failed", "zone", st.Zone, "err", err)
	}
}

func (r *ReconcilerService) journal(ctx context.Context, e models.ZoneEvent) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if err := r.events.Append(ctx, e); err != nil {
		r.log.Warnw("journal_append_failed", "type", e.Type, "zone", e.Zone, "err", err)
	}
}

func activeWord(active bool) string {
	if active {
		return "on"
	}
	return "off"
}
