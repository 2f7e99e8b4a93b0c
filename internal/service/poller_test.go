package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"irrigation_monitor/internal/logger"
	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/repository"
)

type pollerFixture struct {
	*reconcilerFixture
	observed *repository.ObservedMemory
	p        *PollerService
	clock    time.Time
}

func newPollerFixture(zones int) *pollerFixture {
	rf := newReconcilerFixture(zones)
	f := &pollerFixture{reconcilerFixture: rf, observed: repository.NewObservedMemory(), clock: t0}
	f.p = NewPollerService(rf.backend, f.observed, rf.r, Options{Zones: zones, Log: logger.Nop(), Metrics: rf.metrics})
	f.p.now = func() time.Time { return f.clock }
	return f
}

func stateMap(kv map[models.ZoneID]models.ObservedState) func(context.Context) (map[models.ZoneID]models.ObservedState, error) {
	return func(context.Context) (map[models.ZoneID]models.ObservedState, error) { return kv, nil }
}

func failing(context.Context) (map[models.ZoneID]models.ObservedState, error) {
	return nil, errors.New("connection refused")
}

func TestMergeObserved(t *testing.T) {
	cases := []struct {
		name     string
		hardware map[models.ZoneID]models.ObservedState
		timers   map[models.ZoneID]models.ObservedState
		want     map[models.ZoneID]models.ObservedState
	}{
		{
			name:     "active timer wins",
			hardware: map[models.ZoneID]models.ObservedState{1: {Active: false}},
			timers:   map[models.ZoneID]models.ObservedState{1: {Active: true, RemainingSeconds: 90}},
			want:     map[models.ZoneID]models.ObservedState{1: {Active: true, RemainingSeconds: 90}},
		},
		{
			name:     "inactive timer defers to hardware",
			hardware: map[models.ZoneID]models.ObservedState{2: {Active: true, RemainingSeconds: 40}},
			timers:   map[models.ZoneID]models.ObservedState{2: {Active: false}},
			want:     map[models.ZoneID]models.ObservedState{2: {Active: true, RemainingSeconds: 40}},
		},
		{
			name:   "timer-only zone is known",
			timers: map[models.ZoneID]models.ObservedState{3: {Active: false}},
			want:   map[models.ZoneID]models.ObservedState{3: {}},
		},
		{
			name: "both empty",
			want: map[models.ZoneID]models.ObservedState{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mergeObserved(tc.hardware, tc.timers)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestPoller_Tick_OneSourceFailing(t *testing.T) {
	f := newPollerFixture(2)
	f.backend.zoneStatusFn = failing
	f.backend.timersFn = stateMap(map[models.ZoneID]models.ObservedState{1: {Active: true, RemainingSeconds: 60}})

	f.p.Tick(context.Background())

	got, at := f.observed.Snapshot()
	if !at.Equal(t0) {
		t.Fatalf("observed timestamp: %v", at)
	}
	want := map[models.ZoneID]models.ObservedState{1: {Active: true, RemainingSeconds: 60}, 2: {}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("observed: got %+v, want %+v", got, want)
	}
	if f.metrics.sourceFailures[SourceHardware] != 1 || f.metrics.sourceFailures[SourceTimers] != 0 {
		t.Fatalf("source failures: %+v", f.metrics.sourceFailures)
	}
	if st, ok := f.r.Status(1); !ok || st.State != models.StateGreen {
		t.Fatalf("zone 1: %+v", st)
	}
}

func TestPoller_Tick_AllSourcesFailingKeepsPreviousState(t *testing.T) {
	f := newPollerFixture(1)
	f.backend.zoneStatusFn = stateMap(map[models.ZoneID]models.ObservedState{1: {Active: true}})
	f.p.Tick(context.Background())

	f.backend.zoneStatusFn = failing
	f.backend.timersFn = failing
	f.clock = t0.Add(5 * time.Second)
	f.p.Tick(context.Background())

	got, at := f.observed.Snapshot()
	if !at.Equal(t0) || !got[1].Active {
		t.Fatalf("previous observation should survive, got %+v at %v", got, at)
	}
	st, _ := f.r.Status(1)
	if st.State != models.StateGreen || !st.UpdatedAt.Equal(t0) {
		t.Fatalf("board should be untouched, got %+v", st)
	}
	if f.metrics.polls != 2 {
		t.Fatalf("both ticks are timed, got %d", f.metrics.polls)
	}
}

func TestPoller_PollNeverFails(t *testing.T) {
	f := newPollerFixture(0)
	f.backend.zoneStatusFn = failing
	f.backend.timersFn = failing

	if got := f.p.Poll(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty map, got %+v", got)
	}
}

func TestPoller_Run_TicksImmediatelyAndStops(t *testing.T) {
	f := newPollerFixture(0)
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	f.backend.zoneStatusFn = func(context.Context) (map[models.ZoneID]models.ObservedState, error) {
		calls++
		cancel()
		return map[models.ZoneID]models.ObservedState{}, nil
	}

	done := make(chan struct{})
	go func() {
		f.p.Run(ctx, time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if calls != 1 {
		t.Fatalf("expected the immediate tick only, got %d", calls)
	}
}
