package service

import (
	"context"
	"sync"
	"time"

	"irrigation_monitor/internal/backend"
	"irrigation_monitor/internal/logger"
	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/repository"
)

// fakeEventRepo captures journal writes and List queries.
type fakeEventRepo struct {
	mu sync.Mutex

	appended  []models.ZoneEvent
	appendErr error

	gotQuery repository.EventQuery
	events   []models.ZoneEvent
	err      error
	calls    int
}

func (f *fakeEventRepo) Append(ctx context.Context, e models.ZoneEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, e)
	return f.appendErr
}

func (f *fakeEventRepo) List(ctx context.Context, q repository.EventQuery) ([]models.ZoneEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotQuery = q
	return f.events, f.err
}

func (f *fakeEventRepo) ofType(typ string) []models.ZoneEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ZoneEvent
	for _, e := range f.appended {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// fakeBackend implements Backend with overridable funcs.
type fakeBackend struct {
	mu sync.Mutex

	zoneStatusFn func(ctx context.Context) (map[models.ZoneID]models.ObservedState, error)
	timersFn     func(ctx context.Context) (map[models.ZoneID]models.ObservedState, error)
	startFn      func(ctx context.Context, zone models.ZoneID, seconds int) error
	stopFn       func(ctx context.Context, zone models.ZoneID) error
	scheduleFn   func(ctx context.Context) ([]models.ScheduleSpec, error)
	resolveFn    func(ctx context.Context, req backend.ResolveRequest) ([]string, error)

	resolveCalls []backend.ResolveRequest
	logs         []backend.LogEntry
	logErr       error
}

func (f *fakeBackend) ZoneStatus(ctx context.Context) (map[models.ZoneID]models.ObservedState, error) {
	if f.zoneStatusFn == nil {
		return map[models.ZoneID]models.ObservedState{}, nil
	}
	return f.zoneStatusFn(ctx)
}

func (f *fakeBackend) Timers(ctx context.Context) (map[models.ZoneID]models.ObservedState, error) {
	if f.timersFn == nil {
		return map[models.ZoneID]models.ObservedState{}, nil
	}
	return f.timersFn(ctx)
}

func (f *fakeBackend) StartManualTimer(ctx context.Context, zone models.ZoneID, seconds int) error {
	if f.startFn == nil {
		return nil
	}
	return f.startFn(ctx, zone, seconds)
}

func (f *fakeBackend) StopManualTimer(ctx context.Context, zone models.ZoneID) error {
	if f.stopFn == nil {
		return nil
	}
	return f.stopFn(ctx, zone)
}

func (f *fakeBackend) Schedule(ctx context.Context) ([]models.ScheduleSpec, error) {
	if f.scheduleFn == nil {
		return nil, nil
	}
	return f.scheduleFn(ctx)
}

func (f *fakeBackend) ResolveTimes(ctx context.Context, req backend.ResolveRequest) ([]string, error) {
	f.mu.Lock()
	f.resolveCalls = append(f.resolveCalls, req)
	f.mu.Unlock()
	if f.resolveFn == nil {
		out := make([]string, len(req.Codes))
		for i := range out {
			out[i] = models.Unresolved
		}
		return out, nil
	}
	return f.resolveFn(ctx, req)
}

func (f *fakeBackend) PostLog(ctx context.Context, e backend.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, e)
	return f.logErr
}

// fakeRecorder counts metric calls.
type fakeRecorder struct {
	mu             sync.Mutex
	states         map[models.ZoneID]models.ValidationState
	sourceFailures map[string]int
	polls          int
	critical       int
	commands       map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		states:         map[models.ZoneID]models.ValidationState{},
		sourceFailures: map[string]int{},
		commands:       map[string]int{},
	}
}

func (r *fakeRecorder) SetZoneState(zone models.ZoneID, s models.ValidationState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[zone] = s
}

func (r *fakeRecorder) PollSourceFailed(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sourceFailures[source]++
}

func (r *fakeRecorder) ObservePoll(float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls++
}

func (r *fakeRecorder) CriticalAlert() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.critical++
}

func (r *fakeRecorder) Command(action, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[action+"/"+outcome]++
}

// fakeCacheRepo keeps the resolved cache in memory.
type fakeCacheRepo struct {
	saved   []models.ResolvedTimeCache
	stored  models.ResolvedTimeCache
	loadErr error
	saveErr error
}

func (f *fakeCacheRepo) Save(ctx context.Context, c models.ResolvedTimeCache) error {
	f.saved = append(f.saved, c)
	if f.saveErr == nil {
		f.stored = c
	}
	return f.saveErr
}

func (f *fakeCacheRepo) Load(ctx context.Context) (models.ResolvedTimeCache, error) {
	return f.stored, f.loadErr
}

// published records MQTT-style publications.
type published struct {
	mu     sync.Mutex
	topics []string
}

func (p *published) publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *published) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics)
}

// reconcilerFixture wires a reconciler over real in-memory stores.
type reconcilerFixture struct {
	desired *repository.DesiredMemory
	events  *fakeEventRepo
	backend *fakeBackend
	metrics *fakeRecorder
	pub     *published
	r       *ReconcilerService
}

func newReconcilerFixture(zones int) *reconcilerFixture {
	f := &reconcilerFixture{
		desired: repository.NewDesiredMemory(),
		events:  &fakeEventRepo{},
		backend: &fakeBackend{},
		metrics: newFakeRecorder(),
		pub:     &published{},
	}
	log := logger.Nop()
	alerts := NewAlerter(f.events, f.backend, f.metrics, log)
	alerts.dispatch = func(fn func()) { fn() }
	f.r = NewReconcilerService(f.desired, f.events, alerts, Options{
		Zones:            zones,
		ReconcileTimeout: DefaultReconcileTimeout,
		Log:              log,
		Metrics:          f.metrics,
		Publish:          f.pub.publish,
	})
	return f
}

func obs(active bool) models.ObservedState {
	return models.ObservedState{Active: active}
}

var t0 = time.Date(2025, time.June, 12, 7, 0, 0, 0, time.UTC)
