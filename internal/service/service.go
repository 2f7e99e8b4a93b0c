package service

import (
	"context"
	"time"

	"irrigation_monitor/internal/backend"
	"irrigation_monitor/internal/logger"
	"irrigation_monitor/internal/metrics"
	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/publisher"
	"irrigation_monitor/internal/repository"
)

type Authorization interface {
	ParseToken(accessToken string) (string, error)
}

// Timer issues manual start/stop commands for a zone.
type Timer interface {
	StartTimer(ctx context.Context, zone models.ZoneID, seconds int) (models.Command, error)
	StopTimer(ctx context.Context, zone models.ZoneID) (models.Command, error)
}

// Monitoring exposes the reconciled status board.
type Monitoring interface {
	GetZones(ctx context.Context) []models.ZoneStatus
	GetZone(ctx context.Context, zone models.ZoneID) (models.ZoneStatus, error)
}

// Scheduling answers when each zone runs next.
type Scheduling interface {
	NextRuns(ctx context.Context) ([]models.ZoneNextRun, error)
	Refresh(ctx context.Context) error
	RunRefresh(ctx context.Context, interval time.Duration)
}

// EventLog exposes the local journal with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ZoneEvent, error)
}

// Poller runs the observation loop. Stop via context cancellation in main() for graceful shutdown.
type Poller interface {
	Run(ctx context.Context, interval time.Duration)
}

// Backend is everything the services need from the controller API; *backend.Client satisfies it.
type Backend interface {
	ObservedSource
	TimerBackend
	ScheduleBackend
	LogSink
}

var _ Backend = (*backend.Client)(nil)

// Options carries the runtime settings services are built with.
type Options struct {
	Zones            int
	ReconcileTimeout time.Duration
	Location         *time.Location
	Lat, Lon         float64
	SigningKey       string
	CommandTimeout   time.Duration
	// Root is cancelled on shutdown. Commands interrupted by it stay pending.
	Root context.Context

	Log     *logger.Logger
	Metrics metrics.Recorder
	Publish publisher.Publisher
}

func (o Options) withDefaults() Options {
	if o.ReconcileTimeout <= 0 {
		o.ReconcileTimeout = DefaultReconcileTimeout
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Log == nil {
		o.Log = logger.Nop()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop{}
	}
	if o.Publish == nil {
		o.Publish = publisher.EmptyPublisher
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	if o.Root == nil {
		o.Root = context.Background()
	}
	return o
}

// Service aggregates all sub-services.
type Service struct {
	Timer
	Monitoring
	Scheduling
	EventLog
	Poller
	Authorization
}

// NewService wires the repository layer and the controller client into concrete services.
func NewService(repos *repository.Repository, be Backend, opts Options) *Service {
	opts = opts.withDefaults()

	alerts := NewAlerter(repos.Events, be, opts.Metrics, opts.Log)
	reconciler := NewReconcilerService(repos.Desired, repos.Events, alerts, opts)
	timers := NewTimerService(be, repos.Desired, repos.Events, opts.Metrics, opts.Log)
	timers.root = opts.Root
	timers.sendTimeout = opts.CommandTimeout

	return &Service{
		Timer:         timers,
		Monitoring:    NewMonitoringService(reconciler),
		Scheduling:    NewScheduleService(be, repos.Cache, repos.Events, opts),
		EventLog:      NewEventLogService(repos.Events),
		Poller:        NewPollerService(be, repos.Observed, reconciler, opts),
		Authorization: NewAuthService(opts.SigningKey),
	}
}
