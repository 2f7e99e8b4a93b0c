package service

import (
	"context"
	"time"

	"irrigation_monitor/internal/logger"
	"irrigation_monitor/internal/metrics"
	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/repository"
)

// Observed-state sources, also the metric label values.
const (
	SourceHardware = "zones_status"
	SourceTimers   = "scheduler_timers"
)

// ObservedSource reads zone state from the controller.
type ObservedSource interface {
	ZoneStatus(ctx context.Context) (map[models.ZoneID]models.ObservedState, error)
	Timers(ctx context.Context) (map[models.ZoneID]models.ObservedState, error)
}

// PollerService refreshes observed state on a fixed interval and hands it to the reconciler.
type PollerService struct {
	source     ObservedSource
	observed   repository.ObservedStateRepo
	reconciler *ReconcilerService
	metrics    metrics.Recorder
	log        *logger.Logger
	zones      int
	now        func() time.Time
}

func NewPollerService(source ObservedSource, observed repository.ObservedStateRepo, reconciler *ReconcilerService, opts Options) *PollerService {
	opts = opts.withDefaults()
	return &PollerService{
		source:     source,
		observed:   observed,
		reconciler: reconciler,
		metrics:    opts.Metrics,
		log:        opts.Log,
		zones:      opts.Zones,
		now:        time.Now,
	}
}

// Run ticks once immediately and then every interval until ctx is canceled.
// Ticks run on this goroutine, so they never overlap.
func (p *PollerService) Run(ctx context.Context, interval time.Duration) {
	p.Tick(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Tick(ctx)
		}
	}
}

// Tick polls both sources, stores the merged view and reconciles it.
// When every source fails the previous observation and board are kept.
func (p *PollerService) Tick(ctx context.Context) {
	start := p.now()
	merged, failed := p.poll(ctx)
	p.metrics.ObservePoll(p.now().Sub(start).Seconds())

	if failed == 2 {
		p.log.Warnw("poll_skipped", "reason", "all sources failed")
		return
	}
	if ctx.Err() != nil {
		return
	}

	for z := 1; z <= p.zones; z++ {
		if _, ok := merged[models.ZoneID(z)]; !ok {
			merged[models.ZoneID(z)] = models.ObservedState{}
		}
	}

	now := p.now()
	p.observed.Replace(merged, now)
	p.reconciler.Reconcile(ctx, merged, now)
}

// Poll returns the merged observed state. A failing source contributes nothing; Poll itself never fails.
func (p *PollerService) Poll(ctx context.Context) map[models.ZoneID]models.ObservedState {
	merged, _ := p.poll(ctx)
	return merged
}

func (p *PollerService) poll(ctx context.Context) (map[models.ZoneID]models.ObservedState, int) {
	failed := 0

	hardware, err := p.source.ZoneStatus(ctx)
	if err != nil {
		failed++
		p.sourceFailed(SourceHardware, err)
		hardware = nil
	}
	timers, err := p.source.Timers(ctx)
	if err != nil {
		failed++
		p.sourceFailed(SourceTimers, err)
		timers = nil
	}

	return mergeObserved(hardware, timers), failed
}

func (p *PollerService) sourceFailed(source string, err error) {
	p.metrics.PollSourceFailed(source)
	p.log.Warnw("poll_source_failed", "source", source, "err", err)
}

// mergeObserved prefers an active manual timer over the hardware report.
func mergeObserved(hardware, timers map[models.ZoneID]models.ObservedState) map[models.ZoneID]models.ObservedState {
	out := make(map[models.ZoneID]models.ObservedState, len(hardware)+len(timers))
	for z, o := range hardware {
		out[z] = o
	}
	for z, t := range timers {
		if t.Active {
			out[z] = models.ObservedState{Active: true, RemainingSeconds: t.RemainingSeconds}
			continue
		}
		if _, ok := out[z]; !ok {
			out[z] = models.ObservedState{}
		}
	}
	return out
}
