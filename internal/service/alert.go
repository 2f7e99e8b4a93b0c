package service

import (
	"context"
	"time"

	"irrigation_monitor/internal/backend"
	"irrigation_monitor/internal/logger"
	"irrigation_monitor/internal/metrics"
	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/repository"

	"github.com/google/uuid"
)

const sinkTimeout = 5 * time.Second

// LogSink is the controller's remote log endpoint.
type LogSink interface {
	PostLog(ctx context.Context, e backend.LogEntry) error
}

// Alerter raises CRITICAL alerts: error log, journal entry, remote log sink and counter.
type Alerter struct {
	events  repository.EventRepo
	sink    LogSink
	metrics metrics.Recorder
	log     *logger.Logger

	// dispatch runs the remote post; goroutine by default, inline in tests.
	dispatch func(func())
}

func NewAlerter(events repository.EventRepo, sink LogSink, rec metrics.Recorder, log *logger.Logger) *Alerter {
	return &Alerter{
		events:   events,
		sink:     sink,
		metrics:  rec,
		log:      log,
		dispatch: func(f func()) { go f() },
	}
}

// Critical records e at CRITICAL level. Sink failures are swallowed.
func (a *Alerter) Critical(ctx context.Context, e models.ZoneEvent) {
	e.Level = models.LevelCritical
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}

	a.log.Errorw("zone_alert",
		"level", models.LevelCritical,
		"zone", e.Zone,
		"type", e.Type,
		"message", e.Description,
	)
	a.metrics.CriticalAlert()
	if err := a.events.Append(ctx, e); err != nil {
		a.log.Warnw("journal_append_failed", "type", e.Type, "err", err)
	}

	if a.sink == nil {
		return
	}
	entry := backend.LogEntry{Level: models.LevelCritical, Message: e.Description, Timestamp: e.OccurredAt}
	a.dispatch(func() {
		sctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		if err := a.sink.PostLog(sctx, entry); err != nil {
			a.log.Debugw("log_sink_failed", "err", err)
		}
	})
}
