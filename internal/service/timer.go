package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"irrigation_monitor/internal/logger"
	"irrigation_monitor/internal/metrics"
	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/repository"

	"github.com/google/uuid"
)

// Command actions, also the metric label values.
const (
	ActionStart = "start"
	ActionStop  = "stop"
)

var (
	ErrInvalidZone         = errors.New("zone id must be a positive integer")
	ErrDurationFormat      = errors.New("duration must be HH:mm:ss or up to six digits HHMMSS")
	ErrHoursRange          = errors.New("hours must be between 0 and 23")
	ErrMinutesRange        = errors.New("minutes must be between 0 and 59")
	ErrSecondsRange        = errors.New("seconds must be between 0 and 59")
	ErrNonPositiveDuration = errors.New("duration must be greater than zero")
)

const compactDurationLen = 6

// ParseDuration converts "HH:mm:ss", or a compact numeric form left-padded to HHMMSS, into seconds.
// Out-of-range components are rejected, never clamped.
func ParseDuration(input string) (int, error) {
	s := strings.TrimSpace(input)
	var parts []string
	switch {
	case strings.Contains(s, ":"):
		parts = strings.Split(s, ":")
		if len(parts) != 3 {
			return 0, ErrDurationFormat
		}
		for _, p := range parts {
			if len(p) == 0 || len(p) > 2 || !allDigits(p) {
				return 0, ErrDurationFormat
			}
		}
	case len(s) > 0 && len(s) <= compactDurationLen && allDigits(s):
		s = strings.Repeat("0", compactDurationLen-len(s)) + s
		parts = []string{s[0:2], s[2:4], s[4:6]}
	default:
		return 0, ErrDurationFormat
	}

	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	sec, _ := strconv.Atoi(parts[2])
	switch {
	case h > 23:
		return 0, ErrHoursRange
	case m > 59:
		return 0, ErrMinutesRange
	case sec > 59:
		return 0, ErrSecondsRange
	}
	total := h*3600 + m*60 + sec
	if total <= 0 {
		return 0, ErrNonPositiveDuration
	}
	return total, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// TimerBackend executes manual timer requests on the controller.
type TimerBackend interface {
	StartManualTimer(ctx context.Context, zone models.ZoneID, seconds int) error
	StopManualTimer(ctx context.Context, zone models.ZoneID) error
}

// TimerService applies commands optimistically to the desired store and rolls them back on failure.
type TimerService struct {
	backend TimerBackend
	desired repository.DesiredStateRepo
	events  repository.EventRepo
	metrics metrics.Recorder
	log     *logger.Logger
	now     func() time.Time

	// root ends with the process; only its cancellation abandons a command.
	root        context.Context
	sendTimeout time.Duration
}

// DefaultCommandTimeout bounds one controller round trip for a start or stop.
const DefaultCommandTimeout = 15 * time.Second

func NewTimerService(be TimerBackend, desired repository.DesiredStateRepo, events repository.EventRepo, rec metrics.Recorder, log *logger.Logger) *TimerService {
	return &TimerService{
		backend:     be,
		desired:     desired,
		events:      events,
		metrics:     rec,
		log:         log,
		now:         time.Now,
		root:        context.Background(),
		sendTimeout: DefaultCommandTimeout,
	}
}

// StartTimer runs zone for seconds.
func (s *TimerService) StartTimer(ctx context.Context, zone models.ZoneID, seconds int) (models.Command, error) {
	if seconds <= 0 {
		return models.Command{}, ErrNonPositiveDuration
	}
	return s.issue(ctx, zone, true, seconds, func(ctx context.Context) error {
		return s.backend.StartManualTimer(ctx, zone, seconds)
	})
}

// StopTimer cancels the manual timer of zone.
func (s *TimerService) StopTimer(ctx context.Context, zone models.ZoneID) (models.Command, error) {
	return s.issue(ctx, zone, false, 0, func(ctx context.Context) error {
		return s.backend.StopManualTimer(ctx, zone)
	})
}

func (s *TimerService) issue(ctx context.Context, zone models.ZoneID, target bool, seconds int, send func(context.Context) error) (models.Command, error) {
	if !zone.Valid() {
		return models.Command{}, ErrInvalidZone
	}
	action := ActionStop
	if target {
		action = ActionStart
	}

	cmd := models.Command{
		ID:       uuid.NewString(),
		Zone:     zone,
		Target:   target,
		Seconds:  seconds,
		Phase:    models.PhasePending,
		IssuedAt: s.now().UTC(),
	}
	cmd.Previous, cmd.HadPrevious = s.desired.Command(zone, target, cmd.IssuedAt)

	// A client that disconnects mid-request must not leave the command in flight.
	jctx := context.WithoutCancel(ctx)
	sendCtx, cancel := context.WithTimeout(jctx, s.sendTimeout)
	stop := context.AfterFunc(s.root, cancel)
	err := send(sendCtx)
	stop()
	cancel()

	if err != nil && s.root.Err() != nil {
		// Shutting down; the next process settles whatever the controller did.
		s.metrics.Command(action, string(models.PhasePending))
		s.log.Warnw("zone_command_abandoned", "zone", zone, "action", action, "command_id", cmd.ID, "err", err)
		return cmd, fmt.Errorf("%s zone %d: %w", action, zone, err)
	}

	if err != nil {
		restored := s.desired.Rollback(zone, cmd.IssuedAt, cmd.Previous, cmd.HadPrevious)
		cmd.Phase = models.PhaseRolledBack
		s.metrics.Command(action, string(cmd.Phase))
		s.log.Warnw("zone_command_rolled_back", "zone", zone, "action", action, "command_id", cmd.ID, "restored", restored, "err", err)
		s.journal(jctx, cmd, models.EventCommandRollback, models.LevelWarn,
			fmt.Sprintf("Zone %d %s failed: %v", zone, action, err))
		return cmd, fmt.Errorf("%s zone %d: %w", action, zone, err)
	}

	cmd.Phase = models.PhaseCommitted
	s.metrics.Command(action, string(cmd.Phase))
	s.log.Infow("zone_command", "zone", zone, "action", action, "seconds", seconds, "command_id", cmd.ID)
	typ, desc := models.EventCommandStop, fmt.Sprintf("Zone %d stopped", zone)
	if target {
		typ, desc = models.EventCommandStart, fmt.Sprintf("Zone %d started for %ds", zone, seconds)
	}
	s.journal(jctx, cmd, typ, models.LevelInfo, desc)
	return cmd, nil
}

func (s *TimerService) journal(ctx context.Context, cmd models.Command, typ, level, desc string) {
	meta := map[string]any{"command_id": cmd.ID, "phase": cmd.Phase}
	if cmd.Seconds > 0 {
		meta["seconds"] = cmd.Seconds
	}
	err := s.events.Append(ctx, models.ZoneEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  s.now().UTC(),
		Zone:        cmd.Zone,
		Type:        typ,
		Level:       level,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil {
		s.log.Warnw("journal_append_failed", "type", typ, "zone", cmd.Zone, "err", err)
	}
}
