package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/repository"
)

// LogFilter supports journal filtering by time range, type and zone.
type LogFilter struct {
	From time.Time     // inclusive; zero means no lower bound
	To   time.Time     // inclusive; zero means no upper bound
	Type string        // "", "COMMAND_START", "TRANSITION_TIMEOUT", ...
	Zone models.ZoneID // 0 means every zone
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errInvalidZoneQuery = errors.New("invalid zone filter: must be >= 1")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (repository.EventQuery, error) {
	q := repository.EventQuery{
		From: normalizeToUTC(f.From),
		To:   normalizeToUTC(f.To),
		Type: normalizeEventType(f.Type),
		Zone: f.Zone,
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return repository.EventQuery{}, errInvalidTimeRange
	}
	if q.Zone < 0 {
		return repository.EventQuery{}, errInvalidZoneQuery
	}
	return q, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ZoneEvent, error) {
	q, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}
