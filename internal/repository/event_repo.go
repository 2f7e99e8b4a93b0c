package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"irrigation_monitor/internal/models"

	"github.com/google/uuid"
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

const (
	insertEventSQL = `
		INSERT INTO zone_events (id, occurred_at, zone_id, type, level, message, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	selectEventsSQL = `SELECT id, occurred_at, zone_id, type, level, message, meta FROM zone_events`

	sqliteTimestampLayout = "2006-01-02 15:04:05"
)

// Append inserts a new event. If EventID, OccurredAt or Level are empty, they're set.
func (r *EventSQLite) Append(ctx context.Context, e models.ZoneEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}
	if e.Level == "" {
		e.Level = models.LevelInfo
	}

	var metaPtr *string
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.EventID,
		e.OccurredAt.Format(sqliteTimestampLayout),
		int(e.Zone),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		strings.ToUpper(e.Level),
		e.Description,
		metaPtr,
	)
	return err
}

// List returns events matching q, oldest first.
func (r *EventSQLite) List(ctx context.Context, q EventQuery) ([]models.ZoneEvent, error) {
	var (
		conds []string
		args  []any
	)

	if !q.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, q.From.UTC().Format(sqliteTimestampLayout))
	}
	if !q.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, q.To.UTC().Format(sqliteTimestampLayout))
	}
	if typ := strings.ToUpper(strings.TrimSpace(q.Type)); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}
	if q.Zone > 0 {
		conds = append(conds, "zone_id = ?")
		args = append(args, int(q.Zone))
	}

	query := selectEventsSQL
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ZoneEvent, 0, 64)
	for rows.Next() {
		var (
			ev         models.ZoneEvent
			occurredAt string
			zone       int
			metaStr    sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &occurredAt, &zone, &ev.Type, &ev.Level, &ev.Description, &metaStr); err != nil {
			return nil, err
		}
		ev.Zone = models.ZoneID(zone)
		ev.OccurredAt = parseTimestamp(occurredAt)

		if metaStr.Valid && metaStr.String != "" {
			var v any
			if err := json.Unmarshal([]byte(metaStr.String), &v); err == nil {
				ev.Metadata = v
			} else {
				ev.Metadata = metaStr.String // keep raw if malformed
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseTimestamp accepts the stored layout and RFC3339, returning UTC.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{sqliteTimestampLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
