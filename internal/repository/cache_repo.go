package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"irrigation_monitor/internal/models"
)

type CacheSQLite struct {
	db *sql.DB
}

func NewCacheSQLite(db *sql.DB) *CacheSQLite {
	return &CacheSQLite{db: db}
}

const (
	resolvedCacheRowID = 1

	upsertCacheSQL = `
		INSERT INTO resolved_cache (id, day, fingerprint, zones, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			day=excluded.day,
			fingerprint=excluded.fingerprint,
			zones=excluded.zones,
			updated_at=excluded.updated_at
	`

	selectCacheSQL = `
		SELECT day, fingerprint, zones, updated_at
		FROM resolved_cache WHERE id=?
	`
)

// marshalZones converts the per-zone code table to a JSON string.
func marshalZones(zones map[models.ZoneID]models.ResolvedTimes) (string, error) {
	if zones == nil {
		zones = map[models.ZoneID]models.ResolvedTimes{}
	}
	b, err := json.Marshal(zones)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalZones(s string) (map[models.ZoneID]models.ResolvedTimes, error) {
	zones := map[models.ZoneID]models.ResolvedTimes{}
	if s == "" {
		return zones, nil
	}
	if err := json.Unmarshal([]byte(s), &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// Save replaces the single cached row.
func (r *CacheSQLite) Save(ctx context.Context, c models.ResolvedTimeCache) error {
	zonesJSON, err := marshalZones(c.Zones)
	if err != nil {
		return err
	}

	ts := c.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	_, err = r.db.ExecContext(ctx, upsertCacheSQL,
		resolvedCacheRowID,
		c.Day,
		c.Fingerprint,
		zonesJSON,
		ts,
	)
	return err
}

// Load returns the cached row, or a zero cache if none was ever saved.
func (r *CacheSQLite) Load(ctx context.Context) (models.ResolvedTimeCache, error) {
	row := r.db.QueryRowContext(ctx, selectCacheSQL, resolvedCacheRowID)

	var (
		c         models.ResolvedTimeCache
		zonesJSON string
	)
	if err := row.Scan(&c.Day, &c.Fingerprint, &zonesJSON, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ResolvedTimeCache{}, nil
		}
		return models.ResolvedTimeCache{}, err
	}

	zones, err := unmarshalZones(zonesJSON)
	if err != nil {
		return models.ResolvedTimeCache{}, err
	}
	c.Zones = zones
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}
