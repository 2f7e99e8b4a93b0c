package backend

import (
	"fmt"
	"strings"

	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/schedule"

	"github.com/tidwall/gjson"
)

// ParseSchedule decodes the controller's schedule list. Field names vary between
// controller firmware versions, so each field is probed under its known aliases.
func ParseSchedule(body []byte) ([]models.ScheduleSpec, error) {
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("schedule: %w", ErrMalformedResponse)
	}

	var out []models.ScheduleSpec
	for _, item := range root.Array() {
		id := first(item, "zone_id", "zone", "id").Int()
		if !models.ZoneID(id).Valid() {
			continue
		}
		spec := models.ScheduleSpec{
			Zone:   models.ZoneID(id),
			Period: schedule.ParsePeriod(first(item, "period", "type").String()),
			Cycles: int(item.Get("cycles").Int()),
			Mode:   parseMode(item.Get("mode")),
		}
		for _, t := range item.Get("times").Array() {
			slot := models.TimeSlot{
				StartTimeCode: strings.TrimSpace(first(t, "start_time", "start", "time").String()),
				Duration:      strings.TrimSpace(t.Get("duration").String()),
			}
			if slot.StartTimeCode == "" {
				continue
			}
			spec.Times = append(spec.Times, slot)
		}
		out = append(out, spec)
	}
	return out, nil
}

func parseMode(r gjson.Result) models.ScheduleMode {
	switch {
	case !r.Exists():
		return models.ModeActive
	case r.Type == gjson.True, r.Type == gjson.False:
		if r.Bool() {
			return models.ModeActive
		}
		return models.ModeDisabled
	case strings.EqualFold(r.String(), string(models.ModeDisabled)):
		return models.ModeDisabled
	default:
		return models.ModeActive
	}
}

func first(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
