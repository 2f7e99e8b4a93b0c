package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"irrigation_monitor/internal/models"
)

// Placeholder is shown when no start time of a zone resolves to a clock time.
const Placeholder = "..."

const legacyCodeLen = 6 // HHMMSS

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, bool) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || hh == "" || mm == "" || len(hh) > 2 || len(mm) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ResolveLocal turns literal codes into "HH:MM" without the time service.
// Legacy HHMMSS codes drop their seconds. Symbolic codes return false.
func ResolveLocal(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if m, ok := ParseClock(code); ok {
		return FormatClock(m), true
	}
	if len(code) == legacyCodeLen && isDigits(code) {
		if m, ok := ParseClock(code[0:2] + ":" + code[2:4]); ok {
			return FormatClock(m), true
		}
	}
	return "", false
}

// IsSymbolic reports whether code needs the external time-resolution service.
func IsSymbolic(code string) bool {
	if strings.TrimSpace(code) == "" {
		return false
	}
	_, ok := ResolveLocal(code)
	return !ok
}

// SymbolicCodes lists the distinct codes of spec that need external resolution, in slot order.
func SymbolicCodes(spec models.ScheduleSpec) []string {
	seen := make(map[string]struct{}, len(spec.Times))
	var out []string
	for _, slot := range spec.Times {
		code := strings.TrimSpace(slot.StartTimeCode)
		if !IsSymbolic(code) {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// resolvedMinutes returns every start time of spec that resolves to a valid clock time.
func resolvedMinutes(spec models.ScheduleSpec, resolved models.ResolvedTimes) []int {
	out := make([]int, 0, len(spec.Times))
	for _, slot := range spec.Times {
		code := strings.TrimSpace(slot.StartTimeCode)
		clock, ok := ResolveLocal(code)
		if !ok {
			clock, ok = resolved[code]
		}
		if !ok {
			continue
		}
		if m, valid := ParseClock(clock); valid {
			out = append(out, m)
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
