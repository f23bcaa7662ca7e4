package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var durationRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-zA-Z]*)$`)

// ParseDuration splits a duration string like "5d" into value and unit.
// An empty unit defaults to "d". Returns false on malformed input.
func ParseDuration(s string) (float64, string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", false
	}
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", false
	}
	unit := m[2]
	if unit == "" {
		unit = "d"
	}
	return v, unit, true
}

// AdjustDuration shifts a duration by delta units: "5d"+1 → "6d". An empty
// duration incremented becomes "1d". Malformed input is returned unchanged.
func AdjustDuration(duration string, delta int) string {
	v, unit, ok := ParseDuration(duration)
	if !ok {
		if strings.TrimSpace(duration) == "" && delta > 0 {
			return "1d"
		}
		return duration
	}
	nv := v + float64(delta)
	if nv < 0 {
		nv = 0
	}
	if nv == float64(int(nv)) {
		return fmt.Sprintf("%d%s", int(nv), unit)
	}
	return fmt.Sprintf("%g%s", nv, unit)
}

// DurationToDays converts a duration string to whole days: "5d"→5, "2w"→14,
// "8h"→1. Returns false on malformed input.
func DurationToDays(duration string) (int, bool) {
	v, unit, ok := ParseDuration(duration)
	if !ok {
		return 0, false
	}
	switch strings.ToLower(unit) {
	case "d", "day", "days":
		return maxInt(1, int(v)), true
	case "w", "week", "weeks":
		return maxInt(1, int(v*7)), true
	case "h", "hour", "hours":
		if v <= 0 {
			return 0, true
		}
		return maxInt(1, int(v/8)), true
	case "m", "month", "months":
		return maxInt(1, int(v*30)), true
	}
	return maxInt(1, int(v)), true
}

// DaysToDuration renders a day count as a duration string: 5 → "5d".
func DaysToDuration(days int) string {
	if days <= 0 {
		return "0d"
	}
	return fmt.Sprintf("%dd", days)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
