package pricing

import (
	"strings"
	"time"
)

// Sales units that are priced per night of the sailing.
const (
	UnitPerNight = "PER_NIGHT"
	UnitPerDay   = "PER_DAY"
)

// Normalize converts a raw paid amount into a comparable per-stay,
// per-passenger unit price. Per-night and per-day amounts are divided by the
// number of nights; amounts covering several units are divided by quantity.
// The result is rounded to two decimals.
func Normalize(raw float64, salesUnit string, quantity, nights int) float64 {
	value := raw
	if isNightly(salesUnit) && nights > 0 {
		value /= float64(nights)
	}
	if quantity > 1 {
		value /= float64(quantity)
	}
	return Round2(value)
}

func isNightly(unit string) bool {
	switch strings.ToUpper(strings.TrimSpace(unit)) {
	case UnitPerNight, UnitPerDay:
		return true
	}
	return false
}

// EstimateNights derives the length of a sailing.
//
// explicit holds the raw night/duration fields in priority order; the first
// positive one wins. Otherwise the day difference between start and end is
// used when end is after start (minimum 1). Otherwise the stay is one night.
func EstimateNights(explicit []any, start, end string) int {
	for _, v := range explicit {
		if n := AsInt(v, 0); n > 0 {
			return n
		}
	}

	s, okStart := parseDay(start)
	e, okEnd := parseDay(end)
	if okStart && okEnd && e.After(s) {
		return max(int(e.Sub(s).Hours()/24), 1)
	}
	return 1
}

// parseDay accepts the ISO forms seen upstream: "2006-01-02" (possibly with a
// time suffix) and the compact "20060102".
func parseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		if t, err := time.Parse(time.DateOnly, s[:10]); err == nil {
			return t, true
		}
	}
	if len(s) >= 8 {
		if t, err := time.Parse("20060102", s[:8]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
