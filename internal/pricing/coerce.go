// Package pricing holds the pure price arithmetic of the tracker: coercion of
// loose upstream numbers, normalization of paid amounts to comparable unit
// prices, and the drop decision. Nothing here does I/O.
package pricing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Round2 rounds v to currency minor-unit precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// AsFloat coerces a loosely typed upstream value into a float64.
// Anything that is not a finite number, or a string holding one, yields def.
func AsFloat(v any, def float64) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return def
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// AsInt coerces a loosely typed upstream value into an int.
// Floats are truncated toward zero; anything unparseable yields def.
func AsInt(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return def
		}
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		f, err := n.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return def
		}
		return int(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return def
		}
		return i
	default:
		return def
	}
}
