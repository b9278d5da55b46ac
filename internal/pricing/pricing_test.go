package pricing_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/cruise-price-tracker/internal/pricing"
)

func ptr(v float64) *float64 { return &v }

func TestEvaluate_FirstObservationDrop(t *testing.T) {
	v := pricing.Evaluate(100, 80, nil, 5)

	assert.True(t, v.IsDrop)
	assert.True(t, v.Changed)
	assert.Equal(t, 20.00, v.Savings)
}

func TestEvaluate_ThresholdIsStrict(t *testing.T) {
	v := pricing.Evaluate(100, 95, nil, 5)

	assert.Equal(t, 5.00, v.Savings)
	assert.False(t, v.IsDrop, "savings equal to threshold must not alert")
}

// TestEvaluate_UnchangedPriceDoesNotRealert verifies that a second check at the
// same current price is not a drop even though savings still clear the threshold.
func TestEvaluate_UnchangedPriceDoesNotRealert(t *testing.T) {
	first := pricing.Evaluate(100, 80, nil, 5)
	second := pricing.Evaluate(100, 80, ptr(80), 5)

	assert.True(t, first.IsDrop)
	assert.False(t, second.IsDrop)
	assert.False(t, second.Changed)
	assert.Equal(t, 20.00, second.Savings)
}

// TestEvaluate_RedropAfterRecovery walks 80 -> 90 -> 80 and checks that the
// comparison is against the latest stored price, not the historical minimum.
func TestEvaluate_RedropAfterRecovery(t *testing.T) {
	run1 := pricing.Evaluate(100, 80, nil, 5)
	run2 := pricing.Evaluate(100, 90, ptr(80), 5)
	run3 := pricing.Evaluate(100, 80, ptr(90), 5)

	assert.True(t, run1.IsDrop)
	assert.True(t, run2.Changed)
	assert.True(t, run2.IsDrop, "90 is a new value still 10 below paid")
	assert.True(t, run3.IsDrop)
}

func TestEvaluate_NoDrop(t *testing.T) {
	tests := []struct {
		name      string
		paid      float64
		current   float64
		threshold float64
	}{
		{name: "nothing paid", paid: 0, current: 50, threshold: 5},
		{name: "price rose", paid: 100, current: 120, threshold: 5},
		{name: "price equal", paid: 100, current: 100, threshold: 0},
		{name: "below threshold", paid: 100, current: 97.5, threshold: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := pricing.Evaluate(tc.paid, tc.current, nil, tc.threshold)
			assert.False(t, v.IsDrop)
		})
	}
}

func TestEvaluate_SavingsRounded(t *testing.T) {
	v := pricing.Evaluate(10, 3.333, nil, 0)

	assert.Equal(t, 6.67, v.Savings)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      float64
		unit     string
		quantity int
		nights   int
		want     float64
	}{
		{name: "per night", raw: 700, unit: "PER_NIGHT", quantity: 1, nights: 7, want: 100.00},
		{name: "per day lower case", raw: 350, unit: "per_day", quantity: 1, nights: 7, want: 50.00},
		{name: "quantity", raw: 40, unit: "", quantity: 2, nights: 1, want: 20.00},
		{name: "per night and quantity", raw: 1400, unit: "PER_NIGHT", quantity: 2, nights: 7, want: 100.00},
		{name: "flat unit ignores nights", raw: 59.99, unit: "PER_CRUISE", quantity: 1, nights: 7, want: 59.99},
		{name: "zero nights leaves amount", raw: 70, unit: "PER_NIGHT", quantity: 1, nights: 0, want: 70.00},
		{name: "rounds", raw: 100, unit: "PER_NIGHT", quantity: 1, nights: 3, want: 33.33},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pricing.Normalize(tc.raw, tc.unit, tc.quantity, tc.nights))
		})
	}
}

func TestEstimateNights(t *testing.T) {
	tests := []struct {
		name     string
		explicit []any
		start    string
		end      string
		want     int
	}{
		{name: "explicit number", explicit: []any{float64(7)}, want: 7},
		{name: "first positive wins", explicit: []any{nil, "0", "5"}, want: 5},
		{name: "string night count", explicit: []any{"4"}, want: 4},
		{name: "date difference", start: "2025-06-01", end: "2025-06-08", want: 7},
		{name: "date with time suffix", start: "2025-06-01T00:00:00", end: "2025-06-04T12:00:00", want: 3},
		{name: "compact dates", start: "20250601", end: "20250605", want: 4},
		{name: "end before start", start: "2025-06-08", end: "2025-06-01", want: 1},
		{name: "unparseable", start: "soon", end: "later", want: 1},
		{name: "nothing", want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pricing.EstimateNights(tc.explicit, tc.start, tc.end))
		})
	}
}

func TestAsFloat(t *testing.T) {
	assert.Equal(t, 12.5, pricing.AsFloat("12.5", 0))
	assert.Equal(t, 12.5, pricing.AsFloat(" 12.5 ", 0))
	assert.Equal(t, 3.0, pricing.AsFloat(3, 0))
	assert.Equal(t, 7.25, pricing.AsFloat(json.Number("7.25"), 0))
	assert.Equal(t, 0.0, pricing.AsFloat("n/a", 0))
	assert.Equal(t, -999.0, pricing.AsFloat(nil, -999))
	assert.Equal(t, 0.0, pricing.AsFloat(map[string]any{}, 0))
}

func TestAsInt(t *testing.T) {
	assert.Equal(t, 2, pricing.AsInt("2", 1))
	assert.Equal(t, 2, pricing.AsInt(2.9, 1))
	assert.Equal(t, 1, pricing.AsInt("two", 1))
	assert.Equal(t, 1, pricing.AsInt(nil, 1))
	assert.Equal(t, 4, pricing.AsInt(json.Number("4"), 1))
	assert.Equal(t, 2, pricing.AsInt(json.Number("2.0"), 1))
	assert.Equal(t, 7, pricing.AsInt(json.Number("7.9"), 1))
	assert.Equal(t, 1, pricing.AsInt(json.Number("1e999"), 1))
}
