package pricing

// FareUnavailable is the current price recorded for a cabin fare that can no
// longer be booked. Real fares are never negative.
const FareUnavailable = -1.0

// Verdict is the outcome of comparing a fresh price with what was paid.
type Verdict struct {
	IsDrop  bool
	Savings float64
	Changed bool
}

// Evaluate decides whether an observation is a new, notifiable drop.
//
// last is the current price of the most recent stored observation for the
// same identity, or nil when there is none. A drop needs a positive paid
// price, a current price below it, savings strictly above threshold, and a
// current price that differs from the last stored one, so a price held
// steady across runs alerts only once.
func Evaluate(paid, current float64, last *float64, threshold float64) Verdict {
	savings := Round2(paid - current)
	changed := last == nil || *last != current
	return Verdict{
		IsDrop:  paid > 0 && current < paid && savings > threshold && changed,
		Savings: savings,
		Changed: changed,
	}
}
