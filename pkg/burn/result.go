package burn

import "time"

const daySeconds = 24 * 60 * 60

// DailyHistogram maps day-start unix timestamps (86400s boundaries) to the
// STEEM burned that day. Buckets are never negative.
type DailyHistogram map[int64]float64

// Add folds amount into the bucket containing ts. Non-positive amounts are
// ignored so a bad row can never drag a bucket below zero.
func (h DailyHistogram) Add(ts int64, amount float64) {
	if amount <= 0 {
		return
	}
	day := ts - (ts % daySeconds)
	h[day] += amount
}

// SumSince totals every bucket at or after cutoff (unix seconds). A cutoff of
// zero sums the whole histogram.
func (h DailyHistogram) SumSince(cutoff int64) float64 {
	var sum float64
	for day, amount := range h {
		if day >= cutoff {
			sum += amount
		}
	}
	return sum
}

// Clone returns an independent copy, never nil.
func (h DailyHistogram) Clone() DailyHistogram {
	out := make(DailyHistogram, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// AggregateResult is the output of one full ledger scan. It is immutable once
// produced; the next scan supersedes it wholesale.
type AggregateResult struct {
	TotalBurned       float64        `json:"totalBurned"`
	BurnsToday        float64        `json:"burnsToday"`
	BurnsByDay        DailyHistogram `json:"burnsByDay"`
	LastBurnTimestamp int64          `json:"lastBurnTimestamp"`
	TotalTransactions int            `json:"totalTransactions"`
	// Complete is false when the scan aborted mid-range and the totals are a
	// best-effort partial. A complete result with zero transactions is a true
	// zero-activity window; an incomplete one is low-confidence.
	Complete   bool  `json:"scanComplete"`
	ComputedAt int64 `json:"computedAt"` // unix millis
}

// Age returns how long ago the result was computed.
func (r *AggregateResult) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(r.ComputedAt))
}
