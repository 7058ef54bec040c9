// Package impact derives supply-impact statistics from the burn histogram.
// Everything here is pure: callers pass the histogram, supply figure, and
// clock in, so Analytics cards and Roadmap projections computed from the same
// snapshot always agree.
package impact

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/steemburnpool/burnboard/pkg/burn"
)

// Timeframe selects the statistics window.
type Timeframe string

const (
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
	Timeframe90d Timeframe = "90d"
	TimeframeAll Timeframe = "all"
)

// ParseTimeframe maps a query value to a Timeframe, defaulting to 30d the way
// the dashboard selector does.
func ParseTimeframe(s string) Timeframe {
	switch Timeframe(s) {
	case Timeframe7d, Timeframe30d, Timeframe90d, TimeframeAll:
		return Timeframe(s)
	default:
		return Timeframe30d
	}
}

func (t Timeframe) days() int {
	switch t {
	case Timeframe7d:
		return 7
	case Timeframe30d:
		return 30
	case Timeframe90d:
		return 90
	default:
		return 0 // all
	}
}

// Source tags where a TimeframeImpact's numbers came from, so consumers can
// distinguish measured history from a proportional estimate.
type Source string

const (
	// SourceMeasured means the numbers were summed from the daily histogram.
	SourceMeasured Source = "measured"
	// SourceEstimated means no histogram was available and the window total
	// is a proportional slice of the fallback aggregate.
	SourceEstimated Source = "estimated"
	// SourceNone means the calculation had nothing to work with.
	SourceNone Source = "none"
)

// VirtualSupplyFallback is the hardcoded STEEM virtual supply (including SBD
// debt conversion) used when no live supply data is known.
const VirtualSupplyFallback = 584_003_293.225

// DefaultProgramStart is when the burn program began; the "all" timeframe
// averages over elapsed days since this date, not days with activity.
var DefaultProgramStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Input carries everything CalculateTimeframeImpact needs.
type Input struct {
	// Histogram is the per-day burn history; may be nil or empty, which
	// switches the calculation to the proportional fallback.
	Histogram burn.DailyHistogram
	// FallbackTotal is the lifetime burn total used when Histogram is empty.
	FallbackTotal float64
	// VirtualSupply is the freshest known supply figure; non-positive values
	// fall back to VirtualSupplyFallback.
	VirtualSupply float64
	// ProgramStart defaults to DefaultProgramStart when zero.
	ProgramStart time.Time
	// Now defaults to time.Now when zero.
	Now time.Time
}

// TimeframeImpact is the derived statistics bundle. Recomputed on demand,
// never cached.
type TimeframeImpact struct {
	TotalBurned float64 `json:"totalBurned"`
	// SupplyImpact is the burned share of virtual supply as a percentage,
	// fixed to 8 decimal places.
	SupplyImpact  string  `json:"supplyImpact"`
	VirtualSupply float64 `json:"virtualSupply"`
	DaysCovered   int     `json:"daysCovered"`
	AverageDaily  float64 `json:"averageDaily"`
	Source        Source  `json:"source"`
}

func zeroImpact(virtualSupply float64) TimeframeImpact {
	return TimeframeImpact{
		SupplyImpact:  "0.00000000",
		VirtualSupply: virtualSupply,
		Source:        SourceNone,
	}
}

// CalculateTimeframeImpact computes the burn statistics for a timeframe. It
// never fails: inputs it cannot work with yield a zeroed result.
func CalculateTimeframeImpact(tf Timeframe, in Input) TimeframeImpact {
	virtualSupply := in.VirtualSupply
	if virtualSupply <= 0 || math.IsNaN(virtualSupply) || math.IsInf(virtualSupply, 0) {
		virtualSupply = VirtualSupplyFallback
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	programStart := in.ProgramStart
	if programStart.IsZero() {
		programStart = DefaultProgramStart
	}

	elapsedDays := int(now.Sub(programStart).Hours() / 24)
	windowDays := tf.days()

	var (
		totalBurned float64
		daysCovered int
		source      Source
	)

	if len(in.Histogram) == 0 {
		// Proportional estimate from the lifetime aggregate.
		source = SourceEstimated
		if elapsedDays < 1 {
			elapsedDays = 1
		}
		if windowDays == 0 {
			totalBurned = in.FallbackTotal
			daysCovered = elapsedDays
		} else {
			totalBurned = in.FallbackTotal / float64(elapsedDays) * float64(windowDays)
			daysCovered = windowDays
		}
		if in.FallbackTotal <= 0 {
			source = SourceNone
		}
	} else {
		source = SourceMeasured
		var cutoff int64
		if windowDays > 0 {
			cutoff = now.Unix() - int64(windowDays)*86400
			daysCovered = windowDays
		} else {
			// Lifetime average over elapsed days, not days with burns.
			daysCovered = elapsedDays
			if daysCovered < 1 {
				daysCovered = 1
			}
		}
		totalBurned = in.Histogram.SumSince(cutoff)
	}

	if math.IsNaN(totalBurned) || math.IsInf(totalBurned, 0) || totalBurned < 0 {
		return zeroImpact(virtualSupply)
	}

	pct := decimal.NewFromFloat(totalBurned).
		Div(decimal.NewFromFloat(virtualSupply)).
		Mul(decimal.NewFromInt(100))

	averageDaily := 0.0
	if daysCovered > 0 {
		averageDaily = totalBurned / float64(daysCovered)
	}

	return TimeframeImpact{
		TotalBurned:   totalBurned,
		SupplyImpact:  pct.StringFixed(8),
		VirtualSupply: virtualSupply,
		DaysCovered:   daysCovered,
		AverageDaily:  averageDaily,
		Source:        source,
	}
}

// DeflationRate renders the lifetime supply impact as a negative percentage
// string for the roadmap view, trailing zeros trimmed (e.g. "-0.037%").
func DeflationRate(in Input) string {
	impact := CalculateTimeframeImpact(TimeframeAll, in)
	v, err := strconv.ParseFloat(impact.SupplyImpact, 64)
	if err != nil {
		return "-0%"
	}
	return "-" + strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
