package store

// Inflation narrows from 9.78% toward a 0.95% floor, dropping 0.01% every
// 250k blocks. Rates are kept in basis-point-hundredths until the final
// division to avoid float drift over large block numbers.
const (
	inflationStartRate      = 978
	inflationStopRate       = 95
	inflationNarrowingBlock = 250_000
)

// InflationRate returns the annual inflation percentage at the given head
// block, e.g. 7.42 for 7.42%.
func InflationRate(headBlock uint64) float64 {
	rate := inflationStartRate - int64(headBlock/inflationNarrowingBlock)
	if rate < inflationStopRate {
		rate = inflationStopRate
	}
	return float64(rate) / 100
}

// NewSteemPerDay converts an annual inflation percentage into the daily
// issuance against the given virtual supply.
func NewSteemPerDay(virtualSupply, inflationRate float64) float64 {
	return virtualSupply * (inflationRate / 100) / 365
}
