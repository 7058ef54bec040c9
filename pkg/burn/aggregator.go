// Package burn computes the burn-pool aggregate: a scan over the SDS rewards
// feed that folds every burn authored by the tracking account into a running
// total and a per-day histogram.
package burn

import (
	"context"
	"fmt"
	"time"

	"github.com/steemburnpool/burnboard/pkg/rpc"
	"go.uber.org/zap"
)

// Chain is the subset of the Steem client the aggregator needs.
type Chain interface {
	DynamicGlobalProperties(ctx context.Context) (*rpc.GlobalProperties, error)
	RewardsPage(ctx context.Context, eventType, filterKey string, start, end int64, limit, offset int) ([]rpc.RewardRow, error)
}

// Oracle resolves the SBD→STEEM conversion rate.
type Oracle interface {
	SBDToSteemRate(ctx context.Context) (float64, error)
}

// Progress is reported after each page during a scan. Percentage is
// monotonically non-decreasing and reaches 100 when the run returns.
type Progress struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

// ProgressFunc receives scan progress. May be nil.
type ProgressFunc func(Progress)

// Config describes what to scan.
type Config struct {
	// TrackingAccount authors the burn records; rows by anyone else are
	// skipped.
	TrackingAccount string
	// EventType and FilterKey select the SDS rewards feed, e.g.
	// "comment_benefactor_reward" filtered to the "null" recipient.
	EventType string
	FilterKey string
	// ScanStart bounds the scan window; the end is always "now".
	ScanStart time.Time
	// PageSize rows per feed request.
	PageSize int
}

// DefaultConfig matches the live burn pool deployment.
func DefaultConfig() Config {
	return Config{
		TrackingAccount: "steemburnup",
		EventType:       "comment_benefactor_reward",
		FilterKey:       "null",
		ScanStart:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PageSize:        5000,
	}
}

// Aggregator runs full scans of the burn ledger.
type Aggregator struct {
	cfg    Config
	chain  Chain
	oracle Oracle
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New creates an Aggregator.
func New(cfg Config, chain Chain, oracle Oracle, logger *zap.Logger, opts ...Option) *Aggregator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5000
	}
	a := &Aggregator{
		cfg:    cfg,
		chain:  chain,
		oracle: oracle,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// progressReporter keeps reported percentages monotone.
type progressReporter struct {
	fn   ProgressFunc
	last int
}

func (p *progressReporter) report(pct int, msg string) {
	if p.fn == nil {
		return
	}
	if pct < p.last {
		pct = p.last
	}
	if pct > 100 {
		pct = 100
	}
	p.last = pct
	p.fn(Progress{Percentage: pct, Message: msg})
}

// Run executes one full scan from the configured start date through now.
//
// Conversion rates resolve before any row is folded: the shares rate comes
// from the global-properties endpoint and is fatal when unavailable; the
// SBD rate comes from the price oracle and degrades to 1.0 on failure.
// The window is partitioned into yearly sub-ranges, each paged until a short
// page. A mid-scan error abandons the current sub-range, keeps everything
// accumulated so far, and marks the result incomplete instead of failing.
func (a *Aggregator) Run(ctx context.Context, onProgress ProgressFunc) (*AggregateResult, error) {
	progress := &progressReporter{fn: onProgress}
	progress.report(0, "Starting burn data scan")

	props, err := a.chain.DynamicGlobalProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("burn scan: %w", err)
	}
	steemPerVest := props.SteemPerVest()

	sbdToSteem, err := a.oracle.SBDToSteemRate(ctx)
	if err != nil {
		a.logger.Warn("Price oracle unavailable, defaulting SBD rate to 1.0", zap.Error(err))
		sbdToSteem = 1.0
	}

	now := a.now().UTC()
	nowUnix := now.Unix()
	scanStart := a.cfg.ScanStart.UTC()

	res := &AggregateResult{
		BurnsByDay: make(DailyHistogram),
		Complete:   true,
	}

	startYear := scanStart.Year()
	endYear := now.Year()
	totalYears := endYear - startYear + 1

	for year := startYear; year <= endYear; year++ {
		yearStart := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
		if s := scanStart.Unix(); s > yearStart {
			yearStart = s
		}
		yearEnd := time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
		if yearEnd > nowUnix {
			yearEnd = nowUnix
		}
		if yearStart >= nowUnix {
			break
		}

		progress.report((year-startYear)*100/totalYears, fmt.Sprintf("Scanning %d transactions", year))

		if err := a.scanRange(ctx, res, progress, yearStart, yearEnd, steemPerVest, sbdToSteem); err != nil {
			// Keep what we have; the caller gets a tagged partial rather than
			// an error it cannot act on.
			res.Complete = false
			a.logger.Warn("Burn scan sub-range aborted",
				zap.Int("year", year),
				zap.Error(err))
		}
	}

	res.BurnsToday = res.BurnsByDay.SumSince(nowUnix - daySeconds)
	res.ComputedAt = a.now().UnixMilli()

	progress.report(100, "Burn data scan completed")
	a.logger.Info("Burn scan finished",
		zap.Float64("total_burned", res.TotalBurned),
		zap.Int("transactions", res.TotalTransactions),
		zap.Int("days", len(res.BurnsByDay)),
		zap.Bool("complete", res.Complete))
	return res, nil
}

// scanRange pages through [start, end) accumulating into res.
func (a *Aggregator) scanRange(ctx context.Context, res *AggregateResult, progress *progressReporter, start, end int64, steemPerVest, sbdToSteem float64) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rows, err := a.chain.RewardsPage(ctx, a.cfg.EventType, a.cfg.FilterKey, start, end, a.cfg.PageSize, offset)
		if err != nil {
			return fmt.Errorf("rewards page at offset %d: %w", offset, err)
		}
		if len(rows) == 0 {
			return nil
		}

		for _, row := range rows {
			if row.Author != a.cfg.TrackingAccount {
				continue
			}
			amount := row.Steem + row.SBD*sbdToSteem + row.Vests*steemPerVest
			if amount <= 0 {
				continue
			}
			res.TotalBurned += amount
			res.TotalTransactions++
			if row.Timestamp > res.LastBurnTimestamp {
				res.LastBurnTimestamp = row.Timestamp
			}
			res.BurnsByDay.Add(row.Timestamp, amount)
		}

		// Coarse within-range estimate from the paging offset, capped below
		// 100 so only a finished run reports completion.
		if offset > 0 {
			pct := min(95, offset*100/50000)
			progress.report(pct, fmt.Sprintf("Processed %d burns (%.2f STEEM)", res.TotalTransactions, res.TotalBurned))
		}

		if len(rows) < a.cfg.PageSize {
			return nil
		}
		offset += a.cfg.PageSize
	}
}
