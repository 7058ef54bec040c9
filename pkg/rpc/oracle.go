package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Oracle reads the STEEM and SBD USD prices from the CoinGecko simple-price
// API. It exists for one derived number: the SBD→STEEM conversion rate used
// when folding SBD-denominated burns into STEEM.
type Oracle struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewOracle creates an Oracle against baseURL (e.g. https://api.coingecko.com).
func NewOracle(baseURL string, timeout time.Duration, logger *zap.Logger) *Oracle {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Oracle{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		logger: logger,
	}
}

type simplePrice struct {
	USD float64 `json:"usd"`
}

// SBDToSteemRate returns sbdUSD/steemUSD. Callers are expected to default the
// rate to 1.0 when this fails; the oracle is a refinement, not a dependency.
func (o *Oracle) SBDToSteemRate(ctx context.Context) (float64, error) {
	var prices map[string]simplePrice
	resp, err := o.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           "steem,steem-dollars",
			"vs_currencies": "usd",
		}).
		SetResult(&prices).
		Get("/api/v3/simple/price")
	if err != nil {
		return 0, fmt.Errorf("price oracle: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("price oracle: http %d", resp.StatusCode())
	}

	steem := prices["steem"].USD
	sbd := prices["steem-dollars"].USD
	if steem <= 0 || sbd <= 0 {
		return 0, fmt.Errorf("price oracle: missing quotes (steem=%v sbd=%v)", steem, sbd)
	}

	rate := sbd / steem
	o.logger.Debug("Resolved SBD to STEEM rate",
		zap.Float64("steem_usd", steem),
		zap.Float64("sbd_usd", sbd),
		zap.Float64("rate", rate))
	return rate, nil
}
