package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// VestsRateClient reads the cached VESTS→STEEM Power rate from the justyy
// rate API. Used by the contributors fetch, which converts delegated vesting
// shares into STEEM for display.
type VestsRateClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewVestsRateClient creates a client against baseURL
// (e.g. https://api.justyy.workers.dev).
func NewVestsRateClient(baseURL string, timeout time.Duration, logger *zap.Logger) *VestsRateClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &VestsRateClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		logger: logger,
	}
}

// VestsToSteem returns the current conversion rate. The API exposes the same
// figure under two historical names; either is accepted.
func (v *VestsRateClient) VestsToSteem(ctx context.Context) (float64, error) {
	var out struct {
		VestsToSteem float64 `json:"vests_to_steem"`
		VestsToSP    float64 `json:"vests_to_sp"`
	}
	resp, err := v.http.R().
		SetContext(ctx).
		SetQueryParam("cached", "").
		SetResult(&out).
		Get("/api/steemit/vests/")
	if err != nil {
		return 0, fmt.Errorf("vests rate: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("vests rate: http %d", resp.StatusCode())
	}

	rate := out.VestsToSteem
	if rate <= 0 {
		rate = out.VestsToSP
	}
	if rate <= 0 {
		return 0, fmt.Errorf("vests rate: no usable rate in response")
	}
	return rate, nil
}
