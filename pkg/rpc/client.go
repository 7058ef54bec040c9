// Package rpc contains the HTTP collaborators the dashboard backend reads
// from: the Steem condenser JSON-RPC API, the SteemWorld SDS feeds, and the
// external rate services. All of them are treated as opaque JSON endpoints.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/steemburnpool/burnboard/pkg/utils"
	"go.uber.org/zap"
)

// Opts configures a Client.
type Opts struct {
	// CondenserEndpoints are Steem JSON-RPC nodes, tried in order.
	CondenserEndpoints []string
	// SDSEndpoints are SteemWorld SDS hosts serving the rewards and
	// delegations feeds, tried in order.
	SDSEndpoints []string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client queries the Steem chain collaborators. It fails over across the
// configured endpoints on transport and server errors; every call is bounded
// by the client timeout so a stuck node cannot wedge a scan.
type Client struct {
	condenser []string
	sds       []string
	client    *http.Client
	logger    *zap.Logger
}

// NewClient creates a Client with sane defaults for missing options.
func NewClient(o Opts, logger *zap.Logger) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}
	if len(o.CondenserEndpoints) == 0 {
		o.CondenserEndpoints = []string{"https://api.steemit.com"}
	}
	if len(o.SDSEndpoints) == 0 {
		o.SDSEndpoints = []string{"https://sds0.steemworld.org"}
	}
	return &Client{
		condenser: o.CondenserEndpoints,
		sds:       o.SDSEndpoints,
		client:    client,
		logger:    logger,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// callCondenser issues a JSON-RPC call, failing over across endpoints.
func (c *Client) callCondenser(ctx context.Context, method string, params any, out any) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return err
	}

	var lastErr error
	for _, ep := range c.condenser {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(payload))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := c.client.Do(req)
		if doErr != nil {
			lastErr = doErr
			continue
		}
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("http %d from %s", resp.StatusCode, ep)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}

		var rpcResp rpcResponse
		decErr := json.NewDecoder(resp.Body).Decode(&rpcResp)
		_ = utils.DrainAndClose(resp.Body)
		if decErr != nil {
			lastErr = decErr
			continue
		}
		if rpcResp.Error != nil {
			lastErr = fmt.Errorf("%s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
			continue
		}
		if out != nil {
			if err := json.Unmarshal(rpcResp.Result, out); err != nil {
				lastErr = err
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("%s failed on all endpoints: %w", method, lastErr)
}

// getSDS issues a GET to an SDS path, failing over across hosts.
func (c *Client) getSDS(ctx context.Context, path string, out any) error {
	var lastErr error
	for _, ep := range c.sds {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, ep+path, nil)
		if reqErr != nil {
			return reqErr
		}

		resp, doErr := c.client.Do(req)
		if doErr != nil {
			lastErr = doErr
			continue
		}
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("http %d from %s", resp.StatusCode, ep)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}

		decErr := json.NewDecoder(resp.Body).Decode(out)
		_ = utils.DrainAndClose(resp.Body)
		if decErr != nil {
			lastErr = decErr
			continue
		}
		return nil
	}
	return fmt.Errorf("sds %s failed on all endpoints: %w", path, lastErr)
}

// DynamicGlobalProperties fetches the chain head and supply/vesting figures.
func (c *Client) DynamicGlobalProperties(ctx context.Context) (*GlobalProperties, error) {
	var props GlobalProperties
	if err := c.callCondenser(ctx, "condenser_api.get_dynamic_global_properties", []any{}, &props); err != nil {
		return nil, fmt.Errorf("fetch global properties: %w", err)
	}
	return &props, nil
}

// Accounts fetches full account objects in one batch call.
func (c *Client) Accounts(ctx context.Context, names []string) ([]Account, error) {
	var accounts []Account
	if err := c.callCondenser(ctx, "condenser_api.get_accounts", []any{names}, &accounts); err != nil {
		return nil, fmt.Errorf("fetch accounts %v: %w", names, err)
	}
	return accounts, nil
}

// sdsResult is the `{ result: { rows: [...] } }` envelope shared by the SDS
// feed endpoints.
type sdsResult struct {
	Result struct {
		Rows [][]any `json:"rows"`
	} `json:"result"`
}

// RewardsPage fetches one page of the time-ranged rewards feed. Row layout is
// purely positional: [timestamp, author, recipient, sbd, steem, vests].
func (c *Client) RewardsPage(ctx context.Context, eventType, filterKey string, start, end int64, limit, offset int) ([]RewardRow, error) {
	path := fmt.Sprintf("/rewards_api/getRewards/%s/%s/%d-%d/%d/%d", eventType, filterKey, start, end, limit, offset)
	var res sdsResult
	if err := c.getSDS(ctx, path, &res); err != nil {
		return nil, err
	}
	rows := make([]RewardRow, 0, len(res.Result.Rows))
	for _, row := range res.Result.Rows {
		rows = append(rows, RewardRow{
			Timestamp: cellInt64(row, 0),
			Author:    cellString(row, 1),
			Recipient: cellString(row, 2),
			SBD:       cellFloat(row, 3),
			Steem:     cellFloat(row, 4),
			Vests:     cellFloat(row, 5),
		})
	}
	return rows, nil
}

// IncomingDelegations fetches every incoming delegation to account. Row
// layout: [_, delegator, _, vests].
func (c *Client) IncomingDelegations(ctx context.Context, account string) ([]DelegationRow, error) {
	path := "/delegations_api/getIncomingDelegations/" + account
	var res sdsResult
	if err := c.getSDS(ctx, path, &res); err != nil {
		return nil, err
	}
	rows := make([]DelegationRow, 0, len(res.Result.Rows))
	for _, row := range res.Result.Rows {
		rows = append(rows, DelegationRow{
			Delegator: cellString(row, 1),
			Vests:     cellFloat(row, 3),
		})
	}
	return rows, nil
}
