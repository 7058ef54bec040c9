package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected float64
		wantErr  bool
	}{
		{name: "steem string", raw: `"123.456 STEEM"`, expected: 123.456},
		{name: "vests string", raw: `"390077377.007703 VESTS"`, expected: 390077377.007703},
		{name: "bare number", raw: `42.5`, expected: 42.5},
		{name: "empty string", raw: `""`, expected: 0},
		{name: "garbage", raw: `"not-a-number STEEM"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			err := json.Unmarshal([]byte(tt.raw), &a)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, a.Float(), 1e-9)
		})
	}
}

func TestGlobalPropertiesSteemPerVest(t *testing.T) {
	raw := `{
		"head_block_number": 95000000,
		"current_supply": "521000000.000 STEEM",
		"current_sbd_supply": "9000000.000 SBD",
		"virtual_supply": "584003293.225 STEEM",
		"total_vesting_shares": "390000000000.000000 VESTS",
		"total_vesting_fund_steem": "195000000.000 STEEM",
		"sbd_print_rate": 10000,
		"sbd_interest_rate": 0
	}`
	var props GlobalProperties
	require.NoError(t, json.Unmarshal([]byte(raw), &props))

	assert.Equal(t, uint64(95000000), props.HeadBlockNumber)
	assert.InDelta(t, 584003293.225, props.VirtualSupply.Float(), 1e-6)
	// 195e6 STEEM / 390e9 VESTS
	assert.InDelta(t, 0.0005, props.SteemPerVest(), 1e-12)
}

func TestGlobalPropertiesSteemPerVestEmptyPool(t *testing.T) {
	props := GlobalProperties{}
	assert.Zero(t, props.SteemPerVest())
}

func TestAccountEffectiveVestsAndProfileImage(t *testing.T) {
	raw := `{
		"name": "steemburnpool",
		"vesting_shares": "1000.000000 VESTS",
		"received_vesting_shares": "500.000000 VESTS",
		"delegated_vesting_shares": "200.000000 VESTS",
		"posting_json_metadata": "{\"profile\":{\"profile_image\":\"https://example.org/pool.png\"}}"
	}`
	var acct Account
	require.NoError(t, json.Unmarshal([]byte(raw), &acct))

	assert.InDelta(t, 1300.0, acct.EffectiveVests(), 1e-9)
	assert.Equal(t, "https://example.org/pool.png", acct.ProfileImage("fallback"))
}

func TestAccountProfileImageFallbacks(t *testing.T) {
	tests := []struct {
		name string
		meta string
	}{
		{name: "empty metadata", meta: ""},
		{name: "malformed metadata", meta: "{not json"},
		{name: "no profile image", meta: `{"profile":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := Account{PostingJSONMetadata: tt.meta}
			assert.Equal(t, "fallback", acct.ProfileImage("fallback"))
		})
	}
}

func TestRewardRowDecodeFromEnvelope(t *testing.T) {
	raw := `{"result":{"rows":[
		[1736121600, "steemburnup", "null", "1.5", 2.25, "3000.123456"],
		["1736208000", "someone-else", "null", 0, "0.5", 0]
	]}}`
	var res sdsResult
	require.NoError(t, json.Unmarshal([]byte(raw), &res))
	require.Len(t, res.Result.Rows, 2)

	first := res.Result.Rows[0]
	assert.Equal(t, int64(1736121600), cellInt64(first, 0))
	assert.Equal(t, "steemburnup", cellString(first, 1))
	assert.Equal(t, "null", cellString(first, 2))
	assert.InDelta(t, 1.5, cellFloat(first, 3), 1e-9)
	assert.InDelta(t, 2.25, cellFloat(first, 4), 1e-9)
	assert.InDelta(t, 3000.123456, cellFloat(first, 5), 1e-9)

	second := res.Result.Rows[1]
	assert.Equal(t, int64(1736208000), cellInt64(second, 0))
	assert.InDelta(t, 0.5, cellFloat(second, 4), 1e-9)

	// out-of-range and wrong-type cells coerce to zero values, not panics
	assert.Equal(t, "", cellString(first, 99))
	assert.Zero(t, cellFloat(first, 99))
	assert.Zero(t, cellInt64(first, 1))
}
