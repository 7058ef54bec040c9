package rpc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a chain asset value. Condenser endpoints serialize amounts as
// `"123.456 STEEM"` strings; SDS endpoints sometimes return bare numbers.
// Both decode into the numeric part.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", s, err)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse amount %s: %w", string(b), err)
	}
	*a = Amount(f)
	return nil
}

func (a Amount) Float() float64 { return float64(a) }

// GlobalProperties is the subset of condenser_api.get_dynamic_global_properties
// the dashboard needs: supply figures, the chain head, and the vesting fund
// that defines the shares-to-STEEM conversion.
type GlobalProperties struct {
	HeadBlockNumber       uint64 `json:"head_block_number"`
	CurrentSupply         Amount `json:"current_supply"`
	CurrentSBDSupply      Amount `json:"current_sbd_supply"`
	VirtualSupply         Amount `json:"virtual_supply"`
	TotalVestingShares    Amount `json:"total_vesting_shares"`
	TotalVestingFundSteem Amount `json:"total_vesting_fund_steem"`
	SBDPrintRate          int    `json:"sbd_print_rate"`
	SBDInterestRate       int    `json:"sbd_interest_rate"`
}

// SteemPerVest returns the current VESTS→STEEM conversion rate, or 0 when the
// vesting share pool is reported empty.
func (p *GlobalProperties) SteemPerVest() float64 {
	shares := p.TotalVestingShares.Float()
	if shares <= 0 {
		return 0
	}
	return p.TotalVestingFundSteem.Float() / shares
}

// Account is the subset of a condenser account record used for the pool's
// effective stake and avatar.
type Account struct {
	Name                   string `json:"name"`
	VestingShares          Amount `json:"vesting_shares"`
	ReceivedVestingShares  Amount `json:"received_vesting_shares"`
	DelegatedVestingShares Amount `json:"delegated_vesting_shares"`
	PostingJSONMetadata    string `json:"posting_json_metadata"`
}

// EffectiveVests is own + received - delegated vesting shares.
func (a *Account) EffectiveVests() float64 {
	return a.VestingShares.Float() + a.ReceivedVestingShares.Float() - a.DelegatedVestingShares.Float()
}

// ProfileImage extracts profile.profile_image from the posting metadata blob,
// falling back to the supplied URL when the blob is absent or malformed.
func (a *Account) ProfileImage(fallback string) string {
	if a.PostingJSONMetadata == "" {
		return fallback
	}
	var meta struct {
		Profile struct {
			ProfileImage string `json:"profile_image"`
		} `json:"profile"`
	}
	if err := json.Unmarshal([]byte(a.PostingJSONMetadata), &meta); err != nil {
		return fallback
	}
	if meta.Profile.ProfileImage == "" {
		return fallback
	}
	return meta.Profile.ProfileImage
}

// RewardRow is one decoded row of the SDS rewards feed. The wire format is a
// positional array: [timestamp, author, recipient, sbd, steem, vests].
type RewardRow struct {
	Timestamp int64
	Author    string
	Recipient string
	SBD       float64
	Steem     float64
	Vests     float64
}

// DelegationRow is one decoded row of the SDS incoming-delegations feed,
// positional layout [_, delegator, _, vests].
type DelegationRow struct {
	Delegator string
	Vests     float64
}
