package store

import (
	"github.com/steemburnpool/burnboard/pkg/burn"
)

// BurnPoolSection aggregates everything known about the burn pool account:
// the ledger scan results plus its current STEEM Power and profile.
type BurnPoolSection struct {
	TotalBurned       float64             `json:"totalBurned"`
	BurnsToday        float64             `json:"burnsToday"`
	BurnsByDay        burn.DailyHistogram `json:"burnsByDay"`
	LastBurnTimestamp int64               `json:"lastBurnTimestamp"`
	TotalTransactions int                 `json:"totalTransactions"`
	ScanComplete      bool                `json:"scanComplete"`
	SteemPower        float64             `json:"steemPower"`
	Account           string              `json:"account"`
	ProfileImage      string              `json:"profileImage"`
	LastUpdated       int64               `json:"lastUpdated"`
}

// Contributor is one delegator to the pool account, with the STEEM value of
// their delegation at the current vests rate.
type Contributor struct {
	Name      string  `json:"contributor"`
	Steem     float64 `json:"steem"`
	AvatarURL string  `json:"avatarUrl"`
}

// ContributorsSection lists the pool's delegators, largest first. Error is
// set when the last fetch failed and the list was degraded to empty.
type ContributorsSection struct {
	Contributors []Contributor `json:"contributors"`
	Total        int           `json:"total"`
	Error        string        `json:"error,omitempty"`
	LastUpdated  int64         `json:"lastUpdated"`
}

// SteemSection mirrors the chain's dynamic global properties together with
// the derived inflation figures.
type SteemSection struct {
	CurrentSupply    float64 `json:"currentSupply"`
	CurrentSBDSupply float64 `json:"currentSbdSupply"`
	VirtualSupply    float64 `json:"virtualSupply"`
	HeadBlockNumber  uint64  `json:"headBlockNumber"`
	InflationRate    float64 `json:"inflationRate"`
	NewSteemPerDay   float64 `json:"newSteemPerDay"`
	SBDPrintRate     int     `json:"sbdPrintRate"`
	SBDInterestRate  int     `json:"sbdInterestRate"`
	LastUpdated      int64   `json:"lastUpdated"`
}

// LoadingFlags reports which sections have a fetch in flight.
type LoadingFlags struct {
	BurnData     bool `json:"burnData"`
	SteemPower   bool `json:"steemPower"`
	Contributors bool `json:"contributors"`
}

// Snapshot is a point-in-time copy of every section. Values handed to
// subscribers and readers are deep copies, so holding one across later
// mutations is safe.
type Snapshot struct {
	BurnPool     BurnPoolSection     `json:"burnPoolData"`
	Contributors ContributorsSection `json:"contributorsData"`
	Steem        SteemSection        `json:"steemData"`
	Loading      LoadingFlags        `json:"loadingStates"`
}

func (b BurnPoolSection) clone() BurnPoolSection {
	out := b
	out.BurnsByDay = b.BurnsByDay.Clone()
	return out
}

func (c ContributorsSection) clone() ContributorsSection {
	out := c
	if c.Contributors != nil {
		out.Contributors = make([]Contributor, len(c.Contributors))
		copy(out.Contributors, c.Contributors)
	}
	return out
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.BurnPool = s.BurnPool.clone()
	out.Contributors = s.Contributors.clone()
	return out
}
