package store

import (
	"time"

	"github.com/steemburnpool/burnboard/pkg/utils"
)

// Config carries the store's identities and freshness policy. Every window is
// independently tunable because the sections have very different fetch costs:
// the burn aggregate is a multi-minute ledger scan, account power is two
// cheap RPC calls.
type Config struct {
	// PoolAccount receives delegations and holds the pool's STEEM Power.
	PoolAccount string

	// Freshness windows: a section older than its window is stale and a read
	// through Fetch* triggers a refetch.
	BurnFreshFor         time.Duration
	PowerFreshFor        time.Duration
	ContributorsFreshFor time.Duration
	SteemFreshFor        time.Duration

	// In-memory cache TTLs for the producer results, independent of the
	// freshness windows above.
	BurnCacheTTL         time.Duration
	PowerCacheTTL        time.Duration
	ContributorsCacheTTL time.Duration
	SteemCacheTTL        time.Duration

	// ProgramStart anchors lifetime averages in the analytics.
	ProgramStart time.Time
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		PoolAccount:          "steemburnpool",
		BurnFreshFor:         30 * time.Minute,
		PowerFreshFor:        3 * time.Minute,
		ContributorsFreshFor: 5 * time.Minute,
		SteemFreshFor:        15 * time.Minute,
		BurnCacheTTL:         30 * time.Minute,
		PowerCacheTTL:        5 * time.Minute,
		ContributorsCacheTTL: 8 * time.Minute,
		SteemCacheTTL:        15 * time.Minute,
		ProgramStart:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// ConfigFromEnv builds a Config from the environment, falling back to
// DefaultConfig values.
func ConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		PoolAccount:          utils.Env("POOL_ACCOUNT", def.PoolAccount),
		BurnFreshFor:         utils.EnvDuration("BURN_FRESH_FOR", def.BurnFreshFor),
		PowerFreshFor:        utils.EnvDuration("POWER_FRESH_FOR", def.PowerFreshFor),
		ContributorsFreshFor: utils.EnvDuration("CONTRIBUTORS_FRESH_FOR", def.ContributorsFreshFor),
		SteemFreshFor:        utils.EnvDuration("STEEM_FRESH_FOR", def.SteemFreshFor),
		BurnCacheTTL:         utils.EnvDuration("BURN_CACHE_TTL", def.BurnCacheTTL),
		PowerCacheTTL:        utils.EnvDuration("POWER_CACHE_TTL", def.PowerCacheTTL),
		ContributorsCacheTTL: utils.EnvDuration("CONTRIBUTORS_CACHE_TTL", def.ContributorsCacheTTL),
		SteemCacheTTL:        utils.EnvDuration("STEEM_CACHE_TTL", def.SteemCacheTTL),
		ProgramStart:         utils.EnvTime("PROGRAM_START", def.ProgramStart),
	}
}
