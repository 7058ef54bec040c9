// Package durable persists the burn scan result across process restarts. It
// is a single-slot cache: one fixed key holding the latest AggregateResult
// plus its write timestamp, with a staleness window independent of the
// in-memory cache. Anything unreadable is a miss, never an error surfaced to
// the dashboard.
package durable

import (
	"context"
	"time"

	"github.com/steemburnpool/burnboard/pkg/burn"
)

// SlotKey names the single persisted slot.
const SlotKey = "burnboard:total-burned"

// DefaultMaxAge is the staleness window for the persisted scan result.
const DefaultMaxAge = 30 * time.Minute

// envelope is the persisted payload: the result wrapped with its own write
// timestamp so staleness survives backends without native TTL.
type envelope struct {
	Result    burn.AggregateResult `json:"result"`
	StoredAt  int64                `json:"storedAt"` // unix millis
	SchemaTag int                  `json:"schema"`
}

const schemaTag = 1

// Store is a persisted single-slot cache for the burn scan result.
type Store interface {
	// Load returns the persisted result if present, well-formed, and within
	// the staleness window. Everything else is a miss.
	Load(ctx context.Context) (*burn.AggregateResult, bool)
	// Save replaces the slot.
	Save(ctx context.Context, res *burn.AggregateResult) error
	// Invalidate drops the slot. Used by forced refresh.
	Invalidate(ctx context.Context) error
}

func expired(e *envelope, maxAge time.Duration, now time.Time) bool {
	return now.Sub(time.UnixMilli(e.StoredAt)) > maxAge
}
