package durable

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/steemburnpool/burnboard/pkg/burn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testResult() *burn.AggregateResult {
	return &burn.AggregateResult{
		TotalBurned:       1234.5,
		BurnsToday:        10,
		BurnsByDay:        burn.DailyHistogram{1736121600: 1234.5},
		LastBurnTimestamp: 1736150000,
		TotalTransactions: 7,
		Complete:          true,
		ComputedAt:        time.Now().UnixMilli(),
	}
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "scan", "slot.json"), 30*time.Minute, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestFileStoreRoundTrip(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	_, ok := s.Load(ctx)
	assert.False(t, ok, "empty store misses")

	require.NoError(t, s.Save(ctx, testResult()))

	got, ok := s.Load(ctx)
	require.True(t, ok)
	assert.InDelta(t, 1234.5, got.TotalBurned, 1e-9)
	assert.Equal(t, 7, got.TotalTransactions)
	assert.True(t, got.Complete)
	assert.InDelta(t, 1234.5, got.BurnsByDay[1736121600], 1e-9)
}

func TestFileStoreExpiredSlotIsAMiss(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testResult()))

	// Move the clock past the staleness window.
	s.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	_, ok := s.Load(ctx)
	assert.False(t, ok)
}

func TestFileStoreMalformedPayloadIsAMiss(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0o644))
	_, ok := s.Load(ctx)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(s.path, []byte(`{"schema":99,"result":{}}`), 0o644))
	_, ok = s.Load(ctx)
	assert.False(t, ok, "unknown schema tag is a miss")
}

func TestFileStoreInvalidate(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testResult()))
	require.NoError(t, s.Invalidate(ctx))

	_, ok := s.Load(ctx)
	assert.False(t, ok)

	// Invalidating an empty slot is not an error.
	require.NoError(t, s.Invalidate(ctx))
}

func TestFileStoreNilHistogramNormalized(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	res := testResult()
	res.BurnsByDay = nil
	require.NoError(t, s.Save(ctx, res))

	got, ok := s.Load(ctx)
	require.True(t, ok)
	assert.NotNil(t, got.BurnsByDay)
}
