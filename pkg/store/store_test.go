package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steemburnpool/burnboard/pkg/burn"
	"github.com/steemburnpool/burnboard/pkg/impact"
	"github.com/steemburnpool/burnboard/pkg/rpc"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type fakeChain struct {
	mu          sync.Mutex
	props       rpc.GlobalProperties
	propsErr    error
	accounts    []rpc.Account
	accountsErr error
	delegations []rpc.DelegationRow
	delegErr    error

	propsCalls    int
	accountsCalls int
	delegCalls    int
}

func (c *fakeChain) DynamicGlobalProperties(context.Context) (*rpc.GlobalProperties, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.propsCalls++
	if c.propsErr != nil {
		return nil, c.propsErr
	}
	props := c.props
	return &props, nil
}

func (c *fakeChain) Accounts(_ context.Context, names []string) ([]rpc.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountsCalls++
	if c.accountsErr != nil {
		return nil, c.accountsErr
	}
	return c.accounts, nil
}

func (c *fakeChain) IncomingDelegations(context.Context, string) ([]rpc.DelegationRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegCalls++
	if c.delegErr != nil {
		return nil, c.delegErr
	}
	return c.delegations, nil
}

type fakeRates struct {
	rate float64
	err  error
}

func (r *fakeRates) VestsToSteem(context.Context) (float64, error) {
	return r.rate, r.err
}

type fakeScanner struct {
	mu     sync.Mutex
	result *burn.AggregateResult
	err    error
	calls  int
}

func (s *fakeScanner) Run(_ context.Context, onProgress burn.ProgressFunc) (*burn.AggregateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	res := *s.result
	res.BurnsByDay = s.result.BurnsByDay.Clone()
	return &res, nil
}

type memDurable struct {
	mu            sync.Mutex
	res           *burn.AggregateResult
	saves         int
	invalidations int
}

func (m *memDurable) Load(context.Context) (*burn.AggregateResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.res == nil {
		return nil, false
	}
	return m.res, true
}

func (m *memDurable) Save(_ context.Context, res *burn.AggregateResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.res = res
	m.saves++
	return nil
}

func (m *memDurable) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.res = nil
	m.invalidations++
	return nil
}

func testProps() rpc.GlobalProperties {
	return rpc.GlobalProperties{
		HeadBlockNumber:       100_000_000,
		CurrentSupply:         rpc.Amount(400_000_000),
		CurrentSBDSupply:      rpc.Amount(10_000_000),
		VirtualSupply:         rpc.Amount(420_000_000),
		TotalVestingShares:    rpc.Amount(390_000_000_000),
		TotalVestingFundSteem: rpc.Amount(195_000_000),
		SBDPrintRate:          10_000,
		SBDInterestRate:       0,
	}
}

func testScanResult(clock *fakeClock) *burn.AggregateResult {
	hist := burn.DailyHistogram{}
	now := clock.Now().Unix()
	hist.Add(now-3600, 3.5)
	hist.Add(now-3*86400, 6.5)
	return &burn.AggregateResult{
		TotalBurned:       10,
		BurnsToday:        3.5,
		BurnsByDay:        hist,
		LastBurnTimestamp: now - 3600,
		TotalTransactions: 2,
		Complete:          true,
		ComputedAt:        clock.Now().UnixMilli(),
	}
}

func newTestStore(t *testing.T) (*Store, *fakeChain, *fakeScanner, *memDurable, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	chain := &fakeChain{
		props: testProps(),
		accounts: []rpc.Account{{
			Name:                  "steemburnpool",
			VestingShares:         rpc.Amount(1000),
			ReceivedVestingShares: rpc.Amount(500),
		}},
		delegations: []rpc.DelegationRow{
			{Delegator: "alice", Vests: 2000},
			{Delegator: "bob", Vests: 6000},
		},
	}
	scanner := &fakeScanner{result: testScanResult(clock)}
	dur := &memDurable{}
	s := New(DefaultConfig(), chain, &fakeRates{rate: 0.0005}, scanner, dur, zap.NewNop(), WithClock(clock.Now))
	t.Cleanup(s.Stop)
	return s, chain, scanner, dur, clock
}

func TestFetchBurnPoolDataPopulatesSection(t *testing.T) {
	s, _, scanner, dur, _ := newTestStore(t)

	section, err := s.FetchBurnPoolData(context.Background(), false, nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, section.TotalBurned)
	assert.Equal(t, 3.5, section.BurnsToday)
	assert.True(t, section.ScanComplete)
	assert.Equal(t, 1, scanner.calls)
	assert.Equal(t, 1, dur.saves, "complete scans persist durably")

	// Histogram totals stay consistent with the scalar.
	var sum float64
	for _, v := range section.BurnsByDay {
		sum += v
	}
	assert.InDelta(t, section.TotalBurned, sum, 1e-9)
}

func TestBurnFreshnessSkipsRescan(t *testing.T) {
	s, _, scanner, _, clock := newTestStore(t)
	ctx := context.Background()

	_, err := s.FetchBurnPoolData(ctx, false, nil)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, err = s.FetchBurnPoolData(ctx, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, scanner.calls, "fresh section must not rescan")
}

func TestSectionsRefreshIndependently(t *testing.T) {
	s, chain, scanner, _, clock := newTestStore(t)
	ctx := context.Background()

	_, err := s.FetchBurnPoolData(ctx, false, nil)
	require.NoError(t, err)
	_, err = s.FetchSteemPowerData(ctx, false)
	require.NoError(t, err)
	powerCalls := chain.accountsCalls

	// Past the power freshness window and its cache TTL, but well inside the
	// burn window.
	clock.Advance(6 * time.Minute)

	_, err = s.FetchBurnPoolData(ctx, false, nil)
	require.NoError(t, err)
	_, err = s.FetchSteemPowerData(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 1, scanner.calls)
	assert.Greater(t, chain.accountsCalls, powerCalls, "stale power section refetches")
}

func TestForcedRefreshBypassesFreshSection(t *testing.T) {
	s, _, scanner, dur, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.FetchBurnPoolData(ctx, false, nil)
	require.NoError(t, err)
	require.Equal(t, 1, scanner.calls)

	_, err = s.FetchBurnPoolData(ctx, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, scanner.calls, "force must rescan despite freshness")
	assert.GreaterOrEqual(t, dur.invalidations, 1, "force drops the durable aggregate")
}

func TestBurnFetchFailureKeepsPreviousSection(t *testing.T) {
	s, _, scanner, dur, clock := newTestStore(t)
	ctx := context.Background()

	_, err := s.FetchBurnPoolData(ctx, false, nil)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	dur.res = nil
	scanner.err = errors.New("node unavailable")
	_, err = s.FetchBurnPoolData(ctx, false, nil)
	require.Error(t, err)

	snap := s.GetData()
	assert.Equal(t, 10.0, snap.BurnPool.TotalBurned, "failed fetch retains previous data")
	assert.False(t, snap.Loading.BurnData, "loading flag cleared after failure")
}

func TestRunScanServesDurableHit(t *testing.T) {
	s, _, scanner, dur, clock := newTestStore(t)
	ctx := context.Background()

	cached := testScanResult(clock)
	cached.TotalBurned = 42
	require.NoError(t, dur.Save(ctx, cached))

	section, err := s.FetchBurnPoolData(ctx, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 42.0, section.TotalBurned)
	assert.Equal(t, 0, scanner.calls, "durable hit skips the scan")
}

func TestIncompleteScanNotPersisted(t *testing.T) {
	s, _, scanner, dur, _ := newTestStore(t)

	scanner.result.Complete = false
	section, err := s.FetchBurnPoolData(context.Background(), false, nil)
	require.NoError(t, err)
	assert.False(t, section.ScanComplete)
	assert.Equal(t, 0, dur.saves, "partial aggregates must not be persisted")
}

func TestFetchSteemPowerData(t *testing.T) {
	s, _, _, _, _ := newTestStore(t)

	section, err := s.FetchSteemPowerData(context.Background(), false)
	require.NoError(t, err)
	// 1500 effective vests at 195M/390B steem per vest.
	assert.InDelta(t, 1500*0.0005, section.SteemPower, 1e-9)
	assert.Equal(t, "steemburnpool", section.Account)
	assert.Equal(t, "https://steemitimages.com/u/steemburnpool/avatar", section.ProfileImage)
}

func TestFetchContributorsSortedByStake(t *testing.T) {
	s, _, _, _, _ := newTestStore(t)

	section, err := s.FetchContributorsData(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, section.Contributors, 2)
	assert.Equal(t, "bob", section.Contributors[0].Name, "largest delegation first")
	assert.InDelta(t, 6000*0.0005, section.Contributors[0].Steem, 1e-9)
	assert.Equal(t, 2, section.Total)
	assert.Empty(t, section.Error)
}

func TestContributorsDegradeToEmptyOnError(t *testing.T) {
	s, chain, _, _, _ := newTestStore(t)
	chain.delegErr = errors.New("sds down")

	section, err := s.FetchContributorsData(context.Background(), false)
	require.NoError(t, err, "contributors failures degrade, not fail")
	assert.Empty(t, section.Contributors)
	assert.Zero(t, section.Total)
	assert.NotEmpty(t, section.Error)

	// The degraded section is never considered fresh: recovery retries.
	chain.delegErr = nil
	section, err = s.FetchContributorsData(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, section.Contributors, 2)
	assert.Empty(t, section.Error)
}

func TestFetchSteemDataDerivesInflation(t *testing.T) {
	s, _, _, _, _ := newTestStore(t)

	section, err := s.FetchSteemData(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), section.HeadBlockNumber)
	// 978 - 100M/250k = 578 hundredths of a percent.
	assert.InDelta(t, 5.78, section.InflationRate, 1e-9)
	assert.InDelta(t, 420_000_000*0.0578/365, section.NewSteemPerDay, 1e-6)
	assert.NotZero(t, section.LastUpdated)
}

func TestSubscribeNotifyAndUnsubscribe(t *testing.T) {
	s, _, _, _, _ := newTestStore(t)

	var mu sync.Mutex
	var snaps []Snapshot
	cancel := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	})

	_, err := s.FetchSteemPowerData(context.Background(), false)
	require.NoError(t, err)

	mu.Lock()
	count := len(snaps)
	mu.Unlock()
	require.GreaterOrEqual(t, count, 3, "loading on, data, loading off")

	mu.Lock()
	sawLoading := false
	for _, snap := range snaps {
		if snap.Loading.SteemPower {
			sawLoading = true
		}
	}
	final := snaps[len(snaps)-1]
	mu.Unlock()
	assert.True(t, sawLoading, "subscribers observe the loading flag")
	assert.False(t, final.Loading.SteemPower)
	assert.NotZero(t, final.BurnPool.SteemPower)

	cancel()
	cancel() // idempotent
	_, err = s.FetchSteemData(context.Background(), false)
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, count, len(snaps), "no notifications after unsubscribe")
	mu.Unlock()
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s, _, _, _, _ := newTestStore(t)

	_, err := s.FetchBurnPoolData(context.Background(), false, nil)
	require.NoError(t, err)

	snap := s.GetData()
	for day := range snap.BurnPool.BurnsByDay {
		snap.BurnPool.BurnsByDay[day] = -1
	}
	again := s.GetData()
	for _, v := range again.BurnPool.BurnsByDay {
		assert.Greater(t, v, 0.0, "mutating a snapshot must not touch the store")
	}
}

func TestRefreshAllData(t *testing.T) {
	s, chain, scanner, dur, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.FetchBurnPoolData(ctx, false, nil)
	require.NoError(t, err)
	require.Equal(t, 1, scanner.calls)

	require.NoError(t, s.RefreshAllData(ctx))
	assert.Equal(t, 2, scanner.calls, "refresh-all rescans despite freshness")
	assert.GreaterOrEqual(t, dur.invalidations, 1)
	assert.GreaterOrEqual(t, chain.accountsCalls, 1)
	assert.GreaterOrEqual(t, chain.delegCalls, 1)

	snap := s.GetData()
	assert.Equal(t, 10.0, snap.BurnPool.TotalBurned)
	assert.NotZero(t, snap.Steem.VirtualSupply)
	assert.Len(t, snap.Contributors.Contributors, 2)
}

func TestTimeframeImpactFromSnapshot(t *testing.T) {
	s, _, _, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.FetchBurnPoolData(ctx, false, nil)
	require.NoError(t, err)
	_, err = s.FetchSteemData(ctx, false)
	require.NoError(t, err)

	res := s.TimeframeImpact(impact.Timeframe7d)
	assert.Equal(t, impact.SourceMeasured, res.Source)
	assert.InDelta(t, 10.0, res.TotalBurned, 1e-9)
	assert.InDelta(t, 420_000_000, res.VirtualSupply, 1e-3)
}
