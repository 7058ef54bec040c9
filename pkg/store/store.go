package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/steemburnpool/burnboard/pkg/burn"
	"github.com/steemburnpool/burnboard/pkg/cache"
	"github.com/steemburnpool/burnboard/pkg/durable"
	"github.com/steemburnpool/burnboard/pkg/impact"
	"github.com/steemburnpool/burnboard/pkg/rpc"
)

// Cache keys, one per section.
const (
	burnKey    = "burn-pool-data"
	powerKey   = "steem-power-data"
	contribKey = "contributors-data"
	steemKey   = "steem-data"
)

// ChainAPI is the slice of the node client the store needs.
type ChainAPI interface {
	DynamicGlobalProperties(ctx context.Context) (*rpc.GlobalProperties, error)
	Accounts(ctx context.Context, names []string) ([]rpc.Account, error)
	IncomingDelegations(ctx context.Context, account string) ([]rpc.DelegationRow, error)
}

// VestsRateAPI converts VESTS to STEEM at the current rate.
type VestsRateAPI interface {
	VestsToSteem(ctx context.Context) (float64, error)
}

// Scanner produces the full burn aggregate from the rewards ledger.
type Scanner interface {
	Run(ctx context.Context, onProgress burn.ProgressFunc) (*burn.AggregateResult, error)
}

type powerData struct {
	steemPower   float64
	account      string
	profileImage string
}

type contribData struct {
	contributors []Contributor
}

// Store holds the dashboard's shared state: one section per data source,
// each with its own freshness window, in-memory cache and loading flag.
// Readers get deep-copied snapshots; subscribers are notified after every
// mutation.
type Store struct {
	cfg     Config
	logger  *zap.Logger
	chain   ChainAPI
	rates   VestsRateAPI
	scanner Scanner
	durable durable.Store

	burnCache    *cache.Cache[*burn.AggregateResult]
	powerCache   *cache.Cache[powerData]
	contribCache *cache.Cache[contribData]
	steemCache   *cache.Cache[SteemSection]

	mu               sync.RWMutex
	snap             Snapshot
	burnFetchedAt    time.Time
	powerFetchedAt   time.Time
	contribFetchedAt time.Time
	steemFetchedAt   time.Time

	// Generation tokens invalidate in-flight fetches when a newer refresh
	// supersedes them, so a slow scan cannot clobber fresher data.
	burnGen    atomic.Uint64
	powerGen   atomic.Uint64
	contribGen atomic.Uint64

	lmu       sync.Mutex
	listeners map[int]func(Snapshot)
	nextID    int

	pool pond.Pool
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New builds a Store around the given chain client, rate source, ledger
// scanner and durable cache.
func New(cfg Config, chain ChainAPI, rates VestsRateAPI, scanner Scanner, dur durable.Store, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		cfg:       cfg,
		logger:    logger.Named("store"),
		chain:     chain,
		rates:     rates,
		scanner:   scanner,
		durable:   dur,
		listeners: make(map[int]func(Snapshot)),
		pool:      pond.NewPool(3),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.burnCache = cache.New[*burn.AggregateResult](logger, cache.WithClock[*burn.AggregateResult](s.now))
	s.powerCache = cache.New[powerData](logger, cache.WithClock[powerData](s.now))
	s.contribCache = cache.New[contribData](logger, cache.WithClock[contribData](s.now))
	s.steemCache = cache.New[SteemSection](logger, cache.WithClock[SteemSection](s.now))
	return s
}

// GetData returns a deep copy of the current snapshot.
func (s *Store) GetData() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// Subscribe registers fn to receive a snapshot after every mutation. The
// returned function removes the subscription; calling it more than once is
// harmless.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	snap := s.snap.clone()
	s.mu.RUnlock()

	s.lmu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) setLoading(mutate func(*LoadingFlags)) {
	s.mu.Lock()
	mutate(&s.snap.Loading)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) fresh(fetchedAt time.Time, window time.Duration) bool {
	return !fetchedAt.IsZero() && s.now().Sub(fetchedAt) < window
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}

// FetchBurnPoolData returns the burn section, scanning the ledger when the
// section is stale or force is set. Force drops both the in-memory entry and
// the durable aggregate before scanning. A failed fetch leaves the previous
// section untouched.
func (s *Store) FetchBurnPoolData(ctx context.Context, force bool, onProgress burn.ProgressFunc) (BurnPoolSection, error) {
	if !force {
		s.mu.RLock()
		section := s.snap.BurnPool.clone()
		isFresh := s.fresh(s.burnFetchedAt, s.cfg.BurnFreshFor)
		s.mu.RUnlock()
		if isFresh {
			return section, nil
		}
	}

	gen := s.burnGen.Add(1)
	s.setLoading(func(f *LoadingFlags) { f.BurnData = true })
	defer s.setLoading(func(f *LoadingFlags) { f.BurnData = false })

	var (
		res *burn.AggregateResult
		err error
	)
	if force {
		s.burnCache.Invalidate(burnKey)
		if derr := s.durable.Invalidate(ctx); derr != nil {
			s.logger.Warn("Failed to invalidate durable burn aggregate", zap.Error(derr))
		}
		res, err = s.runScan(ctx, onProgress)
	} else {
		res, err = s.burnCache.FetchWithCache(ctx, burnKey, func(ctx context.Context) (*burn.AggregateResult, error) {
			return s.runScan(ctx, onProgress)
		}, s.cfg.BurnCacheTTL)
	}
	if err != nil {
		return BurnPoolSection{}, fmt.Errorf("fetch burn pool data: %w", err)
	}

	if s.burnGen.Load() != gen {
		s.logger.Debug("Discarding superseded burn scan result")
		s.mu.RLock()
		section := s.snap.BurnPool.clone()
		s.mu.RUnlock()
		return section, nil
	}

	s.mu.Lock()
	s.snap.BurnPool.TotalBurned = res.TotalBurned
	s.snap.BurnPool.BurnsToday = res.BurnsToday
	s.snap.BurnPool.BurnsByDay = res.BurnsByDay.Clone()
	s.snap.BurnPool.LastBurnTimestamp = res.LastBurnTimestamp
	s.snap.BurnPool.TotalTransactions = res.TotalTransactions
	s.snap.BurnPool.ScanComplete = res.Complete
	s.snap.BurnPool.LastUpdated = s.nowMillis()
	s.burnFetchedAt = s.now()
	section := s.snap.BurnPool.clone()
	s.mu.Unlock()
	s.notify()
	return section, nil
}

// runScan serves the aggregate from the durable cache when a fresh copy
// exists, otherwise runs the full ledger scan. Only complete scans are
// persisted; partial results would freeze an undercount for the cache's
// lifetime.
func (s *Store) runScan(ctx context.Context, onProgress burn.ProgressFunc) (*burn.AggregateResult, error) {
	if res, ok := s.durable.Load(ctx); ok {
		s.logger.Debug("Serving burn aggregate from durable cache",
			zap.Float64("totalBurned", res.TotalBurned))
		return res, nil
	}
	res, err := s.scanner.Run(ctx, onProgress)
	if err != nil {
		return nil, err
	}
	if res.Complete {
		if derr := s.durable.Save(ctx, res); derr != nil {
			s.logger.Warn("Failed to persist burn aggregate", zap.Error(derr))
		}
	} else {
		s.logger.Warn("Burn scan incomplete, skipping durable persist",
			zap.Float64("totalBurned", res.TotalBurned))
	}
	return res, nil
}

// FetchSteemPowerData refreshes the pool account's effective STEEM Power and
// profile within the burn section.
func (s *Store) FetchSteemPowerData(ctx context.Context, force bool) (BurnPoolSection, error) {
	if !force {
		s.mu.RLock()
		section := s.snap.BurnPool.clone()
		isFresh := s.fresh(s.powerFetchedAt, s.cfg.PowerFreshFor)
		s.mu.RUnlock()
		if isFresh {
			return section, nil
		}
	}

	gen := s.powerGen.Add(1)
	s.setLoading(func(f *LoadingFlags) { f.SteemPower = true })
	defer s.setLoading(func(f *LoadingFlags) { f.SteemPower = false })

	producer := func(ctx context.Context) (powerData, error) {
		accounts, err := s.chain.Accounts(ctx, []string{s.cfg.PoolAccount})
		if err != nil {
			return powerData{}, err
		}
		if len(accounts) == 0 {
			return powerData{}, fmt.Errorf("account %q not found", s.cfg.PoolAccount)
		}
		props, err := s.chain.DynamicGlobalProperties(ctx)
		if err != nil {
			return powerData{}, err
		}
		acct := accounts[0]
		return powerData{
			steemPower:   acct.EffectiveVests() * props.SteemPerVest(),
			account:      acct.Name,
			profileImage: acct.ProfileImage(avatarURL(s.cfg.PoolAccount)),
		}, nil
	}

	var (
		data powerData
		err  error
	)
	if force {
		s.powerCache.Invalidate(powerKey)
		data, err = producer(ctx)
		if err == nil {
			s.powerCache.Set(powerKey, data, s.cfg.PowerCacheTTL)
		}
	} else {
		data, err = s.powerCache.FetchWithCache(ctx, powerKey, producer, s.cfg.PowerCacheTTL)
	}
	if err != nil {
		return BurnPoolSection{}, fmt.Errorf("fetch steem power: %w", err)
	}

	if s.powerGen.Load() != gen {
		s.logger.Debug("Discarding superseded steem power result")
		s.mu.RLock()
		section := s.snap.BurnPool.clone()
		s.mu.RUnlock()
		return section, nil
	}

	s.mu.Lock()
	s.snap.BurnPool.SteemPower = data.steemPower
	s.snap.BurnPool.Account = data.account
	s.snap.BurnPool.ProfileImage = data.profileImage
	s.snap.BurnPool.LastUpdated = s.nowMillis()
	s.powerFetchedAt = s.now()
	section := s.snap.BurnPool.clone()
	s.mu.Unlock()
	s.notify()
	return section, nil
}

// FetchContributorsData refreshes the delegator list. On failure the section
// degrades to an empty list with an error marker instead of returning an
// error: the dashboard renders without contributors rather than not at all.
func (s *Store) FetchContributorsData(ctx context.Context, force bool) (ContributorsSection, error) {
	if !force {
		s.mu.RLock()
		section := s.snap.Contributors.clone()
		isFresh := len(s.snap.Contributors.Contributors) > 0 &&
			s.fresh(s.contribFetchedAt, s.cfg.ContributorsFreshFor)
		s.mu.RUnlock()
		if isFresh {
			return section, nil
		}
	}

	gen := s.contribGen.Add(1)
	s.setLoading(func(f *LoadingFlags) { f.Contributors = true })
	defer s.setLoading(func(f *LoadingFlags) { f.Contributors = false })

	producer := func(ctx context.Context) (contribData, error) {
		rate, err := s.rates.VestsToSteem(ctx)
		if err != nil {
			return contribData{}, err
		}
		rows, err := s.chain.IncomingDelegations(ctx, s.cfg.PoolAccount)
		if err != nil {
			return contribData{}, err
		}
		contributors := make([]Contributor, 0, len(rows))
		for _, row := range rows {
			if row.Delegator == "" || row.Vests <= 0 {
				continue
			}
			contributors = append(contributors, Contributor{
				Name:      row.Delegator,
				Steem:     row.Vests * rate,
				AvatarURL: avatarURL(row.Delegator),
			})
		}
		sort.Slice(contributors, func(i, j int) bool {
			return contributors[i].Steem > contributors[j].Steem
		})
		return contribData{contributors: contributors}, nil
	}

	var (
		data contribData
		err  error
	)
	if force {
		s.contribCache.Invalidate(contribKey)
		data, err = producer(ctx)
		if err == nil {
			s.contribCache.Set(contribKey, data, s.cfg.ContributorsCacheTTL)
		}
	} else {
		data, err = s.contribCache.FetchWithCache(ctx, contribKey, producer, s.cfg.ContributorsCacheTTL)
	}
	if err != nil {
		s.logger.Warn("Failed to fetch contributors, degrading to empty list", zap.Error(err))
		s.mu.Lock()
		s.snap.Contributors = ContributorsSection{
			Contributors: []Contributor{},
			Total:        0,
			Error:        "failed to fetch contributors",
			LastUpdated:  s.nowMillis(),
		}
		s.contribFetchedAt = s.now()
		section := s.snap.Contributors.clone()
		s.mu.Unlock()
		s.notify()
		return section, nil
	}

	if s.contribGen.Load() != gen {
		s.logger.Debug("Discarding superseded contributors result")
		s.mu.RLock()
		section := s.snap.Contributors.clone()
		s.mu.RUnlock()
		return section, nil
	}

	s.mu.Lock()
	s.snap.Contributors = ContributorsSection{
		Contributors: data.contributors,
		Total:        len(data.contributors),
		LastUpdated:  s.nowMillis(),
	}
	s.contribFetchedAt = s.now()
	section := s.snap.Contributors.clone()
	s.mu.Unlock()
	s.notify()
	return section, nil
}

// FetchSteemData refreshes the chain-wide supply figures.
func (s *Store) FetchSteemData(ctx context.Context, force bool) (SteemSection, error) {
	if !force {
		s.mu.RLock()
		section := s.snap.Steem
		isFresh := s.fresh(s.steemFetchedAt, s.cfg.SteemFreshFor)
		s.mu.RUnlock()
		if isFresh {
			return section, nil
		}
	}

	producer := func(ctx context.Context) (SteemSection, error) {
		props, err := s.chain.DynamicGlobalProperties(ctx)
		if err != nil {
			return SteemSection{}, err
		}
		rate := InflationRate(props.HeadBlockNumber)
		return SteemSection{
			CurrentSupply:    props.CurrentSupply.Float(),
			CurrentSBDSupply: props.CurrentSBDSupply.Float(),
			VirtualSupply:    props.VirtualSupply.Float(),
			HeadBlockNumber:  props.HeadBlockNumber,
			InflationRate:    rate,
			NewSteemPerDay:   NewSteemPerDay(props.VirtualSupply.Float(), rate),
			SBDPrintRate:     props.SBDPrintRate,
			SBDInterestRate:  props.SBDInterestRate,
		}, nil
	}

	var (
		data SteemSection
		err  error
	)
	if force {
		s.steemCache.Invalidate(steemKey)
		data, err = producer(ctx)
		if err == nil {
			s.steemCache.Set(steemKey, data, s.cfg.SteemCacheTTL)
		}
	} else {
		data, err = s.steemCache.FetchWithCache(ctx, steemKey, producer, s.cfg.SteemCacheTTL)
	}
	if err != nil {
		return SteemSection{}, fmt.Errorf("fetch steem data: %w", err)
	}

	s.UpdateSteemData(data)
	s.mu.RLock()
	section := s.snap.Steem
	s.mu.RUnlock()
	return section, nil
}

// UpdateSteemData replaces the steem section and notifies subscribers. The
// LastUpdated stamp is set here, not by callers.
func (s *Store) UpdateSteemData(data SteemSection) {
	s.mu.Lock()
	data.LastUpdated = s.nowMillis()
	s.snap.Steem = data
	s.steemFetchedAt = s.now()
	s.mu.Unlock()
	s.notify()
}

// RefreshAllData drops every cache layer, including the durable aggregate,
// and re-fetches all sections in parallel with force set. Errors from the
// individual fetches are joined; a contributors failure never surfaces here
// because that section degrades instead of failing.
func (s *Store) RefreshAllData(ctx context.Context) error {
	s.burnCache.Clear()
	s.powerCache.Clear()
	s.contribCache.Clear()
	s.steemCache.Clear()
	if err := s.durable.Invalidate(ctx); err != nil {
		s.logger.Warn("Failed to invalidate durable burn aggregate", zap.Error(err))
	}

	group := s.pool.NewGroupContext(ctx)
	group.SubmitErr(func() error {
		_, err := s.FetchBurnPoolData(ctx, true, nil)
		return err
	})
	group.SubmitErr(func() error {
		_, err := s.FetchSteemPowerData(ctx, true)
		return err
	})
	group.SubmitErr(func() error {
		_, err := s.FetchContributorsData(ctx, true)
		return err
	})
	group.SubmitErr(func() error {
		_, err := s.FetchSteemData(ctx, true)
		return err
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("refresh all data: %w", err)
	}
	return nil
}

// TimeframeImpact computes the supply impact of burns over the given window
// from the current snapshot.
func (s *Store) TimeframeImpact(tf impact.Timeframe) impact.TimeframeImpact {
	snap := s.GetData()
	return impact.CalculateTimeframeImpact(tf, impact.Input{
		Histogram:     snap.BurnPool.BurnsByDay,
		FallbackTotal: snap.BurnPool.TotalBurned,
		VirtualSupply: snap.Steem.VirtualSupply,
		ProgramStart:  s.cfg.ProgramStart,
		Now:           s.now(),
	})
}

// DeflationRate renders the lifetime supply impact as the roadmap's
// percentage string.
func (s *Store) DeflationRate() string {
	snap := s.GetData()
	return impact.DeflationRate(impact.Input{
		Histogram:     snap.BurnPool.BurnsByDay,
		FallbackTotal: snap.BurnPool.TotalBurned,
		VirtualSupply: snap.Steem.VirtualSupply,
		ProgramStart:  s.cfg.ProgramStart,
		Now:           s.now(),
	})
}

// SweepCaches evicts expired entries from every in-memory cache and returns
// the total number removed.
func (s *Store) SweepCaches() int {
	n := s.burnCache.Sweep() + s.powerCache.Sweep() + s.contribCache.Sweep() + s.steemCache.Sweep()
	if n > 0 {
		s.logger.Debug("Swept expired cache entries", zap.Int("evicted", n))
	}
	return n
}

// Stop releases the store's worker pool.
func (s *Store) Stop() {
	s.pool.StopAndWait()
}

func avatarURL(account string) string {
	return "https://steemitimages.com/u/" + account + "/avatar"
}
