package dashboard

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/steemburnpool/burnboard/app/dashboard/types"
	"github.com/steemburnpool/burnboard/pkg/burn"
	"github.com/steemburnpool/burnboard/pkg/durable"
	"github.com/steemburnpool/burnboard/pkg/logging"
	"github.com/steemburnpool/burnboard/pkg/retry"
	"github.com/steemburnpool/burnboard/pkg/rpc"
	"github.com/steemburnpool/burnboard/pkg/store"
	"github.com/steemburnpool/burnboard/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	chain := rpc.NewClient(rpc.Opts{
		CondenserEndpoints: envList("STEEM_API_URLS", "https://api.steemit.com"),
		SDSEndpoints:       envList("STEEMWORLD_SDS_URLS", "https://sds0.steemworld.org"),
		Timeout:            utils.EnvDuration("RPC_TIMEOUT", 15*time.Second),
	}, logger)
	oracle := rpc.NewOracle(utils.Env("PRICE_ORACLE_URL", "https://api.coingecko.com"), 0, logger)
	vests := rpc.NewVestsRateClient(utils.Env("VESTS_RATE_URL", "https://api.justyy.workers.dev"), 0, logger)

	var closers []func() error

	maxAge := utils.EnvDuration("DURABLE_MAX_AGE", durable.DefaultMaxAge)
	var dur durable.Store
	switch utils.Env("DURABLE_BACKEND", "file") {
	case "redis":
		rs, redisErr := durable.NewRedisStore(ctx, maxAge, logger)
		if redisErr != nil {
			logger.Fatal("Unable to initialize redis durable cache", zap.Error(redisErr))
		}
		dur = rs
		closers = append(closers, rs.Close)
	default:
		fs, fileErr := durable.NewFileStore(utils.Env("DURABLE_PATH", "data/total-burned-steem.json"), maxAge, logger)
		if fileErr != nil {
			logger.Fatal("Unable to initialize file durable cache", zap.Error(fileErr))
		}
		dur = fs
	}

	burnCfg := burn.DefaultConfig()
	burnCfg.TrackingAccount = utils.Env("BURN_TRACKING_ACCOUNT", burnCfg.TrackingAccount)
	burnCfg.ScanStart = utils.EnvTime("BURN_SCAN_START", burnCfg.ScanStart)
	burnCfg.PageSize = utils.EnvInt("BURN_PAGE_SIZE", burnCfg.PageSize)
	scanner := burn.New(burnCfg, chain, oracle, logger)

	st := store.New(store.ConfigFromEnv(), chain, vests, scanner, dur, logger)

	app := &types.App{
		Store:   st,
		Logger:  logger,
		Closers: closers,
	}

	if schedErr := setupScheduler(ctx, app); schedErr != nil {
		logger.Fatal("Unable to initialize scheduler", zap.Error(schedErr))
	}

	// Warm the sections in the background so the dashboard serves real data
	// soon after boot without delaying startup.
	go warm(ctx, app)

	return app
}

// setupScheduler wires the recurring jobs: a cache sweep every minute and
// non-forced section refreshes that re-fetch only what has gone stale.
func setupScheduler(ctx context.Context, app *types.App) error {
	app.Cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	if _, err := app.Cron.AddFunc(utils.Env("SWEEP_CRON", "@every 1m"), func() {
		app.Store.SweepCaches()
	}); err != nil {
		return err
	}

	if _, err := app.Cron.AddFunc(utils.Env("REFRESH_CRON", "@every 2m"), func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		refreshStale(rctx, app)
	}); err != nil {
		return err
	}

	return nil
}

// refreshStale runs a non-forced fetch of every section. Fresh sections
// return immediately, so this only costs network calls for what has expired.
func refreshStale(ctx context.Context, app *types.App) {
	if _, err := app.Store.FetchSteemData(ctx, false); err != nil {
		app.Logger.Warn("Scheduled steem data refresh failed", zap.Error(err))
	}
	if _, err := app.Store.FetchSteemPowerData(ctx, false); err != nil {
		app.Logger.Warn("Scheduled steem power refresh failed", zap.Error(err))
	}
	if _, err := app.Store.FetchContributorsData(ctx, false); err != nil {
		app.Logger.Warn("Scheduled contributors refresh failed", zap.Error(err))
	}
	if _, err := app.Store.FetchBurnPoolData(ctx, false, nil); err != nil {
		app.Logger.Warn("Scheduled burn data refresh failed", zap.Error(err))
	}
}

func warm(ctx context.Context, app *types.App) {
	err := retry.WithBackoff(ctx, retry.DefaultConfig(), app.Logger, "initial data load", func() error {
		if _, ferr := app.Store.FetchSteemData(ctx, false); ferr != nil {
			return ferr
		}
		if _, ferr := app.Store.FetchSteemPowerData(ctx, false); ferr != nil {
			return ferr
		}
		if _, ferr := app.Store.FetchContributorsData(ctx, false); ferr != nil {
			return ferr
		}
		_, ferr := app.Store.FetchBurnPoolData(ctx, false, func(p burn.Progress) {
			app.Logger.Info("Burn ledger scan progress",
				zap.Int("percentage", p.Percentage),
				zap.String("message", p.Message))
		})
		return ferr
	})
	if err != nil {
		app.Logger.Warn("Initial data load did not complete", zap.Error(err))
	}
}

func envList(key, def string) []string {
	raw := utils.Env(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
