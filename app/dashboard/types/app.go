package types

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/steemburnpool/burnboard/pkg/store"
)

type App struct {
	Store *store.Store
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
	// Cron drives the cache sweep and the scheduled section refreshes.
	Cron *cron.Cron
	// Closers are released on shutdown, after the server stops accepting
	// requests.
	Closers []func() error
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	if a.Cron != nil {
		a.Cron.Start()
	}
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	_ = a.Server.Shutdown(shutdownCtx)
	a.Store.Stop()

	for _, closeFn := range a.Closers {
		if err := closeFn(); err != nil {
			a.Logger.Error("Failed to close resource", zap.Error(err))
		}
	}
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("Shutdown complete")
}
