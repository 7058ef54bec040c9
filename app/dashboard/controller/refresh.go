package controller

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// refreshing guards against stacking full refreshes; a second request while
// one is running is a no-op.
var refreshing atomic.Bool

// HandleRefresh drops every cache layer and re-fetches all sections. The
// refresh runs in the background because the ledger rescan can take minutes;
// clients follow progress over the websocket.
// Endpoint: POST /api/refresh
func (c *Controller) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if !refreshing.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "already refreshing"})
		return
	}

	go func() {
		defer refreshing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()
		if err := c.App.Store.RefreshAllData(ctx); err != nil {
			c.App.Logger.Error("Full refresh failed", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}
