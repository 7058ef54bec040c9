package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snap := c.App.Store.GetData()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"burnLastUpdated": snap.BurnPool.LastUpdated,
		"scanComplete":    snap.BurnPool.ScanComplete,
	})
}
