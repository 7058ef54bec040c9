package controller

import (
	"net/http"

	"github.com/steemburnpool/burnboard/pkg/impact"
	"github.com/steemburnpool/burnboard/pkg/utils"
)

// HandleImpact returns the supply impact of burns over a timeframe computed
// from the current snapshot. Unknown timeframe values fall back to 30d.
// Endpoint: GET /api/analytics/impact?timeframe=7d|30d|90d|all
func (c *Controller) HandleImpact(w http.ResponseWriter, r *http.Request) {
	tf := impact.ParseTimeframe(r.URL.Query().Get("timeframe"))
	res := c.App.Store.TimeframeImpact(tf)

	writeJSON(w, http.StatusOK, map[string]any{
		"timeframe":            tf,
		"impact":               res,
		"deflationRate":        c.App.Store.DeflationRate(),
		"formattedTotalBurned": utils.FormatLargeNumber(res.TotalBurned),
	})
}
