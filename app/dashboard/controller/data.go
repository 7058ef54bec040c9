package controller

import (
	"net/http"

	"github.com/steemburnpool/burnboard/pkg/utils"
)

// HandleData returns the full snapshot without triggering any fetches.
// Endpoint: GET /api/data
func (c *Controller) HandleData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.App.Store.GetData())
}

// HandleBurnPool serves the burn section, refreshing it first when stale.
// A fresh section returns immediately from the snapshot; a stale one may
// block on a ledger scan.
// Endpoint: GET /api/data/burn-pool
func (c *Controller) HandleBurnPool(w http.ResponseWriter, r *http.Request) {
	section, err := c.App.Store.FetchBurnPoolData(r.Context(), false, nil)
	if err != nil {
		writeError(w, http.StatusBadGateway, "burn data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":                 section,
		"formattedTotalBurned": utils.FormatLargeNumber(section.TotalBurned),
		"formattedBurnsToday":  utils.FormatLargeNumber(section.BurnsToday),
	})
}

// HandleContributors serves the delegator list, refreshing it first when
// stale. Upstream failures degrade to an empty list with an error marker,
// so this endpoint never returns a 5xx for them.
// Endpoint: GET /api/data/contributors
func (c *Controller) HandleContributors(w http.ResponseWriter, r *http.Request) {
	section, err := c.App.Store.FetchContributorsData(r.Context(), false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "contributors unavailable")
		return
	}
	writeJSON(w, http.StatusOK, section)
}

// HandleSteem serves the chain-wide supply section, refreshing it first when
// stale.
// Endpoint: GET /api/data/steem
func (c *Controller) HandleSteem(w http.ResponseWriter, r *http.Request) {
	section, err := c.App.Store.FetchSteemData(r.Context(), false)
	if err != nil {
		writeError(w, http.StatusBadGateway, "steem data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, section)
}
