package api

import (
	"net/http"
	"time"

	"portfolioapi/internal/exchange"
	"portfolioapi/internal/portfolio"
)

type okxResponse struct {
	portfolio.Result
	T int64 `json:"t"`
}

// handleOKXBalances aggregates the unified trading account. OKX embeds USD
// valuations, so the price table is only fetched when some entry arrives
// without one; if that fetch fails, the whole aggregation fails.
func (h *Handler) handleOKXBalances(w http.ResponseWriter, r *http.Request) {
	if h.okx == nil {
		h.writeError(r.Context(), w, exchange.MissingCredentials("okx"))
		return
	}
	ctx, cancel := h.upstreamContext(r)
	defer cancel()

	entries, err := h.okx.TradingBalances(ctx)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	var lookup portfolio.Lookup
	for _, e := range entries {
		if !e.HasUSD {
			table, err := h.spot.Fetch(ctx)
			if err != nil {
				h.writeError(r.Context(), w, err)
				return
			}
			lookup = table.Lookup
			break
		}
	}

	result := portfolio.Aggregate(entries, lookup, portfolio.Options{
		Exclude: portfolio.DefaultExclusions(),
		MinUSD:  h.minUSD(r),
		TopN:    h.opts.TopN,
	})
	writeJSON(w, http.StatusOK, okxResponse{Result: result, T: time.Now().UnixMilli()})
}
