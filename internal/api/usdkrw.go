package api

import (
	"net/http"

	"portfolioapi/internal/price"

	"github.com/shopspring/decimal"
)

type usdkrwResponse struct {
	Rate   decimal.Decimal `json:"rate"`
	Source string          `json:"source"`
	T      int64           `json:"t"`
	Debug  []price.Attempt `json:"debug,omitempty"`
}

// handleUSDKRW walks the KRW source chain and returns the first accepted
// rate. All sources failing is the only error outcome.
func (h *Handler) handleUSDKRW(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}
	ctx, cancel := h.upstreamContext(r)
	defer cancel()

	quote, attempts, err := h.krw.Fetch(ctx)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	resp := usdkrwResponse{Rate: quote.Rate, Source: quote.Source, T: quote.Timestamp}
	if debugRequested(r) {
		resp.Debug = attempts
	}
	writeJSON(w, http.StatusOK, resp)
}
