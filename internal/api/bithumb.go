package api

import (
	"net/http"
	"time"

	"portfolioapi/internal/exchange"
	"portfolioapi/internal/portfolio"
	"portfolioapi/internal/price"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type bithumbResponse struct {
	portfolio.Result
	USDKRW decimal.Decimal `json:"usdkrw"`
	T      int64           `json:"t"`
	Debug  []price.Attempt `json:"debug,omitempty"`
}

// handleBithumbBalances values KRW-market holdings in USD: quantity x KRW
// closing price, divided by the USD/KRW rate from the fallback chain.
// Balances, the KRW ticker and the FX rate are independent calls and fan
// out concurrently; losing the ticker or the FX rate fails the whole
// aggregation, losing one asset's price only drops that asset.
func (h *Handler) handleBithumbBalances(w http.ResponseWriter, r *http.Request) {
	if h.bithumb == nil {
		h.writeError(r.Context(), w, exchange.MissingCredentials("bithumb"))
		return
	}
	ctx, cancel := h.upstreamContext(r)
	defer cancel()

	var (
		entries  []portfolio.Entry
		krw      map[string]decimal.Decimal
		fx       price.Quote
		attempts []price.Attempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		entries, err = h.bithumb.Balances(gctx)
		return err
	})
	g.Go(func() (err error) {
		krw, err = h.bithumb.KRWPrices(gctx)
		return err
	})
	g.Go(func() (err error) {
		fx, attempts, err = h.krw.Fetch(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	lookup := func(asset string) (decimal.Decimal, bool) {
		p, ok := krw[asset]
		if !ok {
			return decimal.Zero, false
		}
		return p.Div(fx.Rate), true
	}

	result := portfolio.Aggregate(entries, lookup, portfolio.Options{
		Exclude: portfolio.DefaultExclusions(),
		MinUSD:  h.minUSD(r),
		TopN:    h.opts.TopN,
	})

	resp := bithumbResponse{Result: result, USDKRW: fx.Rate, T: time.Now().UnixMilli()}
	if debugRequested(r) {
		resp.Debug = attempts
	}
	writeJSON(w, http.StatusOK, resp)
}
