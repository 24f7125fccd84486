// Package api exposes the per-venue proxy handlers on one mux.
package api

import (
	"context"
	"net/http"
	"time"

	"portfolioapi/internal/logger"
	"portfolioapi/internal/portfolio"
	"portfolioapi/internal/price"
	"portfolioapi/internal/price/spot"

	"github.com/shopspring/decimal"
)

// RateChain is the USD/KRW fallback chain surface.
type RateChain interface {
	Fetch(ctx context.Context) (price.Quote, []price.Attempt, error)
}

// SpotTable supplies the USD spot-price lookup table.
type SpotTable interface {
	Fetch(ctx context.Context) (*spot.Table, error)
}

// BinanceAccount is the signed Binance surface the handlers use.
type BinanceAccount interface {
	SpotBalances(ctx context.Context) ([]portfolio.Entry, error)
	FuturesPositions(ctx context.Context) ([]portfolio.Entry, error)
}

// OKXAccount is the signed OKX surface.
type OKXAccount interface {
	TradingBalances(ctx context.Context) ([]portfolio.Entry, error)
}

// BithumbAccount is the signed Bithumb surface plus its public KRW ticker.
type BithumbAccount interface {
	Balances(ctx context.Context) ([]portfolio.Entry, error)
	KRWPrices(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Options carries the aggregation defaults and the upstream call budget.
type Options struct {
	MinUSD          decimal.Decimal
	TopN            int
	UpstreamTimeout time.Duration
}

// Handler holds the route handlers and their dependencies. A nil venue
// client means that venue's credentials are not configured; its routes
// answer with a configuration error without touching the network.
type Handler struct {
	krw     RateChain
	spot    SpotTable
	binance BinanceAccount
	okx     OKXAccount
	bithumb BithumbAccount

	opts Options
	log  logger.Logger
}

func NewHandler(krw RateChain, spotTable SpotTable, binance BinanceAccount, okx OKXAccount, bithumb BithumbAccount, opts Options, log logger.Logger) *Handler {
	if opts.TopN <= 0 {
		opts.TopN = portfolio.DefaultTopN
	}
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = 8 * time.Second
	}
	return &Handler{
		krw:     krw,
		spot:    spotTable,
		binance: binance,
		okx:     okx,
		bithumb: bithumb,
		opts:    opts,
		log:     log,
	}
}

// Routes wires the handlers behind the middleware chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/usdkrw", h.handleUSDKRW)
	mux.HandleFunc("/api/binance/summary", h.handleBinanceSummary)
	mux.HandleFunc("/api/binance/futures", h.handleBinanceFutures)
	mux.HandleFunc("/api/okx/balances", h.handleOKXBalances)
	mux.HandleFunc("/api/bithumb/balances", h.handleBithumbBalances)

	return withJSONHeaders(withGzip(recoverPanic(limitBody(requestID(requestLog(mux, h.log), h.log), 1<<16))))
}

// upstreamContext detaches outbound calls from the inbound request: once a
// handler starts calling venues, a client disconnect does not cancel them,
// only the upstream timeout does.
func (h *Handler) upstreamContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.opts.UpstreamTimeout)
}

func debugRequested(r *http.Request) bool {
	switch r.URL.Query().Get("debug") {
	case "1", "true":
		return true
	}
	return false
}

// minUSD honors a per-request minimum override (?min=250).
func (h *Handler) minUSD(r *http.Request) decimal.Decimal {
	if raw := r.URL.Query().Get("min"); raw != "" {
		if v, err := decimal.NewFromString(raw); err == nil && !v.IsNegative() {
			return v
		}
	}
	return h.opts.MinUSD
}
