package api

import (
	"net/http"
	"time"

	"portfolioapi/internal/exchange"
	"portfolioapi/internal/portfolio"
	"portfolioapi/internal/price/spot"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type binanceSummaryResponse struct {
	Spot    portfolio.Result `json:"spot"`
	Futures portfolio.Result `json:"futures"`
	AltUSD  decimal.Decimal  `json:"altUsd"`
	T       int64            `json:"t"`
	Debug   *binanceDebug    `json:"debug,omitempty"`
}

type binanceDebug struct {
	SpotEntries    int      `json:"spotEntries"`
	FuturesEntries int      `json:"futuresEntries"`
	SkippedSpot    []string `json:"skippedSpot,omitempty"`
	SkippedFutures []string `json:"skippedFutures,omitempty"`
}

// handleBinanceSummary joins the spot wallet and futures positions into one
// alt-asset view. Wallet, positions and the price table are independent
// upstream calls, so they fan out concurrently and join before aggregation.
func (h *Handler) handleBinanceSummary(w http.ResponseWriter, r *http.Request) {
	if h.binance == nil {
		h.writeError(r.Context(), w, exchange.MissingCredentials("binance"))
		return
	}
	ctx, cancel := h.upstreamContext(r)
	defer cancel()

	var (
		spotEntries    []portfolio.Entry
		futuresEntries []portfolio.Entry
		table          *spot.Table
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		spotEntries, err = h.binance.SpotBalances(gctx)
		return err
	})
	g.Go(func() (err error) {
		futuresEntries, err = h.binance.FuturesPositions(gctx)
		return err
	})
	g.Go(func() (err error) {
		table, err = h.spot.Fetch(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	minUSD := h.minUSD(r)
	spotResult := portfolio.Aggregate(spotEntries, table.Lookup, portfolio.Options{
		Exclude: portfolio.DefaultExclusions(),
		MinUSD:  minUSD,
		TopN:    h.opts.TopN,
	})
	futuresResult := portfolio.Aggregate(futuresEntries, table.Lookup, portfolio.Options{
		Exclude: portfolio.DefaultExclusions(),
		MinUSD:  minUSD,
		TopN:    h.opts.TopN,
		Signed:  true,
	})

	resp := binanceSummaryResponse{
		Spot:    spotResult,
		Futures: futuresResult,
		AltUSD:  spotResult.TotalUSD.Add(futuresResult.TotalUSD),
		T:       time.Now().UnixMilli(),
	}
	if debugRequested(r) {
		resp.Debug = &binanceDebug{
			SpotEntries:    len(spotEntries),
			FuturesEntries: len(futuresEntries),
			SkippedSpot:    spotResult.Skipped,
			SkippedFutures: futuresResult.Skipped,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type binanceFuturesResponse struct {
	NetUSD decimal.Decimal     `json:"netUsd"`
	Top    []portfolio.Balance `json:"top"`
	T      int64               `json:"t"`
}

// handleBinanceFutures returns net directional exposure: long positions
// count positive, shorts negative.
func (h *Handler) handleBinanceFutures(w http.ResponseWriter, r *http.Request) {
	if h.binance == nil {
		h.writeError(r.Context(), w, exchange.MissingCredentials("binance"))
		return
	}
	ctx, cancel := h.upstreamContext(r)
	defer cancel()

	entries, err := h.binance.FuturesPositions(ctx)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	result := portfolio.Aggregate(entries, nil, portfolio.Options{
		Exclude: portfolio.DefaultExclusions(),
		MinUSD:  h.minUSD(r),
		TopN:    h.opts.TopN,
		Signed:  true,
	})
	writeJSON(w, http.StatusOK, binanceFuturesResponse{
		NetUSD: result.TotalUSD,
		Top:    result.Top,
		T:      time.Now().UnixMilli(),
	})
}
