package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"portfolioapi/internal/logger"
	"portfolioapi/internal/portfolio"
	"portfolioapi/internal/price"
	"portfolioapi/internal/price/spot"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeChain struct {
	quote    price.Quote
	attempts []price.Attempt
	err      error
}

func (f fakeChain) Fetch(context.Context) (price.Quote, []price.Attempt, error) {
	return f.quote, f.attempts, f.err
}

type fakeTable struct {
	prices map[string]decimal.Decimal
	err    error
	calls  int
}

func (f *fakeTable) Fetch(context.Context) (*spot.Table, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return spot.NewTable(f.prices), nil
}

type fakeBinance struct {
	spot    []portfolio.Entry
	futures []portfolio.Entry
	err     error
}

func (f fakeBinance) SpotBalances(context.Context) ([]portfolio.Entry, error) {
	return f.spot, f.err
}

func (f fakeBinance) FuturesPositions(context.Context) ([]portfolio.Entry, error) {
	return f.futures, f.err
}

type fakeOKX struct {
	entries []portfolio.Entry
	err     error
}

func (f fakeOKX) TradingBalances(context.Context) ([]portfolio.Entry, error) {
	return f.entries, f.err
}

type fakeBithumb struct {
	entries []portfolio.Entry
	krw     map[string]decimal.Decimal
	err     error
}

func (f fakeBithumb) Balances(context.Context) ([]portfolio.Entry, error) {
	return f.entries, f.err
}

func (f fakeBithumb) KRWPrices(context.Context) (map[string]decimal.Decimal, error) {
	return f.krw, f.err
}

type deps struct {
	krw     RateChain
	table   SpotTable
	binance BinanceAccount
	okx     OKXAccount
	bithumb BithumbAccount
}

func newTestHandler(t *testing.T, dp deps) *Handler {
	t.Helper()
	return NewHandler(dp.krw, dp.table, dp.binance, dp.okx, dp.bithumb, Options{
		MinUSD: d("100"),
		TopN:   20,
	}, logger.New())
}

func get(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.Routes().ServeHTTP(rr, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body must always be JSON: %s", rr.Body.String())
	return rr, body
}

func TestUSDKRW_Success(t *testing.T) {
	h := newTestHandler(t, deps{krw: fakeChain{
		quote:    price.Quote{Rate: d("1350.25"), Source: "C", Timestamp: 1700000000000},
		attempts: []price.Attempt{{Source: "A"}, {Source: "B"}, {Source: "C", OK: true}},
	}})

	rr, body := get(t, h, "/api/usdkrw")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1350.25", body["rate"])
	require.Equal(t, "C", body["source"])
	require.NotZero(t, body["t"])
	_, present := body["debug"]
	require.False(t, present, "debug must never appear unless requested")
}

func TestUSDKRW_DebugOnlyWhenRequested(t *testing.T) {
	h := newTestHandler(t, deps{krw: fakeChain{
		quote:    price.Quote{Rate: d("1350.25"), Source: "C", Timestamp: 1},
		attempts: []price.Attempt{{Source: "A", Error: "boom"}, {Source: "C", OK: true}},
	}})

	_, body := get(t, h, "/api/usdkrw?debug=1")
	debug, ok := body["debug"].([]any)
	require.True(t, ok)
	require.Len(t, debug, 2)
}

func TestUSDKRW_Exhausted502WithAttempts(t *testing.T) {
	attempts := []price.Attempt{
		{Source: "A", Error: "parse body: not a number", Status: 500},
		{Source: "B", Error: "non-positive rate -5", Status: 200},
	}
	h := newTestHandler(t, deps{krw: fakeChain{err: &price.ExhaustedError{Attempts: attempts}}})

	rr, body := get(t, h, "/api/usdkrw")
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.NotEmpty(t, body["error"])
	got, ok := body["attempts"].([]any)
	require.True(t, ok)
	require.Len(t, got, 2, "exactly one diagnostic per attempted source")
	first := got[0].(map[string]any)
	require.Equal(t, "A", first["source"])
}

func TestBinanceSummary_JoinsSpotAndFutures(t *testing.T) {
	h := newTestHandler(t, deps{
		table: &fakeTable{prices: map[string]decimal.Decimal{
			"SOLUSDT": d("150"),
		}},
		binance: fakeBinance{
			spot: []portfolio.Entry{
				{Asset: "BTC", Quantity: d("1")}, // excluded by default
				{Asset: "SOL", Quantity: d("10")},
			},
			futures: []portfolio.Entry{
				{Asset: "ALT", Quantity: d("3"), USD: d("300"), HasUSD: true},
				{Asset: "ALT", Quantity: d("-2"), USD: d("-200"), HasUSD: true},
			},
		},
	})

	rr, body := get(t, h, "/api/binance/summary")
	require.Equal(t, http.StatusOK, rr.Code)

	spotPart := body["spot"].(map[string]any)
	require.Equal(t, "1500", spotPart["totalUsd"])
	futuresPart := body["futures"].(map[string]any)
	require.Equal(t, "100", futuresPart["totalUsd"], "futures must net long and short, not sum magnitudes")
	require.Equal(t, "1600", body["altUsd"])
}

func TestBinanceSummary_TableFailureIsFatal(t *testing.T) {
	h := newTestHandler(t, deps{
		table:   &fakeTable{err: errors.New("ticker unavailable")},
		binance: fakeBinance{spot: []portfolio.Entry{{Asset: "SOL", Quantity: d("10")}}},
	})

	rr, body := get(t, h, "/api/binance/summary")
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, body["error"], "ticker unavailable")
}

func TestBinance_MissingCredentials500(t *testing.T) {
	h := newTestHandler(t, deps{})

	rr, body := get(t, h, "/api/binance/summary")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, body["error"], "missing binance credentials")
}

func TestBinanceFutures_NetExposure(t *testing.T) {
	h := newTestHandler(t, deps{binance: fakeBinance{futures: []portfolio.Entry{
		{Asset: "ALT", Quantity: d("3"), USD: d("300"), HasUSD: true},
		{Asset: "ALT", Quantity: d("-2"), USD: d("-200"), HasUSD: true},
	}}})

	rr, body := get(t, h, "/api/binance/futures")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "100", body["netUsd"])
}

func TestOKXBalances_TableOnlyFetchedWhenNeeded(t *testing.T) {
	table := &fakeTable{prices: map[string]decimal.Decimal{"ARBUSDT": d("1.2")}}
	h := newTestHandler(t, deps{
		table: table,
		okx: fakeOKX{entries: []portfolio.Entry{
			{Asset: "SOL", Quantity: d("10"), USD: d("1500"), HasUSD: true},
		}},
	})

	rr, body := get(t, h, "/api/okx/balances")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1500", body["totalUsd"])
	require.Zero(t, table.calls, "embedded valuations must not trigger a table fetch")
}

func TestOKXBalances_BareQuantityUsesTable(t *testing.T) {
	table := &fakeTable{prices: map[string]decimal.Decimal{"ARBUSDT": d("1.2")}}
	h := newTestHandler(t, deps{
		table: table,
		okx: fakeOKX{entries: []portfolio.Entry{
			{Asset: "ARB", Quantity: d("100")},
		}},
	})

	rr, body := get(t, h, "/api/okx/balances")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "120", body["totalUsd"])
	require.Equal(t, 1, table.calls)
}

func TestBithumbBalances_ConvertsThroughKRW(t *testing.T) {
	h := newTestHandler(t, deps{
		krw: fakeChain{quote: price.Quote{Rate: d("1350"), Source: "er-api", Timestamp: 1}},
		bithumb: fakeBithumb{
			entries: []portfolio.Entry{
				{Asset: "XRP", Quantity: d("1000")},
				{Asset: "UNKNOWN", Quantity: d("5")},
			},
			krw: map[string]decimal.Decimal{"XRP": d("750")},
		},
	})

	rr, body := get(t, h, "/api/bithumb/balances")
	require.Equal(t, http.StatusOK, rr.Code)
	// 1000 * 750 / 1350 ≈ 555.55 USD
	total := d(body["totalUsd"].(string))
	require.True(t, total.Sub(d("555.55")).Abs().LessThan(d("0.01")), "total=%s", total)
	require.Equal(t, "1350", body["usdkrw"])

	top := body["top"].([]any)
	require.Len(t, top, 1, "asset without a KRW price is skipped, not fatal")
}

func TestBithumbBalances_FXExhaustionIsFatal(t *testing.T) {
	h := newTestHandler(t, deps{
		krw: fakeChain{err: &price.ExhaustedError{Attempts: []price.Attempt{{Source: "A", Error: "down"}}}},
		bithumb: fakeBithumb{
			entries: []portfolio.Entry{{Asset: "XRP", Quantity: d("1000")}},
			krw:     map[string]decimal.Decimal{"XRP": d("750")},
		},
	})

	rr, _ := get(t, h, "/api/bithumb/balances")
	require.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestRoutes_MethodNotAllowedIsJSON(t *testing.T) {
	h := newTestHandler(t, deps{krw: fakeChain{}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/usdkrw", nil)
	h.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
}

func TestRoutes_RequestIDEchoed(t *testing.T) {
	h := newTestHandler(t, deps{krw: fakeChain{quote: price.Quote{Rate: d("1"), Source: "s"}}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	h.Routes().ServeHTTP(rr, req)

	require.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}
