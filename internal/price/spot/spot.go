// Package spot provides the USD spot-price lookup table used to value bare
// asset quantities.
package spot

import (
	"context"
	"fmt"

	"portfolioapi/internal/httpx"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const defaultTickerURL = "https://api.binance.com/api/v3/ticker/price"

// Table is a point-in-time snapshot of spot prices keyed by market symbol
// (e.g. "ETHUSDT"). It is built once per aggregation and discarded; nothing
// survives the request.
type Table struct {
	prices map[string]decimal.Decimal
}

// NewTable builds a table from symbol -> price pairs. Exposed for tests and
// for venues that ship their own ticker payloads.
func NewTable(prices map[string]decimal.Decimal) *Table {
	return &Table{prices: prices}
}

// Lookup resolves the USD price for an asset, preferring the USDT-quoted
// market and falling back to USDC. Stable quote assets are worth one dollar
// by definition here.
func (t *Table) Lookup(asset string) (decimal.Decimal, bool) {
	if asset == "USDT" || asset == "USDC" {
		return decimal.NewFromInt(1), true
	}
	if p, ok := t.prices[asset+"USDT"]; ok && p.IsPositive() {
		return p, true
	}
	if p, ok := t.prices[asset+"USDC"]; ok && p.IsPositive() {
		return p, true
	}
	return decimal.Zero, false
}

// Fetcher pulls the full Binance ticker table. Concurrent requests share one
// in-flight fetch via singleflight; there is no TTL cache, each caller still
// gets a fresh snapshot once the in-flight call completes.
type Fetcher struct {
	URL    string
	Client httpx.Doer

	sf singleflight.Group
}

func (f *Fetcher) Fetch(ctx context.Context) (*Table, error) {
	v, err, _ := f.sf.Do("ticker", func() (any, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

func (f *Fetcher) fetch(ctx context.Context) (*Table, error) {
	url := f.URL
	if url == "" {
		url = defaultTickerURL
	}
	var rows []struct {
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
	}
	if err := httpx.GetJSON(ctx, f.Client, url, &rows); err != nil {
		return nil, fmt.Errorf("fetch ticker table: %w", err)
	}
	prices := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		if r.Symbol == "" {
			continue
		}
		prices[r.Symbol] = r.Price
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("fetch ticker table: empty payload")
	}
	return NewTable(prices), nil
}
