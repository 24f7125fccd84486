// Package portfolio turns raw per-asset entries from any venue into a USD
// total and a capped top list.
package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Entry is one raw balance or position row. Quantity is in asset units
// (already contract-size converted for derivatives). When the venue supplies
// its own USD valuation, USD holds it and HasUSD is true; otherwise the
// valuation comes from the price lookup.
type Entry struct {
	Asset    string
	Quantity decimal.Decimal
	USD      decimal.Decimal
	HasUSD   bool
}

// Balance is one aggregated per-asset line in the output.
type Balance struct {
	Asset        string          `json:"asset"`
	Quantity     decimal.Decimal `json:"quantity"`
	ValuationUSD decimal.Decimal `json:"usd"`
}

// Result is the aggregate over one venue's entries.
type Result struct {
	TotalUSD decimal.Decimal `json:"totalUsd"`
	Top      []Balance       `json:"top"`
	// Skipped lists assets dropped because no price was available. A missing
	// individual price is not fatal; a missing price table is, and that is
	// the caller's failure before Aggregate runs.
	Skipped []string `json:"skipped,omitempty"`
}

// Lookup resolves an asset's USD unit price. Nil means no external pricing
// is available and only embedded valuations count.
type Lookup func(asset string) (decimal.Decimal, bool)

// Options controls filtering and shaping.
type Options struct {
	// Exclude drops these assets before valuation.
	Exclude map[string]struct{}
	// MinUSD drops entries whose net valuation magnitude is below this.
	MinUSD decimal.Decimal
	// TopN caps the output list; <=0 falls back to DefaultTopN.
	TopN int
	// Signed keeps the sign of valuations (futures net exposure). Unsigned
	// aggregation treats negative input as zero exposure.
	Signed bool
}

// DefaultTopN caps the top list when Options.TopN is unset.
const DefaultTopN = 20

// DefaultExclusions covers the quote/stable assets and the two majors that
// every alt-summary view filters out.
func DefaultExclusions() map[string]struct{} {
	return map[string]struct{}{
		"USDT": {}, "USDC": {}, "BUSD": {}, "DAI": {}, "FDUSD": {},
		"BTC": {}, "ETH": {},
	}
}

// Aggregate nets entries per asset, values them in USD, filters by the
// exclusion set and minimum threshold, and returns the total plus the top-N
// list sorted descending by valuation (by magnitude when Signed).
func Aggregate(entries []Entry, lookup Lookup, opts Options) Result {
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	type acc struct {
		quantity decimal.Decimal
		usd      decimal.Decimal
		valued   bool
	}
	byAsset := make(map[string]*acc)
	order := make([]string, 0, len(entries))
	var skipped []string

	for _, e := range entries {
		if e.Asset == "" {
			continue
		}
		if _, drop := opts.Exclude[e.Asset]; drop {
			continue
		}

		usd, ok := valuation(e, lookup)
		if !ok {
			skipped = append(skipped, e.Asset)
			continue
		}
		if !opts.Signed && usd.IsNegative() {
			// Spot balances are never negative; a negative row here is
			// provider noise, not exposure.
			continue
		}

		a, seen := byAsset[e.Asset]
		if !seen {
			a = &acc{}
			byAsset[e.Asset] = a
			order = append(order, e.Asset)
		}
		a.quantity = a.quantity.Add(e.Quantity)
		a.usd = a.usd.Add(usd)
		a.valued = true
	}

	total := decimal.Zero
	out := make([]Balance, 0, len(order))
	for _, asset := range order {
		a := byAsset[asset]
		if !a.valued || a.usd.Abs().LessThan(opts.MinUSD) {
			continue
		}
		total = total.Add(a.usd)
		out = append(out, Balance{Asset: asset, Quantity: a.quantity, ValuationUSD: a.usd})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if opts.Signed {
			return out[i].ValuationUSD.Abs().GreaterThan(out[j].ValuationUSD.Abs())
		}
		return out[i].ValuationUSD.GreaterThan(out[j].ValuationUSD)
	})
	if len(out) > topN {
		out = out[:topN]
	}

	return Result{TotalUSD: total, Top: out, Skipped: skipped}
}

func valuation(e Entry, lookup Lookup) (decimal.Decimal, bool) {
	if e.HasUSD {
		return e.USD, true
	}
	if lookup == nil {
		return decimal.Zero, false
	}
	price, ok := lookup(e.Asset)
	if !ok || !price.IsPositive() {
		return decimal.Zero, false
	}
	return e.Quantity.Mul(price), true
}
