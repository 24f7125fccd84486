// Package krwsource holds the USD/KRW rate sources tried, in order, by the
// usdkrw fallback chain.
package krwsource

import (
	"context"
	"fmt"

	"portfolioapi/internal/httpx"
	"portfolioapi/internal/price"

	"github.com/shopspring/decimal"
)

const (
	defaultERAPIURL       = "https://open.er-api.com/v6/latest/USD"
	defaultFrankfurterURL = "https://api.frankfurter.dev/v1/latest?base=USD&symbols=KRW"
	defaultDunamuURL      = "https://quotation-api-cdn.dunamu.com/v1/forex/recent?codes=FRX.KRWUSD"
)

// ERAPI quotes USD/KRW from open.er-api.com.
type ERAPI struct {
	URL    string
	Client httpx.Doer
}

func (s *ERAPI) Name() string { return "er-api" }

func (s *ERAPI) Rate(ctx context.Context) (decimal.Decimal, error) {
	url := s.URL
	if url == "" {
		url = defaultERAPIURL
	}
	var body struct {
		Result string `json:"result"`
		Rates  struct {
			KRW decimal.Decimal `json:"KRW"`
		} `json:"rates"`
	}
	if err := httpx.GetJSON(ctx, s.Client, url, &body); err != nil {
		return decimal.Zero, err
	}
	if body.Result != "success" {
		return decimal.Zero, fmt.Errorf("er-api result %q", body.Result)
	}
	return body.Rates.KRW, nil
}

// Frankfurter quotes USD/KRW from frankfurter.dev.
type Frankfurter struct {
	URL    string
	Client httpx.Doer
}

func (s *Frankfurter) Name() string { return "frankfurter" }

func (s *Frankfurter) Rate(ctx context.Context) (decimal.Decimal, error) {
	url := s.URL
	if url == "" {
		url = defaultFrankfurterURL
	}
	var body struct {
		Rates struct {
			KRW decimal.Decimal `json:"KRW"`
		} `json:"rates"`
	}
	if err := httpx.GetJSON(ctx, s.Client, url, &body); err != nil {
		return decimal.Zero, err
	}
	return body.Rates.KRW, nil
}

// Dunamu quotes the FRX.KRWUSD base price from Dunamu's quotation CDN.
type Dunamu struct {
	URL    string
	Client httpx.Doer
}

func (s *Dunamu) Name() string { return "dunamu" }

func (s *Dunamu) Rate(ctx context.Context) (decimal.Decimal, error) {
	url := s.URL
	if url == "" {
		url = defaultDunamuURL
	}
	var body []struct {
		Code      string          `json:"code"`
		BasePrice decimal.Decimal `json:"basePrice"`
	}
	if err := httpx.GetJSON(ctx, s.Client, url, &body); err != nil {
		return decimal.Zero, err
	}
	if len(body) == 0 {
		return decimal.Zero, fmt.Errorf("dunamu: empty quote list")
	}
	return body[0].BasePrice, nil
}

// DefaultChain is the production source order: er-api, then frankfurter,
// then dunamu.
func DefaultChain(client httpx.Doer) []price.Source {
	return []price.Source{
		&ERAPI{Client: client},
		&Frankfurter{Client: client},
		&Dunamu{Client: client},
	}
}
