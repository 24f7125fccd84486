package bithumb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"portfolioapi/internal/config"
	"portfolioapi/internal/exchange"
	"portfolioapi/internal/exchange/ratelimit"
	"portfolioapi/internal/exchange/sign"
	"portfolioapi/internal/httpx"
	"portfolioapi/internal/portfolio"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.bithumb.com"

// statusOK is Bithumb's application-level success code; anything else in a
// 2xx response is still a provider failure.
const statusOK = "0000"

// Client calls Bithumb's private API: form-encoded POSTs signed with
// HMAC-SHA512 over the NUL-delimited endpoint/query/nonce string.
type Client struct {
	apiKey string
	signer sign.HMACSHA512HexBase64

	baseURL    string
	httpClient httpx.Doer
	gate       ratelimit.Gate

	nonce func() int64
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithGate(g ratelimit.Gate) Option {
	return func(c *Client) { c.gate = g }
}

// WithNonce overrides nonce generation, for tests.
func WithNonce(nonce func() int64) Option {
	return func(c *Client) { c.nonce = nonce }
}

func NewClient(creds config.Credentials, httpClient httpx.Doer, opts ...Option) (*Client, error) {
	if !creds.Configured() {
		return nil, exchange.MissingCredentials("bithumb")
	}
	c := &Client{
		apiKey:     creds.APIKey,
		signer:     sign.HMACSHA512HexBase64{Secret: creds.SecretKey},
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		gate:       ratelimit.None{},
		nonce:      func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) doPrivate(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("endpoint", endpoint)
	encoded := params.Encode()

	nonce := strconv.FormatInt(c.nonce(), 10)
	canonical := endpoint + "\x00" + encoded + "\x00" + nonce

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Api-Sign", c.signer.Sign(canonical))
	req.Header.Set("Api-Nonce", nonce)

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpx.StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if env.Status != statusOK {
		return nil, &exchange.ProviderError{Venue: "bithumb", Code: env.Status, Message: env.Message, Raw: string(body)}
	}
	return env.Data, nil
}

// Balances returns all non-zero holdings as bare quantities. Bithumb keys
// the payload as "total_<asset>"; anything else in the map is ignored.
func (c *Client) Balances(ctx context.Context) ([]portfolio.Entry, error) {
	params := url.Values{}
	params.Set("currency", "ALL")
	data, err := c.doPrivate(ctx, "/info/balance", params)
	if err != nil {
		return nil, fmt.Errorf("balances: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parse balances: %w", err)
	}

	var entries []portfolio.Entry
	for key, raw := range fields {
		coin, ok := strings.CutPrefix(key, "total_")
		if !ok || coin == "krw" {
			continue
		}
		var amount decimal.Decimal
		if err := json.Unmarshal(raw, &amount); err != nil {
			continue
		}
		if !amount.IsPositive() {
			continue
		}
		entries = append(entries, portfolio.Entry{Asset: strings.ToUpper(coin), Quantity: amount})
	}
	return entries, nil
}

// KRWPrices returns the KRW closing price per asset from the public
// all-market ticker. No signing involved.
func (c *Client) KRWPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	var env envelope
	if err := httpx.GetJSON(ctx, c.httpClient, c.baseURL+"/public/ticker/ALL_KRW", &env); err != nil {
		return nil, fmt.Errorf("ticker: %w", err)
	}
	if env.Status != statusOK {
		return nil, &exchange.ProviderError{Venue: "bithumb", Code: env.Status, Message: env.Message}
	}

	var markets map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &markets); err != nil {
		return nil, fmt.Errorf("parse ticker: %w", err)
	}
	prices := make(map[string]decimal.Decimal, len(markets))
	for asset, raw := range markets {
		if asset == "date" {
			continue
		}
		var row struct {
			ClosingPrice decimal.Decimal `json:"closing_price"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		if row.ClosingPrice.IsPositive() {
			prices[asset] = row.ClosingPrice
		}
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("ticker: empty payload")
	}
	return prices, nil
}
