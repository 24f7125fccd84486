package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"portfolioapi/internal/config"
	"portfolioapi/internal/exchange"
	"portfolioapi/internal/exchange/ratelimit"
	"portfolioapi/internal/exchange/sign"
	"portfolioapi/internal/httpx"
	"portfolioapi/internal/portfolio"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://www.okx.com"

// timestampFormat is OKX's required ISO-8601 millisecond form. The same
// string goes into the signature and the OK-ACCESS-TIMESTAMP header.
const timestampFormat = "2006-01-02T15:04:05.000Z"

// Client calls OKX v5 endpoints with base64 HMAC-SHA256 header signing over
// timestamp + method + requestPath + body.
type Client struct {
	apiKey     string
	passphrase string
	signer     sign.HMACSHA256Base64

	baseURL    string
	httpClient httpx.Doer
	gate       ratelimit.Gate

	// now is swappable in tests to pin the signed timestamp.
	now func() time.Time
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithGate(g ratelimit.Gate) Option {
	return func(c *Client) { c.gate = g }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a client or reports a configuration error. OKX requires
// the passphrase on top of the key/secret pair.
func NewClient(creds config.Credentials, httpClient httpx.Doer, opts ...Option) (*Client, error) {
	if !creds.Configured() || creds.Passphrase == "" {
		return nil, exchange.MissingCredentials("okx")
	}
	c := &Client{
		apiKey:     creds.APIKey,
		passphrase: creds.Passphrase,
		signer:     sign.HMACSHA256Base64{Secret: creds.SecretKey},
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		gate:       ratelimit.None{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) doRequest(ctx context.Context, method, requestPath string) (json.RawMessage, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	ts := c.now().UTC().Format(timestampFormat)
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", c.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", c.signer.Sign(ts+method+requestPath))
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.passphrase)

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", requestPath, err)
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
	// A 200 with a non-zero code is still a provider failure.
	if env.Code != "0" {
		return nil, &exchange.ProviderError{Venue: "okx", Code: env.Code, Message: env.Msg, Raw: string(body)}
	}
	return env.Data, nil
}

// TradingBalances returns the unified trading account balances. OKX embeds
// a USD valuation per currency, so no external pricing is needed.
func (c *Client) TradingBalances(ctx context.Context) ([]portfolio.Entry, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/v5/account/balance")
	if err != nil {
		return nil, fmt.Errorf("trading balances: %w", err)
	}
	var accounts []struct {
		Details []struct {
			Ccy   string `json:"ccy"`
			Eq    string `json:"eq"`
			EqUsd string `json:"eqUsd"`
		} `json:"details"`
	}
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parse trading balances: %w", err)
	}

	var entries []portfolio.Entry
	for _, acct := range accounts {
		for _, d := range acct.Details {
			qty, err := decimal.NewFromString(d.Eq)
			if err != nil || !qty.IsPositive() {
				continue
			}
			entry := portfolio.Entry{Asset: d.Ccy, Quantity: qty}
			// eqUsd can arrive empty; fall back to external pricing then.
			if usd, err := decimal.NewFromString(d.EqUsd); err == nil && !usd.IsZero() {
				entry.USD = usd
				entry.HasUSD = true
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
