package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"portfolioapi/internal/config"
	"portfolioapi/internal/exchange"
	"portfolioapi/internal/exchange/ratelimit"
	"portfolioapi/internal/exchange/sign"
	"portfolioapi/internal/httpx"
	"portfolioapi/internal/portfolio"

	"github.com/shopspring/decimal"
)

const (
	defaultSpotBaseURL    = "https://api.binance.com"
	defaultFuturesBaseURL = "https://fapi.binance.com"
	defaultPMBaseURL      = "https://papi.binance.com"

	recvWindow = "5000"
)

// Client calls Binance spot, USD-M futures and portfolio-margin endpoints
// with HMAC-SHA256 hex query signing.
type Client struct {
	apiKey string
	signer sign.HMACSHA256Hex

	spotBaseURL    string
	futuresBaseURL string
	pmBaseURL      string

	httpClient httpx.Doer
	gate       ratelimit.Gate

	serverTimeOffset int64
	mu               sync.RWMutex
}

type Option func(*Client)

// WithBaseURLs overrides the venue endpoints, mainly for tests.
func WithBaseURLs(spot, futures, pm string) Option {
	return func(c *Client) {
		c.spotBaseURL = spot
		c.futuresBaseURL = futures
		c.pmBaseURL = pm
	}
}

// WithGate paces outbound calls.
func WithGate(g ratelimit.Gate) Option {
	return func(c *Client) { c.gate = g }
}

// NewClient builds a client or reports a configuration error when the
// key/secret pair is absent. No network call happens here.
func NewClient(creds config.Credentials, httpClient httpx.Doer, opts ...Option) (*Client, error) {
	if !creds.Configured() {
		return nil, exchange.MissingCredentials("binance")
	}
	c := &Client{
		apiKey:         creds.APIKey,
		signer:         sign.HMACSHA256Hex{Secret: creds.SecretKey},
		spotBaseURL:    defaultSpotBaseURL,
		futuresBaseURL: defaultFuturesBaseURL,
		pmBaseURL:      defaultPMBaseURL,
		httpClient:     httpClient,
		gate:           ratelimit.None{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SyncTime measures the drift against the futures server clock, so signed
// timestamps stay inside the venue's receive window.
func (c *Client) SyncTime(ctx context.Context) error {
	body, err := c.doRequest(ctx, http.MethodGet, c.futuresBaseURL, "/fapi/v1/time", nil, false)
	if err != nil {
		return fmt.Errorf("fetch server time: %w", err)
	}
	var result struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parse server time: %w", err)
	}
	c.mu.Lock()
	c.serverTimeOffset = result.ServerTime - time.Now().UnixMilli()
	c.mu.Unlock()
	return nil
}

func (c *Client) timestamp() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().UnixMilli() + c.serverTimeOffset
}

// doRequest issues one call. When signed, the timestamp placed in the query
// is the same one the signature covers; the signature is over the encoded
// query string exactly as sent.
func (c *Client) doRequest(ctx context.Context, method, base, path string, params url.Values, signed bool) ([]byte, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}
	if params == nil {
		params = url.Values{}
	}

	reqURL, err := url.Parse(base + path)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.timestamp(), 10))
		params.Set("recvWindow", recvWindow)
	}
	reqURL.RawQuery = params.Encode()
	if signed {
		reqURL.RawQuery += "&signature=" + c.signer.Sign(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &apiErr) != nil || apiErr.Msg == "" {
			return nil, &httpx.StatusError{Status: resp.StatusCode, Body: string(body)}
		}
		return nil, &exchange.ProviderError{
			Venue:   "binance",
			Code:    strconv.Itoa(apiErr.Code),
			Message: apiErr.Msg,
			Raw:     string(body),
		}
	}
	return body, nil
}

// SpotBalances returns the spot wallet as bare quantities (free + locked),
// zero rows dropped. Valuation happens in the aggregator.
func (c *Client) SpotBalances(ctx context.Context) ([]portfolio.Entry, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.spotBaseURL, "/api/v3/account", nil, true)
	if err != nil {
		return nil, fmt.Errorf("spot balances: %w", err)
	}
	var result struct {
		Balances []struct {
			Asset  string          `json:"asset"`
			Free   decimal.Decimal `json:"free"`
			Locked decimal.Decimal `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse spot balances: %w", err)
	}
	entries := make([]portfolio.Entry, 0, len(result.Balances))
	for _, b := range result.Balances {
		qty := b.Free.Add(b.Locked)
		if !qty.IsPositive() {
			continue
		}
		entries = append(entries, portfolio.Entry{Asset: b.Asset, Quantity: qty})
	}
	return entries, nil
}

// FuturesPositions returns open USD-M positions with signed notionals.
// The portfolio-margin endpoint is tried first; on a provider error the
// standard futures endpoint answers instead.
func (c *Client) FuturesPositions(ctx context.Context) ([]portfolio.Entry, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.pmBaseURL, "/papi/v1/um/positionRisk", nil, true)
	if err != nil {
		var perr *exchange.ProviderError
		var serr *httpx.StatusError
		if !errors.As(err, &perr) && !errors.As(err, &serr) {
			return nil, fmt.Errorf("futures positions: %w", err)
		}
		body, err = c.doRequest(ctx, http.MethodGet, c.futuresBaseURL, "/fapi/v3/positionRisk", nil, true)
		if err != nil {
			return nil, fmt.Errorf("futures positions: %w", err)
		}
	}
	return parsePositions(body)
}

func parsePositions(body []byte) ([]portfolio.Entry, error) {
	var rows []struct {
		Symbol      string          `json:"symbol"`
		PositionAmt decimal.Decimal `json:"positionAmt"`
		MarkPrice   decimal.Decimal `json:"markPrice"`
		Notional    decimal.Decimal `json:"notional"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse positions: %w", err)
	}
	entries := make([]portfolio.Entry, 0, len(rows))
	for _, p := range rows {
		if p.PositionAmt.IsZero() {
			continue
		}
		asset := baseAsset(p.Symbol)
		if asset == "" {
			continue
		}
		// Notional arrives signed (negative for shorts); reconstruct it from
		// amount x mark when the venue omits it.
		usd := p.Notional
		if usd.IsZero() {
			usd = p.PositionAmt.Mul(p.MarkPrice)
		}
		entries = append(entries, portfolio.Entry{
			Asset:    asset,
			Quantity: p.PositionAmt,
			USD:      usd,
			HasUSD:   true,
		})
	}
	return entries, nil
}

func baseAsset(symbol string) string {
	for _, quote := range []string{"USDT", "USDC"} {
		if base, ok := strings.CutSuffix(symbol, quote); ok && base != "" {
			return base
		}
	}
	return ""
}
