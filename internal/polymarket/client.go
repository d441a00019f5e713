// Package polymarket is a client for the Polymarket data API (positions and
// activity per wallet) and the CLOB API (midpoint and price history per token).
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/polyfolio/internal/models"
)

// Client provides access to the Polymarket data and CLOB APIs
type Client struct {
	dataAPIURL     string
	clobAPIURL     string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryDelayBase time.Duration
	tradeLimit     int
	now            func() time.Time
}

// ClientConfig holds optional tuning for Client. Zero values select defaults.
type ClientConfig struct {
	MaxRetries        int
	RetryDelayBase    time.Duration
	RequestsPerSecond float64
	Burst             int
	TradeLimit        int
}

// PolymarketPosition is one entry of the data API /positions response
type PolymarketPosition struct {
	Asset        string    `json:"asset"`
	ConditionID  string    `json:"conditionId"`
	Title        string    `json:"title"`
	EventSlug    string    `json:"eventSlug"`
	Icon         string    `json:"icon"`
	ImageURL     string    `json:"imageUrl"`
	CurPrice     flexFloat `json:"curPrice"`
	InitialValue flexFloat `json:"initialValue"`
	CurrentValue flexFloat `json:"currentValue"`
	RealizedPnl  flexFloat `json:"realizedPnl"`
	Size         flexFloat `json:"size"`
}

// PolymarketActivity is one entry of the data API /activity response
type PolymarketActivity struct {
	Timestamp int64     `json:"timestamp"`
	Type      string    `json:"type"`
	Asset     string    `json:"asset"`
	Side      string    `json:"side"`
	Price     flexFloat `json:"price"`
	UsdcSize  flexFloat `json:"usdcSize"`
	Size      flexFloat `json:"size"`
}

type midpointResponse struct {
	Mid flexFloat `json:"mid"`
}

type priceHistoryResponse struct {
	History []models.PricePoint `json:"history"`
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// NewClient creates a new Polymarket client
func NewClient(dataAPIURL, clobAPIURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.TradeLimit <= 0 || cfg.TradeLimit > 500 {
		cfg.TradeLimit = 500
	}

	return &Client{
		dataAPIURL: strings.TrimRight(dataAPIURL, "/"),
		clobAPIURL: strings.TrimRight(clobAPIURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		tradeLimit:     cfg.TradeLimit,
		now:            time.Now,
	}
}

// FetchHoldings retrieves the open positions of one wallet
func (c *Client) FetchHoldings(ctx context.Context, wallet string) ([]models.RawHolding, error) {
	params := url.Values{}
	params.Set("user", wallet)

	var positions []PolymarketPosition
	if err := c.getJSON(ctx, c.dataAPIURL+"/positions?"+params.Encode(), &positions); err != nil {
		return nil, fmt.Errorf("failed to fetch holdings for %s: %w", wallet, err)
	}

	holdings := make([]models.RawHolding, 0, len(positions))
	for _, p := range positions {
		icon := p.Icon
		if icon == "" {
			icon = p.ImageURL
		}
		holdings = append(holdings, models.RawHolding{
			Asset:        p.Asset,
			Title:        p.Title,
			ConditionID:  p.ConditionID,
			EventSlug:    p.EventSlug,
			CurPrice:     float64(p.CurPrice),
			InitialValue: float64(p.InitialValue),
			CurrentValue: float64(p.CurrentValue),
			RealizedPnl:  float64(p.RealizedPnl),
			Icon:         icon,
			Size:         float64(p.Size),
			Wallet:       wallet,
		})
	}
	return holdings, nil
}

// FetchTrades retrieves TRADE activity of one wallet over the last hours
func (c *Client) FetchTrades(ctx context.Context, wallet string, hours int) ([]models.RawTrade, error) {
	end := c.now().Unix()
	if hours <= 0 || int64(hours) > end/3600 {
		return nil, fmt.Errorf("invalid trade window of %d hours", hours)
	}
	start := end - int64(hours)*3600

	params := url.Values{}
	params.Set("user", wallet)
	params.Set("start", strconv.FormatInt(start, 10))
	params.Set("end", strconv.FormatInt(end, 10))
	params.Set("type", "TRADE")
	params.Set("limit", strconv.Itoa(c.tradeLimit))

	var activity []PolymarketActivity
	if err := c.getJSON(ctx, c.dataAPIURL+"/activity?"+params.Encode(), &activity); err != nil {
		return nil, fmt.Errorf("failed to fetch trades for %s: %w", wallet, err)
	}

	trades := make([]models.RawTrade, 0, len(activity))
	for _, a := range activity {
		// The type filter is also applied server-side; older responses may omit it
		if a.Type != "" && !strings.EqualFold(a.Type, "TRADE") {
			continue
		}
		trades = append(trades, models.RawTrade{
			Timestamp: a.Timestamp,
			Asset:     a.Asset,
			Side:      a.Side,
			Price:     float64(a.Price),
			UsdcSize:  float64(a.UsdcSize),
			Size:      float64(a.Size),
			Wallet:    wallet,
		})
		if len(trades) == c.tradeLimit {
			break
		}
	}
	return trades, nil
}

// FetchCurrentPrice retrieves the CLOB midpoint for a token. A response with
// no midpoint reads as 0.
func (c *Client) FetchCurrentPrice(ctx context.Context, asset string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", asset)

	var resp midpointResponse
	if err := c.getJSON(ctx, c.clobAPIURL+"/midpoint?"+params.Encode(), &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch current price for %s: %w", asset, err)
	}
	return float64(resp.Mid), nil
}

// FetchPriceHistory retrieves the price series of a token between startTs and
// endTs (unix seconds) sampled every fidelity minutes
func (c *Client) FetchPriceHistory(ctx context.Context, asset string, startTs, endTs int64, fidelity int) ([]models.PricePoint, error) {
	if fidelity <= 0 {
		fidelity = 1
	}
	params := url.Values{}
	params.Set("market", asset)
	params.Set("startTs", strconv.FormatInt(startTs, 10))
	params.Set("endTs", strconv.FormatInt(endTs, 10))
	params.Set("fidelity", strconv.Itoa(fidelity))

	var resp priceHistoryResponse
	if err := c.getJSON(ctx, c.clobAPIURL+"/prices-history?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch price history for %s: %w", asset, err)
	}
	return resp.History, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	resp, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doRequest performs HTTP request with retry logic. Transport errors and 5xx
// responses are retried with linear backoff; other non-2xx statuses fail at once.
func (c *Client) doRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			drain(resp)
			lastErr = &StatusError{URL: endpoint, StatusCode: resp.StatusCode}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			drain(resp)
			return nil, &StatusError{URL: endpoint, StatusCode: resp.StatusCode}
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// flexFloat decodes a JSON number, a numeric string, or null.
// Unparseable or non-finite values and null decode as 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}
