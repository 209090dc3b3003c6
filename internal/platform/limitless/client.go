// Package limitless is the REST client for the Limitless Exchange API.
package limitless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/crypto"
	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.limitless.exchange"

	apiKeyHeader  = "X-API-Key"
	baseRetryWait = 500 * time.Millisecond
	orderTTL      = 60 * time.Second
)

// Config holds the client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	MaxRetries int
}

// Client implements domain.Venue over the Limitless REST API. It is safe
// for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryWait  time.Duration
	signer     *crypto.OrderSigner
	now        func() time.Time
	logger     *slog.Logger
}

// NewClient creates a client. signer may be nil, in which case orders are
// sent unsigned and authorised by the API key alone.
func NewClient(cfg Config, signer *crypto.OrderSigner, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		maxRetries: cfg.MaxRetries,
		retryWait:  baseRetryWait,
		signer:     signer,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "limitless_client")),
	}
}

// ListMarkets returns every market the API lists, unfiltered.
func (c *Client) ListMarkets(ctx context.Context) ([]domain.RawMarket, error) {
	body, err := c.doGet(ctx, "/markets")
	if err != nil {
		return nil, fmt.Errorf("limitless: list markets: %w", err)
	}
	markets, err := decodeMarkets(body)
	if err != nil {
		return nil, fmt.Errorf("limitless: decode markets: %w", err)
	}
	return markets, nil
}

// GetMarket returns a single market. It returns domain.ErrNotFound when the
// API does not know id.
func (c *Client) GetMarket(ctx context.Context, id string) (domain.RawMarket, error) {
	body, err := c.doGet(ctx, "/markets/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("limitless: get market %s: %w", id, err)
	}
	m, err := decodeMarket(body)
	if err != nil {
		return nil, fmt.Errorf("limitless: decode market %s: %w", id, err)
	}
	return m, nil
}

// GetBalance returns the spendable collateral balance.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	body, err := c.doGet(ctx, "/portfolio/balance")
	if err != nil {
		return 0, fmt.Errorf("limitless: get balance: %w", err)
	}
	bal, err := decodeBalance(body)
	if err != nil {
		return 0, fmt.Errorf("limitless: decode balance: %w", err)
	}
	return bal, nil
}

// SubmitBuy buys YES on marketID for amount collateral.
func (c *Client) SubmitBuy(ctx context.Context, marketID string, amount float64) (domain.OrderResult, error) {
	return c.submit(ctx, marketID, domain.OrderSideBuy, amount)
}

// SubmitSell sells YES on marketID for amount collateral.
func (c *Client) SubmitSell(ctx context.Context, marketID string, amount float64) (domain.OrderResult, error) {
	return c.submit(ctx, marketID, domain.OrderSideSell, amount)
}

// submit posts a single order. Orders are never retried here: a timeout
// after the venue accepted the order would otherwise submit it twice.
func (c *Client) submit(ctx context.Context, marketID string, side domain.OrderSide, amount float64) (domain.OrderResult, error) {
	if marketID == "" || amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.OrderResult{}, fmt.Errorf("limitless: %w: market=%q amount=%v", domain.ErrInvalidOrder, marketID, amount)
	}

	req := orderRequest{
		MarketID:      marketID,
		Side:          string(side),
		Outcome:       "yes",
		Amount:        amount,
		ClientOrderID: uuid.NewString(),
	}
	if c.signer != nil {
		now := c.now()
		req.Nonce = now.UnixNano()
		req.Expiration = now.Add(orderTTL).Unix()
		req.Maker = c.signer.Address().Hex()
		sig, err := c.signer.Sign(crypto.OrderIntent{
			MarketID:   marketID,
			Side:       side,
			Amount:     amount,
			Nonce:      req.Nonce,
			Expiration: req.Expiration,
		})
		if err != nil {
			return domain.OrderResult{}, fmt.Errorf("limitless: sign order: %w", err)
		}
		req.Signature = sig
	}

	c.logger.InfoContext(ctx, "limitless: sending order",
		slog.String("market_id", marketID),
		slog.String("side", string(side)),
		slog.Float64("amount", amount),
		slog.String("client_order_id", req.ClientOrderID),
	)

	body, err := c.doPost(ctx, "/orders", req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("limitless: %s order %s: %w", side, marketID, err)
	}

	var resp orderResponse
	if err := unmarshalNumbers(body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("limitless: decode order response: %w", err)
	}
	return resp.toDomain(req.ClientOrderID), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// doGet performs a rate-limited GET, retrying transport errors, 429 and
// 5xx responses with exponential backoff.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt-1); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := c.newRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		body, status, err := c.do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if status == http.StatusTooManyRequests || status >= 500 {
			lastErr = checkHTTPStatus(status, body)
			c.logger.WarnContext(ctx, "limitless: retryable response",
				slog.String("path", path),
				slog.Int("status", status),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if err := checkHTTPStatus(status, body); err != nil {
			return nil, err
		}
		return body, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidOrder, string(body))
	}
	if err := checkHTTPStatus(status, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// IsNotFound reports whether err means the venue has no such resource.
func IsNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }

var _ domain.Venue = (*Client)(nil)
