package price

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/itchyny/gojq"
	"github.com/shopspring/decimal"
	"github.com/solpay/gateway/service/metrics"
)

// Client fetches the current SOL/USD price from an external feed.
// The feed's JSON shape is not standardized, so the value is extracted with a
// configurable jq expression (e.g. ".solPrice" or ".data.price").
type Client struct {
	feedURL    string
	query      *gojq.Code
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a price feed client. The jq expression is compiled once
// at construction; an invalid expression is a configuration error.
func NewClient(feedURL, jqExpr string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	parsed, err := gojq.Parse(jqExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid price feed query %q: %w", jqExpr, err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to compile price feed query %q: %w", jqExpr, err)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		feedURL:    feedURL,
		query:      code,
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
	}, nil
}

// Price returns the current SOL/USD price as a decimal.
// Any feed, decode, or extraction failure is returned as an error; no payment
// can be created without a price.
func (c *Client) Price(ctx context.Context) (decimal.Decimal, error) {
	price, err := c.fetch(ctx)
	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordPriceFeedRequest(status)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "price feed lookup failed", "url", c.feedURL, "error", err)
		return decimal.Zero, err
	}

	c.logger.DebugContext(ctx, "fetched SOL price", "price", price.String())
	return price, nil
}

func (c *Client) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	// gojq only accepts plainly-decoded JSON values (float64, string, map,
	// slice), so no UseNumber here.
	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price feed response: %w", err)
	}

	iter := c.query.RunWithContext(ctx, payload)
	v, ok := iter.Next()
	if !ok {
		return decimal.Zero, fmt.Errorf("price feed query produced no result")
	}
	if err, isErr := v.(error); isErr {
		return decimal.Zero, fmt.Errorf("price feed query failed: %w", err)
	}

	price, err := decimalFromJQ(v)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("price feed returned non-positive price %s", price)
	}
	return price, nil
}

func decimalFromJQ(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Zero, fmt.Errorf("price feed query returned non-numeric value %T", v)
	}
}
