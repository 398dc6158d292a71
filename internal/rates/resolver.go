// Package rates resolves currency conversion rates from the public
// currency-api CDN. Lookups go through an injected TTL cache and a
// singleflight group, so a burst of confirmations for the same pair costs a
// single network call. There is no retry here: an unresolved rate is
// surfaced immediately and the caller decides what to do.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"flujo/internal/cache"
	"flujo/internal/core"
)

// Resolver is the capability the engine consumes: a multiplicative
// source→target conversion rate, or core.ErrRateUnavailable.
type Resolver interface {
	Rate(ctx context.Context, sourceCurrency, targetCurrency string) (decimal.Decimal, error)
}

// Client resolves rates over HTTP with caching and request deduplication.
type Client struct {
	baseURL    string
	httpClient *http.Client
	rateCache  *cache.TTLCache[decimal.Decimal]
	group      singleflight.Group

	listCache *cache.TTLCache[[]Currency]
}

var _ Resolver = (*Client)(nil)

// NewClient builds a resolver against baseURL. The caches are owned by the
// caller's composition root, not by any package-level state.
func NewClient(baseURL string, timeout time.Duration, rateCache *cache.TTLCache[decimal.Decimal], listCache *cache.TTLCache[[]Currency]) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		rateCache:  rateCache,
		listCache:  listCache,
	}
}

// Rate returns the multiplicative conversion rate from sourceCurrency to
// targetCurrency. Identical currencies resolve to 1 without a lookup.
func (c *Client) Rate(ctx context.Context, sourceCurrency, targetCurrency string) (decimal.Decimal, error) {
	source := strings.ToLower(strings.TrimSpace(sourceCurrency))
	target := strings.ToLower(strings.TrimSpace(targetCurrency))

	if source == "" || target == "" {
		return decimal.Zero, fmt.Errorf("empty currency code: %w", core.ErrRateUnavailable)
	}
	if source == target {
		return decimal.NewFromInt(1), nil
	}

	key := source + "->" + target
	if cached, ok := c.rateCache.Get(key); ok {
		return cached, nil
	}

	// Concurrent lookups for the same pair share one fetch.
	v, err, _ := c.group.Do(key, func() (any, error) {
		rate, err := c.fetchRate(ctx, source, target)
		if err != nil {
			return decimal.Zero, err
		}
		c.rateCache.Set(key, rate)
		return rate, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

func (c *Client) fetchRate(ctx context.Context, source, target string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/currencies/%s.json", c.baseURL, source)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch rate %s->%s: %v: %w", source, target, err, core.ErrRateUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("fetch rate %s->%s: status %d: %w", source, target, resp.StatusCode, core.ErrRateUnavailable)
	}

	// Payload shape: {"date": "...", "<source>": {"<target>": 1.08, ...}}.
	// Decode numbers as strings so the rate keeps its full precision.
	var payload map[string]json.RawMessage
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("decode rate payload: %v: %w", err, core.ErrRateUnavailable)
	}

	table, ok := payload[source]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate table for %s: %w", source, core.ErrRateUnavailable)
	}

	var targets map[string]json.Number
	if err := json.Unmarshal(table, &targets); err != nil {
		return decimal.Zero, fmt.Errorf("decode rate table: %v: %w", err, core.ErrRateUnavailable)
	}

	raw, ok := targets[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown pair %s->%s: %w", source, target, core.ErrRateUnavailable)
	}

	rate, err := decimal.NewFromString(raw.String())
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("bad rate %q for %s->%s: %w", raw.String(), source, target, core.ErrRateUnavailable)
	}

	slog.InfoContext(ctx, "Resolved exchange rate",
		"currency_pair", source+"->"+target,
		"exchange_rate", rate.String())

	return rate, nil
}
