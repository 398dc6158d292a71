package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
)

// Currency is a selectable currency for account and display pickers.
type Currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

const listCacheKey = "currencies"

// fallbackCurrencies keeps the pickers usable when the CDN is unreachable.
var fallbackCurrencies = []Currency{
	{Code: "ARS", Name: "Argentine Peso"},
	{Code: "USD", Name: "US Dollar"},
}

// Currencies returns the full code/name listing, sorted by code. Listing is
// presentation-only, so a fetch failure degrades to a static fallback
// instead of erroring.
func (c *Client) Currencies(ctx context.Context) []Currency {
	if cached, ok := c.listCache.Get(listCacheKey); ok {
		return cached
	}

	v, _, _ := c.group.Do(listCacheKey, func() (any, error) {
		list, err := c.fetchCurrencies(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Currency listing unavailable, using fallback", "error", err)
			return fallbackCurrencies, nil
		}
		c.listCache.Set(listCacheKey, list)
		return list, nil
	})
	return v.([]Currency)
}

func (c *Client) fetchCurrencies(ctx context.Context) ([]Currency, error) {
	url := c.baseURL + "/currencies.min.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build currencies request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch currencies: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch currencies: status %d", resp.StatusCode)
	}

	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode currencies payload: %w", err)
	}

	list := make([]Currency, 0, len(payload))
	for code, name := range payload {
		code = strings.ToUpper(strings.TrimSpace(code))
		name = strings.TrimSpace(name)
		if code == "" || name == "" {
			continue
		}
		list = append(list, Currency{Code: code, Name: name})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list, nil
}
