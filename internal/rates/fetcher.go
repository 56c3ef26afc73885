package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Feed is one upstream publication: units of each currency per 1 USD.
type Feed struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"-"`
}

// Fetcher pulls the daily rate feed from the configured central-bank
// endpoint. The engine never calls this; only the service layer and the
// refresh job do.
type Fetcher struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewFetcher constructs a fetcher for the given feed URL.
func NewFetcher(url string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Fetch downloads and decodes the feed.
func (f *Fetcher) Fetch(ctx context.Context) (Feed, error) {
	if f == nil || f.url == "" {
		return Feed{}, fmt.Errorf("rates: feed url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Feed{}, fmt.Errorf("rates: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Feed{}, fmt.Errorf("rates: fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Feed{}, fmt.Errorf("rates: feed returned status %d", resp.StatusCode)
	}
	var feed Feed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return Feed{}, fmt.Errorf("rates: decode feed: %w", err)
	}
	if feed.Base != "USD" {
		return Feed{}, fmt.Errorf("rates: unexpected feed base %q", feed.Base)
	}
	if len(feed.Rates) == 0 {
		return Feed{}, fmt.Errorf("rates: feed contains no rates")
	}
	feed.FetchedAt = f.now()
	return feed, nil
}
