// Package fetcher pulls paginated course listings from the TeeRadar API and
// persists each page as a timestamped, numbered capture file. Captures are
// idempotent: re-fetching a page rewrites the same file atomically.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/teeradar/golfmetrics/internal/atomicfile"
	"github.com/teeradar/golfmetrics/internal/metrics"
)

// Config controls the acquisition loop.
type Config struct {
	BaseURL     string
	APIKey      string
	Country     string
	MinRating   float64
	Limit       int
	StartOffset int
	MaxPages    int // 0 means no page cap
	OutDir      string

	Timeout            time.Duration
	RateLimitBackoff   time.Duration // pause after a 429
	ServerErrorBackoff time.Duration // pause after a 5xx
	PageDelay          time.Duration // courtesy delay between pages
	TransportBackoff   time.Duration // initial backoff after a transport error
}

// Client fetches capture pages.
type Client struct {
	http   *http.Client
	cfg    Config
	clock  clockwork.Clock
	logger *zap.Logger
}

// New builds a Client. A nil clock gets the real one.
func New(cfg Config, clock clockwork.Clock, logger *zap.Logger) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimitBackoff <= 0 {
		cfg.RateLimitBackoff = 60 * time.Second
	}
	if cfg.ServerErrorBackoff <= 0 {
		cfg.ServerErrorBackoff = 10 * time.Second
	}
	if cfg.TransportBackoff <= 0 {
		cfg.TransportBackoff = 5 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		clock:  clock,
		logger: logger,
	}
}

// Run fetches pages starting at the configured offset until the API reports
// a short page, the page cap is reached, or the context ends. It returns
// the number of capture files written.
func (c *Client) Run(ctx context.Context) (int, error) {
	offset := c.cfg.StartOffset
	pages := 0
	for {
		payload, err := c.fetchPage(ctx, offset)
		if err != nil {
			return pages, err
		}

		courses := filterCountry(payload, c.cfg.Country)
		payload["courses"] = courses

		if err := c.saveCapture(payload, offset); err != nil {
			return pages, err
		}
		pages++

		count := pageCount(payload, len(courses))
		if count < c.cfg.Limit {
			c.logger.Info("last page reached", zap.Int("offset", offset), zap.Int("count", count))
			return pages, nil
		}
		if c.cfg.MaxPages > 0 && pages >= c.cfg.MaxPages {
			c.logger.Info("page cap reached", zap.Int("pages", pages))
			return pages, nil
		}

		offset += c.cfg.Limit
		if !c.sleep(ctx, c.cfg.PageDelay) {
			return pages, ctx.Err()
		}
	}
}

// fetchPage retries one page until it succeeds or the retry budget for
// transport errors runs out. Rate limiting and server errors pause and
// retry indefinitely, matching how the API expects polite clients to
// behave; any other non-200 status is fatal.
func (c *Client) fetchPage(ctx context.Context, offset int) (map[string]any, error) {
	transport := backoff.NewExponentialBackOff()
	transport.InitialInterval = c.cfg.TransportBackoff

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		payload, retryIn, err := c.tryPage(ctx, offset, transport)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			return payload, nil
		}
		if retryIn == backoff.Stop {
			return nil, fmt.Errorf("fetch offset %d: transport retry budget exhausted", offset)
		}
		if !c.sleep(ctx, retryIn) {
			return nil, ctx.Err()
		}
	}
}

// tryPage performs one request. It returns a payload on success, a retry
// delay for recoverable failures, or an error for fatal ones.
func (c *Client) tryPage(ctx context.Context, offset int, transport backoff.BackOff) (map[string]any, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	q := url.Values{}
	if c.cfg.Country != "" {
		q.Set("country", c.cfg.Country)
	}
	q.Set("limit", strconv.Itoa(c.cfg.Limit))
	q.Set("offset", strconv.Itoa(offset))
	if c.cfg.MinRating > 0 {
		q.Set("min_rating", strconv.FormatFloat(c.cfg.MinRating, 'f', -1, 64))
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.PageFetched("transport_error")
		c.logger.Warn("request failed; backing off", zap.Int("offset", offset), zap.Error(err))
		return nil, transport.NextBackOff(), nil
	}
	defer resp.Body.Close() //nolint:errcheck // response body fully consumed below

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.PageFetched("rate_limited")
		c.logger.Warn("rate limited; backing off",
			zap.Int("offset", offset),
			zap.Duration("pause", c.cfg.RateLimitBackoff),
		)
		return nil, c.cfg.RateLimitBackoff, nil
	case resp.StatusCode >= 500:
		metrics.PageFetched("server_error")
		c.logger.Warn("server error; retrying",
			zap.Int("offset", offset),
			zap.Int("status", resp.StatusCode),
		)
		return nil, c.cfg.ServerErrorBackoff, nil
	case resp.StatusCode != http.StatusOK:
		metrics.PageFetched("client_error")
		return nil, 0, fmt.Errorf("fetch offset %d: unexpected status %d", offset, resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.PageFetched("decode_error")
		return nil, 0, fmt.Errorf("decode offset %d: %w", offset, err)
	}
	metrics.PageFetched("ok")
	return payload, 0, nil
}

// saveCapture wraps the payload in a provenance envelope and publishes it
// atomically as teeradar_page_<offset>.json.
func (c *Client) saveCapture(payload map[string]any, offset int) error {
	wrapped := map[string]any{
		"fetched_at": c.clock.Now().UTC().Format(time.RFC3339Nano),
		"offset":     offset,
		"payload":    payload,
	}
	data, err := json.MarshalIndent(wrapped, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal capture: %w", err)
	}

	path := fmt.Sprintf("%s/teeradar_page_%d.json", strings.TrimRight(c.cfg.OutDir, "/"), offset)
	err = atomicfile.Write(path, func(f *os.File) error {
		_, werr := f.Write(data)
		return werr
	})
	if err != nil {
		return err
	}
	c.logger.Info("saved capture", zap.String("file", path))
	return nil
}

// filterCountry keeps only courses matching the requested country,
// mirroring the API's own filter in case it ignores the parameter. An empty
// country keeps everything.
func filterCountry(payload map[string]any, country string) []any {
	raw, _ := payload["courses"].([]any)
	if country == "" {
		return raw
	}

	allowed := map[string]struct{}{strings.ToLower(country): {}}
	if strings.EqualFold(country, "United States") {
		allowed["us"] = struct{}{}
		allowed["usa"] = struct{}{}
	}

	kept := make([]any, 0, len(raw))
	for _, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		val, _ := fields["country"].(string)
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(val))]; ok {
			kept = append(kept, entry)
		}
	}
	return kept
}

// pageCount reads the API's reported count, falling back to the number of
// courses on the page.
func pageCount(payload map[string]any, fallback int) int {
	if v, ok := payload["count"].(float64); ok {
		return int(v)
	}
	return fallback
}

// sleep waits for d or until the context ends; returns false on cancel.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}
