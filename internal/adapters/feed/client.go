// Package feed reads the ScrapedDuck documents and Leek Duck detail pages.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/okian/eventwatch/internal/adapters/repository"
	"github.com/okian/eventwatch/internal/domain/model"
	"github.com/okian/eventwatch/pkg/logger"
	"github.com/okian/eventwatch/pkg/metrics"
)

// Default document locations.
const (
	DefaultEventsURL = "https://raw.githubusercontent.com/bigfoott/ScrapedDuck/data/events.json"
	DefaultRaidsURL  = "https://raw.githubusercontent.com/bigfoott/ScrapedDuck/data/raids.json"
	DefaultEggsURL   = "https://raw.githubusercontent.com/bigfoott/ScrapedDuck/data/eggs.json"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20

	// DescriptionSelector locates the event text on a detail page.
	DescriptionSelector = ".event-description"
)

// Client fetches feed documents.
type Client struct {
	eventsURL     string
	raidsURL      string
	eggsURL       string
	timeout       time.Duration
	http          *http.Client
	rawEventsPath string
	logger        logger.Logger
}

// NewClient creates a Client for the public ScrapedDuck feed.
func NewClient(opts ...Option) *Client {
	c := &Client{
		eventsURL: DefaultEventsURL,
		raidsURL:  DefaultRaidsURL,
		eggsURL:   DefaultEggsURL,
		timeout:   defaultTimeout,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = NewHTTPClient(c.timeout)
	}
	return c
}

// NewHTTPClient returns an http.Client with a tuned transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Events fetches the events document.
func (c *Client) Events(ctx context.Context) ([]model.EventRecord, error) {
	body, err := c.get(ctx, c.eventsURL)
	if err != nil {
		return nil, err
	}
	if c.rawEventsPath != "" {
		if err := repository.WriteFileAtomic(c.rawEventsPath, body); err != nil {
			c.logger.Warn(ctx, "failed to mirror events document",
				logger.String("path", c.rawEventsPath), logger.Error(err))
		}
	}
	return decodeRecords[model.EventRecord](ctx, c.logger, model.DatasetEvents, c.eventsURL, body)
}

// Raids fetches the raids document.
func (c *Client) Raids(ctx context.Context) ([]model.RaidRecord, error) {
	body, err := c.get(ctx, c.raidsURL)
	if err != nil {
		return nil, err
	}
	return decodeRecords[model.RaidRecord](ctx, c.logger, model.DatasetRaids, c.raidsURL, body)
}

// Eggs fetches the eggs document.
func (c *Client) Eggs(ctx context.Context) ([]model.EggRecord, error) {
	body, err := c.get(ctx, c.eggsURL)
	if err != nil {
		return nil, err
	}
	return decodeRecords[model.EggRecord](ctx, c.logger, model.DatasetEggs, c.eggsURL, body)
}

// Description fetches an event detail page and returns the trimmed text
// of its description block. A page without one yields "".
func (c *Client) Description(ctx context.Context, link string) (string, error) {
	if strings.TrimSpace(link) == "" {
		return "", fmt.Errorf("%w: empty link", ErrFetch)
	}
	body, err := c.get(ctx, link)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %w", ErrFetch, link, err)
	}
	return strings.TrimSpace(doc.Find(DescriptionSelector).Text()), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("User-Agent", "eventwatch/1.0")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %w", ErrFetch, ErrUnexpectedStatus{URL: url, Status: resp.StatusCode})
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrFetch, url, err)
	}
	c.logger.Debug(ctx, "fetched",
		logger.String("url", url),
		logger.Int("bytes", len(body)),
		logger.Duration("took", time.Since(start)))
	return body, nil
}

// decodeRecords decodes a JSON array element by element. A document that
// is not an array fails as a whole; an element that does not fit T is
// logged, counted as a format failure, and skipped.
func decodeRecords[T any](ctx context.Context, log logger.Logger, dataset model.Dataset, url string, body []byte) ([]T, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrFetch, url, err)
	}
	out := make([]T, 0, len(raw))
	for i, elem := range raw {
		var rec T
		if err := json.Unmarshal(elem, &rec); err != nil {
			log.Warn(ctx, "skipping undecodable record",
				logger.String("dataset", dataset.String()),
				logger.Int("index", i),
				logger.Error(err))
			metrics.RecordFormatFailure(dataset.String())
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
