// Package launchapi implements the client for the paginated launch-data
// provider: page fetches with retry/backoff, wire-schema decoding, and
// ownership of the "next page" cursor.
package launchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/launchfeed/launchfeed/internal/metrics"
	"github.com/launchfeed/launchfeed/internal/models"
)

const (
	DefaultPageSize       = 30
	DefaultRequestTimeout = 15 * time.Second
)

// Client fetches launches from the provider's list endpoint. It exclusively
// owns the pagination cursor; the cursor lives behind the client mutex and is
// never persisted, so a process restart resumes from page one. That is a
// deliberate choice: the first page is always re-fetched after a restart
// anyway, and a persisted cursor could splice a stale page sequence onto a
// fresh first page.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	policy         RetryPolicy
	requestTimeout time.Duration
	pageSize       int
	logger         *slog.Logger
	metrics        *metrics.Pipeline

	mu   sync.Mutex
	next string // empty means no further pages
}

// Options tunes the client. Zero values fall back to defaults.
type Options struct {
	PageSize       int
	RequestTimeout time.Duration
	Policy         *RetryPolicy
	HTTPClient     *http.Client
	Metrics        *metrics.Pipeline
}

// NewClient creates a client for the given list endpoint URL.
func NewClient(baseURL string, logger *slog.Logger, opts Options) *Client {
	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpClient:     opts.HTTPClient,
		policy:         DefaultRetryPolicy(),
		requestTimeout: DefaultRequestTimeout,
		pageSize:       DefaultPageSize,
		logger:         logger,
		metrics:        opts.Metrics,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if opts.Policy != nil {
		c.policy = *opts.Policy
	}
	if opts.RequestTimeout > 0 {
		c.requestTimeout = opts.RequestTimeout
	}
	if opts.PageSize > 0 {
		c.pageSize = opts.PageSize
	}
	return c
}

// FetchFirstPage fetches page one and resets the pagination cursor to
// whatever the response carries.
func (c *Client) FetchFirstPage(ctx context.Context) ([]models.Launch, error) {
	pageURL := c.baseURL + "/?limit=" + strconv.Itoa(c.pageSize)
	page, err := c.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	c.setCursor(page.Next)
	return mapResults(page.Results), nil
}

// FetchNextPage fetches the page behind the held cursor. With no cursor held
// it returns an empty result and performs no network call; that is the
// exhaustion signal, not an error.
func (c *Client) FetchNextPage(ctx context.Context) ([]models.Launch, error) {
	c.mu.Lock()
	cursor := c.next
	c.mu.Unlock()
	if cursor == "" {
		return nil, nil
	}

	page, err := c.fetchPage(ctx, cursor)
	if err != nil {
		return nil, err
	}
	c.setCursor(page.Next)
	return mapResults(page.Results), nil
}

// HasNextPage reports whether a pagination cursor is currently held.
func (c *Client) HasNextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next != ""
}

// FetchLaunch fetches the current state of a single launch by id. Used by
// milestone re-checks.
func (c *Client) FetchLaunch(ctx context.Context, id string) (models.Launch, error) {
	var w wireLaunch
	err := retry(ctx, c.policy, func() error {
		return c.doRequest(ctx, c.baseURL+"/"+url.PathEscape(id)+"/", &w)
	})
	if err != nil {
		return models.Launch{}, err
	}
	return toLaunch(w), nil
}

func (c *Client) setCursor(next *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next != nil {
		c.next = *next
	} else {
		c.next = ""
	}
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (launchPage, error) {
	var page launchPage
	attempt := 0
	err := retry(ctx, c.policy, func() error {
		attempt++
		if c.metrics != nil {
			c.metrics.FetchAttempt(attempt > 1)
		}
		err := c.doRequest(ctx, pageURL, &page)
		if err != nil && isRetryable(err) {
			c.logger.Warn("launch page fetch failed, will retry",
				"url", pageURL,
				"attempt", attempt,
				"error", err)
		}
		return err
	})
	if err != nil {
		return launchPage{}, err
	}
	return page, nil
}

// doRequest performs one GET attempt with the per-request timeout and decodes
// the body into out. Error classification follows the fetcher's taxonomy:
// transport errors, timeouts, 429 and 5xx are retryable; decode failures,
// auth failures and other 4xx are not; parent-context cancellation surfaces
// as ErrCancelled.
func (c *Client) doRequest(ctx context.Context, requestURL string, out any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("launchapi: build request: %w", err)
	}
	// The transport negotiates gzip transfer on its own; we only pin the
	// payload format.
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		// Includes the per-attempt timeout.
		return retryable(fmt.Errorf("launchapi: request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retryable(fmt.Errorf("launchapi: read response: %w", err))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &DecodeError{Err: err}
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return retryable(&StatusError{Code: resp.StatusCode})
	default:
		return &StatusError{Code: resp.StatusCode}
	}
}

func mapResults(results []wireLaunch) []models.Launch {
	launches := make([]models.Launch, 0, len(results))
	for _, w := range results {
		launches = append(launches, toLaunch(w))
	}
	return launches
}
