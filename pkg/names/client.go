package names

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"sitemapgen/pkg/config"
	"sitemapgen/pkg/errors"
	"sitemapgen/pkg/logger"
	"sitemapgen/pkg/metrics"
	"sitemapgen/pkg/ratelimit"
	"sitemapgen/pkg/retry"
)

// Client fetches paginated name listings from the upstream API
type Client struct {
	httpClient    *http.Client
	headers       map[string]string
	baseURL       string
	categoryParam string
	pageSize      int
	limiter       ratelimit.Limiter
	retrier       *retry.Retrier
	metrics       *metrics.Metrics
	logger        logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter sets the request pacer
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithMetrics records fetch metrics on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a names API client
func NewClient(cfg config.UpstreamConfig, retryCfg *retry.Config, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	categoryParam := cfg.CategoryParam
	if categoryParam == "" {
		categoryParam = "religion"
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		headers: map[string]string{
			"User-Agent": cfg.UserAgent,
			"Accept":     "application/json",
		},
		baseURL:       cfg.BaseURL,
		categoryParam: categoryParam,
		pageSize:      cfg.PageSize,
		limiter:       ratelimit.NewPerMinute(cfg.RequestsPerMinute),
		retrier:       retry.NewRetrier(retryCfg),
		metrics:       metrics.New(),
		logger:        log.WithField("component", "names_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageURL builds the listing URL for a category page
func (c *Client) PageURL(category Category, page int) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeConfig, err, "invalid upstream base URL")
	}
	q := u.Query()
	q.Set(c.categoryParam, category.String())
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(c.pageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchPage fetches one page of a category, retrying transient failures.
// When every attempt fails the returned error wraps retry.ErrMaxAttemptsExceeded.
// Context cancellation is returned as is.
func (c *Client) FetchPage(ctx context.Context, category Category, page int) (*Page, error) {
	pageURL, err := c.PageURL(category, page)
	if err != nil {
		return nil, err
	}

	log := c.logger.WithFields(map[string]interface{}{
		"category": category.String(),
		"page":     page,
	})

	retrier := c.retrier.WithContext(ctx).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		c.metrics.ObserveRetry(string(errorTypeOf(err)))
	})

	var result *Page
	err = retrier.Do(func() error {
		p, err := c.fetchOnce(ctx, pageURL, category)
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		if stderrors.Is(err, retry.ErrMaxAttemptsExceeded) {
			c.metrics.ObserveFailure(category.String())
			log.WithError(err).Error("Giving up on page")
		}
		return nil, err
	}

	c.metrics.ObservePage(category.String())
	log.DebugWithFields("Page fetched", map[string]interface{}{
		"records":       len(result.Records),
		"has_next_page": result.HasNextPage,
	})
	return result, nil
}

// fetchOnce performs a single request and decodes the body
func (c *Client) fetchOnce(ctx context.Context, pageURL string, category Category) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeConfig, err, "failed to create request")
	}
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	c.metrics.ObserveFetchDuration(duration)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":         pageURL,
			"error":       err.Error(),
			"duration_ms": duration.Milliseconds(),
		})
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger, req.Method, pageURL, resp.StatusCode, float64(duration.Milliseconds()))

	if !errors.IsSuccessStatusCode(resp.StatusCode) {
		io.Copy(io.Discard, resp.Body)
		return nil, errors.New(errors.TypeForStatusCode(resp.StatusCode),
			fmt.Sprintf("upstream returned status %d", resp.StatusCode), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "failed to read response body")
	}

	return c.decodePage(body, category)
}

// decodePage converts a response body into a Page. Invalid JSON is a
// retryable parsing error; valid JSON of an unexpected shape decodes as far
// as possible and anything missing reads as an empty final page.
func (c *Client) decodePage(body []byte, category Category) (*Page, error) {
	var response namesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !stderrors.As(err, &typeErr) {
			preview := bodyPreview(body, 200)
			c.logger.WarnWithFields("Failed to parse JSON response", map[string]interface{}{
				"error":        err.Error(),
				"body_preview": preview,
			})
			return nil, &errors.Error{
				Type:    errors.ErrorTypeParsing,
				Message: fmt.Sprintf("failed to parse JSON: %v", err),
				Err:     err,
			}
		}
		c.logger.WarnWithFields("Unexpected response shape", map[string]interface{}{
			"category": category.String(),
			"error":    err.Error(),
		})
	}

	page := &Page{}
	if response.Data == nil {
		return page, nil
	}

	for _, entry := range response.Data.Names {
		if entry.Slug == "" {
			c.logger.DebugWithFields("Skipping record without slug", map[string]interface{}{
				"category": category.String(),
			})
			continue
		}
		page.Records = append(page.Records, Record{Slug: entry.Slug, Category: category})
	}

	if len(response.Data.Names) > 0 && response.Data.Pagination != nil {
		page.HasNextPage = response.Data.Pagination.HasNextPage
	}
	return page, nil
}

// classifyTransportError maps a transport failure to a typed error
func classifyTransportError(err error) *errors.Error {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(errors.ErrorTypeTimeout, err, "request timed out")
	}
	return errors.Wrap(errors.ErrorTypeNetwork, err, "network error")
}

func errorTypeOf(err error) errors.ErrorType {
	var typed *errors.Error
	if stderrors.As(err, &typed) {
		return typed.Type
	}
	return errors.ErrorTypeUnknown
}

// bodyPreview returns at most limit bytes of body for logging, cut on a rune
// boundary
func bodyPreview(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}
