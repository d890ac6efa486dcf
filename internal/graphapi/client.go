// Package graphapi is a client for the advertising reporting API: paginated
// insights reads and asynchronous report jobs.
package graphapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	Version     string
	AccessToken string
	Timeout     time.Duration
	MaxRetries  int
	RPS         float64
	Burst       int
	MaxPages    int
}

// Client talks to the reporting API. It is safe for concurrent use.
type Client struct {
	baseURL  string
	version  string
	http     HTTPDoer
	limiter  *rate.Limiter
	maxPages int
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewClient builds a client that authenticates with a bearer token,
// retries transient failures and rate limits outgoing requests.
func NewClient(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	base := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}),
			Base:   http.DefaultTransport,
		},
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		version:  strings.Trim(cfg.Version, "/"),
		http:     NewRetryClient(base, cfg.MaxRetries, logger),
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		maxPages: cfg.MaxPages,
		logger:   logger,
		metrics:  m,
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(doer HTTPDoer) {
	c.http = doer
}

type pageResponse struct {
	Data   []models.ReportRow `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// FetchReport reads every page of an edge and returns the concatenated rows.
// Pages are fetched one after another by following paging.next until it is absent.
func (c *Client) FetchReport(ctx context.Context, entityPath string, params url.Values) ([]models.ReportRow, error) {
	next := c.endpoint(entityPath, params)
	rows := make([]models.ReportRow, 0)

	for page := 0; next != ""; page++ {
		if page >= c.maxPages {
			c.logger.Warn("page limit reached, returning partial report",
				zap.String("path", entityPath),
				zap.Int("max_pages", c.maxPages),
				zap.Int("rows", len(rows)),
			)
			break
		}

		var resp pageResponse
		if err := c.do(ctx, "fetch_report", http.MethodGet, next, nil, &resp); err != nil {
			return nil, fmt.Errorf("fetch %s page %d: %w", entityPath, page+1, err)
		}
		c.metrics.RecordPage("fetch_report")

		rows = append(rows, resp.Data...)
		next = resp.Paging.Next
	}

	c.logger.Debug("report fetched",
		zap.String("path", entityPath),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, strings.TrimLeft(path, "/"))
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// do sends one request and decodes a successful body into out.
// Any error payload, whatever the status code, becomes an *APIError.
func (c *Client) do(ctx context.Context, op, method, rawURL string, form url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequest(op, "error", time.Since(start))
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordAPIRequest(op, strconv.Itoa(resp.StatusCode), time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if apiErr, ok := parseAPIError(resp.StatusCode, data); ok {
		return apiErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: truncate(string(data), 512)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
