package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cozystack/pipewiz/internal/pkg/apperror"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 4 << 20

// RequestIDHeader carries a per-request id so server logs can be correlated.
const RequestIDHeader = "X-Request-ID"

// Config holds settings for a Client.
type Config struct {
	// BaseURL is the root URL every request path is resolved against.
	BaseURL string

	// Timeout bounds a single request. Zero means no timeout.
	Timeout time.Duration

	// RateLimit is the number of requests per second. Zero disables limiting.
	RateLimit float64

	// HTTPClient defaults to a pooled cleanhttp client.
	HTTPClient *http.Client

	Logger *zap.Logger
}

// Client issues JSON-ish HTTP requests against one base URL.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// New creates a client from the configuration.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, apperror.NewConfigurationError("NET_001", "base URL is required", "")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperror.NewConfigurationError("NET_002", "invalid base URL", cfg.BaseURL)
	}

	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		limiter: limiter,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Resolve joins a relative path and query onto the base URL. path is taken
// as already escaped, so segments built with url.PathEscape survive as is.
func (c *Client) Resolve(path string, query url.Values) string {
	ref := &url.URL{Path: strings.TrimPrefix(path, "/")}
	if unescaped, err := url.PathUnescape(ref.Path); err == nil {
		ref.Path, ref.RawPath = unescaped, ref.Path
	}

	u := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String()
}

// Do sends a request and reads the whole response. Non-2xx statuses are not
// errors; only transport failures are.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, contentType string, body []byte) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.NewNetworkErrorWithCause("NET_003", "rate limiter wait aborted", path, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	target := c.Resolve(path, query)

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, apperror.NewInternalErrorWithCause("NET_004", "failed to build request", target, err)
	}

	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	started := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", method), zap.String("url", target),
			zap.String("request_id", requestID), zap.Error(err))

		return nil, apperror.NewNetworkErrorWithCause("NET_005", "request failed", fmt.Sprintf("%s %s", method, target), err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, apperror.NewNetworkErrorWithCause("NET_006", "failed to read response", target, err)
	}

	c.logger.Debug("request completed",
		zap.String("method", method), zap.String("url", target),
		zap.String("request_id", requestID), zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		RequestID:  requestID,
	}, nil
}

// Get is Do with GET and no body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, "", nil)
}

// PostJSON is Do with POST and a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, "application/json", body)
}

// PostForm is Do with POST and a url-encoded form body.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, "application/x-www-form-urlencoded", []byte(form.Encode()))
}
