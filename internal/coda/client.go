package coda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production Coda API endpoint.
const DefaultBaseURL = "https://coda.io/apis/v1"

// maxPageSize is the largest page size the Coda API accepts on list
// endpoints. Fetching maximal pages minimizes the number of requests
// counted against the rate limit.
const maxPageSize = 200

// Default client tuning. These match the original deployment values and can
// be overridden per Options field.
const (
	defaultRPS             = 8.0
	defaultBurst           = 16
	defaultRetries         = 5
	defaultBackoffInterval = 10 * time.Second
	defaultRetryInterval   = 500 * time.Millisecond
	defaultTimeout         = 60 * time.Second
)

// Options configures a Client. Token is required; every other field has a
// sensible default.
type Options struct {
	// Token is the Coda API bearer token.
	Token string

	// BaseURL overrides the API endpoint. Used by tests to point the
	// client at an httptest server.
	BaseURL string

	// HTTPClient overrides the underlying HTTP client.
	HTTPClient *http.Client

	// RPS and Burst configure the steady-state token-bucket rate limit.
	RPS   float64
	Burst int

	// Retries is the maximum number of retries per request, i.e. a request
	// is attempted at most Retries+1 times.
	Retries int

	// BackoffInterval is how long all traffic pauses after a 429 response.
	BackoffInterval time.Duration

	// RetryInterval is the initial delay of the per-request exponential
	// retry backoff.
	RetryInterval time.Duration

	// Logger receives per-request debug logs and retry warnings.
	Logger *zap.Logger
}

// Client talks to the Coda API. It is safe for concurrent use; the rate
// limiter and backoff gate are shared across all calls on purpose, so that
// parallel exports stay within one global request budget.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	authorization string
	limiter       *rate.Limiter
	gate          *adaptiveGate
	retries       int
	retryInterval time.Duration
	log           *zap.Logger
}

// NewClient creates a Client from Options. Returns an error if no token
// is given.
func NewClient(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("coda: api token must not be empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.RPS <= 0 {
		opts.RPS = defaultRPS
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	if opts.BackoffInterval <= 0 {
		opts.BackoffInterval = defaultBackoffInterval
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Client{
		httpClient:    opts.HTTPClient,
		baseURL:       opts.BaseURL,
		authorization: "Bearer " + opts.Token,
		limiter:       rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		gate:          newAdaptiveGate(opts.BackoffInterval),
		retries:       opts.Retries,
		retryInterval: opts.RetryInterval,
		log:           opts.Logger,
	}, nil
}

// page is the envelope the Coda API wraps every list response in.
type page struct {
	Items        []json.RawMessage `json:"items"`
	NextPageLink *string           `json:"nextPageLink"`
}

// apiErrorBody is the error envelope of non-2xx responses.
type apiErrorBody struct {
	Message string `json:"message"`
}

// Docs iterates over all documents the token can access, calling fn for
// each. Iteration stops at the first error returned by fn.
func (c *Client) Docs(ctx context.Context, fn func(*Doc) error) error {
	return c.forEach(ctx, "/docs", nil, func(item json.RawMessage) error {
		doc, err := ParseDoc(c, item)
		if err != nil {
			return err
		}
		return fn(doc)
	})
}

// GetDoc fetches a single document by id. Returns an error matching
// ErrNotFound if the id is unknown.
func (c *Client) GetDoc(ctx context.Context, docID string) (*Doc, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/docs/"+url.PathEscape(docID), nil, nil, &raw); err != nil {
		return nil, err
	}
	return ParseDoc(c, raw)
}

// CellEdit sets one cell of a row being upserted. Column may be a column id
// or a column name; the exporter uses names so archives survive column id
// churn between source and destination docs.
type CellEdit struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// RowEdit is one row of an upsert payload.
type RowEdit struct {
	Cells []CellEdit `json:"cells"`
}

// UpsertRowsRequest is the payload of the rows upsert endpoint.
type UpsertRowsRequest struct {
	Rows []RowEdit `json:"rows"`
}

// UpsertRows inserts rows into a table. The API processes upserts
// asynchronously; a 2xx response means the mutation was accepted.
func (c *Client) UpsertRows(ctx context.Context, docID, tableID string, req UpsertRowsRequest) error {
	path := c.baseURL + "/docs/" + url.PathEscape(docID) + "/tables/" + url.PathEscape(tableID) + "/rows"
	return c.doJSON(ctx, http.MethodPost, path, nil, req, nil)
}

// forEach fetches a paginated list endpoint and calls fn for every item,
// following nextPageLink cursors until the last page. The cursor URL
// returned by the API is absolute and already encodes the query, so query
// parameters are only sent with the first request.
func (c *Client) forEach(ctx context.Context, path string, query url.Values, fn func(json.RawMessage) error) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("limit", strconv.Itoa(maxPageSize))

	pageURL := c.baseURL + path
	for {
		var p page
		if err := c.doJSON(ctx, http.MethodGet, pageURL, query, nil, &p); err != nil {
			return err
		}
		for _, item := range p.Items {
			if err := fn(item); err != nil {
				return err
			}
		}
		if p.NextPageLink == nil || *p.NextPageLink == "" {
			return nil
		}
		pageURL = *p.NextPageLink
		query = nil
	}
}

// doJSON performs one API request with rate limiting and retries, decoding
// the response body into out when out is non-nil.
//
// Retry policy: network errors, 5xx and 429 responses retry with
// exponential backoff; all other 4xx responses fail immediately. A 429
// additionally trips the shared backoff gate so concurrent requests pause
// too.
func (c *Client) doJSON(ctx context.Context, method, fullURL string, query url.Values, body, out any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.MaxElapsedTime = 0 // bounded by WithMaxRetries, not wall time

	op := func() error {
		return c.attempt(ctx, method, fullURL, query, body, out)
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn("request failed, retrying",
			zap.String("method", method),
			zap.String("url", fullURL),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	return backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.retries)), ctx),
		notify)
}

// attempt performs a single HTTP request. Errors it returns are retryable
// unless wrapped in backoff.Permanent.
func (c *Client) attempt(ctx context.Context, method, fullURL string, query url.Values, body, out any) error {
	if err := c.gate.wait(ctx); err != nil {
		return backoff.Permanent(err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return backoff.Permanent(err)
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("encode request body: %w", err))
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", c.authorization)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	c.log.Debug("api request", zap.String("method", method), zap.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failure, worth retrying.
		return fmt.Errorf("%s %s: %w", method, fullURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.responseError(method, fullURL, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, fullURL, err)
		}
	}
	return nil
}

// responseError turns a non-2xx response into an *APIError and decides
// whether it is retryable.
func (c *Client) responseError(method, fullURL string, resp *http.Response) error {
	var errBody apiErrorBody
	// The error body is best-effort; some proxies return non-JSON errors.
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(data, &errBody)

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: errBody.Message}
	wrapped := fmt.Errorf("%s %s: %w", method, fullURL, apiErr)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.log.Warn("rate limit response, backing off", zap.String("url", fullURL))
		c.gate.trip()
		return wrapped
	case resp.StatusCode >= 500:
		return wrapped
	default:
		return backoff.Permanent(wrapped)
	}
}
