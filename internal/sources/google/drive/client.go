package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// DefaultBaseURL is the Drive v3 REST root.
const DefaultBaseURL = "https://www.googleapis.com/drive/v3"

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
)

// Fetcher issues an authenticated GET and returns the decoded JSON object.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params url.Values) (Object, error)
}

// Client is the authenticated Drive API fetcher. Only connect and read timeouts
// are retried; HTTP status errors are returned on the first attempt.
type Client struct {
	httpClient  *http.Client
	transport   http.RoundTripper
	timeout     time.Duration
	backoff     gax.Backoff
	maxAttempts int
	logger      *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for request and failure logging.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithBackoff overrides the retry backoff bounds.
func WithBackoff(initial, maxPause time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = gax.Backoff{Initial: initial, Max: maxPause, Multiplier: 2}
	}
}

// WithMaxAttempts overrides the total number of attempts for transient failures.
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithTransport sets the base transport under the OAuth2 transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

// StaticTokenSource wraps a bare access token.
func StaticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// NewClient creates a Client that attaches a bearer token from ts to every request.
func NewClient(ts oauth2.TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		timeout:     defaultTimeout,
		backoff:     gax.Backoff{Initial: 2 * time.Second, Max: 10 * time.Second, Multiplier: 2},
		maxAttempts: defaultMaxAttempts,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	c.httpClient = &http.Client{
		Timeout:   c.timeout,
		Transport: &oauth2.Transport{Source: ts, Base: c.transport},
	}

	return c
}

// HTTPClient returns the authenticated client, for downloading fetch references.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// CloseIdleConnections releases pooled connections held by the base transport.
func (c *Client) CloseIdleConnections() {
	if t, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}

// Fetch performs a GET against endpoint with params and decodes the JSON object body.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values) (Object, error) {
	reqURL := endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	bo := c.backoff

	for attempt := 1; ; attempt++ {
		obj, kind, err := c.get(ctx, reqURL)
		if err == nil {
			return obj, nil
		}

		if !kind.Transient() || attempt >= c.maxAttempts {
			return nil, &RequestError{Kind: kind, URL: reqURL, Attempts: attempt, Err: err}
		}

		pause := bo.Pause()
		c.logger.Warn("Retrying Drive API request",
			zap.String("url", reqURL),
			zap.Int("attempt", attempt),
			zap.Duration("pause", pause))

		if err := gax.Sleep(ctx, pause); err != nil {
			return nil, &RequestError{Kind: kind, URL: reqURL, Attempts: attempt, Err: err}
		}
	}
}

func (c *Client) get(ctx context.Context, reqURL string) (Object, FailureKind, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, FailureOther, fmt.Errorf("failed to create request: %w", err)
	}

	var conn connTrace
	req = req.WithContext(httptrace.WithClientTrace(ctx, conn.clientTrace()))

	c.logger.Info("Drive API request", zap.String("url", reqURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := classifyNetworkError(err)
		if kind == FailureReadTimeout && conn.awaitingConn() {
			kind = FailureConnectTimeout
		}

		c.logFailure(kind, reqURL, err)

		return nil, kind, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if err := googleapi.CheckResponse(resp); err != nil {
		c.logFailure(FailureHTTPStatus, reqURL, err, zap.Int("status", resp.StatusCode))

		return nil, FailureHTTPStatus, err
	}

	var obj Object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		kind := classifyNetworkError(err)
		c.logFailure(kind, reqURL, err)

		return nil, kind, fmt.Errorf("failed to decode response: %w", err)
	}

	return obj, FailureOther, nil
}

// connTrace records whether the transport obtained a connection. The client
// timeout replaces dial errors with a generic timeout, so a timeout that
// fires before any connection was obtained is a connect timeout.
type connTrace struct {
	requested atomic.Bool
	obtained  atomic.Bool
}

func (t *connTrace) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { t.requested.Store(true) },
		GotConn: func(httptrace.GotConnInfo) { t.obtained.Store(true) },
	}
}

func (t *connTrace) awaitingConn() bool {
	return t.requested.Load() && !t.obtained.Load()
}

func (c *Client) logFailure(kind FailureKind, reqURL string, err error, fields ...zap.Field) {
	var msg string

	switch kind {
	case FailureConnectTimeout:
		msg = "Connection timeout accessing Google Drive API"
	case FailureReadTimeout:
		msg = "Read timeout accessing Google Drive API"
	case FailureHTTPStatus:
		msg = "HTTP status error from Google Drive API"
	default:
		msg = "Unexpected error accessing Google Drive API"
	}

	fields = append(fields,
		zap.String("category", kind.String()),
		zap.String("url", reqURL),
		zap.Error(err))
	c.logger.Error(msg, fields...)
}

var _ Fetcher = (*Client)(nil)
