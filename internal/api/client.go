package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// AccessDeniedMessage is shown to the user when the server answers 401 or 403.
const AccessDeniedMessage = "Honey, you aren't on the list. (Unauthorized)"

// EmailHeader carries the authenticated identity expected by the backend.
const EmailHeader = "Cf-Access-Authenticated-User-Email"

var (
	// ErrAccessDenied is returned by Do for 401 and 403 responses.
	ErrAccessDenied = errors.New("access denied")
	// ErrMalformedResponse is returned by Do when the body is not usable JSON.
	ErrMalformedResponse = errors.New("malformed response body")
)

// Notifier surfaces a message to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

// Notify calls f(message).
func (f NotifierFunc) Notify(message string) { f(message) }

// Request describes an outbound call. A nil Request is a plain GET.
type Request struct {
	Method string
	Body   any
	Header http.Header
}

// Options configures a Client.
type Options struct {
	BaseURL    string // scheme and host, e.g. https://cal.example.com
	APIRoot    string // path prefix for every endpoint, e.g. /api
	UserEmail  string
	Token      string
	UserAgent  string
	HTTPClient *http.Client
	Notifier   Notifier
	Logger     *slog.Logger
}

// customTransport adds identity and tracing headers to each request.
type customTransport struct {
	UserEmail string
	UserAgent string
	Transport http.RoundTripper
}

// RoundTrip adds required headers to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.UserEmail != "" {
		req.Header.Set(EmailHeader, t.UserEmail)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	return t.Transport.RoundTrip(req)
}

// Client is a client for the availability API.
// Each call is a single attempt; there are no retries.
type Client struct {
	httpClient *http.Client
	root       string
	notifier   Notifier
	logger     *slog.Logger
}

// NewClient creates a new API client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api base URL is required")
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "availcal/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(string) {})
	}

	base := http.DefaultTransport
	var timeout time.Duration
	if opts.HTTPClient != nil {
		if opts.HTTPClient.Transport != nil {
			base = opts.HTTPClient.Transport
		}
		timeout = opts.HTTPClient.Timeout
	}
	if opts.Token != "" {
		base = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"}),
			Base:   base,
		}
	}

	transport := &customTransport{
		UserEmail: opts.UserEmail,
		UserAgent: opts.UserAgent,
		Transport: base,
	}

	root := strings.TrimRight(opts.BaseURL, "/") + "/" + strings.Trim(opts.APIRoot, "/")
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		root:       strings.TrimRight(root, "/"),
		notifier:   opts.Notifier,
		logger:     opts.Logger,
	}, nil
}

// Call issues one request and returns the JSON body, or false when the
// result is absent. Access denial is surfaced through the Notifier;
// transport and parse failures are logged. A body that encodes an
// application-level error is still returned.
func (c *Client) Call(ctx context.Context, endpoint string, r *Request) (json.RawMessage, bool) {
	body, err := c.Do(ctx, endpoint, r)
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			c.logger.Warn("API call denied", "endpoint", endpoint)
			c.notifier.Notify(AccessDeniedMessage)
			return nil, false
		}
		c.logger.Error("API call failed", "endpoint", endpoint, "error", err)
		return nil, false
	}
	return body, true
}

// Do issues one request and returns the JSON body or an error.
func (c *Client) Do(ctx context.Context, endpoint string, r *Request) (json.RawMessage, error) {
	if r == nil {
		r = &Request{}
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var reqBody io.Reader
	if r.Body != nil {
		switch b := r.Body.(type) {
		case []byte:
			reqBody = bytes.NewReader(b)
		case json.RawMessage:
			reqBody = bytes.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request body: %w", err)
			}
			reqBody = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.root+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range r.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	c.logger.Debug("Calling API", "method", method, "endpoint", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrAccessDenied, method, endpoint, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	data = bytes.TrimSpace(data)
	if !json.Valid(data) || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("%w: %s %s (status %d)", ErrMalformedResponse, method, endpoint, resp.StatusCode)
	}
	return json.RawMessage(data), nil
}
