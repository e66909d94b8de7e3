package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fgravato/falcon-rtr/internal/config"
	"github.com/fgravato/falcon-rtr/pkg/errors"
	"go.uber.org/zap"
)

// HTTPDoer is the subset of *http.Client the API client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client handles all API interactions
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   HTTPDoer
	baseHeaders  map[string]string
	logger       *zap.Logger
	now          func() time.Time

	mu          sync.Mutex
	accessToken string
}

// Request describes one call to the API. Path is relative to the base URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Form    url.Values
	JSON    interface{}
	Headers map[string]string
}

// NewClient creates a new API client
func NewClient(cfg config.APIConfig) *Client {
	return NewClientWithLogger(cfg, zap.NewNop())
}

// NewClientWithLogger creates a new API client with a custom logger
func NewClientWithLogger(cfg config.APIConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseHeaders: map[string]string{
			"accept": "application/json",
		},
		logger: logger,
		now:    time.Now,
	}
}

// SetHTTPClient replaces the underlying transport, mostly for tests and proxies.
func (c *Client) SetHTTPClient(h HTTPDoer) {
	c.httpClient = h
}

// Authenticated reports whether a bearer token has been obtained.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != ""
}

// Authenticate fetches a bearer token with the client-credentials grant and
// attaches it to every later request. Calling it again replaces the token.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

// ensureToken obtains a token on first use. The lock is held across the token
// request so concurrent first callers wait for a single fetch.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" {
		return c.accessToken, nil
	}
	if err := c.authenticateLocked(ctx); err != nil {
		return "", err
	}
	return c.accessToken, nil
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "client_credentials")

	c.logger.Info("Requesting OAuth2 token", zap.String("url", c.baseURL+TokenPath))

	var tokenResp TokenResponse
	req := Request{Method: http.MethodPost, Path: TokenPath, Form: form}
	if err := c.send(ctx, req, "", &tokenResp); err != nil {
		return fmt.Errorf("requesting token: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return errors.ErrEmptyToken
	}

	c.accessToken = tokenResp.AccessToken
	c.logger.Info("Successfully authenticated",
		zap.String("token_type", tokenResp.TokenType),
		zap.Int("expires_in", tokenResp.ExpiresIn))

	return nil
}

// Do validates the method, makes sure a token is held (except for the token
// endpoint itself) and performs the request, decoding a 2xx JSON body into out.
// out may be nil when the body is not needed.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		return &errors.UnsupportedMethodError{Method: req.Method}
	}

	var token string
	if req.Path != TokenPath {
		var err error
		token, err = c.ensureToken(ctx)
		if err != nil {
			return fmt.Errorf("ensuring valid token: %w", err)
		}
	}

	return c.send(ctx, req, token, out)
}

// headersFor derives the header set for one call from the immutable base headers.
func (c *Client) headersFor(req Request, token string) http.Header {
	headers := make(http.Header, len(c.baseHeaders)+len(req.Headers)+2)
	for k, v := range c.baseHeaders {
		headers.Set(k, v)
	}
	if token != "" {
		headers.Set("authorization", "bearer "+token)
	}
	switch {
	case req.Form != nil:
		headers.Set("Content-Type", "application/x-www-form-urlencoded")
	case req.JSON != nil:
		headers.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		headers.Set(k, v)
	}
	return headers
}

func (c *Client) send(ctx context.Context, req Request, token string, out interface{}) error {
	reqURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		reqURL += "?" + req.Query.Encode()
	}

	var body io.Reader
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, reqURL, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header = c.headersFor(req, token)

	start := c.now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("HTTP request failed",
			zap.Error(err),
			zap.String("method", req.Method),
			zap.String("path", req.Path))
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug("HTTP request completed",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", c.now().Sub(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("API returned error status",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status_code", resp.StatusCode))
		return errors.NewHTTPError(req.Method, c.baseURL+req.Path, resp.StatusCode, resp.Status, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &errors.DecodeError{URL: c.baseURL + req.Path, Err: err}
	}
	return nil
}
