// Package marketplace submits tool records to the SSHOC Open Marketplace API.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/codemeta2mp/internal/cache"
	"github.com/ppiankov/codemeta2mp/internal/model"
	"github.com/ppiankov/codemeta2mp/internal/util"
)

const (
	signInPath = "/api/auth/sign-in"
	toolsPath  = "/api/tools-services"

	maxErrorBody = 512
)

// ErrNoCredentials is returned when an authenticated call is made without a username and password
var ErrNoCredentials = errors.New("marketplace username and password are required")

// RateLimiter throttles outgoing requests per host
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Item is the part of a Marketplace item response the client reports back
type Item struct {
	ID           int64  `json:"id"`
	PersistentID string `json:"persistentId"`
	Label        string `json:"label"`
	Status       string `json:"status,omitempty"`
}

// Client talks to the Marketplace ingestion API
type Client struct {
	baseURL    string
	httpClient *http.Client
	username   string
	password   string
	auth       model.AuthMode
	tokens     *cache.MemoryCache
	tokenTTL   time.Duration
	limiter    RateLimiter
	userAgent  string
	logger     *slog.Logger
	requestID  func() string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter throttles every request through l
func WithLimiter(l RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the configured Marketplace instance
func NewClient(cfg model.MarketplaceConfig, httpCfg model.HTTPConfig, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("marketplace base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("marketplace base URL %q must be an absolute http(s) URL", cfg.BaseURL)
	}

	auth := cfg.Auth
	switch auth {
	case "":
		auth = model.AuthSignIn
	case model.AuthSignIn, model.AuthBasic:
	default:
		return nil, fmt.Errorf("unknown marketplace auth mode %q", cfg.Auth)
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	c := &Client{
		baseURL:   base.String(),
		username:  cfg.Username,
		password:  cfg.Password,
		auth:      auth,
		tokenTTL:  ttl,
		userAgent: httpCfg.UserAgent,
		logger:    slog.Default(),
		requestID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		jar, err := util.NewCookieJar()
		if err != nil {
			return nil, err
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy)
		c.httpClient = &http.Client{Timeout: httpCfg.Timeout, Transport: transport, Jar: jar}
	}
	c.tokens = cache.NewMemoryCache(ttl, 5*time.Minute)
	return c, nil
}

// Create submits a new tool/service
func (c *Client) Create(ctx context.Context, rec *model.ToolRecord) (*Item, error) {
	var item Item
	if err := c.call(ctx, http.MethodPost, toolsPath, rec, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Update replaces the tool/service with the given persistent ID
func (c *Client) Update(ctx context.Context, persistentID string, rec *model.ToolRecord) (*Item, error) {
	if persistentID == "" {
		return nil, errors.New("update requires a persistent ID")
	}
	var item Item
	if err := c.call(ctx, http.MethodPut, toolsPath+"/"+url.PathEscape(persistentID), rec, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// SignIn exchanges the credentials for a bearer token, reusing a cached one when possible
func (c *Client) SignIn(ctx context.Context) (string, error) {
	key := c.tokenKey()
	if token, ok := c.tokens.GetString(key); ok && token != "" {
		return token, nil
	}

	target := c.baseURL + signInPath
	if c.username == "" || c.password == "" {
		return "", &model.SubmissionError{Method: http.MethodPost, URL: target, Err: ErrNoCredentials}
	}

	payload := map[string]string{"username": c.username, "password": c.password}
	resp, err := c.send(ctx, http.MethodPost, target, payload, "")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	token := resp.Header.Get("Authorization")
	if token == "" {
		return "", &model.SubmissionError{
			Method: http.MethodPost,
			URL:    target,
			Err:    errors.New("sign-in response carried no Authorization header"),
		}
	}

	_ = c.tokens.Set(key, []byte(token), c.tokenTTL)
	c.logger.Debug("Signed in to marketplace", slog.String("user", c.username))
	return token, nil
}

func (c *Client) tokenKey() string {
	return cache.Key("token", c.baseURL, c.username)
}

// call performs an authenticated JSON request and decodes the response into out.
// A rejected cached token is dropped and the call retried once with a fresh one.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	target := c.baseURL + path

	for attempt := 0; ; attempt++ {
		authHeader := ""
		if c.auth == model.AuthSignIn {
			token, err := c.SignIn(ctx)
			if err != nil {
				return err
			}
			authHeader = token
		}

		resp, err := c.send(ctx, method, target, body, authHeader)
		if err != nil {
			var subErr *model.SubmissionError
			if attempt == 0 && c.auth == model.AuthSignIn && errors.As(err, &subErr) && subErr.StatusCode == http.StatusUnauthorized {
				_ = c.tokens.Delete(c.tokenKey())
				c.logger.Debug("Marketplace rejected token, signing in again")
				continue
			}
			return err
		}

		defer func() { _ = resp.Body.Close() }()
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return &model.SubmissionError{Method: method, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}
}

// send issues one request; non-2xx responses become SubmissionErrors
func (c *Client) send(ctx context.Context, method, target string, body any, authHeader string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, target); err != nil {
			return nil, &model.SubmissionError{Method: method, URL: target, Err: err}
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &model.SubmissionError{Method: method, URL: target, Err: err}
	}
	requestID := c.requestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	switch {
	case authHeader != "":
		req.Header.Set("Authorization", authHeader)
	case c.auth == model.AuthBasic:
		if c.username == "" || c.password == "" {
			return nil, &model.SubmissionError{Method: method, URL: target, Err: ErrNoCredentials}
		}
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.SubmissionError{Method: method, URL: target, Err: err}
	}

	c.logger.Debug("Marketplace request",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", requestID),
		slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &model.SubmissionError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}
	return resp, nil
}
