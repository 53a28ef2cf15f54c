// Package validate checks that the URLs carried by converted tool records
// still answer. Dead links become conversion warnings, never errors.
package validate

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ppiankov/codemeta2mp/internal/model"
	"github.com/ppiankov/codemeta2mp/internal/util"
)

const checkMaxAttempts = 3

// checkSleepFunc is the sleep between retries (replaced in tests)
var checkSleepFunc = time.Sleep

// RateLimiter throttles requests per host
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Link is one URL of a record, with the field it came from
type Link struct {
	URL   string
	Field string
}

// LinkResult is the outcome of checking one link
type LinkResult struct {
	Link
	StatusCode  int
	Accessible  bool
	Dead        bool   // 404/410, or a request that cannot succeed
	RedirectURL string // Final URL when it differs
	Error       string
}

// Checker checks record links concurrently
type Checker struct {
	httpClient *http.Client
	userAgent  string
	maxWorkers int
	limiter    RateLimiter
}

// NewChecker creates a Checker from the HTTP settings
func NewChecker(cfg model.HTTPConfig, maxWorkers int, limiter RateLimiter) *Checker {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed hosts
	}

	return &Checker{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		userAgent:  cfg.UserAgent,
		maxWorkers: maxWorkers,
		limiter:    limiter,
	}
}

// Links returns the checkable URLs of rec: access points, the thumbnail and
// user manual properties. Duplicates are checked once.
func Links(rec *model.ToolRecord) []Link {
	var links []Link
	seen := map[string]bool{}
	add := func(raw, field string) {
		if raw == "" || seen[raw] {
			return
		}
		seen[raw] = true
		links = append(links, Link{URL: raw, Field: field})
	}

	for _, ap := range rec.AccessibleAt {
		add(ap.URL, "accessibleAt")
	}
	add(rec.Thumbnail, "thumbnail")
	for _, p := range rec.PropertiesOf(model.PropertyUserManual) {
		add(p.Value, model.PropertyUserManual)
	}
	return links
}

// Check checks every link concurrently. Results keep the order of links.
func (c *Checker) Check(ctx context.Context, links []Link) []LinkResult {
	results := make([]LinkResult, len(links))
	if len(links) == 0 {
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.maxWorkers)

	for i, l := range links {
		wg.Add(1)
		go func(idx int, l Link) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = LinkResult{Link: l, Error: "context cancelled"}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = c.checkWithRetry(ctx, l)
		}(i, l)
	}

	wg.Wait()
	return results
}

// Warnings checks the links of conv's record and returns one warning per
// link that did not answer with 2xx or 3xx
func (c *Checker) Warnings(ctx context.Context, conv *model.Conversion) []model.Warning {
	var warnings []model.Warning
	for _, r := range c.Check(ctx, Links(conv.Record)) {
		if r.Accessible {
			continue
		}
		reason := r.Error
		if reason == "" {
			reason = fmt.Sprintf("status %d", r.StatusCode)
		}
		warnings = append(warnings, model.Warning{
			Code:    model.WarnUnreachableURL,
			Field:   r.Field,
			Message: fmt.Sprintf("%s is unreachable: %s", r.URL, reason),
		})
	}
	return warnings
}

func (c *Checker) checkOnce(ctx context.Context, l Link) LinkResult {
	result := LinkResult{Link: l}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, l.URL); err != nil {
			result.Error = err.Error()
			result.Dead = ctx.Err() == nil
			return result
		}
	}

	resp, err := c.do(ctx, http.MethodHead, l.URL)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		// Some hosts only answer GET
		_ = resp.Body.Close()
		resp, err = c.do(ctx, http.MethodGet, l.URL)
	}
	if err != nil {
		result.Error = err.Error()
		result.Dead = !isTransient(err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.Accessible = true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.Dead = true
	}

	if final := resp.Request.URL.String(); final != l.URL {
		result.RedirectURL = final
	}
	return result
}

func (c *Checker) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// checkWithRetry retries transient failures with exponential backoff
func (c *Checker) checkWithRetry(ctx context.Context, l Link) LinkResult {
	var result LinkResult
	for attempt := 0; attempt < checkMaxAttempts; attempt++ {
		result = c.checkOnce(ctx, l)
		if !isRetryable(result) || ctx.Err() != nil {
			return result
		}
		if attempt < checkMaxAttempts-1 {
			checkSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return result
}

// isRetryable reports results worth another attempt: 5xx, 429 and
// transient network errors
func isRetryable(result LinkResult) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return result.Error != "" && result.StatusCode == 0 && !result.Dead
}

// isTransient reports network errors (timeouts, refused or reset
// connections) that may pass on a later attempt
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
