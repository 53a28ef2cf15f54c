package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/ppiankov/codemeta2mp/internal/cache"
)

const robotsMaxBytes = 512 << 10

// RobotsChecker decides whether remote CodeMeta files may be fetched.
// Raw robots.txt bodies are kept in a cache, keyed by origin, with the status code prefixed.
type RobotsChecker struct {
	cache      cache.Cache
	ttl        time.Duration
	httpClient *http.Client
	userAgent  string
}

// NewRobotsChecker creates a robots.txt checker that uses the given client and cache
func NewRobotsChecker(userAgent string, client *http.Client, store cache.Cache, ttl time.Duration) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if store == nil {
		store = cache.NewMemoryCache(time.Hour, 10*time.Minute)
	}
	return &RobotsChecker{
		cache:      store,
		ttl:        ttl,
		httpClient: client,
		userAgent:  userAgent,
	}
}

// CanFetch reports whether rawURL may be fetched and the crawl delay to honour.
// An unreachable robots.txt allows the fetch.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return false, 0, fmt.Errorf("parse URL: %q is not absolute", rawURL)
	}

	data, err := r.robots(ctx, parsed.Scheme+"://"+parsed.Host)
	if err != nil {
		return true, 0, nil
	}

	agent := NormalizeUserAgent(r.userAgent)
	allowed := data.TestAgent(parsed.EscapedPath(), agent)

	var delay time.Duration
	if group := data.FindGroup(agent); group != nil {
		delay = group.CrawlDelay
	}
	return allowed, delay, nil
}

func (r *RobotsChecker) robots(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	key := cache.Key("robots", origin)
	if raw, ok := r.cache.Get(key); ok {
		status, body, found := strings.Cut(string(raw), "\n")
		if code, err := strconv.Atoi(status); found && err == nil {
			return robotstxt.FromStatusAndBytes(code, []byte(body))
		}
		_ = r.cache.Delete(key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	_ = r.cache.Set(key, []byte(strconv.Itoa(resp.StatusCode)+"\n"+string(body)), r.ttl)
	return data, nil
}

// NormalizeUserAgent reduces a User-Agent header to its product token
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	return strings.Split(parts[0], "/")[0]
}
