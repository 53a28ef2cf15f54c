package validate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/codemeta2mp/internal/model"
)

func init() {
	checkSleepFunc = func(d time.Duration) {}
}

func testChecker(limiter RateLimiter) *Checker {
	return NewChecker(model.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "codemeta2mp-test"}, 4, limiter)
}

func TestChecker_Check_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got %s", r.Method)
		}
		if got := r.Header.Get("User-Agent"); got != "codemeta2mp-test" {
			t.Errorf("Expected configured User-Agent, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	results := testChecker(nil).Check(context.Background(), []Link{{URL: server.URL, Field: "accessibleAt"}})

	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if !results[0].Accessible {
		t.Errorf("Expected link to be accessible, got %+v", results[0])
	}
	if results[0].StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", results[0].StatusCode)
	}
}

func TestChecker_Check_404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	results := testChecker(nil).Check(context.Background(), []Link{{URL: server.URL}})

	if results[0].Accessible {
		t.Error("Expected 404 link not to be accessible")
	}
	if !results[0].Dead {
		t.Error("Expected 404 link to be marked as dead")
	}
}

func TestChecker_Check_Redirect(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusMovedPermanently)
	}))
	defer redirect.Close()

	results := testChecker(nil).Check(context.Background(), []Link{{URL: redirect.URL}})

	if !results[0].Accessible {
		t.Error("Expected redirected link to be accessible")
	}
	if !strings.HasPrefix(results[0].RedirectURL, final.URL) {
		t.Errorf("Expected redirect URL %s, got %s", final.URL, results[0].RedirectURL)
	}
}

func TestChecker_Check_HeadNotAllowedFallsBackToGet(t *testing.T) {
	var (
		mu      sync.Mutex
		methods []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	results := testChecker(nil).Check(context.Background(), []Link{{URL: server.URL}})

	if !results[0].Accessible {
		t.Errorf("Expected GET fallback to succeed, got %+v", results[0])
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(methods, ",") != "HEAD,GET" {
		t.Errorf("Expected HEAD then GET, got %v", methods)
	}
}

func TestChecker_Check_Concurrency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	links := make([]Link, 8)
	for i := range links {
		links[i] = Link{URL: server.URL + "/" + string(rune('a'+i))}
	}

	start := time.Now()
	results := testChecker(nil).Check(context.Background(), links)
	duration := time.Since(start)

	// 8 links @ 100ms with 4 workers take about 200ms; serially 800ms
	if duration > 600*time.Millisecond {
		t.Errorf("Check took too long (%v), concurrent execution may not be working", duration)
	}
	for i, r := range results {
		if r.URL != links[i].URL {
			t.Errorf("Result %d: expected %s, got %s", i, links[i].URL, r.URL)
		}
		if !r.Accessible {
			t.Errorf("Result %d: expected accessible", i)
		}
	}
}

func TestChecker_Check_Empty(t *testing.T) {
	results := testChecker(nil).Check(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}

func TestChecker_Check_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	results := testChecker(nil).Check(ctx, []Link{{URL: server.URL}})

	if results[0].Accessible {
		t.Error("Expected link not to be accessible after context cancellation")
	}
	if results[0].Error == "" {
		t.Error("Expected an error message")
	}
}

func TestChecker_Check_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	results := testChecker(nil).Check(context.Background(), []Link{{URL: server.URL}})

	if !results[0].Accessible {
		t.Errorf("Expected success after retries, got %+v", results[0])
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestChecker_Check_PermanentFailureNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	results := testChecker(nil).Check(context.Background(), []Link{{URL: server.URL}})

	if !results[0].Dead {
		t.Error("Expected 410 link to be dead")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("Expected 1 attempt, got %d", got)
	}
}

func TestChecker_Check_AllRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	results := testChecker(nil).Check(context.Background(), []Link{{URL: server.URL}})

	if results[0].Accessible {
		t.Error("Expected link not to be accessible")
	}
	if got := attempts.Load(); got != checkMaxAttempts {
		t.Errorf("Expected %d attempts, got %d", checkMaxAttempts, got)
	}
}

type countingLimiter struct {
	calls atomic.Int32
	err   error
}

func (l *countingLimiter) Wait(ctx context.Context, rawURL string) error {
	l.calls.Add(1)
	return l.err
}

func TestChecker_Check_UsesLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	limiter := &countingLimiter{}
	testChecker(limiter).Check(context.Background(), []Link{{URL: server.URL + "/a"}, {URL: server.URL + "/b"}})

	if got := limiter.calls.Load(); got != 2 {
		t.Errorf("Expected 2 limiter waits, got %d", got)
	}
}

func TestChecker_Check_LimiterErrorIsDead(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("no host")}
	results := testChecker(limiter).Check(context.Background(), []Link{{URL: "not-a-url"}})

	if !results[0].Dead {
		t.Errorf("Expected limiter failure to mark the link dead, got %+v", results[0])
	}
	if got := limiter.calls.Load(); got != 1 {
		t.Errorf("Expected no retry, got %d limiter waits", got)
	}
}

func TestLinks(t *testing.T) {
	rec := &model.ToolRecord{
		AccessibleAt: []model.AccessPoint{
			{URL: "https://github.com/LanguageMachines/frog", Type: model.AccessSourceCode},
			{URL: "https://webservices.cls.ru.nl/frog", Type: model.AccessService},
			{URL: "https://github.com/LanguageMachines/frog", Type: model.AccessSourceCode},
		},
		Thumbnail: "https://frog.example/logo.png",
		Properties: []model.Property{
			{Type: model.PropertyType{Code: model.PropertyUserManual}, Value: "https://frog.readthedocs.io"},
			{Type: model.PropertyType{Code: model.PropertyKeyword}, Value: "nlp"},
		},
	}

	links := Links(rec)

	want := []Link{
		{URL: "https://github.com/LanguageMachines/frog", Field: "accessibleAt"},
		{URL: "https://webservices.cls.ru.nl/frog", Field: "accessibleAt"},
		{URL: "https://frog.example/logo.png", Field: "thumbnail"},
		{URL: "https://frog.readthedocs.io", Field: model.PropertyUserManual},
	}
	if len(links) != len(want) {
		t.Fatalf("Expected %d links, got %d: %v", len(want), len(links), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("Link %d: expected %+v, got %+v", i, want[i], links[i])
		}
	}
}

func TestChecker_Warnings(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	gone := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer gone.Close()

	conv := &model.Conversion{Record: &model.ToolRecord{
		AccessibleAt: []model.AccessPoint{{URL: ok.URL}, {URL: gone.URL}},
	}}

	warnings := testChecker(nil).Warnings(context.Background(), conv)

	if len(warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d: %v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.Code != model.WarnUnreachableURL || w.Field != "accessibleAt" {
		t.Errorf("Unexpected warning %+v", w)
	}
	if !strings.Contains(w.Message, gone.URL) || !strings.Contains(w.Message, "status 404") {
		t.Errorf("Expected message to name the URL and status, got %q", w.Message)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name   string
		result LinkResult
		want   bool
	}{
		{"ok", LinkResult{StatusCode: 200, Accessible: true}, false},
		{"not found", LinkResult{StatusCode: 404, Dead: true}, false},
		{"server error", LinkResult{StatusCode: 502}, true},
		{"rate limited", LinkResult{StatusCode: 429}, true},
		{"network", LinkResult{Error: "request failed: connection refused"}, true},
		{"permanent request error", LinkResult{Error: "create request: bad url", Dead: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.result); got != tt.want {
				t.Errorf("isRetryable(%+v) = %v, want %v", tt.result, got, tt.want)
			}
		})
	}
}
