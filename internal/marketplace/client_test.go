package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/codemeta2mp/internal/model"
)

func testRecord() *model.ToolRecord {
	return &model.ToolRecord{Label: "frog", Description: "Tagger for Dutch"}
}

func newTestClient(t *testing.T, srv *httptest.Server, auth model.AuthMode) *Client {
	t.Helper()
	c, err := NewClient(model.MarketplaceConfig{
		BaseURL:  srv.URL + "/",
		Username: "curator",
		Password: "secret",
		Auth:     auth,
		TokenTTL: time.Minute,
	}, model.HTTPConfig{UserAgent: "codemeta2mp-test"}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestCreateSignsInOnce(t *testing.T) {
	var signIns, creates int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case signInPath:
			atomic.AddInt32(&signIns, 1)
			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "curator", creds["username"])
			assert.Equal(t, "secret", creds["password"])
			w.Header().Set("Authorization", "Bearer abc")
			w.WriteHeader(http.StatusOK)
		case toolsPath:
			atomic.AddInt32(&creates, 1)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "codemeta2mp-test", r.Header.Get("User-Agent"))
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

			var rec model.ToolRecord
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
			assert.Equal(t, "frog", rec.Label)

			_, _ = w.Write([]byte(`{"id":7,"persistentId":"abC123","label":"frog","status":"suggested"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, model.AuthSignIn)
	for i := 0; i < 2; i++ {
		item, err := c.Create(context.Background(), testRecord())
		require.NoError(t, err)
		assert.Equal(t, "abC123", item.PersistentID)
		assert.Equal(t, int64(7), item.ID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&signIns))
	assert.Equal(t, int32(2), atomic.LoadInt32(&creates))
}

func TestUpdateUsesPersistentID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == signInPath {
			w.Header().Set("Authorization", "Bearer abc")
			return
		}
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, toolsPath+"/xYz9", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":8,"persistentId":"xYz9","label":"frog"}`))
	}))
	defer srv.Close()

	item, err := newTestClient(t, srv, model.AuthSignIn).Update(context.Background(), "xYz9", testRecord())
	require.NoError(t, err)
	assert.Equal(t, "xYz9", item.PersistentID)
}

func TestUpdateRequiresID(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestClient(t, srv, model.AuthSignIn).Update(context.Background(), "", testRecord())
	assert.Error(t, err)
}

func TestBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEqual(t, signInPath, r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "curator", user)
		assert.Equal(t, "secret", pass)
		_, _ = w.Write([]byte(`{"id":1,"persistentId":"p1"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, model.AuthBasic).Create(context.Background(), testRecord())
	require.NoError(t, err)
}

func TestRejectedTokenIsRenewedOnce(t *testing.T) {
	var signIns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == signInPath {
			n := atomic.AddInt32(&signIns, 1)
			if n == 1 {
				w.Header().Set("Authorization", "Bearer stale")
			} else {
				w.Header().Set("Authorization", "Bearer fresh")
			}
			return
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":2,"persistentId":"p2"}`))
	}))
	defer srv.Close()

	item, err := newTestClient(t, srv, model.AuthSignIn).Create(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, "p2", item.PersistentID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&signIns))
}

func TestRejectionIsSubmissionError(t *testing.T) {
	var posts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == signInPath {
			w.Header().Set("Authorization", "Bearer abc")
			return
		}
		atomic.AddInt32(&posts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"label must not be blank"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, model.AuthSignIn).Create(context.Background(), testRecord())
	require.Error(t, err)

	var subErr *model.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, http.StatusBadRequest, subErr.StatusCode)
	assert.Equal(t, http.MethodPost, subErr.Method)
	assert.Contains(t, subErr.Body, "label must not be blank")
	assert.Equal(t, int32(1), atomic.LoadInt32(&posts), "rejected submissions are not retried")
}

func TestSignInFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, signInPath, r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, model.AuthSignIn).Create(context.Background(), testRecord())
	var subErr *model.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, http.StatusUnauthorized, subErr.StatusCode)
}

func TestSignInWithoutHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := newTestClient(t, srv, model.AuthSignIn).SignIn(context.Background())
	var subErr *model.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Contains(t, subErr.Error(), "Authorization")
}

func TestMissingCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()

	for _, auth := range []model.AuthMode{model.AuthSignIn, model.AuthBasic} {
		c, err := NewClient(model.MarketplaceConfig{BaseURL: srv.URL, Auth: auth}, model.HTTPConfig{}, WithHTTPClient(srv.Client()))
		require.NoError(t, err)

		_, err = c.Create(context.Background(), testRecord())
		assert.ErrorIs(t, err, ErrNoCredentials, "auth %s", auth)
	}
}

type countingLimiter struct{ calls int32 }

func (l *countingLimiter) Wait(ctx context.Context, rawURL string) error {
	atomic.AddInt32(&l.calls, 1)
	return ctx.Err()
}

func TestLimiterIsConsulted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":3}`))
	}))
	defer srv.Close()

	lim := &countingLimiter{}
	c, err := NewClient(model.MarketplaceConfig{BaseURL: srv.URL, Username: "u", Password: "p", Auth: model.AuthBasic},
		model.HTTPConfig{}, WithHTTPClient(srv.Client()), WithLimiter(lim))
	require.NoError(t, err)

	_, err = c.Create(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&lim.calls))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(model.MarketplaceConfig{BaseURL: "marketplace.local"}, model.HTTPConfig{})
	assert.Error(t, err)

	_, err = NewClient(model.MarketplaceConfig{BaseURL: "https://marketplace.local", Auth: "oauth"}, model.HTTPConfig{})
	assert.Error(t, err)

	c, err := NewClient(model.MarketplaceConfig{BaseURL: "https://marketplace.local/"}, model.HTTPConfig{})
	require.NoError(t, err)
	assert.Equal(t, "https://marketplace.local", c.baseURL)
	assert.Equal(t, model.AuthSignIn, c.auth)
}
