package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, h http.HandlerFunc) (*HTTPIssuer, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	issuer, err := NewHTTPIssuer(Config{BaseURL: server.URL + "/api/v1", UserAgent: "test-agent"})
	require.NoError(t, err)
	return issuer, server
}

func TestNewHTTPIssuerRejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"", "localhost:8080", "://nope"} {
		_, err := NewHTTPIssuer(Config{BaseURL: base})
		require.ErrorIs(t, err, ErrInvalidRequest, base)
	}
}

func TestIssueSuccessCarriesHeadersAndQuery(t *testing.T) {
	issuer, _ := newTestIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/parcel/me", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get(HeaderRequestID))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":{"id":"p1"}}`))
	})

	resp, err := issuer.Issue(context.Background(), NewRequest(http.MethodGet, "/parcel/me").WithQuery("page", "2"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.RequestID)

	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, resp.DecodeData(&data))
	assert.Equal(t, "p1", data.ID)
}

func TestIssueEncodesJSONBody(t *testing.T) {
	issuer, _ := newTestIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "alice@example.com", in["email"])
		w.WriteHeader(http.StatusCreated)
	})

	req := NewRequest(http.MethodPost, "user/register").WithBody(map[string]string{"email": "alice@example.com"})
	resp, err := issuer.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestIssueRawBodyWins(t *testing.T) {
	issuer, _ := newTestIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "raw", string(body))
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	})

	req := Request{Method: http.MethodPut, Path: "/x", Body: map[string]int{"a": 1}, RawBody: []byte("raw")}
	_, err := issuer.Issue(context.Background(), req)
	require.NoError(t, err)
}

func TestIssueApplicationFailureDecodesEnvelope(t *testing.T) {
	issuer, _ := newTestIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"jwt expired"}`))
	})

	_, err := issuer.Issue(context.Background(), NewRequest(http.MethodGet, "/user/profile"))
	require.Error(t, err)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, f.StatusCode)
	assert.Equal(t, "jwt expired", f.Message)
	assert.False(t, f.Network())
	assert.Contains(t, f.Error(), "jwt expired")
}

func TestIssueFailureWithoutEnvelope(t *testing.T) {
	issuer, _ := newTestIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := issuer.Issue(context.Background(), NewRequest(http.MethodGet, "/x"))
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, f.StatusCode)
	assert.Empty(t, f.Message)
	assert.Equal(t, "boom\n", string(f.Body))
}

func TestIssueRejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":"0123456789"}`))
	}))
	t.Cleanup(server.Close)

	small, err := NewHTTPIssuer(Config{BaseURL: server.URL, MaxResponseBytes: 16})
	require.NoError(t, err)
	_, err = small.Issue(context.Background(), NewRequest(http.MethodGet, "/x"))
	require.ErrorIs(t, err, ErrResponseTooLarge)
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Zero(t, f.StatusCode)

	exact, err := NewHTTPIssuer(Config{BaseURL: server.URL, MaxResponseBytes: 51})
	require.NoError(t, err)
	resp, err := exact.Issue(context.Background(), NewRequest(http.MethodGet, "/x"))
	require.NoError(t, err)
	assert.Len(t, resp.Body, 51)
}

func TestIssueNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	issuer, err := NewHTTPIssuer(Config{BaseURL: base})
	require.NoError(t, err)

	_, err = issuer.Issue(context.Background(), NewRequest(http.MethodGet, "/x"))
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.True(t, f.Network())
	assert.Error(t, errors.Unwrap(f))
}

func TestIssueTimeoutIsAFailure(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	issuer, err := NewHTTPIssuer(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = issuer.Issue(context.Background(), NewRequest(http.MethodGet, "/slow"))
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.True(t, f.Network())
}

func TestIssuePinnedRequestID(t *testing.T) {
	issuer, _ := newTestIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-42", r.Header.Get(HeaderRequestID))
	})

	resp, err := issuer.Issue(WithRequestID(context.Background(), "req-42"), NewRequest(http.MethodGet, "/x"))
	require.NoError(t, err)
	assert.Equal(t, "req-42", resp.RequestID)
}

func TestIssueCookieJarCarriesSession(t *testing.T) {
	issuer, server := newTestIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r1", Path: "/"})
		default:
			c, err := r.Cookie("refreshToken")
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "r1", c.Value)
		}
	})

	_, err := issuer.Issue(context.Background(), NewRequest(http.MethodPost, "/auth/login"))
	require.NoError(t, err)
	_, err = issuer.Issue(context.Background(), NewRequest(http.MethodPost, "/auth/refresh-token"))
	require.NoError(t, err)

	u, _ := url.Parse(server.URL)
	require.Len(t, issuer.Jar().Cookies(u), 1)

	require.NoError(t, issuer.ClearSession())
	assert.Empty(t, issuer.Jar().Cookies(u))

	_, err = issuer.Issue(context.Background(), NewRequest(http.MethodPost, "/auth/refresh-token"))
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, f.StatusCode)
}

func TestIssueRejectsEmptyPath(t *testing.T) {
	issuer, _ := newTestIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no call expected")
	})
	_, err := issuer.Issue(context.Background(), Request{Method: http.MethodGet})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRequestCopiesAreIndependent(t *testing.T) {
	base := NewRequest(http.MethodGet, "/x").WithQuery("a", "1").WithHeader("X-A", "1")
	derived := base.WithQuery("b", "2").WithHeader("X-B", "2")

	assert.Empty(t, base.Query.Get("b"))
	assert.Empty(t, base.Header.Get("X-B"))
	assert.Equal(t, "1", derived.Query.Get("a"))
	assert.Equal(t, "GET /x", base.String())
}
