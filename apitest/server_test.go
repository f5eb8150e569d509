package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/jwt"
)

type testEnv struct {
	api    *Server
	srv    *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	if cfg.Users == nil {
		cfg.Users = map[string]string{"alice": "wonderland"}
	}
	api, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(api.Close)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &testEnv{api: api, srv: srv, client: &http.Client{Jar: jar}}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"wonderland"}`)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("login failed: %d %+v", status, env)
	}
}

func (e *testEnv) refreshCookie(t *testing.T) *http.Cookie {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, e.srv.URL, nil)
	for _, c := range e.client.Jar.Cookies(req.URL) {
		if c.Name == RefreshCookie {
			return c
		}
	}
	t.Fatal("refresh cookie not set")
	return nil
}

func TestLoginAndProfile(t *testing.T) {
	e := newTestEnv(t, Config{})
	e.login(t)

	status, env := e.do(t, http.MethodGet, "/user/profile", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", status, env)
	}
	data, _ := env.Data.(map[string]any)
	if data["username"] != "alice" {
		t.Fatalf("unexpected profile %+v", env.Data)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	e := newTestEnv(t, Config{})
	status, env := e.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"nope"}`)
	if status != http.StatusUnauthorized || env.Message != "invalid credentials" {
		t.Fatalf("expected 401 invalid credentials, got %d %+v", status, env)
	}
}

func TestProtectedRouteWithoutCookie(t *testing.T) {
	e := newTestEnv(t, Config{})
	status, _ := e.do(t, http.MethodGet, "/user/profile", "")
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestExpiredAccessSignatureAndRefresh(t *testing.T) {
	e := newTestEnv(t, Config{})
	e.login(t)
	e.api.ExpireAccess()

	status, env := e.do(t, http.MethodGet, "/user/profile", "")
	if status != http.StatusBadRequest || env.Message != "jwt expired" || env.Success {
		t.Fatalf("expected 400 jwt expired, got %d %+v", status, env)
	}

	status, env = e.do(t, http.MethodPost, "/auth/refresh-token", "")
	if status != http.StatusOK {
		t.Fatalf("refresh failed: %d %+v", status, env)
	}
	if e.api.RefreshCalls() != 1 || e.api.Rotations() != 1 {
		t.Fatalf("expected one refresh and one rotation, got %d/%d", e.api.RefreshCalls(), e.api.Rotations())
	}

	status, _ = e.do(t, http.MethodGet, "/user/profile", "")
	if status != http.StatusOK {
		t.Fatalf("expected profile after refresh, got %d", status)
	}
}

func TestEd25519SignedSessionRefreshes(t *testing.T) {
	e := newTestEnv(t, Config{SigningMethod: jwt.MethodEd25519})
	e.login(t)
	e.api.ExpireAccess()

	if status, env := e.do(t, http.MethodGet, "/user/profile", ""); status != http.StatusBadRequest || env.Message != "jwt expired" {
		t.Fatalf("expected 400 jwt expired, got %d %+v", status, env)
	}
	if status, env := e.do(t, http.MethodPost, "/auth/refresh-token", ""); status != http.StatusOK {
		t.Fatalf("refresh failed: %d %+v", status, env)
	}
	if status, _ := e.do(t, http.MethodGet, "/user/profile", ""); status != http.StatusOK {
		t.Fatalf("expected profile after refresh, got %d", status)
	}
}

func TestUnsupportedSigningMethod(t *testing.T) {
	if _, err := New(Config{SigningMethod: "rs256"}); err == nil {
		t.Fatal("expected error for unsupported signing method")
	}
}

func TestCustomExpiredSignature(t *testing.T) {
	e := newTestEnv(t, Config{ExpiredStatus: http.StatusUnauthorized, ExpiredMessage: "token expired"})
	e.login(t)
	e.api.ExpireAccess()

	status, env := e.do(t, http.MethodGet, "/user/profile", "")
	if status != http.StatusUnauthorized || env.Message != "token expired" {
		t.Fatalf("expected 401 token expired, got %d %+v", status, env)
	}
}

func TestRefreshTokenReuseIsRejected(t *testing.T) {
	e := newTestEnv(t, Config{})
	e.login(t)
	stale := e.refreshCookie(t)

	if status, env := e.do(t, http.MethodPost, "/auth/refresh-token", ""); status != http.StatusOK {
		t.Fatalf("first refresh failed: %d %+v", status, env)
	}

	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/auth/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: stale.Value})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected replayed token to be rejected, got %d", resp.StatusCode)
	}
	if e.api.ReuseDetected() != 1 {
		t.Fatalf("expected one reuse detection, got %d", e.api.ReuseDetected())
	}
}

func TestRefreshFailureKnob(t *testing.T) {
	e := newTestEnv(t, Config{})
	e.login(t)
	e.api.SetRefreshFailure(http.StatusForbidden, "session revoked")

	status, env := e.do(t, http.MethodPost, "/auth/refresh-token", "")
	if status != http.StatusForbidden || env.Message != "session revoked" {
		t.Fatalf("expected forced failure, got %d %+v", status, env)
	}

	e.api.SetRefreshFailure(0, "")
	if status, _ := e.do(t, http.MethodPost, "/auth/refresh-token", ""); status != http.StatusOK {
		t.Fatalf("expected refresh to recover, got %d", status)
	}
}

func TestRefreshDelay(t *testing.T) {
	e := newTestEnv(t, Config{})
	e.login(t)
	e.api.SetRefreshDelay(30 * time.Millisecond)

	start := time.Now()
	if status, _ := e.do(t, http.MethodPost, "/auth/refresh-token", ""); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("refresh returned after %s, expected the configured delay", elapsed)
	}
}

func TestRefreshRateLimit(t *testing.T) {
	e := newTestEnv(t, Config{MaxRefreshesPerWindow: 1, RefreshWindow: time.Minute})
	e.login(t)

	if status, _ := e.do(t, http.MethodPost, "/auth/refresh-token", ""); status != http.StatusOK {
		t.Fatalf("first refresh: expected 200, got %d", status)
	}
	if status, _ := e.do(t, http.MethodPost, "/auth/refresh-token", ""); status != http.StatusTooManyRequests {
		t.Fatalf("second refresh: expected 429, got %d", status)
	}
}

func TestLogoutDeletesSession(t *testing.T) {
	e := newTestEnv(t, Config{})
	e.login(t)
	stale := e.refreshCookie(t)

	if status, _ := e.do(t, http.MethodPost, "/auth/logout", ""); status != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", status)
	}

	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/auth/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: stale.Value})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("refresh after logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	e := newTestEnv(t, Config{})
	status, env := e.do(t, http.MethodGet, "/parcels/unknown", "")
	if status != http.StatusNotFound || env.Message != "Route not found" {
		t.Fatalf("expected 404 Route not found, got %d %+v", status, env)
	}
}

func TestHandleRegistersProtectedRoute(t *testing.T) {
	e := newTestEnv(t, Config{})
	e.api.Handle(http.MethodGet, "/parcels", func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		writeJSON(w, http.StatusOK, "ok", map[string]string{"owner": claims.UID})
	})

	if status, _ := e.do(t, http.MethodGet, "/parcels", ""); status != http.StatusUnauthorized {
		t.Fatalf("expected custom route to require access, got %d", status)
	}

	e.login(t)
	status, env := e.do(t, http.MethodGet, "/parcels", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if data, _ := env.Data.(map[string]any); data["owner"] != "alice" {
		t.Fatalf("unexpected data %+v", env.Data)
	}
}
