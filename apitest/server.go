package apitest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goAuthClient/internal/rate"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/password"
	"github.com/MrEthical07/goAuthClient/session"
)

// Cookie names set by the server.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Config configures a Server. The zero value is usable.
type Config struct {
	// Redis backs the session store. Nil starts an embedded miniredis.
	Redis redis.UniversalClient

	AccessTTL  time.Duration
	SessionTTL time.Duration

	// SigningMethod signs access tokens with a fresh random key. Empty means
	// HS256.
	SigningMethod jwt.SigningMethod

	// ExpiredStatus and ExpiredMessage are what a protected route answers
	// with an expired access token.
	ExpiredStatus  int
	ExpiredMessage string

	// MaxRefreshesPerWindow enables the per-session refresh throttle when > 0.
	MaxRefreshesPerWindow int
	RefreshWindow         time.Duration

	// Users are registered at startup, username to password.
	Users map[string]string

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.AccessTTL <= 0 {
		c.AccessTTL = 15 * time.Minute
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.SigningMethod == "" {
		c.SigningMethod = jwt.MethodHS256
	}
	if c.ExpiredStatus == 0 {
		c.ExpiredStatus = http.StatusBadRequest
	}
	if c.ExpiredMessage == "" {
		c.ExpiredMessage = jwt.ErrExpired.Error()
	}
	if c.RefreshWindow <= 0 {
		c.RefreshWindow = time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

type refreshFailure struct {
	status  int
	message string
}

// Server is the fake backend. Build one with New and serve Handler().
type Server struct {
	cfg    Config
	logger *slog.Logger

	mini     *miniredis.Miniredis
	redis    redis.UniversalClient
	tokens   *jwt.Manager
	sessions *session.Store
	users    *password.Directory
	limiter  *rate.Limiter
	router   chi.Router

	refreshDelay   atomic.Int64
	refreshFailure atomic.Pointer[refreshFailure]

	refreshCalls  atomic.Int64
	rotations     atomic.Int64
	reuseDetected atomic.Int64
}

// New builds a Server from cfg.
func New(cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()

	s := &Server{cfg: cfg, logger: cfg.Logger.With("component", "apitest")}

	s.redis = cfg.Redis
	if s.redis == nil {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		s.mini = mr
		s.redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}

	priv, pub, err := signingKeys(cfg.SigningMethod)
	if err != nil {
		s.Close()
		return nil, err
	}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		SigningMethod: cfg.SigningMethod,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "apitest",
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.tokens = tokens

	hasher, err := password.NewHasher(password.FastParams())
	if err != nil {
		s.Close()
		return nil, err
	}
	s.users = password.NewDirectory(hasher)
	for username, pw := range cfg.Users {
		if err := s.users.Add(username, pw); err != nil {
			s.Close()
			return nil, fmt.Errorf("add user %q: %w", username, err)
		}
	}

	s.sessions = session.NewStore(s.redis, "apitest")
	s.limiter = rate.New(s.redis, rate.Config{
		Enabled:      cfg.MaxRefreshesPerWindow > 0,
		MaxRefreshes: cfg.MaxRefreshesPerWindow,
		Window:       cfg.RefreshWindow,
	})

	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/refresh-token", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAccess)
		r.Get("/user/profile", s.handleProfile)
	})

	return r
}

func signingKeys(method jwt.SigningMethod) (priv, pub []byte, err error) {
	switch method {
	case jwt.MethodEd25519:
		pk, sk, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		return sk, pk, nil
	case jwt.MethodHS256:
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, nil, err
		}
		return key, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported signing method %q", method)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Handle registers a custom route behind the access-token check. Register
// routes before serving.
func (s *Server) Handle(method, path string, handler http.HandlerFunc) {
	s.router.With(s.requireAccess).MethodFunc(method, path, handler)
}

// AddUser registers or replaces a login.
func (s *Server) AddUser(username, pw string) error {
	return s.users.Add(username, pw)
}

// ExpireAccess makes every access token issued so far expired.
func (s *Server) ExpireAccess() {
	s.tokens.ExpireAll()
}

// SetRefreshDelay holds every refresh for d before rotating.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// SetRefreshFailure makes every refresh fail with status and message. A zero
// status restores normal behaviour.
func (s *Server) SetRefreshFailure(status int, message string) {
	if status == 0 {
		s.refreshFailure.Store(nil)
		return
	}
	s.refreshFailure.Store(&refreshFailure{status: status, message: message})
}

// RefreshCalls returns the number of refresh requests received.
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// Rotations returns the number of successful refresh rotations.
func (s *Server) Rotations() int64 { return s.rotations.Load() }

// ReuseDetected returns the number of refreshes that presented an already
// rotated token.
func (s *Server) ReuseDetected() int64 { return s.reuseDetected.Load() }

// Sessions exposes the session store for assertions.
func (s *Server) Sessions() *session.Store { return s.sessions }

// Close releases the Redis client and the embedded Redis, if owned.
func (s *Server) Close() {
	if s.mini == nil {
		return
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	s.mini.Close()
	s.mini = nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request completed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}

type claimsKey struct{}

// ClaimsFromContext returns the verified access claims of a protected route.
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*jwt.AccessClaims)
	return claims, ok
}

func (s *Server) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(AccessCookie)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims, err := s.tokens.ParseAccess(cookie.Value)
		if err != nil {
			if errors.Is(err, jwt.ErrExpired) {
				writeError(w, s.cfg.ExpiredStatus, s.cfg.ExpiredMessage)
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}
