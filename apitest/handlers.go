package apitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/goAuthClient/internal"
	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/password"
	"github.com/MrEthical07/goAuthClient/session"
)

type envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:    status < 400,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, message, nil)
}

// LoginRequest is the POST /auth/login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Profile is the GET /user/profile payload.
type Profile struct {
	Username  string `json:"username"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.users.Authenticate(req.Username, req.Password); err != nil {
		if errors.Is(err, password.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.Error("login verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	secret, err := internal.NewRefreshSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	now := time.Now()
	sess := &session.Session{
		SessionID:   internal.NewSessionID(),
		UserID:      req.Username,
		RefreshHash: internal.HashRefreshSecret(secret),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(s.cfg.SessionTTL).Unix(),
	}
	if err := s.sessions.Save(r.Context(), sess, s.cfg.SessionTTL); err != nil {
		s.logger.Error("save session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	access, err := s.tokens.CreateAccess(sess.UserID, sess.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	refreshToken, err := internal.EncodeRefreshToken(sess.SessionID, secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.setSessionCookies(w, access, refreshToken)
	writeJSON(w, http.StatusOK, "logged in", Profile{Username: sess.UserID, SessionID: sess.SessionID})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-r.Context().Done():
			t.Stop()
			return
		}
	}

	if f := s.refreshFailure.Load(); f != nil {
		writeError(w, f.status, f.message)
		return
	}

	cookie, err := r.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "refresh token missing")
		return
	}

	res := flows.RunRotate(r.Context(), cookie.Value, flows.RotateDeps{
		IssueAccessToken: func(sess *session.Session) (string, error) {
			return s.tokens.CreateAccess(sess.UserID, sess.SessionID)
		},
		EnableReplayTracking: true,
		ReplayWindow:         s.cfg.SessionTTL,
		Warn:                 s.logger.Warn,
		RateLimiter:          s.limiter,
		SessionStore:         s.sessions,
	})

	switch res.Failure {
	case flows.RotateFailureNone:
		s.rotations.Add(1)
		s.setSessionCookies(w, res.AccessToken, res.RefreshToken)
		writeJSON(w, http.StatusOK, "token refreshed", nil)
	case flows.RotateFailureReuse:
		s.reuseDetected.Add(1)
		s.logger.Warn("refresh token reuse", "session_id", res.SessionID)
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
	case flows.RotateFailureDecode, flows.RotateFailureSessionNotFound:
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
	case flows.RotateFailureRateLimited:
		writeError(w, http.StatusTooManyRequests, "too many refreshes")
	default:
		s.logger.Error("refresh rotation failed", "kind", int(res.Failure), "error", res.Err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		if sessionID, _, err := internal.DecodeRefreshToken(cookie.Value); err == nil {
			if err := s.sessions.Delete(r.Context(), sessionID); err != nil {
				s.logger.Warn("delete session failed", "session_id", sessionID, "error", err)
			}
		}
	}

	s.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, "logged out", nil)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, "ok", Profile{Username: claims.UID, SessionID: claims.SID})
}

func (s *Server) setSessionCookies(w http.ResponseWriter, access, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    access,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    refreshToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.cfg.SessionTTL / time.Second),
	})
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
}
