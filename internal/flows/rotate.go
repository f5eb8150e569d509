package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAuthClient/internal"
	"github.com/MrEthical07/goAuthClient/session"
)

// RotateFailureKind classifies server-side rotation failures for the apitest
// handler.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureDecode
	RotateFailureRateLimited
	RotateFailureNextSecret
	RotateFailureReuse
	RotateFailureSessionNotFound
	RotateFailureRotate
	RotateFailureIssueAccess
	RotateFailureEncode
)

// RotateResult carries either the new token pair or failure metadata.
type RotateResult struct {
	Failure      RotateFailureKind
	Err          error
	SessionID    string
	UserID       string
	Session      *session.Session
	AccessToken  string
	RefreshToken string
}

type RotateRateLimiter interface {
	CheckRefresh(ctx context.Context, sessionID string) error
}

type RotateSessionStore interface {
	RotateRefreshHash(ctx context.Context, sessionID string, provided, next [32]byte) (*session.Session, error)
	TrackReplayAnomaly(ctx context.Context, sessionID string, ttl time.Duration) error
}

// RotateDeps captures rotation flow dependencies.
type RotateDeps struct {
	IssueAccessToken     func(*session.Session) (string, error)
	EnableReplayTracking bool
	ReplayWindow         time.Duration
	Warn                 func(string, ...any)
	RateLimiter          RotateRateLimiter
	SessionStore         RotateSessionStore
}

// RunRotate spends refreshToken and issues a new access token and refresh
// token. A refresh token that was already rotated fails with
// RotateFailureReuse.
func RunRotate(ctx context.Context, refreshToken string, deps RotateDeps) RotateResult {
	sessionID, providedSecret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return RotateResult{Failure: RotateFailureDecode, Err: err}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRefresh(ctx, sessionID); err != nil {
			return RotateResult{Failure: RotateFailureRateLimited, Err: err, SessionID: sessionID}
		}
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		return RotateResult{Failure: RotateFailureNextSecret, Err: err, SessionID: sessionID}
	}

	sess, err := deps.SessionStore.RotateRefreshHash(
		ctx,
		sessionID,
		internal.HashRefreshSecret(providedSecret),
		internal.HashRefreshSecret(nextSecret),
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			if deps.EnableReplayTracking {
				if trackErr := deps.SessionStore.TrackReplayAnomaly(ctx, sessionID, deps.ReplayWindow); trackErr != nil && deps.Warn != nil {
					deps.Warn("replay anomaly tracking failed", "session_id", sessionID, "error", trackErr)
				}
			}
			return RotateResult{Failure: RotateFailureReuse, Err: err, SessionID: sessionID}
		case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionExpired):
			return RotateResult{Failure: RotateFailureSessionNotFound, Err: err, SessionID: sessionID}
		default:
			return RotateResult{Failure: RotateFailureRotate, Err: err, SessionID: sessionID}
		}
	}

	access, err := deps.IssueAccessToken(sess)
	if err != nil {
		return RotateResult{
			Failure:   RotateFailureIssueAccess,
			Err:       err,
			SessionID: sess.SessionID,
			UserID:    sess.UserID,
			Session:   sess,
		}
	}

	refreshToken, err = internal.EncodeRefreshToken(sess.SessionID, nextSecret)
	if err != nil {
		return RotateResult{
			Failure:   RotateFailureEncode,
			Err:       err,
			SessionID: sess.SessionID,
			UserID:    sess.UserID,
			Session:   sess,
		}
	}

	return RotateResult{
		Failure:      RotateFailureNone,
		SessionID:    sess.SessionID,
		UserID:       sess.UserID,
		Session:      sess,
		AccessToken:  access,
		RefreshToken: refreshToken,
	}
}
