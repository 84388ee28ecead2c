package session

import (
	"context"
	"time"
)

// MaxDeviceInfoLen bounds the default device label derived from the user-agent.
const MaxDeviceInfoLen = 100

// Session mirrors the beetrack.user_sessions row.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	CreatedAt        time.Time
	LastActivity     time.Time
	ExpiresAt        time.Time
	IsValid          bool
	UserAgent        string
	IPAddress        string
	DeviceInfo       string
}

// Active reports whether the session is usable at now.
func (s Session) Active(now time.Time) bool {
	return s.IsValid && now.Before(s.ExpiresAt)
}

// NewSession is the input for Store.Create.
type NewSession struct {
	UserID           string
	RefreshTokenHash string
	Now              time.Time
	ExpiresAt        time.Time
	UserAgent        string
	IPAddress        string
	DeviceInfo       string
}

// Store abstracts persistence for session state.
//
// Each method is a single logical transaction. Sessions are never deleted;
// is_valid only moves from true to false.
type Store interface {
	// Create inserts a new valid session. A duplicate refresh hash yields ErrRefreshTokenCollision.
	Create(ctx context.Context, in NewSession) (Session, error)

	// FindActiveByRefreshHash returns the valid, unexpired session holding hash.
	FindActiveByRefreshHash(ctx context.Context, hash string, now time.Time) (Session, error)

	// GetByID loads a session regardless of state.
	GetByID(ctx context.Context, id string) (Session, error)

	// Touch sets last_activity to now.
	Touch(ctx context.Context, id string, now time.Time) error

	// Invalidate marks one session invalid and reports whether it exists.
	Invalidate(ctx context.Context, id string) (bool, error)

	// InvalidateAllForUser marks every valid session of userID invalid except exceptID.
	// It returns the number of sessions flipped.
	InvalidateAllForUser(ctx context.Context, userID, exceptID string) (int64, error)

	// ListValidForUser returns the user's valid sessions, newest first.
	ListValidForUser(ctx context.Context, userID string) ([]Session, error)

	// RecentValidForUser returns at most limit valid sessions, newest first.
	RecentValidForUser(ctx context.Context, userID string, limit int) ([]Session, error)
}

func defaultDeviceInfo(deviceInfo, userAgent string) string {
	if deviceInfo != "" {
		return deviceInfo
	}
	r := []rune(userAgent)
	if len(r) > MaxDeviceInfoLen {
		r = r[:MaxDeviceInfoLen]
	}
	return string(r)
}
