package session

import (
	"context"
	"fmt"
	"strings"
)

// Detector flags logins from an IP or user-agent unseen in the user's recent valid sessions.
// Its verdict is advisory.
type Detector struct {
	store Store
	limit int
}

// NewDetector returns a Detector inspecting at most limit recent sessions.
func NewDetector(store Store, limit int) *Detector {
	if limit <= 0 {
		limit = DefaultConfig().RecentSessionsLimit
	}
	return &Detector{store: store, limit: limit}
}

// Check reports whether a login from ip/userAgent looks unusual for userID.
// A user without prior valid sessions is never suspicious.
func (d *Detector) Check(ctx context.Context, userID, ip, userAgent string) (bool, error) {
	recent, err := d.store.RecentValidForUser(ctx, userID, d.limit)
	if err != nil {
		return false, fmt.Errorf("session: recent sessions: %w", err)
	}
	if len(recent) == 0 {
		return false, nil
	}

	ip = strings.TrimSpace(ip)
	userAgent = strings.TrimSpace(userAgent)

	seenIP, seenUA := false, false
	for _, s := range recent {
		if s.IPAddress == ip {
			seenIP = true
		}
		if s.UserAgent == userAgent {
			seenUA = true
		}
	}
	return !seenIP || !seenUA, nil
}
