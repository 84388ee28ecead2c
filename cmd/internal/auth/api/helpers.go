package authapi

import (
	"time"

	"github.com/zrdt80/beetrack/cmd/identity"
	"github.com/zrdt80/beetrack/cmd/internal/auth/session"
)

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role.String(),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func toUserResponses(users []identity.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toSessionResponse(s session.Session, currentID string) sessionResponse {
	return sessionResponse{
		ID:           s.ID,
		UserAgent:    s.UserAgent,
		IPAddress:    s.IPAddress,
		DeviceInfo:   s.DeviceInfo,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		ExpiresAt:    s.ExpiresAt,
		IsValid:      s.IsValid,
		Current:      currentID != "" && s.ID == currentID,
	}
}

func bearer(token string, exp time.Time) tokenResponse {
	return tokenResponse{AccessToken: token, TokenType: "bearer", ExpiresAt: exp}
}
