package authapi

import (
	"net/http"
	"strings"

	"github.com/zrdt80/beetrack/cmd/internal/audit"
	"github.com/zrdt80/beetrack/cmd/internal/httpx"
)

func (h *Handler) record(r *http.Request, action, outcome, userID, sessionID string, meta map[string]any) {
	h.audit.Record(r.Context(), audit.Event{
		Action:    action,
		Outcome:   outcome,
		UserID:    userID,
		SessionID: sessionID,
		IP:        httpx.ClientIPString(r, h.cfg.TrustProxy),
		UserAgent: strings.TrimSpace(r.UserAgent()),
		Meta:      meta,
		At:        h.now(),
	})
}

func (h *Handler) auditSuccess(r *http.Request, action, userID, sessionID string, meta map[string]any) {
	h.metrics.AuthDecision(strings.TrimPrefix(action, "auth."), audit.OutcomeSuccess)
	h.record(r, action, audit.OutcomeSuccess, userID, sessionID, meta)
}

func (h *Handler) auditFailure(r *http.Request, action, userID, reason string) {
	h.metrics.AuthDecision(strings.TrimPrefix(action, "auth."), reason)
	h.record(r, action, audit.OutcomeFailure, userID, "", map[string]any{"reason": reason})
}
