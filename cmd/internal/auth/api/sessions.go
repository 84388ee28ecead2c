package authapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zrdt80/beetrack/cmd/identity"
	"github.com/zrdt80/beetrack/cmd/internal/audit"
	"github.com/zrdt80/beetrack/cmd/internal/auth/session"
	"github.com/zrdt80/beetrack/cmd/internal/httpx"
)

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLogin(w, r)
	if !ok {
		return
	}

	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "username/email and password are required")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := httpx.ClientIPString(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	u, err := h.users.Authenticate(ctx, identifier, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.auditFailure(r, audit.ActionLogin, "", "invalid_credentials")
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "incorrect username or password")
			return
		}
		h.log.Error("auth.login.authenticate.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if err := identity.CheckActive(u); err != nil {
		h.auditFailure(r, audit.ActionLogin, u.ID, "account_inactive")
		httpx.WriteError(w, http.StatusForbidden, "account_inactive", "user account is not active")
		return
	}

	// Advisory only: a detector failure never blocks login.
	suspicious, err := h.sess.Detector().Check(ctx, u.ID, ip, ua)
	if err != nil {
		h.log.Warn("auth.login.detector.fail", zap.Error(err), zap.String("user_id", u.ID))
	}
	if suspicious {
		h.log.Warn("auth.login.suspicious", zap.String("user_id", u.ID), zap.String("ip", ip))
		h.record(r, audit.ActionLoginSuspicious, audit.OutcomeSuccess, u.ID, "", map[string]any{"remember_me": req.RememberMe})
	}

	resp := loginResponse{User: toUserResponse(u)}
	if req.RememberMe {
		issued, err := h.sess.IssueSession(ctx, now, u.ID, u.Subject(), session.Device{UserAgent: ua, IP: ip})
		if err != nil {
			h.log.Error("auth.login.issue_session.fail", zap.Error(err))
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		h.cookie.Set(w, issued.RefreshToken)
		resp.tokenResponse = bearer(issued.AccessToken, issued.AccessExp)
		resp.RefreshToken = issued.RefreshToken
		resp.SessionID = issued.Session.ID
	} else {
		tok, exp, err := h.sess.IssueAccessToken(u.Subject(), "", now)
		if err != nil {
			h.log.Error("auth.login.issue_token.fail", zap.Error(err))
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		resp.tokenResponse = bearer(tok, exp)
	}

	h.auditSuccess(r, audit.ActionLogin, u.ID, resp.SessionID, map[string]any{
		"remember_me": req.RememberMe,
		"suspicious":  suspicious,
	})
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// decodeLogin accepts a JSON body or an OAuth2-style password form.
func (h *Handler) decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, bool) {
	var req loginRequest
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
		if err := r.ParseForm(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid form body")
			return req, false
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
		req.RememberMe, _ = strconv.ParseBool(r.PostForm.Get("remember_me"))
		return req, true
	}
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return req, false
	}
	return req, true
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refresh, ok := h.cookie.Read(r)
	if !ok {
		h.auditFailure(r, audit.ActionRefresh, "", "missing_credentials")
		httpx.WriteError(w, http.StatusUnauthorized, "missing_credentials", "no refresh token provided")
		return
	}

	ctx := r.Context()
	now := h.now()

	sess, err := h.sess.LookupRefresh(ctx, refresh, now)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			h.cookie.Clear(w)
			h.auditFailure(r, audit.ActionRefresh, "", "invalid_token")
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "invalid refresh token")
			return
		}
		h.log.Error("auth.refresh.lookup.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	u, err := h.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			h.cookie.Clear(w)
			h.auditFailure(r, audit.ActionRefresh, sess.UserID, "invalid_token")
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "invalid refresh token")
			return
		}
		h.log.Error("auth.refresh.user.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if err := identity.CheckActive(u); err != nil {
		h.auditFailure(r, audit.ActionRefresh, u.ID, "account_inactive")
		httpx.WriteError(w, http.StatusForbidden, "account_inactive", "user account is not active")
		return
	}

	if err := h.sess.Touch(ctx, sess.ID, now); err != nil {
		h.log.Error("auth.refresh.touch.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	tok, exp, err := h.sess.IssueAccessToken(u.Subject(), sess.ID, now)
	if err != nil {
		h.log.Error("auth.refresh.issue_token.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditSuccess(r, audit.ActionRefresh, u.ID, sess.ID, nil)
	httpx.WriteJSON(w, http.StatusOK, bearer(tok, exp))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	ctx := r.Context()
	now := h.now()

	h.cookie.Clear(w)

	target := p.SessionID
	if refresh, ok := h.cookie.Read(r); ok {
		sess, err := h.sess.LookupRefresh(ctx, refresh, now)
		switch {
		case err == nil && sess.UserID == p.User.ID:
			target = sess.ID
		case err != nil && !errors.Is(err, session.ErrSessionNotFound):
			h.log.Error("auth.logout.lookup.fail", zap.Error(err))
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}

	if target == "" {
		h.auditSuccess(r, audit.ActionLogout, p.User.ID, "", nil)
		httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "logged out successfully"})
		return
	}

	if _, err := h.sess.Invalidate(ctx, target); err != nil {
		h.log.Error("auth.logout.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditSuccess(r, audit.ActionLogout, p.User.ID, target, nil)
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "logged out successfully, session invalidated"})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	list, err := h.sess.List(r.Context(), p.User.ID)
	if err != nil {
		h.log.Error("auth.sessions.list.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSessionResponse(s, p.SessionID))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	ctx := r.Context()
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	sess, err := h.sess.GetSession(ctx, id)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		h.log.Error("auth.sessions.revoke.lookup.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	// A session owned by someone else is reported exactly like a missing one.
	if err != nil || sess.UserID != p.User.ID {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	if _, err := h.sess.Invalidate(ctx, sess.ID); err != nil {
		h.log.Error("auth.sessions.revoke.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditSuccess(r, audit.ActionSessionRevoke, p.User.ID, sess.ID, nil)
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "session revoked successfully"})
}

func (h *Handler) handleRevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	q := r.URL.Query()

	keepCurrent := true
	if raw := strings.TrimSpace(q.Get("keep_current")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "keep_current must be a boolean")
			return
		}
		keepCurrent = v
	}

	current := strings.TrimSpace(q.Get("current_session_id"))
	if current == "" {
		current = p.SessionID
	}

	except := ""
	if keepCurrent {
		except = current
	}

	n, err := h.sess.InvalidateAll(r.Context(), p.User.ID, except)
	if err != nil {
		h.log.Error("auth.sessions.revoke_all.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditSuccess(r, audit.ActionSessionsRevoke, p.User.ID, except, map[string]any{
		"revoked":      n,
		"keep_current": keepCurrent,
	})

	msg := "all sessions revoked successfully"
	if except != "" {
		msg = "all other sessions revoked successfully"
	} else {
		h.cookie.Clear(w)
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: msg, Revoked: &n})
}
