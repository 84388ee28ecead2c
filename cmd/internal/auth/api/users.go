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
	"github.com/zrdt80/beetrack/cmd/internal/httpx"
)

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	u, err := h.users.Register(r.Context(), identity.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeUserError(w, r, audit.ActionRegister, "", "auth.register.fail", err)
		return
	}

	h.auditSuccess(r, audit.ActionRegister, u.ID, "", nil)
	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(principal(r).User))
}

// handleUpdateMe lets a user edit their own username, email and password.
// The subject claim follows the email, so a fresh token is returned.
func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req meUpdateRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	u, err := h.users.Update(r.Context(), p.User.ID, identity.UpdateRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeUserError(w, r, audit.ActionUserUpdate, p.User.ID, "auth.me.update.fail", err)
		return
	}

	tok, exp, err := h.sess.IssueAccessToken(u.Subject(), p.SessionID, h.now())
	if err != nil {
		h.log.Error("auth.me.issue_token.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditSuccess(r, audit.ActionUserUpdate, u.ID, p.SessionID, map[string]any{"self": true})
	httpx.WriteJSON(w, http.StatusOK, meUpdateResponse{tokenResponse: bearer(tok, exp), User: toUserResponse(u)})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	u, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		if identity.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.log.Error("auth.users.get.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, ok := queryInt(q.Get("limit"), 100)
	if !ok || limit < 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
		return
	}
	offset, ok := queryInt(q.Get("offset"), 0)
	if !ok || offset < 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "offset must be a non-negative integer")
		return
	}
	if limit > h.cfg.ListLimitMax {
		limit = h.cfg.ListLimitMax
	}

	users, err := h.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.log.Error("auth.users.list.fail", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponses(users))
}

func (h *Handler) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req adminUpdateRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	upd := identity.UpdateRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IsActive: req.IsActive,
	}
	if req.Role != nil {
		role, ok := identity.ParseRole(*req.Role)
		if !ok {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown role")
			return
		}
		upd.Role = &role
	}

	u, err := h.users.Update(r.Context(), id, upd)
	if err != nil {
		if identity.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.writeUserError(w, r, audit.ActionUserUpdate, p.User.ID, "auth.users.update.fail", err)
		return
	}

	meta := map[string]any{"target": u.ID}
	if !u.IsActive {
		// A deactivated account keeps no live sessions.
		n, err := h.sess.InvalidateAll(r.Context(), u.ID, "")
		if err != nil {
			h.log.Error("auth.users.update.revoke.fail", zap.Error(err), zap.String("user_id", u.ID))
		}
		meta["revoked"] = n
	}

	h.auditSuccess(r, audit.ActionUserUpdate, p.User.ID, p.SessionID, meta)
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// writeUserError maps identity errors from registration and updates.
func (h *Handler) writeUserError(w http.ResponseWriter, r *http.Request, action, userID, logKey string, err error) {
	var ce identity.ConflictError
	switch {
	case errors.As(err, &ce):
		h.auditFailure(r, action, userID, "user_exists")
		httpx.Write(w, http.StatusConflict, httpx.APIError{
			Code:    "user_exists",
			Message: ce.Field + " already registered",
			Field:   ce.Field,
		})
	case identity.IsInvalidInput(err):
		h.auditFailure(r, action, userID, "invalid_request")
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", invalidMessage(err))
	default:
		h.log.Error(logKey, zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func invalidMessage(err error) string {
	var oe identity.OpError
	if errors.As(err, &oe) && oe.Msg != "" {
		return oe.Msg
	}
	return "invalid request"
}

func queryInt(raw string, def int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}
