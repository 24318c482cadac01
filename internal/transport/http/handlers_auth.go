package httptransport

import (
	"context"
	"net/http"

	accountsvc "credo/internal/auth/service/account"
	id "credo/pkg/domain"
	"credo/pkg/platform/audit"
	"credo/pkg/requestcontext"
)

// emitAudit records a security/compliance-relevant auth action. Audit is
// nil in configurations that don't wire a Postgres audit store (e.g. most
// tests), so this is a no-op in that case rather than a required dependency.
func (h *Handler) emitAudit(ctx context.Context, category audit.EventCategory, action, subject string) {
	if h.svc.Audit == nil {
		return
	}
	_ = h.svc.Audit.Emit(ctx, audit.Event{
		Category:  category,
		Subject:   subject,
		Action:    action,
		RequestID: requestcontext.RequestID(ctx),
	})
}

type registerRequest struct {
	TenantID  string `json:"tenant_id"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tenantID, err := id.ParseTenantID(req.TenantID)
	if err != nil {
		writeError(w, dErrBadInput("tenant_id"))
		return
	}
	result, err := h.svc.Account.Register(r.Context(), accountsvc.RegisterParams{
		TenantID:  tenantID,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.metrics.IncrementUsersCreated()
	h.emitAudit(r.Context(), audit.CategoryCompliance, string(audit.EventUserCreated), result.Email)
	writeJSON(w, http.StatusCreated, result)
}

type loginPrimaryRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ClientID string `json:"client_id"`
	TenantID string `json:"tenant_id"`
}

func (h *Handler) handleLoginPrimary(w http.ResponseWriter, r *http.Request) {
	var req loginPrimaryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clientID, err := id.ParseClientID(req.ClientID)
	if err != nil {
		writeError(w, dErrBadInput("client_id"))
		return
	}
	tenantID, err := id.ParseTenantID(req.TenantID)
	if err != nil {
		writeError(w, dErrBadInput("tenant_id"))
		return
	}
	h.metrics.IncrementTokenRequests()
	result, err := h.svc.Account.LoginPrimary(r.Context(), accountsvc.LoginPrimaryParams{
		Email:     req.Email,
		Password:  req.Password,
		ClientID:  clientID,
		TenantID:  tenantID,
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.metrics.IncrementAuthFailures()
		h.emitAudit(r.Context(), audit.CategorySecurity, string(audit.EventAuthFailed), req.Email)
		writeError(w, err)
		return
	}
	h.emitAudit(r.Context(), audit.CategoryOperations, string(audit.EventTokenIssued), req.Email)
	writeJSON(w, http.StatusOK, result)
}

type loginMFARequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
	Method      string `json:"method"`
	ClientID    string `json:"client_id"`
	TenantID    string `json:"tenant_id"`
}

func (h *Handler) handleLoginMFA(w http.ResponseWriter, r *http.Request) {
	var req loginMFARequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clientID, err := id.ParseClientID(req.ClientID)
	if err != nil {
		writeError(w, dErrBadInput("client_id"))
		return
	}
	tenantID, err := id.ParseTenantID(req.TenantID)
	if err != nil {
		writeError(w, dErrBadInput("tenant_id"))
		return
	}
	issued, err := h.svc.Account.LoginMFA(r.Context(), accountsvc.LoginMFAParams{
		ChallengeID: req.ChallengeID,
		Code:        req.Code,
		Method:      req.Method,
		ClientID:    clientID,
		TenantID:    tenantID,
		ClientIP:    clientIP(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		h.metrics.IncrementAuthFailures()
		h.emitAudit(r.Context(), audit.CategorySecurity, string(audit.EventAuthFailed), req.ChallengeID)
		writeError(w, err)
		return
	}
	h.metrics.IncrementActiveSessions(1)
	h.emitAudit(r.Context(), audit.CategoryOperations, string(audit.EventSessionCreated), issued.SessionID)
	writeJSON(w, http.StatusOK, issued)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.svc.Account.Logout(ctx, requestcontext.UserID(ctx), requestcontext.SessionID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	h.metrics.DecrementActiveSessions(1)
	h.emitAudit(ctx, audit.CategorySecurity, string(audit.EventSessionRevoked), requestcontext.SessionID(ctx).String())
	w.WriteHeader(http.StatusNoContent)
}
