package httptransport

import (
	"net/http"

	accountsvc "credo/internal/auth/service/account"
	"credo/pkg/requestcontext"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ctx := r.Context()
	err := h.svc.Account.ChangePassword(ctx, accountsvc.ChangePasswordParams{
		UserID:           requestcontext.UserID(ctx),
		CurrentSessionID: requestcontext.SessionID(ctx),
		CurrentPassword:  req.CurrentPassword,
		NewPassword:      req.NewPassword,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetupMFA(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Account.SetupMFA(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type verifyMFASetupRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleVerifyMFASetup(w http.ResponseWriter, r *http.Request) {
	var req verifyMFASetupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Account.VerifyMFASetup(r.Context(), requestcontext.UserID(r.Context()), req.Code); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type disableMFARequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleDisableMFA(w http.ResponseWriter, r *http.Request) {
	var req disableMFARequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Account.DisableMFA(r.Context(), requestcontext.UserID(r.Context()), req.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type regenerateBackupCodesRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	var req regenerateBackupCodesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	codes, err := h.svc.Account.RegenerateBackupCodes(r.Context(), requestcontext.UserID(r.Context()), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"backup_codes": codes})
}
