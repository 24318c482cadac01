package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	consentsvc "credo/internal/consent/service"
	id "credo/pkg/domain"
	"credo/pkg/requestcontext"
)

type grantConsentRequest struct {
	DocumentID string     `json:"document_id"`
	Type       string     `json:"type"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

func (h *Handler) handleGrantConsent(w http.ResponseWriter, r *http.Request) {
	var req grantConsentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	documentID, err := id.ParseDocumentID(req.DocumentID)
	if err != nil {
		writeError(w, dErrBadInput("document_id"))
		return
	}
	consent, err := h.svc.Consent.Grant(r.Context(), consentsvc.GrantParams{
		AccountID:  requestcontext.UserID(r.Context()),
		DocumentID: documentID,
		Type:       req.Type,
		ExpiresAt:  req.ExpiresAt,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, consent)
}

func (h *Handler) handleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	consentID, err := id.ParseConsentID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrBadInput("id"))
		return
	}
	consent, err := h.svc.Consent.Withdraw(r.Context(), consentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, consent)
}

func (h *Handler) handleListConsent(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Consent.List(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
