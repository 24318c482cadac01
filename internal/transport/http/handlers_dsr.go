package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	dsrmodels "credo/internal/dsr/models"
	dsrsvc "credo/internal/dsr/service"
	id "credo/pkg/domain"
	"credo/pkg/requestcontext"
)

type submitDSRRequest struct {
	Type       dsrmodels.RequestType `json:"type"`
	Priority   int                   `json:"priority"`
	Scope      map[string]any        `json:"scope"`
	LegalBasis dsrmodels.LegalBasis  `json:"legal_basis"`
}

func (h *Handler) handleSubmitDSR(w http.ResponseWriter, r *http.Request) {
	var req submitDSRRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	request, err := h.svc.DSR.Submit(r.Context(), dsrsvc.SubmitParams{
		AccountID:  requestcontext.UserID(r.Context()),
		Type:       req.Type,
		Priority:   req.Priority,
		Scope:      req.Scope,
		LegalBasis: req.LegalBasis,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (h *Handler) handleGetDSR(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseDSRRequestID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrBadInput("id"))
		return
	}
	request, err := h.svc.DSR.Get(r.Context(), requestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleVerifyDSR(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseDSRRequestID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrBadInput("id"))
		return
	}
	operatorID, err := id.ParseOperatorID(r.Header.Get("X-Operator-Id"))
	if err != nil {
		writeError(w, dErrBadInput("X-Operator-Id"))
		return
	}
	request, err := h.svc.DSR.Verify(r.Context(), requestID, operatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) handleDSRSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.DSR.Summary(r.Context(), requestcontext.Now(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
