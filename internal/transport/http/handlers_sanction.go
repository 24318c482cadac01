package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	sanctionmodels "credo/internal/sanction/models"
	sanctionsvc "credo/internal/sanction/service"
	id "credo/pkg/domain"
)

type createSanctionRequest struct {
	SubjectID          string                       `json:"subject_id"`
	SubjectType        sanctionmodels.SubjectType   `json:"subject_type"`
	Service            string                       `json:"service"`
	Type               sanctionmodels.SanctionType  `json:"type"`
	Severity           int                          `json:"severity"`
	RestrictedFeatures []string                     `json:"restricted_features"`
	Reason             string                       `json:"reason"`
	EvidenceURLs       []string                     `json:"evidence_urls"`
	IssuerID           string                       `json:"issuer_id"`
	IssuerType         sanctionmodels.SubjectType   `json:"issuer_type"`
}

func (h *Handler) handleCreateSanction(w http.ResponseWriter, r *http.Request) {
	var req createSanctionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	subjectID, err := id.ParseUserID(req.SubjectID)
	if err != nil {
		writeError(w, dErrBadInput("subject_id"))
		return
	}
	issuerID, err := id.ParseUserID(req.IssuerID)
	if err != nil {
		writeError(w, dErrBadInput("issuer_id"))
		return
	}
	sanction, err := h.svc.Sanction.Create(r.Context(), sanctionsvc.CreateParams{
		SubjectID:          subjectID,
		SubjectType:        req.SubjectType,
		Service:            req.Service,
		Type:               req.Type,
		Severity:           req.Severity,
		RestrictedFeatures: req.RestrictedFeatures,
		Reason:             req.Reason,
		EvidenceURLs:       req.EvidenceURLs,
		IssuerID:           issuerID,
		IssuerType:         req.IssuerType,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sanction)
}

func (h *Handler) handleRevokeSanction(w http.ResponseWriter, r *http.Request) {
	sanctionID, err := id.ParseSanctionID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrBadInput("id"))
		return
	}
	sanction, err := h.svc.Sanction.Revoke(r.Context(), sanctionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sanction)
}

func (h *Handler) handleActiveSanctions(w http.ResponseWriter, r *http.Request) {
	subjectID, err := id.ParseUserID(chi.URLParam(r, "subjectID"))
	if err != nil {
		writeError(w, dErrBadInput("subjectID"))
		return
	}
	service := r.URL.Query().Get("service")
	view, err := h.svc.Sanction.GetActive(r.Context(), subjectID, service)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
