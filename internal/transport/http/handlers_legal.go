package httptransport

import (
	"net/http"

	legalsvc "credo/internal/legal/service"
)

func (h *Handler) handleResolveLegalDocument(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	doc, err := h.svc.Legal.Resolve(r.Context(), legalsvc.ResolveParams{
		Type:    q.Get("type"),
		Locale:  q.Get("locale"),
		Country: q.Get("country"),
		Service: q.Get("service"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
