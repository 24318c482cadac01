// Package httptransport is the HTTP edge: chi routing, request-scoped
// context population, JWT authentication, and JSON marshaling of the C5-C9
// services' results. It holds no business logic of its own.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	accountsvc "credo/internal/auth/service/account"
	consentsvc "credo/internal/consent/service"
	dsrsvc "credo/internal/dsr/service"
	legalsvc "credo/internal/legal/service"
	"credo/internal/platform/metrics"
	platformmw "credo/internal/platform/middleware"
	sanctionsvc "credo/internal/sanction/service"
	auditpublisher "credo/pkg/platform/audit/publisher"
)

// Services collects every C5-C9 service the router dispatches to.
type Services struct {
	Account  *accountsvc.Service
	Sanction *sanctionsvc.Service
	Legal    *legalsvc.Service
	Consent  *consentsvc.Service
	DSR      *dsrsvc.Service
	Audit    *auditpublisher.Publisher
}

// Handler is the thin HTTP layer; it delegates to the wired services and
// never embeds business logic.
type Handler struct {
	svc     Services
	metrics *metrics.Metrics
}

func NewHandler(svc Services, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, metrics: m}
}

// NewRouter wires every public endpoint behind the shared middleware chain:
// request ID, recovery, a 30s timeout, request-context population, and
// (for account-scoped routes) bearer-token authentication.
func NewRouter(h *Handler, validator platformmw.JWTValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(withRequestContext)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLoginPrimary)
		r.Post("/login/mfa", h.handleLoginMFA)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth(validator, logger))
			r.Post("/logout", h.handleLogout)
			r.Post("/password", h.handleChangePassword)
			r.Route("/mfa", func(r chi.Router) {
				r.Post("/setup", h.handleSetupMFA)
				r.Post("/setup/verify", h.handleVerifyMFASetup)
				r.Post("/disable", h.handleDisableMFA)
				r.Post("/backup-codes", h.handleRegenerateBackupCodes)
			})
		})
	})

	r.Route("/legal/documents", func(r chi.Router) {
		r.Get("/resolve", h.handleResolveLegalDocument)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(validator, logger))

		r.Route("/consent", func(r chi.Router) {
			r.Post("/", h.handleGrantConsent)
			r.Get("/", h.handleListConsent)
			r.Post("/{id}/withdraw", h.handleWithdrawConsent)
		})

		r.Route("/dsr", func(r chi.Router) {
			r.Post("/", h.handleSubmitDSR)
			r.Get("/summary", h.handleDSRSummary)
			r.Get("/{id}", h.handleGetDSR)
			r.Post("/{id}/verify", h.handleVerifyDSR)
		})
	})

	r.Route("/sanctions", func(r chi.Router) {
		r.Post("/", h.handleCreateSanction)
		r.Post("/{id}/revoke", h.handleRevokeSanction)
		r.Get("/subjects/{subjectID}/active", h.handleActiveSanctions)
	})

	return r
}
