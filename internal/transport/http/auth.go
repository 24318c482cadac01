package httptransport

import (
	"log/slog"
	"net/http"

	platformmw "credo/internal/platform/middleware"
	id "credo/pkg/domain"
	"credo/pkg/requestcontext"
)

// requireAuth wraps the JWT bearer-token middleware and, on success, copies
// its string claims into the typed IDs every service reads via
// pkg/requestcontext. Invalid/expired/missing tokens never reach a handler.
func requireAuth(validator platformmw.JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	jwtMW := platformmw.RequireAuth(validator, logger)
	return func(next http.Handler) http.Handler {
		return jwtMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if rawUserID := platformmw.GetUserID(ctx); rawUserID != "" {
				if userID, err := id.ParseUserID(rawUserID); err == nil {
					ctx = requestcontext.WithUserID(ctx, userID)
				}
			}
			if rawSessionID := platformmw.GetSessionID(ctx); rawSessionID != "" {
				if sessionID, err := id.ParseSessionID(rawSessionID); err == nil {
					ctx = requestcontext.WithSessionID(ctx, sessionID)
				}
			}
			if rawClientID := platformmw.GetClientID(ctx); rawClientID != "" {
				if clientID, err := id.ParseClientID(rawClientID); err == nil {
					ctx = requestcontext.WithClientID(ctx, clientID)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		}))
	}
}
