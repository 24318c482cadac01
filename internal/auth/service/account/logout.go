package account

import (
	"context"

	id "credo/pkg/domain"
	"credo/pkg/platform/outbox"
)

// Logout revokes sessionID (spec §4.5 step 3). Idempotent: logging out an
// already-revoked or unknown session is success, matching
// sessionsvc.Service.Revoke's own idempotent contract.
func (s *Service) Logout(ctx context.Context, userID id.UserID, sessionID id.SessionID) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	return s.emit(ctx, outbox.EventLogout, userID.String(), map[string]any{
		"user_id": userID.String(), "session_id": sessionID.String(),
	})
}
