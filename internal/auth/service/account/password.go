package account

import (
	"context"

	"credo/internal/tenant/secrets"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/requestcontext"
)

// ChangePasswordParams carries the inputs to ChangePassword.
type ChangePasswordParams struct {
	UserID             id.UserID
	CurrentSessionID   id.SessionID
	CurrentPassword    string
	NewPassword        string
}

// ChangePassword re-verifies the current password, rehashes with the
// current default KDF parameters, invalidates every other session for the
// account, and emits PASSWORD_CHANGED (spec §4.5 password change).
func (s *Service) ChangePassword(ctx context.Context, params ChangePasswordParams) error {
	if len(params.NewPassword) < 8 {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	}

	user, err := s.users.FindByID(ctx, params.UserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	if err := secrets.Verify(params.CurrentPassword, user.PasswordHash); err != nil {
		return dErrors.New(dErrors.CodeInvalidCredentials, "current password is incorrect")
	}

	newHash, err := secrets.Hash(params.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = newHash
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Save(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	if err := s.sessions.RevokeAllExcept(ctx, user.ID, params.CurrentSessionID); err != nil {
		return err
	}

	return s.emit(ctx, outbox.EventPasswordChanged, user.ID.String(), map[string]any{
		"user_id": user.ID.String(),
	})
}
