package account

import (
	"context"
	"errors"
	"strings"

	"credo/internal/auth/models"
	"credo/internal/tenant/secrets"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/platform/sentinel"
	"credo/pkg/requestcontext"
)

// RegisterParams carries the inputs to Register.
type RegisterParams struct {
	TenantID  id.TenantID
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResult is the public view of a freshly created Account.
type RegisterResult struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
}

// Register creates a new Account with MFA disabled (spec §4.5 step 1). The
// email uniqueness check and the save race on the same window any two
// concurrent registrations with the same email would; the store's Save is
// last-write-wins, so a production Postgres-backed UserStore should enforce
// a unique index and translate its constraint violation into CodeConflict.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if len(params.Password) < 8 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	}

	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check existing account")
	}

	hash, err := secrets.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	user := &models.User{
		ID:           id.NewUserID(),
		TenantID:     params.TenantID,
		Email:        email,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		PasswordHash: hash,
		MFAState:     models.MFAStateDisabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	if err := s.emit(ctx, outbox.EventAccountRegistered, user.ID.String(), map[string]any{
		"user_id":   user.ID.String(),
		"tenant_id": user.TenantID.String(),
		"email":     user.Email,
	}); err != nil {
		return nil, err
	}

	return &RegisterResult{
		UserID:   user.ID.String(),
		Email:    user.Email,
		TenantID: user.TenantID.String(),
	}, nil
}
