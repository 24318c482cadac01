package account

import (
	"context"

	"credo/internal/auth/mfa"
	"credo/internal/auth/models"
	"credo/internal/tenant/secrets"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/requestcontext"
)

// MFASetupResult carries what a user needs to finish enrolling: the
// provisioning URI for a QR code and the one-time display of backup codes.
type MFASetupResult struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
}

// SetupMFA transitions DISABLED -> PROVISIONED: mints a TOTP secret and a
// fresh backup-code set, but does not enable MFA until VerifyMFASetup
// succeeds (spec §4.5 MFA setup flow).
func (s *Service) SetupMFA(ctx context.Context, userID id.UserID) (*MFASetupResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	if user.MFAState == models.MFAStateEnabled {
		return nil, dErrors.New(dErrors.CodeInvalidState, "mfa is already enabled")
	}

	secret, err := mfa.NewTOTPSecret()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate totp secret")
	}
	codes, err := mfa.GenerateBackupCodes()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate backup codes")
	}

	hashes := make([]string, len(codes))
	plaintexts := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = c.Hash
		plaintexts[i] = c.Plaintext
	}

	user.TOTPSecretBase32 = mfa.EncodeSecret(secret)
	user.BackupCodeHashes = hashes
	user.MFAState = models.MFAStateProvisioned
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	return &MFASetupResult{
		Secret:          user.TOTPSecretBase32,
		ProvisioningURI: mfa.ProvisioningURI(issuerForTOTP, user.Email, secret),
		BackupCodes:     plaintexts,
	}, nil
}

// VerifyMFASetup transitions PROVISIONED -> ENABLED on a correct TOTP code
// (spec §4.5 MFA setup flow).
func (s *Service) VerifyMFASetup(ctx context.Context, userID id.UserID, code string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	if user.MFAState != models.MFAStateProvisioned {
		return dErrors.New(dErrors.CodeInvalidState, "mfa setup has not been started")
	}
	secret, err := mfa.DecodeSecret(user.TOTPSecretBase32)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "decode totp secret")
	}
	if !mfa.VerifyTOTP(secret, code, requestcontext.Now(ctx)) {
		return dErrors.New(dErrors.CodeInvalidMfaCode, "invalid mfa code")
	}

	user.MFAState = models.MFAStateEnabled
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Save(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	return s.emit(ctx, outbox.EventMFAEnabled, user.ID.String(), map[string]any{
		"user_id": user.ID.String(),
	})
}

// DisableMFA transitions ENABLED (or PROVISIONED) -> DISABLED, requiring
// password re-verification, and destroys the secret and backup codes (spec
// §4.5: "anywhere -> DISABLED destroys secret and backup codes").
func (s *Service) DisableMFA(ctx context.Context, userID id.UserID, password string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		return dErrors.New(dErrors.CodeInvalidCredentials, "password is incorrect")
	}

	user.MFAState = models.MFAStateDisabled
	user.TOTPSecretBase32 = ""
	user.BackupCodeHashes = nil
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Save(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}

	return s.emit(ctx, outbox.EventMFADisabled, user.ID.String(), map[string]any{
		"user_id": user.ID.String(),
	})
}

// RegenerateBackupCodes requires password re-verification and atomically
// replaces the entire backup-code set (spec §4.5).
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID id.UserID, password string) ([]string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	if user.MFAState != models.MFAStateEnabled {
		return nil, dErrors.New(dErrors.CodeInvalidState, "mfa is not enabled")
	}
	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidCredentials, "password is incorrect")
	}

	codes, err := mfa.GenerateBackupCodes()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate backup codes")
	}
	hashes := make([]string, len(codes))
	plaintexts := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = c.Hash
		plaintexts[i] = c.Plaintext
	}
	user.BackupCodeHashes = hashes
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save account")
	}
	return plaintexts, nil
}
