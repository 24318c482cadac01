package mfa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTOTP_IsSixDigits(t *testing.T) {
	secret, err := NewTOTPSecret()
	require.NoError(t, err)

	code := GenerateTOTP(secret, time.Now())
	assert.Len(t, code, totpDigits)
	for _, c := range code {
		assert.True(t, c >= '0' && c <= '9')
	}
}

func TestVerifyTOTP_AcceptsCurrentWindow(t *testing.T) {
	secret, err := NewTOTPSecret()
	require.NoError(t, err)

	now := time.Now()
	code := GenerateTOTP(secret, now)
	assert.True(t, VerifyTOTP(secret, code, now))
}

func TestVerifyTOTP_AcceptsAdjacentWindow(t *testing.T) {
	secret, err := NewTOTPSecret()
	require.NoError(t, err)

	base := time.Unix(1_700_000_000, 0).UTC()
	prevStep := base.Add(-totpPeriod)
	code := GenerateTOTP(secret, prevStep)

	assert.True(t, VerifyTOTP(secret, code, base), "±1 step must be accepted")
}

func TestVerifyTOTP_RejectsOutsideWindow(t *testing.T) {
	secret, err := NewTOTPSecret()
	require.NoError(t, err)

	base := time.Unix(1_700_000_000, 0).UTC()
	farPast := base.Add(-3 * totpPeriod)
	code := GenerateTOTP(secret, farPast)

	assert.False(t, VerifyTOTP(secret, code, base))
}

func TestVerifyTOTP_RejectsMalformedCode(t *testing.T) {
	secret, err := NewTOTPSecret()
	require.NoError(t, err)

	assert.False(t, VerifyTOTP(secret, "12345", time.Now()))
	assert.False(t, VerifyTOTP(secret, "abcdef", time.Now()))
}

func TestEncodeDecodeSecret_RoundTrip(t *testing.T) {
	secret, err := NewTOTPSecret()
	require.NoError(t, err)

	encoded := EncodeSecret(secret)
	decoded, err := DecodeSecret(encoded)
	require.NoError(t, err)
	assert.Equal(t, secret, decoded)
}

func TestProvisioningURI_ContainsExpectedParams(t *testing.T) {
	secret, err := NewTOTPSecret()
	require.NoError(t, err)

	uri := ProvisioningURI("Credo Admin", "user@example.com", secret)
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, "algorithm=SHA1")
	assert.Contains(t, uri, "digits=6")
	assert.Contains(t, uri, "period=30")
	assert.Contains(t, uri, "issuer=")
}
