package mfa

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // RFC 6238 mandates SHA-1 for the HOTP construction.
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	totpSecretBytes = 20
	totpDigits      = 6
	totpPeriod      = 30 * time.Second
	totpWindow      = 1 // accept current step ± this many steps
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewTOTPSecret generates a fresh 20-byte TOTP secret.
func NewTOTPSecret() ([]byte, error) {
	secret := make([]byte, totpSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("mfa: generate totp secret: %w", err)
	}
	return secret, nil
}

// EncodeSecret renders a raw secret as unpadded Base32 for display/storage.
func EncodeSecret(secret []byte) string {
	return base32NoPad.EncodeToString(secret)
}

// DecodeSecret parses a Base32-encoded secret, accepting input with or
// without padding.
func DecodeSecret(encoded string) ([]byte, error) {
	encoded = strings.ToUpper(strings.TrimSpace(encoded))
	if b, err := base32NoPad.DecodeString(encoded); err == nil {
		return b, nil
	}
	return base32.StdEncoding.DecodeString(encoded)
}

// ProvisioningURI builds the otpauth:// URI an authenticator app scans as a
// QR code.
func ProvisioningURI(issuer, accountEmail string, secret []byte) string {
	label := url.PathEscape(fmt.Sprintf("%s:%s", issuer, accountEmail))
	values := url.Values{}
	values.Set("secret", EncodeSecret(secret))
	values.Set("algorithm", "SHA1")
	values.Set("digits", fmt.Sprintf("%d", totpDigits))
	values.Set("period", fmt.Sprintf("%d", int(totpPeriod.Seconds())))
	values.Set("issuer", issuer)
	return fmt.Sprintf("otpauth://totp/%s?%s", label, values.Encode())
}

// GenerateTOTP computes the 6-digit code for secret at the time step
// containing at.
func GenerateTOTP(secret []byte, at time.Time) string {
	counter := uint64(at.UTC().Unix()) / uint64(totpPeriod.Seconds())
	return hotp(secret, counter)
}

// VerifyTOTP reports whether code matches secret at the current time step
// or either adjacent step (±1 period, absorbing clock skew between server
// and authenticator app).
func VerifyTOTP(secret []byte, code string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits {
		return false
	}
	counter := uint64(at.UTC().Unix()) / uint64(totpPeriod.Seconds())
	for delta := -totpWindow; delta <= totpWindow; delta++ {
		step := int64(counter) + int64(delta)
		if step < 0 {
			continue
		}
		candidate := hotp(secret, uint64(step))
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			return true
		}
	}
	return false
}

// hotp implements RFC 4226's HOTP over counter, truncated to totpDigits,
// which RFC 6238's TOTP is defined in terms of.
func hotp(secret []byte, counter uint64) string {
	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], counter)

	mac := hmac.New(sha1.New, secret)
	mac.Write(counterBytes[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < totpDigits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", totpDigits, truncated%mod)
}
