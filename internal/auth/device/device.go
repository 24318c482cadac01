// Package device extracts a stable per-browser/OS fingerprint and a
// human-readable display name from a User-Agent string, used at session
// creation (C4/C5) to label a session and later detect a drifted device on
// refresh.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// Service computes and compares device fingerprints. Fingerprinting can be
// disabled for deployments that don't want to track devices, in which case
// ComputeFingerprint always returns "".
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ParseUserAgent renders a short "<Browser> on <OS>" display string for a
// session's device list.
func ParseUserAgent(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(rawUA)
	name, _ := ua.Browser()
	os := ua.OS()
	if name == "" {
		name = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(name + " on " + os)
}

// ComputeFingerprint hashes the browser name and major version plus OS into
// a stable SHA-256 hex digest. Only the major version is hashed so a
// patch/minor browser upgrade doesn't read as a new device. Returns "" when
// the service is disabled.
func (s *Service) ComputeFingerprint(rawUA string) string {
	if !s.enabled {
		return ""
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	os := ua.OS()

	major := version
	if idx := strings.Index(version, "."); idx >= 0 {
		major = version[:idx]
	}

	sum := sha256.Sum256([]byte(name + "|" + major + "|" + os))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether two fingerprints match, and whether
// the mismatch should be treated as a device drift. An empty current
// fingerprint (fingerprinting disabled, or no prior fingerprint recorded)
// is handled by the caller before reaching this comparison.
func (s *Service) CompareFingerprints(recorded, current string) (matched bool, drifted bool) {
	matched = recorded == current
	return matched, !matched
}
