// Package mfa implements the C3 primitives that sit outside the typed-UUID
// identifier scheme: short external IDs, TOTP, and backup codes.
package mfa

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// base62Alphabet is ordered so lexical comparison of external IDs agrees
// with numeric comparison of the timestamp they encode.
const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// externalIDEpoch is the reference point external IDs encode elapsed
// milliseconds against.
var externalIDEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	externalIDTimestampChars = 8
	externalIDRandomChars    = 2
)

// NewExternalID mints a 10-character Base62 external identifier: the first
// 8 characters are the zero-padded Base62 encoding of milliseconds since
// externalIDEpoch, the last 2 are CSPRNG Base62. Collision handling (check
// at insert, retry up to 3 times) is the caller's responsibility since it
// requires a store round-trip.
func NewExternalID(now time.Time) (string, error) {
	ms := now.UTC().Sub(externalIDEpoch).Milliseconds()
	if ms < 0 {
		ms = 0
	}

	tsPart, err := encodeBase62Fixed(uint64(ms), externalIDTimestampChars)
	if err != nil {
		return "", err
	}

	randPart, err := randomBase62(externalIDRandomChars)
	if err != nil {
		return "", err
	}

	return tsPart + randPart, nil
}

// encodeBase62Fixed encodes v in Base62, left-padded with the alphabet's
// zero digit to exactly width characters. An 8-character field holds
// milliseconds since externalIDEpoch for thousands of years before
// overflowing.
func encodeBase62Fixed(v uint64, width int) (string, error) {
	digits := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		digits[i] = base62Alphabet[v%62]
		v /= 62
	}
	if v != 0 {
		return "", fmt.Errorf("mfa: value overflows %d-character base62 field", width)
	}
	return string(digits), nil
}

func randomBase62(n int) (string, error) {
	var sb strings.Builder
	base := big.NewInt(int64(len(base62Alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("mfa: generate random external-id suffix: %w", err)
		}
		sb.WriteByte(base62Alphabet[idx.Int64()])
	}
	return sb.String(), nil
}
