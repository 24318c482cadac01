package mfa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBackupCodes_ProducesTenUniqueCodes(t *testing.T) {
	codes, err := GenerateBackupCodes()
	require.NoError(t, err)
	require.Len(t, codes, BackupCodeCount)

	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		assert.Regexp(t, `^[23456789ABCDEFGHJKLMNPQRSTUVWXYZ]{4}-[23456789ABCDEFGHJKLMNPQRSTUVWXYZ]{4}$`, c.Plaintext)
		assert.False(t, seen[c.Hash], "backup code hashes must be unique within a set")
		seen[c.Hash] = true
	}
}

func TestGenerateBackupCodes_ExcludesAmbiguousCharacters(t *testing.T) {
	codes, err := GenerateBackupCodes()
	require.NoError(t, err)
	for _, c := range codes {
		for _, banned := range []string{"0", "O", "1", "I"} {
			assert.NotContains(t, c.Plaintext, banned)
		}
	}
}

func TestMatchBackupCode_NormalizesBeforeHashing(t *testing.T) {
	codes, err := GenerateBackupCodes()
	require.NoError(t, err)

	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = c.Hash
	}

	target := codes[3].Plaintext
	lower := "  " + toLowerLocal(target) + "  "

	idx := MatchBackupCode(lower, hashes)
	assert.Equal(t, 3, idx)
}

func TestMatchBackupCode_NoMatchReturnsNegativeOne(t *testing.T) {
	codes, err := GenerateBackupCodes()
	require.NoError(t, err)

	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = c.Hash
	}

	idx := MatchBackupCode("ZZZZ-ZZZZ", hashes)
	assert.Equal(t, -1, idx)
}

func toLowerLocal(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
