package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// backupCodeAlphabet excludes visually ambiguous characters (0/O, 1/I).
const backupCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	BackupCodeCount  = 10
	backupCodeLength = 8
)

// BackupCode pairs the plaintext code shown to the user once with the hash
// persisted in storage.
type BackupCode struct {
	Plaintext string // "XXXX-XXXX" display form; never stored
	Hash      string // hex SHA-256 of the normalized code; the stored form
}

// GenerateBackupCodes produces a fresh set of BackupCodeCount codes. Every
// call yields a full new set; regeneration replaces the entire prior set
// rather than appending to it.
func GenerateBackupCodes() ([]BackupCode, error) {
	codes := make([]BackupCode, BackupCodeCount)
	for i := range codes {
		raw, err := randomBackupCode()
		if err != nil {
			return nil, err
		}
		codes[i] = BackupCode{
			Plaintext: formatBackupCode(raw),
			Hash:      hashBackupCode(raw),
		}
	}
	return codes, nil
}

func randomBackupCode() (string, error) {
	var sb strings.Builder
	base := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := 0; i < backupCodeLength; i++ {
		idx, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("mfa: generate backup code: %w", err)
		}
		sb.WriteByte(backupCodeAlphabet[idx.Int64()])
	}
	return sb.String(), nil
}

// formatBackupCode renders a raw 8-char code as "XXXX-XXXX".
func formatBackupCode(raw string) string {
	return raw[:4] + "-" + raw[4:]
}

// normalizeBackupCode uppercases and strips dashes/whitespace so
// "xxxx-xxxx", "XXXXXXXX", and "XXXX - XXXX" all hash identically.
func normalizeBackupCode(input string) string {
	input = strings.ToUpper(input)
	input = strings.ReplaceAll(input, "-", "")
	input = strings.ReplaceAll(input, " ", "")
	return input
}

func hashBackupCode(normalized string) string {
	sum := sha256.Sum256([]byte(normalizeBackupCode(normalized)))
	return hex.EncodeToString(sum[:])
}

// HashBackupCode exposes the normalize+hash step for callers validating
// user input against stored hashes.
func HashBackupCode(input string) string {
	return hashBackupCode(input)
}

// MatchBackupCode performs a constant-time search for input's hash among
// stored hashes, returning the index of the first match, or -1. The
// comparison against each candidate runs in constant time; the loop over
// candidates is not, since it only scans a single account's own small
// backup-code set rather than a global table.
func MatchBackupCode(input string, storedHashes []string) int {
	target := HashBackupCode(input)
	for i, stored := range storedHashes {
		if subtle.ConstantTimeCompare([]byte(target), []byte(stored)) == 1 {
			return i
		}
	}
	return -1
}
