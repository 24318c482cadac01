// Package domain holds trust-boundary primitives shared by every component:
// typed UUIDv7 identifiers, the API version primitive, and small enums
// (consent purpose) that must be validated once, at the edge, rather than
// threaded through the system as bare strings.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "credo/pkg/domain-errors"
)

// UserID identifies an Account (the spec's "Account" entity; this package
// keeps the teacher's UserID name since it is threaded through
// requestcontext and audit events already).
type UserID uuid.UUID

// SessionID identifies a Session record (C4).
type SessionID uuid.UUID

// ClientID identifies an OAuth/service client registration.
type ClientID uuid.UUID

// TenantID identifies a tenant (service) boundary.
type TenantID uuid.UUID

// ConsentID identifies a Consent record (C8).
type ConsentID uuid.UUID

// SanctionID identifies a Sanction record (C6).
type SanctionID uuid.UUID

// DocumentID identifies a LegalDocument record (C7).
type DocumentID uuid.UUID

// DSRRequestID identifies a DSRRequest record (C9).
type DSRRequestID uuid.UUID

// OperatorID identifies a privileged operator/moderator subject.
type OperatorID uuid.UUID

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id SessionID) String() string    { return uuid.UUID(id).String() }
func (id ClientID) String() string     { return uuid.UUID(id).String() }
func (id TenantID) String() string     { return uuid.UUID(id).String() }
func (id ConsentID) String() string    { return uuid.UUID(id).String() }
func (id SanctionID) String() string   { return uuid.UUID(id).String() }
func (id DocumentID) String() string   { return uuid.UUID(id).String() }
func (id DSRRequestID) String() string { return uuid.UUID(id).String() }
func (id OperatorID) String() string   { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return id == UserID{} }
func (id SessionID) IsNil() bool    { return id == SessionID{} }
func (id ClientID) IsNil() bool     { return id == ClientID{} }
func (id TenantID) IsNil() bool     { return id == TenantID{} }
func (id ConsentID) IsNil() bool    { return id == ConsentID{} }
func (id SanctionID) IsNil() bool   { return id == SanctionID{} }
func (id DocumentID) IsNil() bool   { return id == DocumentID{} }
func (id DSRRequestID) IsNil() bool { return id == DSRRequestID{} }
func (id OperatorID) IsNil() bool   { return id == OperatorID{} }

// parseUUID is the single validation routine behind every ParseXxxID
// function: reject empty input, reject anything that isn't a well-formed
// UUID, and reject the nil UUID (a valid format carrying no identity).
func parseUUID(s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	if !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}

func ParseClientID(s string) (ClientID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ClientID{}, err
	}
	return ClientID(u), nil
}

func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(u), nil
}

func ParseConsentID(s string) (ConsentID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ConsentID{}, err
	}
	return ConsentID(u), nil
}

func ParseSanctionID(s string) (SanctionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SanctionID{}, err
	}
	return SanctionID(u), nil
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return DocumentID{}, err
	}
	return DocumentID(u), nil
}

func ParseDSRRequestID(s string) (DSRRequestID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return DSRRequestID{}, err
	}
	return DSRRequestID(u), nil
}

func ParseOperatorID(s string) (OperatorID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return OperatorID{}, err
	}
	return OperatorID(u), nil
}

// NewUserID, NewSessionID, ... mint fresh UUIDv7 identifiers (C3: embeds
// wall-clock milliseconds in the top 48 bits, lexicographically increasing).
func NewUserID() UserID             { return UserID(mustV7()) }
func NewSessionID() SessionID       { return SessionID(mustV7()) }
func NewClientID() ClientID         { return ClientID(mustV7()) }
func NewTenantID() TenantID         { return TenantID(mustV7()) }
func NewConsentID() ConsentID       { return ConsentID(mustV7()) }
func NewSanctionID() SanctionID     { return SanctionID(mustV7()) }
func NewDocumentID() DocumentID     { return DocumentID(mustV7()) }
func NewDSRRequestID() DSRRequestID { return DSRRequestID(mustV7()) }
func NewOperatorID() OperatorID     { return OperatorID(mustV7()) }

func mustV7() uuid.UUID {
	u, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system entropy source fails, which
		// the process cannot recover from meaningfully.
		panic("domain: failed to generate UUIDv7: " + err.Error())
	}
	return u
}

// UUIDTimestamp returns the wall-clock instant embedded in a UUIDv7's
// top 48 bits (C3 §4.3 "timestamp(id)").
func UUIDTimestamp(id uuid.UUID) time.Time {
	ms := int64(id[0])<<40 | int64(id[1])<<32 | int64(id[2])<<24 |
		int64(id[3])<<16 | int64(id[4])<<8 | int64(id[5])
	return time.UnixMilli(ms).UTC()
}

// CompareUUID returns -1, 0, or 1 comparing two UUIDs byte-for-byte, which
// for UUIDv7 values is equivalent to comparing their embedded timestamps
// (C3 §4.3 "compare(a, b)").
func CompareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
