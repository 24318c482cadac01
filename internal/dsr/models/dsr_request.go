// Package models holds the DSRRequest aggregate and its append-only audit
// log (C9).
package models

import (
	"time"

	id "credo/pkg/domain"

	"github.com/google/uuid"
)

type RequestType string

const (
	RequestTypeAccess        RequestType = "ACCESS"
	RequestTypeErasure       RequestType = "ERASURE"
	RequestTypePortability   RequestType = "PORTABILITY"
	RequestTypeRectification RequestType = "RECTIFICATION"
	RequestTypeRestriction   RequestType = "RESTRICTION"
	RequestTypeObjection     RequestType = "OBJECTION"
)

type Status string

const (
	StatusPending      Status = "PENDING"
	StatusVerified     Status = "VERIFIED"
	StatusInProgress   Status = "IN_PROGRESS"
	StatusAwaitingInfo Status = "AWAITING_INFO"
	StatusCompleted    Status = "COMPLETED"
	StatusRejected     Status = "REJECTED"
	StatusCancelled    Status = "CANCELLED"
)

// IsTerminal reports whether status allows no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// allowedTransitions is the §4.9 state table. A status absent from this map
// (i.e. a terminal status) allows no further transition.
var allowedTransitions = map[Status][]Status{
	StatusPending:      {StatusVerified, StatusRejected, StatusCancelled},
	StatusVerified:     {StatusInProgress, StatusRejected},
	StatusInProgress:   {StatusAwaitingInfo, StatusCompleted, StatusRejected},
	StatusAwaitingInfo: {StatusInProgress, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal state-machine edge.
func CanTransition(from, to Status) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

type LegalBasis string

const (
	LegalBasisGDPR    LegalBasis = "GDPR"
	LegalBasisCCPA    LegalBasis = "CCPA"
	LegalBasisPIPA    LegalBasis = "PIPA"
	LegalBasisAPPI    LegalBasis = "APPI"
	LegalBasisDefault LegalBasis = "DEFAULT"
)

// deadlineDays is the §4.9 legal-basis -> statutory deadline table.
var deadlineDays = map[LegalBasis]int{
	LegalBasisGDPR:    30,
	LegalBasisCCPA:    45,
	LegalBasisPIPA:    10,
	LegalBasisAPPI:    14,
	LegalBasisDefault: 30,
}

// DeadlineDays returns the statutory response window for basis, falling
// back to LegalBasisDefault for an unrecognized or empty basis.
func DeadlineDays(basis LegalBasis) int {
	if days, ok := deadlineDays[basis]; ok {
		return days
	}
	return deadlineDays[LegalBasisDefault]
}

type EscalationLevel string

const (
	EscalationNone     EscalationLevel = "NONE"
	EscalationWarning  EscalationLevel = "WARNING"
	EscalationCritical EscalationLevel = "CRITICAL"
	EscalationOverdue  EscalationLevel = "OVERDUE"
)

// escalationRank gives the total order NONE < WARNING < CRITICAL < OVERDUE
// that P9 (escalation monotonicity) is checked against.
var escalationRank = map[EscalationLevel]int{
	EscalationNone:     0,
	EscalationWarning:  1,
	EscalationCritical: 2,
	EscalationOverdue:  3,
}

// LessThan reports whether l is strictly below other in the escalation
// order, i.e. whether moving from l to other is forward progress.
func (l EscalationLevel) LessThan(other EscalationLevel) bool {
	return escalationRank[l] < escalationRank[other]
}

// TierFor computes the §4.9 escalation tier from the time remaining until
// the effective deadline.
func TierFor(remaining time.Duration) EscalationLevel {
	switch {
	case remaining > 7*24*time.Hour:
		return EscalationNone
	case remaining > 2*24*time.Hour:
		return EscalationWarning
	case remaining > 0:
		return EscalationCritical
	default:
		return EscalationOverdue
	}
}

// ResponseType classifies how a completed request was fulfilled.
type ResponseType string

const (
	ResponseTypeNone   ResponseType = ""
	ResponseTypeData   ResponseType = "DATA_EXPORT"
	ResponseTypeAction ResponseType = "ACTION_TAKEN"
	ResponseTypeDenial ResponseType = "DENIAL"
)

// DSRRequest is the C9 aggregate: one subject's data-subject request,
// its deadline machinery and escalation state.
type DSRRequest struct {
	ID        id.DSRRequestID
	AccountID id.UserID

	Type   RequestType
	Status Status

	Priority int
	Scope    map[string]any // free-form payload describing requested scope

	LegalBasis LegalBasis
	Deadline   time.Time
	ExtendedTo *time.Time
	Extended   bool // one regulator-permitted extension already used

	EscalationLevel EscalationLevel
	EscalatedAt     *time.Time

	AssignedTo id.OperatorID
	ProcessedBy id.OperatorID

	ResponseType ResponseType
	ResponseBody string
	ResponseNote string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveDeadline is extended_to ?? deadline (§4.9).
func (r *DSRRequest) EffectiveDeadline() time.Time {
	if r.ExtendedTo != nil {
		return *r.ExtendedTo
	}
	return r.Deadline
}

// DsrRequestLog is one append-only audit row attached to a DSRRequest.
type DsrRequestLog struct {
	ID         uuid.UUID
	RequestID  id.DSRRequestID
	Action     string
	OperatorID id.OperatorID
	Details    string
	IPAddress  string
	CreatedAt  time.Time
}

// Summary is the §4.9 daily-summary result: observational counts, never
// persisted by this engine.
type Summary struct {
	Pending     int
	InProgress  int
	Approaching int
	Overdue     int
}
