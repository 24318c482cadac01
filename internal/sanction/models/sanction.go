// Package models holds the Sanction entity and its appeal sub-state (C6).
package models

import (
	"time"

	id "credo/pkg/domain"
)

type SubjectType string

const (
	SubjectTypeAccount  SubjectType = "ACCOUNT"
	SubjectTypeOperator SubjectType = "OPERATOR"
)

type SanctionType string

const (
	SanctionTypeWarning            SanctionType = "WARNING"
	SanctionTypeTemporaryBan       SanctionType = "TEMPORARY_BAN"
	SanctionTypePermanentBan       SanctionType = "PERMANENT_BAN"
	SanctionTypeFeatureRestriction SanctionType = "FEATURE_RESTRICTION"
)

type SanctionStatus string

const (
	SanctionStatusActive  SanctionStatus = "ACTIVE"
	SanctionStatusExpired SanctionStatus = "EXPIRED"
	SanctionStatusRevoked SanctionStatus = "REVOKED"
)

// AppealStatus is unset until the subject files an appeal.
type AppealStatus string

const (
	AppealStatusNone        AppealStatus = ""
	AppealStatusPending     AppealStatus = "PENDING"
	AppealStatusUnderReview AppealStatus = "UNDER_REVIEW"
	AppealStatusApproved    AppealStatus = "APPROVED"
	AppealStatusRejected    AppealStatus = "REJECTED"
	AppealStatusEscalated   AppealStatus = "ESCALATED"
)

// Sanction is the C6 aggregate: a restriction placed on an Account or
// Operator, optionally scoped to one service, with its own appeal
// sub-state machine.
type Sanction struct {
	ID          id.SanctionID
	SubjectID   id.UserID
	SubjectType SubjectType
	Service     string // empty means PLATFORM scope

	Type               SanctionType
	Severity           int
	RestrictedFeatures []string
	Reason             string
	InternalNote       string
	EvidenceURLs       []string

	IssuerID   id.UserID
	IssuerType SubjectType

	StartAt time.Time
	EndAt   *time.Time
	Status  SanctionStatus

	AppealStatus   AppealStatus
	AppealReason   string
	AppealReviewer id.UserID
	AppealResponse string
	AppealEvidence []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InWindow reports whether now falls within [StartAt, EndAt) — EndAt nil
// means open-ended (PERMANENT_BAN or no expiry set).
func (s *Sanction) InWindow(now time.Time) bool {
	if now.Before(s.StartAt) {
		return false
	}
	return s.EndAt == nil || now.Before(*s.EndAt)
}

// MatchesScope reports whether this sanction applies to a lookup scoped to
// service (empty service argument means "platform-wide lookup only").
func (s *Sanction) MatchesScope(service string) bool {
	if s.Service == "" {
		return true // PLATFORM scope always applies
	}
	return s.Service == service
}

// ActiveSetView is the get-active query result (spec §4.6).
type ActiveSetView struct {
	Sanctions           []*Sanction
	RestrictedFeatures  []string
	IsPermanentlyBanned bool
}
