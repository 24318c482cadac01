package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"credo/internal/sanction/models"
	id "credo/pkg/domain"
	"credo/pkg/platform/sentinel"
	"credo/pkg/platform/tx"
)

// PostgresStore persists sanctions in PostgreSQL. All queries join the
// caller's transaction via pkg/platform/tx when one is present, so the
// appeal-approval path (sanction update + appeal decision, §4.6) commits
// atomically.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) querier(ctx context.Context) interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, sanction *models.Sanction) error {
	features, err := json.Marshal(sanction.RestrictedFeatures)
	if err != nil {
		return fmt.Errorf("marshal restricted features: %w", err)
	}
	evidence, err := json.Marshal(sanction.EvidenceURLs)
	if err != nil {
		return fmt.Errorf("marshal evidence urls: %w", err)
	}
	_, err = s.querier(ctx).ExecContext(ctx, `
		INSERT INTO sanctions (
			id, subject_id, subject_type, service, type, severity,
			restricted_features, reason, internal_note, evidence_urls,
			issuer_id, issuer_type, start_at, end_at, status,
			appeal_status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`,
		sanction.ID.String(), sanction.SubjectID.String(), sanction.SubjectType, sanction.Service,
		sanction.Type, sanction.Severity, features, sanction.Reason, sanction.InternalNote, evidence,
		sanction.IssuerID.String(), sanction.IssuerType, sanction.StartAt, sanction.EndAt, sanction.Status,
		sanction.AppealStatus, sanction.CreatedAt, sanction.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create sanction: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sanctionID id.SanctionID) (*models.Sanction, error) {
	row := s.querier(ctx).QueryRowContext(ctx, sanctionSelectColumns+` WHERE id = $1`, sanctionID.String())
	sanction, err := scanSanction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find sanction: %w", err)
	}
	return sanction, nil
}

func (s *PostgresStore) Update(ctx context.Context, sanction *models.Sanction) error {
	features, err := json.Marshal(sanction.RestrictedFeatures)
	if err != nil {
		return fmt.Errorf("marshal restricted features: %w", err)
	}
	evidence, err := json.Marshal(sanction.EvidenceURLs)
	if err != nil {
		return fmt.Errorf("marshal evidence urls: %w", err)
	}
	appealEvidence, err := json.Marshal(sanction.AppealEvidence)
	if err != nil {
		return fmt.Errorf("marshal appeal evidence: %w", err)
	}
	result, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE sanctions SET
			severity = $2, restricted_features = $3, reason = $4, internal_note = $5,
			evidence_urls = $6, end_at = $7, status = $8,
			appeal_status = $9, appeal_reason = $10, appeal_reviewer = $11,
			appeal_response = $12, appeal_evidence = $13, updated_at = $14
		WHERE id = $1
	`,
		sanction.ID.String(), sanction.Severity, features, sanction.Reason, sanction.InternalNote,
		evidence, sanction.EndAt, sanction.Status,
		sanction.AppealStatus, sanction.AppealReason, nullableID(sanction.AppealReviewer),
		sanction.AppealResponse, appealEvidence, sanction.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update sanction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sanction rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID id.UserID) ([]*models.Sanction, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, sanctionSelectColumns+` WHERE subject_id = $1`, subjectID.String())
	if err != nil {
		return nil, fmt.Errorf("list sanctions by subject: %w", err)
	}
	defer rows.Close()
	return scanSanctions(rows)
}

// ListActiveExpiring returns every ACTIVE sanction with end_at <= now, for
// the minute-granularity expiry sweeper (§4.6).
func (s *PostgresStore) ListActiveExpiring(ctx context.Context, now time.Time) ([]*models.Sanction, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, sanctionSelectColumns+`
		WHERE status = $1 AND end_at IS NOT NULL AND end_at <= $2
	`, models.SanctionStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("list expiring sanctions: %w", err)
	}
	defer rows.Close()
	return scanSanctions(rows)
}

// BulkExpire transitions every ACTIVE row with end_at <= now to EXPIRED in
// a single statement and reports how many rows changed, matching the
// "bulk-update... count is logged" requirement.
func (s *PostgresStore) BulkExpire(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE sanctions SET status = $1, updated_at = $2
		WHERE status = $3 AND end_at IS NOT NULL AND end_at <= $2
	`, models.SanctionStatusExpired, now, models.SanctionStatusActive)
	if err != nil {
		return 0, fmt.Errorf("bulk expire sanctions: %w", err)
	}
	return result.RowsAffected()
}

const sanctionSelectColumns = `
	SELECT id, subject_id, subject_type, service, type, severity,
		restricted_features, reason, internal_note, evidence_urls,
		issuer_id, issuer_type, start_at, end_at, status,
		appeal_status, appeal_reason, appeal_reviewer, appeal_response, appeal_evidence,
		created_at, updated_at
	FROM sanctions
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSanction(row rowScanner) (*models.Sanction, error) {
	var sanction models.Sanction
	var sanctionID, subjectID, issuerID string
	var appealReviewer sql.NullString
	var features, evidence, appealEvidence []byte

	if err := row.Scan(
		&sanctionID, &subjectID, &sanction.SubjectType, &sanction.Service, &sanction.Type, &sanction.Severity,
		&features, &sanction.Reason, &sanction.InternalNote, &evidence,
		&issuerID, &sanction.IssuerType, &sanction.StartAt, &sanction.EndAt, &sanction.Status,
		&sanction.AppealStatus, &sanction.AppealReason, &appealReviewer, &sanction.AppealResponse, &appealEvidence,
		&sanction.CreatedAt, &sanction.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsedID, err := id.ParseSanctionID(sanctionID)
	if err != nil {
		return nil, fmt.Errorf("parse sanction id: %w", err)
	}
	sanction.ID = parsedID

	parsedSubject, err := id.ParseUserID(subjectID)
	if err != nil {
		return nil, fmt.Errorf("parse subject id: %w", err)
	}
	sanction.SubjectID = parsedSubject

	parsedIssuer, err := id.ParseUserID(issuerID)
	if err != nil {
		return nil, fmt.Errorf("parse issuer id: %w", err)
	}
	sanction.IssuerID = parsedIssuer

	if appealReviewer.Valid && appealReviewer.String != "" {
		reviewer, err := id.ParseUserID(appealReviewer.String)
		if err != nil {
			return nil, fmt.Errorf("parse appeal reviewer id: %w", err)
		}
		sanction.AppealReviewer = reviewer
	}

	if err := json.Unmarshal(features, &sanction.RestrictedFeatures); err != nil {
		return nil, fmt.Errorf("unmarshal restricted features: %w", err)
	}
	if err := json.Unmarshal(evidence, &sanction.EvidenceURLs); err != nil {
		return nil, fmt.Errorf("unmarshal evidence urls: %w", err)
	}
	if len(appealEvidence) > 0 {
		if err := json.Unmarshal(appealEvidence, &sanction.AppealEvidence); err != nil {
			return nil, fmt.Errorf("unmarshal appeal evidence: %w", err)
		}
	}

	return &sanction, nil
}

func scanSanctions(rows *sql.Rows) ([]*models.Sanction, error) {
	var out []*models.Sanction
	for rows.Next() {
		sanction, err := scanSanction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sanction: %w", err)
		}
		out = append(out, sanction)
	}
	return out, rows.Err()
}

func nullableID(v id.UserID) any {
	if v.IsNil() {
		return nil
	}
	return v.String()
}
