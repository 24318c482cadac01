package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"credo/internal/legal/models"
	id "credo/pkg/domain"
	"credo/pkg/platform/sentinel"
	"credo/pkg/platform/tx"
)

// PostgresStore persists legal documents and laws in PostgreSQL.
// CreateDocument/UpdateDocument join the caller's transaction via
// pkg/platform/tx so the §4.7 version-cut (deactivate all prior versions,
// insert the new one) commits as a single unit under SERIALIZABLE
// isolation.
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

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.LegalDocument) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO legal_documents (
			id, type, version, locale, service, country, title, body, summary,
			effective_date, expires_at, is_active, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		doc.ID.String(), doc.Type, doc.Version, doc.Locale, doc.Service, doc.Country,
		doc.Title, doc.Body, doc.Summary, doc.EffectiveDate, doc.ExpiresAt, doc.IsActive, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create legal document: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, doc *models.LegalDocument) error {
	result, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE legal_documents SET is_active = $2, expires_at = $3 WHERE id = $1
	`, doc.ID.String(), doc.IsActive, doc.ExpiresAt)
	if err != nil {
		return fmt.Errorf("update legal document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update legal document rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// DeactivateAllVersions is the version-cut's first half: set is_active =
// false on every prior document of (docType, locale) in one statement, so
// it participates in the same transaction as the new version's INSERT.
func (s *PostgresStore) DeactivateAllVersions(ctx context.Context, docType, locale string) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE legal_documents SET is_active = false WHERE type = $1 AND locale = $2 AND is_active = true
	`, docType, locale)
	if err != nil {
		return fmt.Errorf("deactivate prior legal document versions: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, docType, locale string) ([]*models.LegalDocument, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, type, version, locale, service, country, title, body, summary,
			effective_date, expires_at, is_active, created_at
		FROM legal_documents WHERE type = $1 AND locale = $2
	`, docType, locale)
	if err != nil {
		return nil, fmt.Errorf("list legal documents: %w", err)
	}
	defer rows.Close()

	var out []*models.LegalDocument
	for rows.Next() {
		var doc models.LegalDocument
		var docID string
		if err := rows.Scan(
			&docID, &doc.Type, &doc.Version, &doc.Locale, &doc.Service, &doc.Country,
			&doc.Title, &doc.Body, &doc.Summary, &doc.EffectiveDate, &doc.ExpiresAt, &doc.IsActive, &doc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan legal document: %w", err)
		}
		parsed, err := id.ParseDocumentID(docID)
		if err != nil {
			return nil, fmt.Errorf("parse document id: %w", err)
		}
		doc.ID = parsed
		out = append(out, &doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveLaw(ctx context.Context, law *models.Law) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO laws (code, jurisdiction, country, effective_from, requirements)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (code) DO NOTHING
	`, law.Code, law.Jurisdiction, law.Country, law.EffectiveFrom, requirementsJSON(law))
	if err != nil {
		return fmt.Errorf("save law: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindLaw(ctx context.Context, code string) (*models.Law, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT code, jurisdiction, country, effective_from, requirements FROM laws WHERE code = $1
	`, code)
	law, err := scanLaw(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find law: %w", err)
	}
	return law, nil
}

func (s *PostgresStore) ListLawsByCountry(ctx context.Context, country string) ([]*models.Law, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT code, jurisdiction, country, effective_from, requirements
		FROM laws WHERE country = '' OR country = $1
	`, country)
	if err != nil {
		return nil, fmt.Errorf("list laws by country: %w", err)
	}
	defer rows.Close()

	var out []*models.Law
	for rows.Next() {
		law, err := scanLaw(rows)
		if err != nil {
			return nil, fmt.Errorf("scan law: %w", err)
		}
		out = append(out, law)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLaw(row rowScanner) (*models.Law, error) {
	var law models.Law
	var requirements []byte
	if err := row.Scan(&law.Code, &law.Jurisdiction, &law.Country, &law.EffectiveFrom, &requirements); err != nil {
		return nil, err
	}
	if err := unmarshalRequirements(requirements, &law.Requirements); err != nil {
		return nil, fmt.Errorf("unmarshal law requirements: %w", err)
	}
	return &law, nil
}

// requirementsJSON and unmarshalRequirements serialize LawRequirements as a
// single JSON column, the same way internal/sanction/store/store_postgres.go
// stores RestrictedFeatures/EvidenceURLs.
func requirementsJSON(law *models.Law) []byte {
	b, err := json.Marshal(law.Requirements)
	if err != nil {
		// LawRequirements is plain data (strings, ints, bools); marshaling
		// it can only fail on programmer error, never on live input.
		panic(fmt.Sprintf("marshal law requirements: %v", err))
	}
	return b
}

func unmarshalRequirements(data []byte, out *models.LawRequirements) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
