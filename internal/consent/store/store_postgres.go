package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"credo/internal/consent/models"
	id "credo/pkg/domain"
	"credo/pkg/platform/sentinel"
	"credo/pkg/platform/tx"
)

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

const consentSelectColumns = `
	id, account_id, document_id, type, status, granted_at, withdrawn_at,
	expires_at, last_expiry_notice_date, ip_address, user_agent, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, c *models.Consent) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO consents (`+consentSelectColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		c.ID.String(), c.AccountID.String(), c.DocumentID.String(), c.Type, c.Status,
		c.GrantedAt, c.WithdrawnAt, c.ExpiresAt, c.LastExpiryNoticeDate,
		c.IPAddress, c.UserAgent, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, consentID id.ConsentID) (*models.Consent, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `SELECT `+consentSelectColumns+` FROM consents WHERE id = $1`, consentID.String())
	c, err := scanConsent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find consent: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Consent) error {
	result, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE consents SET status = $2, withdrawn_at = $3, expires_at = $4,
			last_expiry_notice_date = $5, updated_at = $6
		WHERE id = $1
	`, c.ID.String(), c.Status, c.WithdrawnAt, c.ExpiresAt, c.LastExpiryNoticeDate, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update consent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update consent rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindGranted(ctx context.Context, accountID id.UserID, documentID id.DocumentID) (*models.Consent, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT `+consentSelectColumns+` FROM consents
		WHERE account_id = $1 AND document_id = $2 AND status = 'GRANTED'
	`, accountID.String(), documentID.String())
	c, err := scanConsent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find granted consent: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountID id.UserID) ([]*models.Consent, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `SELECT `+consentSelectColumns+` FROM consents WHERE account_id = $1`, accountID.String())
	if err != nil {
		return nil, fmt.Errorf("list consents by account: %w", err)
	}
	defer rows.Close()
	return scanConsents(rows)
}

func (s *PostgresStore) ListExpiringSoon(ctx context.Context, now time.Time, window time.Duration) ([]*models.Consent, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT `+consentSelectColumns+` FROM consents
		WHERE status = 'GRANTED' AND expires_at > $1 AND expires_at <= $2
	`, now, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("list expiring-soon consents: %w", err)
	}
	defer rows.Close()
	return scanConsents(rows)
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time) ([]*models.Consent, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT `+consentSelectColumns+` FROM consents
		WHERE status = 'GRANTED' AND expires_at IS NOT NULL AND expires_at <= $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired consents: %w", err)
	}
	defer rows.Close()
	return scanConsents(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConsent(row rowScanner) (*models.Consent, error) {
	var c models.Consent
	var consentID, accountID, documentID string
	if err := row.Scan(
		&consentID, &accountID, &documentID, &c.Type, &c.Status, &c.GrantedAt, &c.WithdrawnAt,
		&c.ExpiresAt, &c.LastExpiryNoticeDate, &c.IPAddress, &c.UserAgent, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsedConsentID, err := id.ParseConsentID(consentID)
	if err != nil {
		return nil, fmt.Errorf("parse consent id: %w", err)
	}
	parsedAccountID, err := id.ParseUserID(accountID)
	if err != nil {
		return nil, fmt.Errorf("parse account id: %w", err)
	}
	parsedDocumentID, err := id.ParseDocumentID(documentID)
	if err != nil {
		return nil, fmt.Errorf("parse document id: %w", err)
	}
	c.ID = parsedConsentID
	c.AccountID = parsedAccountID
	c.DocumentID = parsedDocumentID
	return &c, nil
}

func scanConsents(rows *sql.Rows) ([]*models.Consent, error) {
	var out []*models.Consent
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
