package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"credo/internal/dsr/models"
	id "credo/pkg/domain"
	"credo/pkg/platform/sentinel"
	"credo/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresStore persists DSR requests and their audit log in PostgreSQL.
// Create/Update/AppendLog join the caller's transaction via
// pkg/platform/tx so a state transition and its audit row commit as a
// single unit (spec §5's linearizability guarantee for the DSRRequest
// aggregate).
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

const dsrSelectColumns = `
	id, account_id, type, status, priority, scope, legal_basis, deadline,
	extended_to, extended, escalation_level, escalated_at, assigned_to,
	processed_by, response_type, response_body, response_note,
	created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, r *models.DSRRequest) error {
	scope, err := json.Marshal(r.Scope)
	if err != nil {
		return fmt.Errorf("marshal dsr scope: %w", err)
	}
	_, err = s.querier(ctx).ExecContext(ctx, `
		INSERT INTO dsr_requests (`+dsrSelectColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`,
		r.ID.String(), r.AccountID.String(), r.Type, r.Status, r.Priority, scope,
		r.LegalBasis, r.Deadline, r.ExtendedTo, r.Extended, r.EscalationLevel, r.EscalatedAt,
		nullableID(r.AssignedTo), nullableID(r.ProcessedBy),
		r.ResponseType, r.ResponseBody, r.ResponseNote, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create dsr request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.DSRRequestID) (*models.DSRRequest, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT `+dsrSelectColumns+` FROM dsr_requests WHERE id = $1
	`, requestID.String())
	r, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find dsr request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.DSRRequest) error {
	scope, err := json.Marshal(r.Scope)
	if err != nil {
		return fmt.Errorf("marshal dsr scope: %w", err)
	}
	result, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE dsr_requests SET
			status = $2, priority = $3, scope = $4, deadline = $5, extended_to = $6,
			extended = $7, escalation_level = $8, escalated_at = $9, assigned_to = $10,
			processed_by = $11, response_type = $12, response_body = $13,
			response_note = $14, updated_at = $15
		WHERE id = $1
	`,
		r.ID.String(), r.Status, r.Priority, scope, r.Deadline, r.ExtendedTo,
		r.Extended, r.EscalationLevel, r.EscalatedAt, nullableID(r.AssignedTo),
		nullableID(r.ProcessedBy), r.ResponseType, r.ResponseBody, r.ResponseNote, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update dsr request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update dsr request rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountID id.UserID) ([]*models.DSRRequest, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT `+dsrSelectColumns+` FROM dsr_requests WHERE account_id = $1
	`, accountID.String())
	if err != nil {
		return nil, fmt.Errorf("list dsr requests by account: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

// ListOpen returns every request in {PENDING, VERIFIED, IN_PROGRESS} — the
// escalation sweep's candidate set (§4.9 explicitly excludes
// AWAITING_INFO and the terminal statuses).
func (s *PostgresStore) ListOpen(ctx context.Context) ([]*models.DSRRequest, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT `+dsrSelectColumns+` FROM dsr_requests
		WHERE status IN ($1,$2,$3)
	`, models.StatusPending, models.StatusVerified, models.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("list open dsr requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

// Summarize computes the §4.9 daily-summary counts with one aggregate
// query rather than loading every open row into memory.
func (s *PostgresStore) Summarize(ctx context.Context, now time.Time) (models.Summary, error) {
	var sum models.Summary
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE status = $1),
			count(*) FILTER (WHERE status = $2),
			count(*) FILTER (WHERE status NOT IN ($3,$4,$5) AND COALESCE(extended_to, deadline) - $6 <= interval '7 days' AND COALESCE(extended_to, deadline) > $6),
			count(*) FILTER (WHERE status NOT IN ($3,$4,$5) AND COALESCE(extended_to, deadline) <= $6)
		FROM dsr_requests
	`,
		models.StatusPending, models.StatusInProgress,
		models.StatusCompleted, models.StatusRejected, models.StatusCancelled,
		now,
	)
	if err := row.Scan(&sum.Pending, &sum.InProgress, &sum.Approaching, &sum.Overdue); err != nil {
		return models.Summary{}, fmt.Errorf("summarize dsr requests: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, logRow *models.DsrRequestLog) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO dsr_request_logs (id, request_id, action, operator_id, details, ip_address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		logRow.ID.String(), logRow.RequestID.String(), logRow.Action,
		nullableID(logRow.OperatorID), logRow.Details, logRow.IPAddress, logRow.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append dsr request log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, requestID id.DSRRequestID) ([]*models.DsrRequestLog, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, request_id, action, operator_id, details, ip_address, created_at
		FROM dsr_request_logs WHERE request_id = $1 ORDER BY created_at ASC
	`, requestID.String())
	if err != nil {
		return nil, fmt.Errorf("list dsr request logs: %w", err)
	}
	defer rows.Close()

	var out []*models.DsrRequestLog
	for rows.Next() {
		var l models.DsrRequestLog
		var logID, requestIDStr string
		var operatorID sql.NullString
		if err := rows.Scan(&logID, &requestIDStr, &l.Action, &operatorID, &l.Details, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dsr request log: %w", err)
		}
		parsedLogID, err := uuid.Parse(logID)
		if err != nil {
			return nil, fmt.Errorf("parse dsr request log id: %w", err)
		}
		l.ID = parsedLogID
		parsedRequestID, err := id.ParseDSRRequestID(requestIDStr)
		if err != nil {
			return nil, fmt.Errorf("parse dsr request id: %w", err)
		}
		l.RequestID = parsedRequestID
		if operatorID.Valid {
			opID, err := id.ParseOperatorID(operatorID.String)
			if err != nil {
				return nil, fmt.Errorf("parse dsr log operator id: %w", err)
			}
			l.OperatorID = opID
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.DSRRequest, error) {
	var r models.DSRRequest
	var requestID, accountID string
	var assignedTo, processedBy sql.NullString
	var scope []byte
	if err := row.Scan(
		&requestID, &accountID, &r.Type, &r.Status, &r.Priority, &scope,
		&r.LegalBasis, &r.Deadline, &r.ExtendedTo, &r.Extended, &r.EscalationLevel, &r.EscalatedAt,
		&assignedTo, &processedBy, &r.ResponseType, &r.ResponseBody, &r.ResponseNote,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsedID, err := id.ParseDSRRequestID(requestID)
	if err != nil {
		return nil, fmt.Errorf("parse dsr request id: %w", err)
	}
	r.ID = parsedID

	parsedAccount, err := id.ParseUserID(accountID)
	if err != nil {
		return nil, fmt.Errorf("parse dsr account id: %w", err)
	}
	r.AccountID = parsedAccount

	if len(scope) > 0 {
		if err := json.Unmarshal(scope, &r.Scope); err != nil {
			return nil, fmt.Errorf("unmarshal dsr scope: %w", err)
		}
	}
	if assignedTo.Valid {
		parsed, err := id.ParseOperatorID(assignedTo.String)
		if err != nil {
			return nil, fmt.Errorf("parse dsr assigned_to: %w", err)
		}
		r.AssignedTo = parsed
	}
	if processedBy.Valid {
		parsed, err := id.ParseOperatorID(processedBy.String)
		if err != nil {
			return nil, fmt.Errorf("parse dsr processed_by: %w", err)
		}
		r.ProcessedBy = parsed
	}
	return &r, nil
}

func scanRequests(rows *sql.Rows) ([]*models.DSRRequest, error) {
	var out []*models.DSRRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dsr request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// nullableID returns nil for a zero-value typed ID so optional FK columns
// (assigned_to, processed_by, operator_id) store SQL NULL rather than the
// zero UUID.
func nullableID(v interface{ IsNil() bool }) any {
	if v.IsNil() {
		return nil
	}
	return fmt.Sprint(v)
}
