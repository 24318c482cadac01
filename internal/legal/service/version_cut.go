package service

import (
	"context"
	"database/sql"
	"time"

	"credo/internal/legal/models"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/tx"
)

// NewVersionParams describes the document a version-cut publishes.
type NewVersionParams struct {
	Type    string
	Locale  string
	Service string
	Country string

	Title   string
	Body    string
	Summary string

	EffectiveDate time.Time
	ExpiresAt     *time.Time
}

// CreateVersion publishes a new document version, deactivating every prior
// version of the same (Type, Locale) atomically (§4.7). Against Postgres
// this runs inside a SERIALIZABLE transaction so a concurrent version-cut on
// the same (Type, Locale) cannot interleave; a serialization failure is
// retried with the schedule in §5 before giving up.
func (s *Service) CreateVersion(ctx context.Context, p NewVersionParams) (*models.LegalDocument, error) {
	version := id.NewDocumentID()
	now := time.Now().UTC()
	doc := &models.LegalDocument{
		ID:            version,
		Type:          p.Type,
		Locale:        p.Locale,
		Service:       p.Service,
		Country:       p.Country,
		Title:         p.Title,
		Body:          p.Body,
		Summary:       p.Summary,
		EffectiveDate: p.EffectiveDate,
		ExpiresAt:     p.ExpiresAt,
		IsActive:      true,
		CreatedAt:     now,
	}

	if s.beginner == nil {
		// No transactional boundary (in-memory store in tests): emulate the
		// version-cut without SERIALIZABLE, accepting the tiny non-atomic
		// window since there is no concurrent writer in-process.
		cutStore, ok := s.store.(versionCutStore)
		if ok {
			if err := cutStore.DeactivateAllVersions(ctx, p.Type, p.Locale); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "deactivate prior versions")
			}
		} else if err := s.deactivateAllVersionsGeneric(ctx, p.Type, p.Locale); err != nil {
			return nil, err
		}
		if err := s.store.CreateDocument(ctx, doc); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create legal document")
		}
		return doc, nil
	}

	var versionedDoc *models.LegalDocument
	err := s.runSerializable(ctx, func(txCtx context.Context) error {
		cutStore, ok := s.store.(versionCutStore)
		if !ok {
			return dErrors.New(dErrors.CodeInternal, "store does not support version-cut deactivation")
		}
		if err := cutStore.DeactivateAllVersions(txCtx, p.Type, p.Locale); err != nil {
			return err
		}
		if err := s.store.CreateDocument(txCtx, doc); err != nil {
			return err
		}
		versionedDoc = doc
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create legal document version")
	}
	return versionedDoc, nil
}

// deactivateAllVersionsGeneric is the fallback for a Store that implements
// neither versionCutStore nor a transactional boundary: it reads, mutates,
// and writes back each prior version individually.
func (s *Service) deactivateAllVersionsGeneric(ctx context.Context, docType, locale string) error {
	docs, err := s.store.ListDocuments(ctx, docType, locale)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list prior versions")
	}
	for _, doc := range docs {
		if !doc.IsActive {
			continue
		}
		doc.IsActive = false
		if err := s.store.UpdateDocument(ctx, doc); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "deactivate prior version")
		}
	}
	return nil
}

// runSerializable runs fn inside a SERIALIZABLE transaction, retrying on
// SQLSTATE 40001 per the §5 schedule: base=100ms, factor=2, cap=3s,
// maxRetries=3.
func (s *Service) runSerializable(ctx context.Context, fn func(txCtx context.Context) error) error {
	delay := versionCutBaseDelay
	var lastErr error

	for attempt := 0; attempt <= versionCutMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
			if delay > versionCutMaxDelay {
				delay = versionCutMaxDelay
			}
		}

		err := s.attemptSerializable(ctx, fn)
		if err == nil {
			return nil
		}
		if !serializationFailure(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Service) attemptSerializable(ctx context.Context, fn func(txCtx context.Context) error) error {
	sqlTx, err := s.beginner.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	txCtx := tx.WithTx(ctx, sqlTx)
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
