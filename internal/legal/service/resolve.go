package service

import (
	"context"
	"time"

	"credo/internal/legal/models"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/requestcontext"
)

// ResolveParams narrows a document lookup. Country and Service are optional
// scoping filters; when a scoped match does not exist the fallback in
// Resolve widens the search rather than failing outright.
type ResolveParams struct {
	Type    string
	Locale  string
	Country string
	Service string
}

// Resolve returns the current (active, effective, unexpired) document for
// (Type, Locale), preferring the most specifically scoped match. Per §4.7
// the lookup is a two-step fallback: first retry with Locale="en" if the
// requested locale has no current document, then retry with Country and
// Service cleared (jurisdiction- and platform-wide document) if a scoped one
// still cannot be found. A document type with no current version at any
// fallback step is a hard error — callers must not silently proceed without
// a governing document.
func (s *Service) Resolve(ctx context.Context, p ResolveParams) (*models.LegalDocument, error) {
	now := requestcontext.Now(ctx)

	if doc := s.resolveAt(ctx, p, now); doc != nil {
		return doc, nil
	}

	if p.Locale != "en" {
		fallback := p
		fallback.Locale = "en"
		if doc := s.resolveAt(ctx, fallback, now); doc != nil {
			return doc, nil
		}
	}

	if p.Country != "" || p.Service != "" {
		fallback := p
		fallback.Country = ""
		fallback.Service = ""
		if doc := s.resolveAt(ctx, fallback, now); doc != nil {
			return doc, nil
		}

		if p.Locale != "en" {
			fallback.Locale = "en"
			if doc := s.resolveAt(ctx, fallback, now); doc != nil {
				return doc, nil
			}
		}
	}

	return nil, dErrors.New(dErrors.CodeNotFound,
		"no current legal document for type "+p.Type+" locale "+p.Locale)
}

// resolveAt finds the current document of exactly (p.Type, p.Locale) that
// also matches p.Country/p.Service scoping, if any. Among ties it prefers
// the document with the narrowest scope: one naming both country and
// service over one naming only one over one naming neither.
func (s *Service) resolveAt(ctx context.Context, p ResolveParams, now time.Time) *models.LegalDocument {
	docs, err := s.store.ListDocuments(ctx, p.Type, p.Locale)
	if err != nil {
		return nil
	}

	var best *models.LegalDocument
	bestScore := -1
	for _, doc := range docs {
		if !doc.IsCurrentAt(now) {
			continue
		}
		if doc.Country != "" && doc.Country != p.Country {
			continue
		}
		if doc.Service != "" && doc.Service != p.Service {
			continue
		}

		score := 0
		if doc.Country != "" {
			score++
		}
		if doc.Service != "" {
			score++
		}
		if best == nil || score > bestScore || (score == bestScore && doc.Version > best.Version) {
			best = doc
			bestScore = score
		}
	}
	return best
}
