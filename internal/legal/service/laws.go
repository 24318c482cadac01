package service

import (
	"context"
	"errors"
	"time"

	"credo/internal/legal/models"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/sentinel"
)

// seedLaws are the jurisdictions the registry must carry on first boot
// (§4.7): South Korea's PIPA, the EU's GDPR, Japan's APPI, and California's
// CCPA. SeedLaws is idempotent — a law already present is left untouched,
// so re-running it on every boot is safe.
func seedLaws(effectiveFrom time.Time) []*models.Law {
	return []*models.Law{
		{
			Code:          models.LawPIPAKoreaCode,
			Jurisdiction:  "KR",
			Country:       "KR",
			EffectiveFrom: effectiveFrom,
			Requirements: models.LawRequirements{
				Required: []models.ConsentType{"TERMS_OF_SERVICE", "PRIVACY_POLICY"},
				Optional: []models.ConsentType{"MARKETING"},
				Rules: models.SpecialRules{
					DataRetentionDays:  365,
					MinAge:             14,
					ParentalConsentAge: 14,
				},
			},
		},
		{
			Code:          models.LawGDPREUCode,
			Jurisdiction:  "EU",
			Country:       "",
			EffectiveFrom: effectiveFrom,
			Requirements: models.LawRequirements{
				Required: []models.ConsentType{"TERMS_OF_SERVICE", "PRIVACY_POLICY"},
				Optional: []models.ConsentType{"MARKETING", "ANALYTICS"},
				Rules: models.SpecialRules{
					DataRetentionDays:   365,
					MinAge:              16,
					ParentalConsentAge:  16,
					CrossBorderExplicit: true,
				},
			},
		},
		{
			Code:          models.LawAPPIJapanCode,
			Jurisdiction:  "JP",
			Country:       "JP",
			EffectiveFrom: effectiveFrom,
			Requirements: models.LawRequirements{
				Required: []models.ConsentType{"TERMS_OF_SERVICE", "PRIVACY_POLICY"},
				Optional: []models.ConsentType{"MARKETING"},
				Rules: models.SpecialRules{
					DataRetentionDays:    180,
					NightPushWindowStart: "21:00",
					NightPushWindowEnd:   "08:00",
				},
			},
		},
		{
			Code:          models.LawCCPACode,
			Jurisdiction:  "US",
			Country:       "US",
			EffectiveFrom: effectiveFrom,
			Requirements: models.LawRequirements{
				Required: []models.ConsentType{"PRIVACY_POLICY"},
				Optional: []models.ConsentType{"MARKETING", "ANALYTICS", "DATA_SALE_OPT_OUT"},
				Rules: models.SpecialRules{
					DataRetentionDays: 365,
				},
			},
		},
	}
}

// SeedLaws writes every registry law that does not already exist. Safe to
// call on every boot: each law is looked up by code first and skipped if
// present, so a prior deployment's edits to a law's requirements are never
// clobbered.
func (s *Service) SeedLaws(ctx context.Context, now time.Time) error {
	for _, law := range seedLaws(now) {
		_, err := s.store.FindLaw(ctx, law.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "check existing law "+law.Code)
		}
		if err := s.store.SaveLaw(ctx, law); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "seed law "+law.Code)
		}
	}
	return nil
}

// Law returns one registry law by code, translating a missing law into a
// CodeNotFound domain error.
func (s *Service) Law(ctx context.Context, code string) (*models.Law, error) {
	return s.loadLaw(ctx, code)
}

// ConsentRequirements is the union of every active law's consent
// requirements for a country, deduped by consent type. A type required by
// any one law is required overall, even if another law in the same country
// only lists it as optional.
type ConsentRequirements struct {
	Required []models.ConsentType
	Optional []models.ConsentType
}

// ConsentRequirementsForCountry unions the consent requirements of every
// law that applies to country (jurisdiction-wide laws with no single country
// match too), deduplicating by consent type with "required" winning ties.
func (s *Service) ConsentRequirementsForCountry(ctx context.Context, country string) (*ConsentRequirements, error) {
	laws, err := s.store.ListLawsByCountry(ctx, country)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list laws for country "+country)
	}

	required := make(map[models.ConsentType]struct{})
	optional := make(map[models.ConsentType]struct{})
	for _, law := range laws {
		for _, t := range law.Requirements.Required {
			required[t] = struct{}{}
		}
		for _, t := range law.Requirements.Optional {
			optional[t] = struct{}{}
		}
	}
	// A type required by one law outranks another law merely listing it
	// as optional.
	for t := range required {
		delete(optional, t)
	}

	out := &ConsentRequirements{}
	for t := range required {
		out.Required = append(out.Required, t)
	}
	for t := range optional {
		out.Optional = append(out.Optional, t)
	}
	return out, nil
}
