// Package experiment implements the Experiment Resolver (C5): deterministic
// per-session assignment to an A/B variant, yielding the overrides C6 and
// C12 apply (§4.5).
package experiment

import (
	"context"
	"hash/fnv"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// enrollSalt and variantSalt keep the enrollment roll and the variant-pick
// roll statistically independent even though both hash the same
// sessionId/experimentId pair (§9).
const (
	enrollSalt  = "enroll"
	variantSalt = "variant"
)

// ExperimentStore is the persistence slice the resolver needs; satisfied
// by *store.ExperimentStore, narrowed here so tests can supply a fake.
type ExperimentStore interface {
	RunningForSite(ctx context.Context, siteURL string) ([]models.Experiment, error)
	AssignmentsForSession(ctx context.Context, sessionID string) ([]models.ExperimentAssignment, error)
	Assign(ctx context.Context, a models.ExperimentAssignment) error
}

// Resolver is the Experiment Resolver capability.
type Resolver struct {
	experiments ExperimentStore
	enabled     bool
}

// New builds a Resolver. enabled mirrors config's experiments.enabled; when
// false, Resolve always returns models.ExperimentOverrides{} (step 1).
func New(experiments ExperimentStore, enabled bool) *Resolver {
	return &Resolver{experiments: experiments, enabled: enabled}
}

// Resolve implements §4.5 steps 1-5. A zero-value ExperimentOverrides means
// "no override" (not enrolled, or experiments disabled, or no active
// experiment found).
func (r *Resolver) Resolve(ctx context.Context, siteURL, sessionID string) (models.ExperimentOverrides, error) {
	if !r.enabled {
		return models.ExperimentOverrides{}, nil
	}

	exp, found, err := r.activeExperiment(ctx, siteURL)
	if err != nil || !found {
		return models.ExperimentOverrides{}, err
	}

	existing, err := r.experiments.AssignmentsForSession(ctx, sessionID)
	if err != nil {
		return models.ExperimentOverrides{}, err
	}
	for _, a := range existing {
		if a.ExperimentID == exp.ID {
			return overridesFor(exp, a.VariantID), nil
		}
	}

	h := deterministicHash(sessionID, exp.ID, enrollSalt)
	if h >= exp.TrafficPercent/100 {
		return models.ExperimentOverrides{}, nil
	}

	variantID := pickVariant(exp.Variants, deterministicHash(sessionID, exp.ID, variantSalt))
	assignment := models.ExperimentAssignment{ExperimentID: exp.ID, SessionID: sessionID, VariantID: variantID}
	if err := r.experiments.Assign(ctx, assignment); err != nil {
		return models.ExperimentOverrides{}, err
	}

	return overridesFor(exp, variantID), nil
}

// activeExperiment picks the site-specific running experiment first, falling
// back to the global (siteUrl == "") one (§4.5 step 2).
func (r *Resolver) activeExperiment(ctx context.Context, siteURL string) (models.Experiment, bool, error) {
	candidates, err := r.experiments.RunningForSite(ctx, siteURL)
	if err != nil {
		return models.Experiment{}, false, err
	}
	var siteSpecific, global *models.Experiment
	for i := range candidates {
		c := candidates[i]
		if c.SiteURL == siteURL && siteURL != "" {
			siteSpecific = &c
		} else if c.SiteURL == "" && global == nil {
			global = &c
		}
	}
	if siteSpecific != nil {
		return *siteSpecific, true, nil
	}
	if global != nil {
		return *global, true, nil
	}
	return models.Experiment{}, false, nil
}

func overridesFor(exp models.Experiment, variantID string) models.ExperimentOverrides {
	for _, v := range exp.Variants {
		if v.ID == variantID {
			return models.ExperimentOverrides{
				ExperimentID:    exp.ID,
				VariantID:       v.ID,
				EvalEngine:      v.EvalEngine,
				ScoringConfigID: v.ScoringConfigID,
			}
		}
	}
	return models.ExperimentOverrides{ExperimentID: exp.ID, VariantID: variantID}
}

// pickVariant walks variants in declared order accumulating weight, choosing
// the first whose cumulative weight reaches h (§4.5 step 4).
func pickVariant(variants []models.ExperimentVariant, h float64) string {
	cumulative := 0.0
	for _, v := range variants {
		cumulative += v.Weight
		if cumulative >= h {
			return v.ID
		}
	}
	if len(variants) > 0 {
		return variants[len(variants)-1].ID
	}
	return ""
}

// deterministicHash returns a value in [0,1) derived from FNV-1a over
// sessionId + "/" + experimentId + "/" + salt (§9), so assignment is
// reproducible across implementations and test runs.
func deterministicHash(sessionID, experimentID, salt string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sessionID + "/" + experimentID + "/" + salt))
	sum := h.Sum64()
	return float64(sum) / float64(^uint64(0))
}
