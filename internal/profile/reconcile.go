package profile

import (
	"maps"

	"github.com/pavelanni/cqdrill/internal/model"
)

// Reconcile replaces p's skill scores with precomputed when precomputed is
// non-empty. Narrative fields are kept.
func Reconcile(p model.SkillProfile, precomputed map[string]float64) model.SkillProfile {
	if len(precomputed) == 0 {
		return p
	}
	p.SkillScores = maps.Clone(precomputed)
	return p
}
