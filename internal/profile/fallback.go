package profile

import (
	"github.com/pavelanni/cqdrill/internal/i18n"
	"github.com/pavelanni/cqdrill/internal/model"
)

// Score bands and per-skill thresholds of the rule engine.
const (
	highBand     = 0.75
	midBand      = 0.5
	weakSkill    = 0.6
	solidSkill   = 0.8
	maxListItems = 5
	maxDrills    = 3
	maxDrillTags = 3
)

// GenericDrillSkill names the advanced drill emitted when no skill needs work.
const GenericDrillSkill = "all"

// skillRules adds a weakness and a next action for a skill below weakSkill.
var skillRules = []struct {
	skill, weakness, action string
}{
	{model.SkillSummary, "WeaknessSummary", "ActionSummary"},
	{model.SkillComposition, "WeaknessComposition", "ActionComposition"},
	{model.SkillSituationalJudgment, "WeaknessSituational", "ActionSituational"},
}

// InsufficientData is the profile for an empty session.
func InsufficientData(cat i18n.Catalog) model.SkillProfile {
	return model.SkillProfile{
		SkillScores:       map[string]float64{},
		Traits:            []string{cat.T("TraitInsufficientData")},
		Strengths:         []string{},
		Weaknesses:        []string{},
		NextActions:       []string{cat.T("ActionAnswerMore")},
		RecommendedDrills: []model.DrillRecommendation{},
	}
}

// Fallback builds a profile from items with fixed rules.
func Fallback(items []model.SessionItem, cat i18n.Catalog) model.SkillProfile {
	if len(items) == 0 {
		return InsufficientData(cat)
	}

	scores, order := skillScores(items)
	avg := Average(scores)

	var traits, strengths, weaknesses, actions []string
	switch {
	case avg >= highBand:
		traits = append(traits, cat.T("TraitHigh"))
		strengths = append(strengths, cat.T("StrengthHigh"))
		actions = append(actions, cat.T("ActionHigh"))
	case avg >= midBand:
		traits = append(traits, cat.T("TraitMid"))
		weaknesses = append(weaknesses, cat.T("WeaknessMid"))
		actions = append(actions, cat.T("ActionMid"))
	default:
		traits = append(traits, cat.T("TraitLow"))
		weaknesses = append(weaknesses, cat.T("WeaknessLow"))
		actions = append(actions, cat.T("ActionLow"))
	}

	for _, r := range skillRules {
		if v, ok := scores[r.skill]; ok && v < weakSkill {
			weaknesses = append(weaknesses, cat.T(r.weakness))
			actions = append(actions, cat.T(r.action))
		}
	}

	tags := skillTags(items)
	var drills []model.DrillRecommendation
	for _, skill := range order {
		v := scores[skill]
		switch {
		case v < weakSkill:
			drills = append(drills, model.DrillRecommendation{
				Skill: skill, Level: model.LevelBeginner, Tags: tags[skill], Rationale: cat.T("DrillBeginner"),
			})
		case v < solidSkill:
			drills = append(drills, model.DrillRecommendation{
				Skill: skill, Level: model.LevelIntermediate, Tags: tags[skill], Rationale: cat.T("DrillIntermediate"),
			})
		}
	}
	if len(drills) == 0 {
		drills = append(drills, model.DrillRecommendation{
			Skill: GenericDrillSkill, Level: model.LevelAdvanced, Tags: []string{}, Rationale: cat.T("DrillAdvanced"),
		})
	}

	return model.SkillProfile{
		SkillScores:       scores,
		Traits:            dedupeCap(traits, maxListItems),
		Strengths:         dedupeCap(strengths, maxListItems),
		Weaknesses:        dedupeCap(weaknesses, maxListItems),
		NextActions:       dedupeCap(actions, maxListItems),
		RecommendedDrills: dedupeDrills(drills, maxDrills),
	}
}

// skillTags collects each skill's item tags in first-seen order.
func skillTags(items []model.SessionItem) map[string][]string {
	out := map[string][]string{}
	for _, it := range items {
		skill := model.NormalizeSkill(it.Skill)
		out[skill] = append(out[skill], it.Tags...)
	}
	for skill, tags := range out {
		out[skill] = dedupeCap(tags, maxDrillTags)
	}
	return out
}

// dedupeCap drops empty and repeated entries, keeping first-seen order, and
// truncates to limit. The result is never nil.
func dedupeCap(list []string, limit int) []string {
	out := make([]string, 0, min(len(list), limit))
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func dedupeDrills(list []model.DrillRecommendation, limit int) []model.DrillRecommendation {
	out := make([]model.DrillRecommendation, 0, min(len(list), limit))
	seen := map[string]bool{}
	for _, d := range list {
		key := d.Skill + "\x00" + d.Level
		if seen[key] {
			continue
		}
		seen[key] = true
		if d.Tags == nil {
			d.Tags = []string{}
		}
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out
}
