package profile

import (
	"math"
	"strings"

	"github.com/pavelanni/cqdrill/internal/model"
)

// Outcome returns the [0,1] value an item contributes to its skill, and
// false when the item carries no signal and must stay out of the average.
//
// mcq items count when their correctness is known, sjt items when both the
// chosen and the target letter are known. Otherwise a nonzero free-text score
// is used. Unknown item types with a signal count as 0.
func Outcome(it model.SessionItem) (float64, bool) {
	switch it.Type {
	case model.TypeMCQ:
		if it.IsCorrect != nil {
			return boolScore(*it.IsCorrect), true
		}
	case model.TypeSJT:
		chosen := strings.ToUpper(strings.TrimSpace(it.Chosen))
		best := strings.ToUpper(strings.TrimSpace(it.BestKey))
		if chosen != "" && best != "" {
			return boolScore(chosen == best), true
		}
	case model.TypeFreeText:
	default:
		if it.IsCorrect != nil || it.FreeTextScore > 0 {
			return 0, true
		}
		return 0, false
	}

	if it.FreeTextScore > 0 {
		return math.Min(it.FreeTextScore, 1), true
	}
	return 0, false
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// SkillScores averages item outcomes per skill, rounded to two decimals.
// Skills whose items all lack signal get no entry.
func SkillScores(items []model.SessionItem) map[string]float64 {
	scores, _ := skillScores(items)
	return scores
}

// skillScores also returns the skills in first-seen order.
func skillScores(items []model.SessionItem) (map[string]float64, []string) {
	sums := map[string]float64{}
	counts := map[string]int{}
	var order []string
	for _, it := range items {
		v, ok := Outcome(it)
		if !ok {
			continue
		}
		skill := model.NormalizeSkill(it.Skill)
		if _, seen := counts[skill]; !seen {
			order = append(order, skill)
		}
		sums[skill] += v
		counts[skill]++
	}

	scores := make(map[string]float64, len(order))
	for _, s := range order {
		scores[s] = round2(sums[s] / float64(counts[s]))
	}
	return scores, order
}

// Average is the mean of the per-skill scores, rounded to two decimals, or 0
// when there are none.
func Average(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return round2(sum / float64(len(scores)))
}

// Meta counts determinate outcomes: answered mcq items and sjt items whose
// target is known.
func Meta(items []model.SessionItem) model.ProfileMeta {
	var m model.ProfileMeta
	for _, it := range items {
		if it.Type != model.TypeMCQ && it.Type != model.TypeSJT {
			continue
		}
		v, ok := Outcome(it)
		if !ok || (it.Type == model.TypeSJT && it.BestKey == "") {
			continue
		}
		m.Total++
		if v == 1 {
			m.Correct++
		}
	}
	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
