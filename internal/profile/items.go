package profile

import (
	"fmt"

	"github.com/pavelanni/cqdrill/internal/grader"
	"github.com/pavelanni/cqdrill/internal/model"
)

// ItemsFromMCQ pairs graded mcq results with their questions.
func ItemsFromMCQ(questions []model.Question, results []model.AttemptResult) ([]model.SessionItem, error) {
	if len(questions) != len(results) {
		return nil, fmt.Errorf("%w: %d questions but %d results", grader.ErrContractViolation, len(questions), len(results))
	}
	items := make([]model.SessionItem, 0, len(questions))
	for i, q := range questions {
		r := results[i]
		items = append(items, model.SessionItem{
			QuestionID: q.ID,
			Type:       model.TypeMCQ,
			Skill:      model.NormalizeSkill(q.Skill),
			Tags:       q.Tags,
			IsCorrect:  r.IsCorrect,
			Chosen:     r.Chosen,
			CorrectKey: r.CorrectKey,
		})
	}
	return items, nil
}

// ItemsFromSJT builds sjt items. freeScores holds optional free-text scores
// in [0,1] and may be shorter than questions.
func ItemsFromSJT(questions []model.Question, chosen []string, freeScores []float64) ([]model.SessionItem, error) {
	if len(questions) != len(chosen) {
		return nil, fmt.Errorf("%w: %d questions but %d answers", grader.ErrContractViolation, len(questions), len(chosen))
	}
	items := make([]model.SessionItem, 0, len(questions))
	for i, q := range questions {
		it := model.SessionItem{
			QuestionID: q.ID,
			Type:       model.TypeSJT,
			Skill:      model.NormalizeSkill(q.Skill),
			Tags:       q.Tags,
			Chosen:     grader.NormalizeChoice(chosen[i]),
			BestKey:    q.BestKey(),
		}
		if i < len(freeScores) {
			it.FreeTextScore = freeScores[i]
		}
		items = append(items, it)
	}
	return items, nil
}

// ItemFromFreeText builds a free-text item; the 0-100 total becomes [0,1].
func ItemFromFreeText(q model.Question, eval model.FreeTextEvaluation) model.SessionItem {
	return model.SessionItem{
		QuestionID:    q.ID,
		Type:          model.TypeFreeText,
		Skill:         model.NormalizeSkill(q.Skill),
		Tags:          q.Tags,
		FreeTextScore: FreeTextScore(eval),
	}
}

// FreeTextScore maps an evaluation's total onto [0,1].
func FreeTextScore(eval model.FreeTextEvaluation) float64 {
	return float64(max(0, min(100, eval.ScoreTotal))) / 100
}
