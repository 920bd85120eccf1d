// Package grader scores closed-form answers without any external calls.
package grader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pavelanni/cqdrill/internal/model"
)

// ErrContractViolation is returned when callers pass inconsistent inputs,
// such as parallel slices of different lengths.
var ErrContractViolation = errors.New("contract violation")

// Sentinel feedback for unanswered or unknown sjt choices.
const (
	NoAnswerType = "—"
	NoAnswerDesc = "回答なし"
)

// NormalizeChoice trims and upper-cases a chosen letter. Anything outside
// A-D becomes the empty string, meaning "no answer".
func NormalizeChoice(chosen string) string {
	k := strings.ToUpper(strings.TrimSpace(chosen))
	if !model.IsChoiceKey(k) {
		return ""
	}
	return k
}

// GradeMCQ grades multiple-choice answers. chosen[i] answers questions[i].
// Unanswered or malformed choices leave IsCorrect nil and do not count
// toward correct; total always equals len(questions).
func GradeMCQ(questions []model.Question, chosen []string) (results []model.AttemptResult, correct, total int, err error) {
	if len(questions) != len(chosen) {
		return nil, 0, 0, fmt.Errorf("%w: %d questions but %d answers", ErrContractViolation, len(questions), len(chosen))
	}

	results = make([]model.AttemptResult, 0, len(questions))
	for i, q := range questions {
		key := NormalizeChoice(chosen[i])
		answerKey := strings.ToUpper(strings.TrimSpace(q.AnswerKey))

		var ok *bool
		if answerKey != "" && key != "" {
			v := key == answerKey
			ok = &v
			if v {
				correct++
			}
		}

		// The explanation always describes the correct choice.
		var explanation string
		if answerKey != "" {
			explanation = q.Explanations[answerKey]
		}

		results = append(results, model.AttemptResult{
			QuestionID:  q.ID,
			Chosen:      key,
			IsCorrect:   ok,
			CorrectKey:  answerKey,
			Explanation: explanation,
		})
	}
	return results, correct, len(questions), nil
}

// GradeSJT returns the feedback attached to each chosen sjt option.
// Situational items are never right or wrong.
func GradeSJT(questions []model.Question, chosen []string) ([]model.SituationalFeedback, error) {
	if len(questions) != len(chosen) {
		return nil, fmt.Errorf("%w: %d questions but %d answers", ErrContractViolation, len(questions), len(chosen))
	}

	out := make([]model.SituationalFeedback, 0, len(questions))
	for i, q := range questions {
		key := NormalizeChoice(chosen[i])
		fb := model.Feedback{Type: NoAnswerType, Desc: NoAnswerDesc}
		if key != "" {
			if found, ok := q.Feedbacks[key]; ok {
				fb = found
				if fb.Type == "" {
					fb.Type = NoAnswerType
				}
				if fb.Desc == "" {
					fb.Desc = NoAnswerType
				}
			}
		}
		out = append(out, model.SituationalFeedback{
			QuestionID:   q.ID,
			Chosen:       key,
			FeedbackType: fb.Type,
			FeedbackDesc: fb.Desc,
		})
	}
	return out, nil
}
