package profile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/cqdrill/internal/grader"
	"github.com/pavelanni/cqdrill/internal/model"
)

func TestHistory(t *testing.T) {
	var h History
	assert.Nil(t, h.LastBatch())
	assert.Empty(t, h.All())
	assert.Zero(t, h.Len())

	first := []model.SessionItem{{QuestionID: "a"}, {QuestionID: "b"}}
	b1 := h.Append(first)
	b2 := h.Append([]model.SessionItem{{QuestionID: "c"}})

	assert.NotEqual(t, b1.ID, b2.ID)
	assert.Equal(t, 3, h.Len())
	assert.Len(t, h.Batches(), 2)
	assert.Equal(t, []model.SessionItem{{QuestionID: "c"}}, h.LastBatch())
	assert.Equal(t, "a", h.All()[0].QuestionID)
	assert.Equal(t, "c", h.All()[2].QuestionID)

	first[0].QuestionID = "changed"
	assert.Equal(t, "a", h.All()[0].QuestionID, "appended items are copied")
}

func TestItemsFromMCQ(t *testing.T) {
	questions := []model.Question{
		{ID: "q1", Skill: "要約", Tags: []string{"meeting"}, AnswerKey: "A"},
		{ID: "q2", Skill: "summary", AnswerKey: "B"},
	}
	results, _, _, err := grader.GradeMCQ(questions, []string{"a", ""})
	require.NoError(t, err)

	items, err := ItemsFromMCQ(questions, results)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.SkillSummary, items[0].Skill)
	assert.Equal(t, model.TypeMCQ, items[0].Type)
	require.NotNil(t, items[0].IsCorrect)
	assert.True(t, *items[0].IsCorrect)
	assert.Nil(t, items[1].IsCorrect)

	_, err = ItemsFromMCQ(questions, results[:1])
	assert.True(t, errors.Is(err, grader.ErrContractViolation))
}

func TestItemsFromSJT(t *testing.T) {
	questions := []model.Question{
		{ID: "s1", Skill: "状況判断", TargetKey: "c"},
		{ID: "s2", Skill: "状況判断"},
	}
	items, err := ItemsFromSJT(questions, []string{" c ", "x"}, []float64{0.7})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "C", items[0].Chosen)
	assert.Equal(t, "C", items[0].BestKey)
	assert.Equal(t, 0.7, items[0].FreeTextScore)
	assert.Equal(t, "", items[1].Chosen)
	assert.Equal(t, "", items[1].BestKey)
	assert.Zero(t, items[1].FreeTextScore)

	_, err = ItemsFromSJT(questions, []string{"A"}, nil)
	assert.ErrorIs(t, err, grader.ErrContractViolation)
}

func TestItemFromFreeText(t *testing.T) {
	q := model.Question{ID: "f1", Skill: "構成"}
	it := ItemFromFreeText(q, model.FreeTextEvaluation{ScoreTotal: 72})
	assert.Equal(t, model.TypeFreeText, it.Type)
	assert.Equal(t, model.SkillComposition, it.Skill)
	assert.InDelta(t, 0.72, it.FreeTextScore, 1e-9)

	assert.Equal(t, 1.0, FreeTextScore(model.FreeTextEvaluation{ScoreTotal: 150}))
	assert.Equal(t, 0.0, FreeTextScore(model.FreeTextEvaluation{ScoreTotal: -5}))
}
