package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavelanni/cqdrill/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func TestOutcome(t *testing.T) {
	tests := []struct {
		name   string
		item   model.SessionItem
		want   float64
		wantOK bool
	}{
		{name: "mcq correct", item: model.SessionItem{Type: model.TypeMCQ, IsCorrect: boolPtr(true)}, want: 1, wantOK: true},
		{name: "mcq wrong", item: model.SessionItem{Type: model.TypeMCQ, IsCorrect: boolPtr(false)}, want: 0, wantOK: true},
		{name: "mcq unanswered", item: model.SessionItem{Type: model.TypeMCQ}, wantOK: false},
		{name: "sjt match", item: model.SessionItem{Type: model.TypeSJT, Chosen: "b", BestKey: "B"}, want: 1, wantOK: true},
		{name: "sjt miss", item: model.SessionItem{Type: model.TypeSJT, Chosen: "A", BestKey: "B"}, want: 0, wantOK: true},
		{name: "sjt no target uses free score", item: model.SessionItem{Type: model.TypeSJT, Chosen: "A", FreeTextScore: 0.7}, want: 0.7, wantOK: true},
		{name: "sjt no signal", item: model.SessionItem{Type: model.TypeSJT, Chosen: "A"}, wantOK: false},
		{name: "free text", item: model.SessionItem{Type: model.TypeFreeText, FreeTextScore: 0.45}, want: 0.45, wantOK: true},
		{name: "free text above range", item: model.SessionItem{Type: model.TypeFreeText, FreeTextScore: 3}, want: 1, wantOK: true},
		{name: "free text zero", item: model.SessionItem{Type: model.TypeFreeText}, wantOK: false},
		{name: "unknown with signal", item: model.SessionItem{Type: "essay", FreeTextScore: 0.9}, want: 0, wantOK: true},
		{name: "unknown without signal", item: model.SessionItem{Type: "essay"}, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Outcome(tt.item)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSkillScores(t *testing.T) {
	items := []model.SessionItem{
		{Type: model.TypeMCQ, Skill: "summary", IsCorrect: boolPtr(true)},
		{Type: model.TypeMCQ, Skill: " summary ", IsCorrect: boolPtr(false)},
		{Type: model.TypeMCQ, Skill: "summary", IsCorrect: boolPtr(true)},
		{Type: model.TypeSJT, Skill: "状況判断", Chosen: "C", BestKey: "C"},
		{Type: model.TypeFreeText, Skill: "composition"},
	}

	got := SkillScores(items)
	assert.Equal(t, map[string]float64{"summary": 0.67, "situational-judgment": 1}, got)
}

func TestSkillScoresExcludesNoSignal(t *testing.T) {
	items := []model.SessionItem{
		{Type: model.TypeFreeText, Skill: "composition", FreeTextScore: 0.8},
		{Type: model.TypeSJT, Skill: "composition", Chosen: "A"},
	}
	assert.Equal(t, map[string]float64{"composition": 0.8}, SkillScores(items))
}

func TestAverage(t *testing.T) {
	assert.Equal(t, 0.0, Average(nil))
	assert.Equal(t, 0.56, Average(map[string]float64{"a": 0.67, "b": 0.45}))
}

func TestMeta(t *testing.T) {
	items := []model.SessionItem{
		{Type: model.TypeMCQ, IsCorrect: boolPtr(true)},
		{Type: model.TypeMCQ, IsCorrect: boolPtr(false)},
		{Type: model.TypeMCQ},
		{Type: model.TypeSJT, Chosen: "A", BestKey: "A"},
		{Type: model.TypeSJT, Chosen: "A", FreeTextScore: 1},
		{Type: model.TypeFreeText, FreeTextScore: 1},
	}
	assert.Equal(t, model.ProfileMeta{Correct: 2, Total: 3}, Meta(items))
}

func TestReconcile(t *testing.T) {
	p := model.SkillProfile{SkillScores: map[string]float64{"summary": 0.9}, Traits: []string{"x"}}

	assert.Equal(t, p, Reconcile(p, nil))

	pre := map[string]float64{"summary": 0.42}
	got := Reconcile(p, pre)
	assert.Equal(t, map[string]float64{"summary": 0.42}, got.SkillScores)
	assert.Equal(t, []string{"x"}, got.Traits)

	pre["summary"] = 0
	assert.Equal(t, 0.42, got.SkillScores["summary"], "reconciled scores must not alias the input map")
}
