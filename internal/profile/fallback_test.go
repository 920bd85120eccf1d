package profile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/cqdrill/internal/i18n"
	"github.com/pavelanni/cqdrill/internal/model"
)

func enCatalog(t *testing.T) i18n.Catalog {
	t.Helper()
	return i18n.NewCatalog("en")
}

func mcq(skill string, correct bool, tags ...string) model.SessionItem {
	return model.SessionItem{Type: model.TypeMCQ, Skill: skill, IsCorrect: boolPtr(correct), Tags: tags}
}

func TestFallbackInsufficientData(t *testing.T) {
	got := Fallback(nil, enCatalog(t))
	assert.Empty(t, got.SkillScores)
	assert.NotNil(t, got.SkillScores)
	assert.Equal(t, []string{"insufficient data"}, got.Traits)
	assert.Equal(t, []string{"Answer at least 3 items first."}, got.NextActions)
	assert.Empty(t, got.RecommendedDrills)
}

func TestFallbackHighBand(t *testing.T) {
	items := []model.SessionItem{mcq("summary", true), mcq("composition", true)}
	got := Fallback(items, enCatalog(t))

	assert.Equal(t, []string{"stable high accuracy"}, got.Traits)
	assert.Equal(t, []string{"consistent extraction and selection"}, got.Strengths)
	assert.Empty(t, got.Weaknesses)
	require.Len(t, got.RecommendedDrills, 1)
	assert.Equal(t, model.DrillRecommendation{
		Skill: GenericDrillSkill, Level: model.LevelAdvanced, Tags: []string{}, Rationale: "verify stability at high difficulty",
	}, got.RecommendedDrills[0])
}

func TestFallbackMidBandWithSkillRules(t *testing.T) {
	items := []model.SessionItem{
		mcq("summary", true, "meeting"),
		mcq("summary", false, "meeting", "deadline"),
		mcq("composition", true),
		mcq("composition", true),
		mcq("composition", false),
	}
	got := Fallback(items, enCatalog(t))

	assert.Equal(t, map[string]float64{"summary": 0.5, "composition": 0.67}, got.SkillScores)
	assert.Equal(t, []string{"stable basics with situational variance"}, got.Traits)
	assert.Equal(t, []string{
		"conclusion-first structure and evidence are not specific enough",
		"easily distracted by secondary information",
	}, got.Weaknesses)
	assert.Len(t, got.NextActions, 2)
	assert.Equal(t, []model.DrillRecommendation{
		{Skill: "summary", Level: model.LevelBeginner, Tags: []string{"meeting", "deadline"}, Rationale: "consolidate basic patterns"},
		{Skill: "composition", Level: model.LevelIntermediate, Tags: []string{}, Rationale: "reinforce applied patterns"},
	}, got.RecommendedDrills)
}

func TestFallbackLowBand(t *testing.T) {
	items := []model.SessionItem{
		mcq("summary", false),
		mcq("composition", false),
		{Type: model.TypeSJT, Skill: "situational-judgment", Chosen: "A", BestKey: "B"},
	}
	got := Fallback(items, enCatalog(t))

	assert.Equal(t, []string{"gaps in fundamentals"}, got.Traits)
	assert.Equal(t, []string{
		"insufficient grasp of each item's intent and premises",
		"easily distracted by secondary information",
		"weak conclusion-first logical flow",
		"counterpart constraints are not taken into account",
	}, got.Weaknesses)
	assert.Len(t, got.NextActions, 4)
	assert.Len(t, got.RecommendedDrills, 3)
	for _, d := range got.RecommendedDrills {
		assert.Equal(t, model.LevelBeginner, d.Level)
	}
}

func TestFallbackOnlyNoSignalItems(t *testing.T) {
	items := []model.SessionItem{{Type: model.TypeFreeText, Skill: "composition"}}
	got := Fallback(items, enCatalog(t))
	assert.Empty(t, got.SkillScores)
	assert.Equal(t, []string{"gaps in fundamentals"}, got.Traits)
	require.Len(t, got.RecommendedDrills, 1)
	assert.Equal(t, model.LevelAdvanced, got.RecommendedDrills[0].Level)
}

func TestFallbackCapsDrills(t *testing.T) {
	var items []model.SessionItem
	for i := range 5 {
		items = append(items, mcq(fmt.Sprintf("skill-%d", i), false))
	}
	got := Fallback(items, enCatalog(t))
	require.Len(t, got.RecommendedDrills, 3)
	assert.Equal(t, "skill-0", got.RecommendedDrills[0].Skill)
	assert.Equal(t, "skill-2", got.RecommendedDrills[2].Skill)
}

func TestDedupeCap(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupeCap([]string{"a", "", "a", "b"}, 5))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, dedupeCap([]string{"1", "2", "3", "4", "5", "6"}, 5))
	assert.NotNil(t, dedupeCap(nil, 5))
}
