package drill

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/cqdrill/internal/model"
	"github.com/pavelanni/cqdrill/internal/store"
)

type fakeSupply struct {
	questions []model.Question
	filters   []store.Filter
	limits    []int
	err       error
}

func (f *fakeSupply) Fetch(filter store.Filter, limit int) ([]model.Question, error) {
	f.filters = append(f.filters, filter)
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Question
	for _, q := range f.questions {
		if filter.Skill == "" || q.Skill == filter.Skill {
			out = append(out, q)
		}
	}
	return out, nil
}

func q(id, skill string, typ model.ItemType, tags ...string) model.Question {
	return model.Question{ID: id, Skill: skill, Type: typ, Tags: tags}
}

func ids(qs []model.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func bank() *fakeSupply {
	return &fakeSupply{questions: []model.Question{
		q("s1", model.SkillSummary, model.TypeMCQ, "meeting"),
		q("s2", model.SkillSummary, model.TypeMCQ, "friend"),
		q("s3", model.SkillSummary, model.TypeMCQ, "office", "daily"),
		q("s4", model.SkillSummary, model.TypeSJT, "meeting"),
		q("s5", model.SkillSummary, model.TypeFreeText, "deadline"),
		q("j1", model.SkillSituationalJudgment, model.TypeSJT, "team"),
		q("j2", model.SkillSituationalJudgment, model.TypeMCQ, "team"),
		q("j3", model.SkillSituationalJudgment, model.TypeSJT, "家族"),
	}}
}

func TestNextFiltersByDomainAndType(t *testing.T) {
	tests := []struct {
		name   string
		skill  string
		domain string
		want   int
		ids    []string
	}{
		{"business summary", "要約", "business", 3, []string{"s1", "s3", "s5"}},
		{"daily summary", model.SkillSummary, "日常", 3, []string{"s2", "s3"}},
		{"no domain", model.SkillSummary, "", 10, []string{"s1", "s2", "s3", "s5"}},
		{"sjt only for situational judgment", "状況判断", "ビジネス", 5, []string{"j1"}},
		{"capped at want", model.SkillSummary, "", 1, []string{"s1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPicker(bank(), 0)
			b, err := p.Next(tt.skill, tt.domain, tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.ids, ids(b.Questions))
		})
	}
}

func TestNextSkipsSeenUntilSelectionChanges(t *testing.T) {
	p := NewPicker(bank(), 0)

	first, err := p.Next(model.SkillSummary, DomainBusiness, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3"}, ids(first.Questions))
	assert.False(t, first.Short())

	second, err := p.Next(model.SkillSummary, DomainBusiness, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"s5"}, ids(second.Questions))
	assert.True(t, second.Short())

	_, err = p.Next(model.SkillSummary, DomainDaily, 2)
	require.NoError(t, err)

	again, err := p.Next(model.SkillSummary, DomainBusiness, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3"}, ids(again.Questions), "domain change resets seen ids")
}

func TestNextShortage(t *testing.T) {
	p := NewPicker(&fakeSupply{}, 0)
	b, err := p.Next(model.SkillComposition, "", 0)
	require.NoError(t, err)
	assert.Empty(t, b.Questions)
	assert.Equal(t, DefaultBatchSize, b.Want)
	assert.True(t, b.Short())
}

func TestNextCapsWantAtCandidateLimit(t *testing.T) {
	p := NewPicker(bank(), 3)
	b, err := p.Next(model.SkillSummary, "", 1<<50)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Want)
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids(b.Questions))
	assert.False(t, b.Short())
}

func TestNextRequestsCandidates(t *testing.T) {
	supply := bank()
	p := NewPicker(supply, 50)
	_, err := p.Next("意図理解", "", 0)
	require.NoError(t, err)
	require.Len(t, supply.filters, 1)
	assert.Equal(t, model.SkillIntentReading, supply.filters[0].Skill)
	assert.Equal(t, 50, supply.limits[0])
}

func TestNextErrors(t *testing.T) {
	p := NewPicker(bank(), 0)
	_, err := p.Next(model.SkillSummary, "space", 2)
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	boom := errors.New("db down")
	p = NewPicker(&fakeSupply{err: boom}, 0)
	_, err = p.Next(model.SkillSummary, "", 2)
	assert.ErrorIs(t, err, boom)
}

func TestReset(t *testing.T) {
	p := NewPicker(bank(), 0)
	_, err := p.Next(model.SkillSummary, "", 4)
	require.NoError(t, err)
	p.Reset()
	b, err := p.Next(model.SkillSummary, "", 4)
	require.NoError(t, err)
	assert.Len(t, b.Questions, 4)
}
