package evaluator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/cqdrill/internal/model"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestNormalizePrimary(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.FreeTextEvaluation
	}{
		{
			name: "complete",
			raw:  `{"score_total":72,"subscores":{"context_fit":70,"interpersonal_sensitivity":80,"clarity":65},"short_feedback":" 良い ","next_drill":"次へ"}`,
			want: model.FreeTextEvaluation{
				ScoreTotal:    72,
				Subscores:     model.Subscores{ContextFit: 70, InterpersonalSensitivity: 80, Clarity: 65},
				ShortFeedback: "良い",
				NextDrill:     "次へ",
			},
		},
		{
			name: "nulls and blanks",
			raw:  `{"score_total":null,"subscores":{},"short_feedback":"  ","next_drill":null}`,
			want: model.FreeTextEvaluation{ShortFeedback: DefaultFeedback, NextDrill: DefaultNextDrill},
		},
		{
			name: "strings floats and clamping",
			raw:  `{"score_total":"85","subscores":{"context_fit":70.9,"interpersonal_sensitivity":150,"clarity":-5},"short_feedback":3,"next_drill":["x"]}`,
			want: model.FreeTextEvaluation{
				ScoreTotal:    85,
				Subscores:     model.Subscores{ContextFit: 70, InterpersonalSensitivity: 100, Clarity: 0},
				ShortFeedback: DefaultFeedback,
				NextDrill:     DefaultNextDrill,
			},
		},
		{
			name: "out of int range",
			raw:  `{"score_total":1e20,"subscores":{"context_fit":-1e20,"interpersonal_sensitivity":"1e30","clarity":1e19}}`,
			want: model.FreeTextEvaluation{
				ScoreTotal:    100,
				Subscores:     model.Subscores{ContextFit: 0, InterpersonalSensitivity: 100, Clarity: 100},
				ShortFeedback: DefaultFeedback,
				NextDrill:     DefaultNextDrill,
			},
		},
		{
			name: "unparseable number",
			raw:  `{"score_total":"high","subscores":"none"}`,
			want: model.FreeTextEvaluation{ShortFeedback: DefaultFeedback, NextDrill: DefaultNextDrill},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(decode(t, tt.raw)))
		})
	}
}

func TestNormalizeAlias(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.FreeTextEvaluation
	}{
		{
			name: "legacy keys",
			raw:  `{"score":55,"context":60,"empathy":40,"clarity":70,"comment":"具体的に","next":"もう一度"}`,
			want: model.FreeTextEvaluation{
				ScoreTotal:    55,
				Subscores:     model.Subscores{ContextFit: 60, InterpersonalSensitivity: 40, Clarity: 70},
				ShortFeedback: "具体的に",
				NextDrill:     "もう一度",
			},
		},
		{
			name: "falls through zero alias",
			raw:  `{"score":0,"context":0,"context_fit":45,"interpersonal_sensitivity":30,"short_feedback":"ok"}`,
			want: model.FreeTextEvaluation{
				Subscores:     model.Subscores{ContextFit: 45, InterpersonalSensitivity: 30},
				ShortFeedback: "ok",
				NextDrill:     AliasDefaultDrill,
			},
		},
		{
			name: "score_total without subscores uses aliases",
			raw:  `{"score_total":90,"score":20}`,
			want: model.FreeTextEvaluation{
				ScoreTotal:    20,
				ShortFeedback: AliasDefaultFeedback,
				NextDrill:     AliasDefaultDrill,
			},
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: model.FreeTextEvaluation{ShortFeedback: AliasDefaultFeedback, NextDrill: AliasDefaultDrill},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(decode(t, tt.raw)))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first := Normalize(decode(t, `{"score":"88","empathy":12.5,"comment":"x"}`))

	b, err := json.Marshal(first)
	require.NoError(t, err)
	second := Normalize(decode(t, string(b)))
	assert.Equal(t, first, second)
}
