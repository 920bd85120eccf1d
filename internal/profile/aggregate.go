// Package profile turns session outcomes into a skill profile: per-skill
// proficiency computed locally, plus narrative from a model or from rules.
package profile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/pavelanni/cqdrill/internal/i18n"
	"github.com/pavelanni/cqdrill/internal/llm"
	"github.com/pavelanni/cqdrill/internal/llm/prompts"
	"github.com/pavelanni/cqdrill/internal/metrics"
	"github.com/pavelanni/cqdrill/internal/model"
)

// ProfileSchema is the minimum a model response must satisfy to be used.
var ProfileSchema = &llm.Schema{
	Name: "skill-profile",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"skill_scores":       map[string]any{"type": "object"},
			"traits":             map[string]any{"type": []any{"array", "string", "null"}},
			"strengths":          map[string]any{"type": []any{"array", "string", "null"}},
			"weaknesses":         map[string]any{"type": []any{"array", "string", "null"}},
			"next_actions":       map[string]any{"type": []any{"array", "string", "null"}},
			"recommended_drills": map[string]any{"type": []any{"array", "null"}},
		},
		"required": []any{"skill_scores"},
	},
}

const purpose = "profile"

// Aggregator builds skill profiles.
type Aggregator struct {
	timeout  time.Duration
	logger   *slog.Logger
	recorder *metrics.Recorder
	catalog  i18n.Catalog
	provider llm.Provider
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout bounds each model call. Zero means no extra bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r *metrics.Recorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

// WithCatalog sets the language of rule-based narrative.
func WithCatalog(c i18n.Catalog) Option {
	return func(a *Aggregator) { a.catalog = c }
}

// New creates an Aggregator. A deterministic backend never calls out.
func New(backend llm.Backend, opts ...Option) *Aggregator {
	a := &Aggregator{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if backend.Kind() == llm.BackendRemote {
		a.provider = backend.Provider()
	}
	return a
}

// Aggregate builds a profile for items. precomputed, when non-empty, always
// becomes the profile's skill scores. meta may be nil. Model failures of any
// kind degrade to the rule-based profile.
func (a *Aggregator) Aggregate(ctx context.Context, items []model.SessionItem, precomputed map[string]float64, meta *model.ProfileMeta) model.SkillProfile {
	if len(items) == 0 {
		a.recorder.Profile("insufficient")
		return InsufficientData(a.catalog)
	}

	if a.provider != nil {
		p, err := a.modelProfile(ctx, items, precomputed, meta)
		if err == nil {
			a.recorder.Profile("model")
			return Reconcile(p, precomputed)
		}
		a.logger.WarnContext(ctx, "profile fell back to rules",
			"component", "profile", "reason", llm.Reason(err), "error", err)
		a.recorder.Fallback("profile", llm.Reason(err))
	}

	a.recorder.Profile("fallback")
	return Reconcile(Fallback(items, a.catalog), precomputed)
}

func (a *Aggregator) modelProfile(ctx context.Context, items []model.SessionItem, precomputed map[string]float64, meta *model.ProfileMeta) (model.SkillProfile, error) {
	system, err := prompts.ProfileSystem()
	if err != nil {
		return model.SkillProfile{}, err
	}
	user, err := prompts.BuildProfilePrompt(items, precomputed, meta)
	if err != nil {
		return model.SkillProfile{}, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	ctx = llm.WithPurpose(ctx, purpose)

	resp, err := a.provider.Generate(ctx, llm.Request{
		System:      system,
		User:        user,
		JSON:        true,
		MaxTokens:   1024,
		Temperature: 0.2,
	})
	if err != nil {
		return model.SkillProfile{}, err
	}
	a.logger.DebugContext(ctx, "profile response", "text", resp.Text)

	raw, err := llm.DecodeObject(resp.Text, ProfileSchema)
	if err != nil {
		return model.SkillProfile{}, err
	}
	return fromResponse(raw), nil
}

// fromResponse reads a schema-checked response into a SkillProfile, dropping
// values that cannot be coerced.
func fromResponse(raw map[string]any) model.SkillProfile {
	p := model.SkillProfile{
		SkillScores:       map[string]float64{},
		Traits:            dedupeCap(toStrings(raw["traits"]), maxListItems),
		Strengths:         dedupeCap(toStrings(raw["strengths"]), maxListItems),
		Weaknesses:        dedupeCap(toStrings(raw["weaknesses"]), maxListItems),
		NextActions:       dedupeCap(toStrings(raw["next_actions"]), maxListItems),
		RecommendedDrills: dedupeDrills(toDrills(raw["recommended_drills"]), maxDrills),
	}
	if scores, ok := raw["skill_scores"].(map[string]any); ok {
		for skill, v := range scores {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				continue
			}
			p.SkillScores[model.NormalizeSkill(skill)] = round2(max(0, min(1, f)))
		}
	}
	return p
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{strings.TrimSpace(t)}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, err := cast.ToStringE(e); err == nil {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

func toDrills(v any) []model.DrillRecommendation {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []model.DrillRecommendation
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		d := model.DrillRecommendation{
			Skill:     model.NormalizeSkill(cast.ToString(m["skill"])),
			Level:     strings.ToLower(strings.TrimSpace(cast.ToString(m["level"]))),
			Tags:      dedupeCap(toStrings(m["tags"]), maxDrillTags),
			Rationale: strings.TrimSpace(cast.ToString(m["rationale"])),
		}
		if d.Skill == "" {
			continue
		}
		out = append(out, d)
	}
	return out
}
