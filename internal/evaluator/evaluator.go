// Package evaluator scores free-text answers, either through a model or
// through fixed lexicon rules. Evaluate always returns a complete result.
package evaluator

import (
	"context"
	"log/slog"
	"time"

	"github.com/pavelanni/cqdrill/internal/llm"
	"github.com/pavelanni/cqdrill/internal/llm/prompts"
	"github.com/pavelanni/cqdrill/internal/metrics"
	"github.com/pavelanni/cqdrill/internal/model"
)

// EvaluationSchema is the primary response shape. Responses that fail it are
// still normalized; the mismatch is only logged.
var EvaluationSchema = &llm.Schema{
	Name: "free-text-evaluation",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score_total": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"subscores": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"context_fit":               map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
					"interpersonal_sensitivity": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
					"clarity":                   map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				},
				"required": []any{"context_fit", "interpersonal_sensitivity", "clarity"},
			},
			"short_feedback": map[string]any{"type": "string"},
			"next_drill":     map[string]any{"type": "string"},
		},
		"required": []any{"score_total", "subscores", "short_feedback", "next_drill"},
	},
}

const purpose = "evaluate"

// scorer produces an evaluation for text that passed the length check.
type scorer func(ctx context.Context, scenario, text string) model.FreeTextEvaluation

// Evaluator scores free-text answers.
type Evaluator struct {
	timeout  time.Duration
	logger   *slog.Logger
	recorder *metrics.Recorder
	provider llm.Provider
	score    scorer
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout bounds each model call. Zero means no extra bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Evaluator) { e.recorder = r }
}

// New creates an Evaluator. The scoring path is fixed by backend here and
// never re-checked per call.
func New(backend llm.Backend, opts ...Option) *Evaluator {
	e := &Evaluator{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	switch backend.Kind() {
	case llm.BackendRemote:
		e.provider = backend.Provider()
		e.score = e.modelScore
	default:
		e.score = e.ruleScore
	}
	return e
}

// Evaluate scores text written in response to scenario. Text shorter than
// three characters after trimming gets zero scores without any model call.
func (e *Evaluator) Evaluate(ctx context.Context, scenario, text string) model.FreeTextEvaluation {
	if tooShort(text) {
		e.recorder.Evaluation("short")
		return shortAnswer()
	}
	return e.score(ctx, scenario, text)
}

func (e *Evaluator) ruleScore(_ context.Context, _, text string) model.FreeTextEvaluation {
	e.recorder.Evaluation("fallback")
	return Fallback(text)
}

func (e *Evaluator) modelScore(ctx context.Context, scenario, text string) model.FreeTextEvaluation {
	raw, err := e.callModel(ctx, scenario, text)
	if err != nil {
		e.logger.WarnContext(ctx, "free-text evaluation fell back to rules",
			"component", "evaluator", "reason", llm.Reason(err), "error", err)
		e.recorder.Fallback("evaluator", llm.Reason(err))
		return e.ruleScore(ctx, scenario, text)
	}

	if err := llm.ValidateObject(EvaluationSchema, raw); err != nil {
		e.logger.DebugContext(ctx, "evaluation response off primary shape", "error", err)
	}
	e.recorder.Evaluation("model")
	return Normalize(raw)
}

func (e *Evaluator) callModel(ctx context.Context, scenario, text string) (map[string]any, error) {
	system, err := prompts.EvaluationSystem()
	if err != nil {
		return nil, err
	}
	user, err := prompts.BuildEvaluationPrompt(scenario, text)
	if err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	ctx = llm.WithPurpose(ctx, purpose)

	resp, err := e.provider.Generate(ctx, llm.Request{
		System:      system,
		User:        user,
		JSON:        true,
		MaxTokens:   512,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "evaluation response", "text", resp.Text)
	return llm.DecodeObject(resp.Text, nil)
}
