package llm

import (
	"context"
)

// Provider is the text-generation capability: send a system and a user
// instruction, receive text. Implementations may fail for any transport
// reason; callers treat every failure the same way.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the model.
type Request struct {
	// System sets the model's role and output contract.
	System string

	// User is the single user turn.
	User string

	// JSON asks the provider to use its native JSON output mode when it has one.
	JSON bool

	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	Temperature float64
}

// Response holds the model's output.
type Response struct {
	// Text is the raw text returned by the model. It may contain prose
	// around a JSON object; see ExtractJSONObject.
	Text string

	Usage Usage

	// Model is the actual model that served the request.
	Model string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// BackendKind names the evaluation strategy.
type BackendKind string

const (
	// BackendRemote calls a model and degrades to the deterministic rules on failure.
	BackendRemote BackendKind = "remote"
	// BackendDeterministic never calls out.
	BackendDeterministic BackendKind = "deterministic"
)

// Backend is chosen once at startup and injected into the evaluator and the
// profile aggregator.
type Backend struct {
	kind     BackendKind
	provider Provider
}

// Remote returns a model-backed Backend. A nil provider yields Deterministic.
func Remote(p Provider) Backend {
	if p == nil {
		return Deterministic()
	}
	return Backend{kind: BackendRemote, provider: p}
}

// Deterministic returns the rule-based Backend.
func Deterministic() Backend {
	return Backend{kind: BackendDeterministic}
}

// Kind returns the backend variant. The zero Backend is deterministic.
func (b Backend) Kind() BackendKind {
	if b.kind == "" {
		return BackendDeterministic
	}
	return b.kind
}

// Provider returns the model provider, or nil for the deterministic variant.
func (b Backend) Provider() Provider {
	return b.provider
}

// String describes the backend for logs.
func (b Backend) String() string {
	if b.provider == nil {
		return string(b.Kind())
	}
	return string(b.Kind()) + ":" + b.provider.ModelID()
}
