package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/pavelanni/cqdrill/internal/metrics"
)

// LoggingProvider logs every request at debug level and records its latency.
type LoggingProvider struct {
	inner    Provider
	logger   *slog.Logger
	recorder *metrics.Recorder
}

// WithLogging wraps a Provider. Both logger and recorder may be nil.
func WithLogging(p Provider, logger *slog.Logger, rec *metrics.Recorder) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingProvider{inner: p, logger: logger, recorder: rec}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)
	elapsed := time.Since(start)
	l.recorder.LLMRequest(purpose, err == nil, elapsed)

	attrs := []any{
		"purpose", purpose,
		"model", l.inner.ModelID(),
		"latency_ms", elapsed.Milliseconds(),
		"prompt_runes", len([]rune(req.User)),
	}
	if err != nil {
		l.logger.DebugContext(ctx, "llm request failed", append(attrs, "error", err, "reason", Reason(err))...)
		return nil, err
	}
	l.logger.DebugContext(ctx, "llm request",
		append(attrs, "input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)...)
	return resp, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
