package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "ANTHROPIC_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestDiscoverConfig(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		provider string
		wantOK   bool
		want     string
	}{
		{name: "nothing set", provider: ProviderAuto, wantOK: false, want: ProviderNone},
		{name: "openai wins", env: map[string]string{"OPENAI_API_KEY": "o", "GEMINI_API_KEY": "g"}, provider: ProviderAuto, wantOK: true, want: ProviderOpenAI},
		{name: "anthropic before gemini", env: map[string]string{"ANTHROPIC_API_KEY": "a", "GEMINI_API_KEY": "g"}, provider: ProviderAuto, wantOK: true, want: ProviderAnthropic},
		{name: "gemini only", env: map[string]string{"GEMINI_API_KEY": "g"}, provider: ProviderAuto, wantOK: true, want: ProviderGemini},
		{name: "none ignores keys", env: map[string]string{"OPENAI_API_KEY": "o"}, provider: ProviderNone, wantOK: false, want: ProviderNone},
		{name: "explicit kept", provider: ProviderGemini, wantOK: true, want: ProviderGemini},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearKeys(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := DefaultConfig()
			cfg.Provider = tt.provider
			got, ok := DiscoverConfig(cfg)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.Provider)
		})
	}
}

func TestDiscoverConfigOpenAIEnv(t *testing.T) {
	clearKeys(t)
	t.Setenv("OPENAI_API_KEY", "k")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("OPENAI_MODEL", "llama3")

	got, ok := DiscoverConfig(DefaultConfig())
	require.True(t, ok)
	assert.Equal(t, "http://localhost:11434/v1", got.OpenAI.BaseURL)
	assert.Equal(t, "llama3", got.OpenAI.Model)
}

func TestNewBackendWithoutKeyIsDeterministic(t *testing.T) {
	clearKeys(t)
	b, err := NewBackend(context.Background(), DefaultConfig(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendDeterministic, b.Kind())
	assert.Nil(t, b.Provider())
}

func TestNewBackendExplicitProviderNeedsKey(t *testing.T) {
	clearKeys(t)
	cfg := DefaultConfig()
	cfg.Provider = ProviderAnthropic
	_, err := NewBackend(context.Background(), cfg, nil, nil)
	require.Error(t, err)
}

func TestNewBackendUnknownProvider(t *testing.T) {
	clearKeys(t)
	cfg := DefaultConfig()
	cfg.Provider = "bard"
	_, err := NewBackend(context.Background(), cfg, nil, nil)
	require.Error(t, err)
}

func TestNewBackendOpenAI(t *testing.T) {
	clearKeys(t)
	cfg := DefaultConfig()
	cfg.OpenAI.APIKey = "test"
	b, err := NewBackend(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendRemote, b.Kind())
	assert.Equal(t, "remote:gpt-4o-mini", b.String())
}

func TestBackendZeroValue(t *testing.T) {
	var b Backend
	assert.Equal(t, BackendDeterministic, b.Kind())
	assert.Equal(t, "deterministic", b.String())
	assert.Equal(t, BackendDeterministic, Remote(nil).Kind())
}
