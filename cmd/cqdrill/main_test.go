package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/cqdrill/internal/llm"
)

func TestLLMConfig(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		check    func(t *testing.T, cfg llm.Config)
	}{
		{"auto uses openai settings", "auto", func(t *testing.T, cfg llm.Config) {
			if cfg.OpenAI.APIKey != "k" || cfg.OpenAI.Model != "m" || cfg.OpenAI.BaseURL != "http://x" {
				t.Errorf("openai = %+v", cfg.OpenAI)
			}
		}},
		{"anthropic", "Anthropic", func(t *testing.T, cfg llm.Config) {
			if cfg.Provider != llm.ProviderAnthropic || cfg.Anthropic.APIKey != "k" || cfg.Anthropic.Model != "m" {
				t.Errorf("anthropic = %+v", cfg.Anthropic)
			}
			if cfg.OpenAI.APIKey != "" {
				t.Errorf("openai key should stay empty, got %q", cfg.OpenAI.APIKey)
			}
		}},
		{"gemini", "gemini", func(t *testing.T, cfg llm.Config) {
			if cfg.Gemini.APIKey != "k" || cfg.Gemini.Model != "m" {
				t.Errorf("gemini = %+v", cfg.Gemini)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set("llm-provider", tt.provider)
			v.Set("llm-key", "k")
			v.Set("llm-model", "m")
			v.Set("llm-url", "http://x")
			v.Set("llm-timeout", 5*time.Second)
			v.Set("llm-retries", 2)

			cfg := llmConfig(v)
			if cfg.Timeout != 5*time.Second {
				t.Errorf("timeout = %v", cfg.Timeout)
			}
			if cfg.Retry.MaxAttempts != 3 {
				t.Errorf("max attempts = %d, want 3", cfg.Retry.MaxAttempts)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLLMConfigKeepsDefaultModel(t *testing.T) {
	v := viper.New()
	v.Set("llm-provider", "openai")
	cfg := llmConfig(v)
	if cfg.OpenAI.Model != llm.DefaultConfig().OpenAI.Model {
		t.Errorf("model = %q, want default", cfg.OpenAI.Model)
	}
}

func TestReadArg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answer.txt")
	if err := os.WriteFile(path, []byte("from file"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("from stdin"))

	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"@" + path, "from file"},
		{"-", "from stdin"},
	}
	for _, tt := range tests {
		got, err := readArg(cmd, tt.in)
		if err != nil {
			t.Fatalf("readArg(%q): %v", tt.in, err)
		}
		if string(got) != tt.want {
			t.Errorf("readArg(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := readArg(cmd, "@"+filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestProfileCommand(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "items.json")
	items := `[{"question_id":"q1","type":"mcq","skill":"要約","is_correct":true},
	           {"question_id":"q2","type":"mcq","skill":"summary","is_correct":false}]`
	if err := os.WriteFile(path, []byte(items), 0o644); err != nil {
		t.Fatal(err)
	}

	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"profile", "--items", path, "--lang", "en", "--llm-provider", "none"})
	if err := root.Execute(); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if !strings.Contains(out.String(), `"summary": 0.5`) {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestEvaluateCommandShortAnswer(t *testing.T) {
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"evaluate", "--text", "はい", "--llm-provider", "none"})
	if err := root.Execute(); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(out.String(), `"score_total": 0`) {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}
