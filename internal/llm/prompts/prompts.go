// Package prompts builds the instructions sent to the text-generation model
// for free-text evaluation and skill profiling.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/cqdrill/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

// MaxAnswerRunes bounds the user text forwarded to the model.
const MaxAnswerRunes = 10000

var (
	userAnswerRegex         = regexp.MustCompile(`(?i)</?\s*user-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

var (
	loadOnce      sync.Once
	loadErr       error
	evalSystem    string
	profileSystem string
	evalUser      *template.Template
	profileUser   *template.Template
)

// EvalData holds template data for the evaluation prompt.
type EvalData struct {
	Scenario string
	Answer   string
}

// ProfileData holds template data for the profile prompt.
type ProfileData struct {
	Items       string
	Precomputed string
	Meta        string
}

func load() error {
	loadOnce.Do(func() {
		read := func(name string) string {
			if loadErr != nil {
				return ""
			}
			b, err := templateFS.ReadFile("templates/" + name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt %s: %w", name, err)
			}
			return string(b)
		}
		parse := func(name string) *template.Template {
			text := read(name)
			if loadErr != nil {
				return nil
			}
			t, err := template.New(name).Parse(text)
			if err != nil {
				loadErr = fmt.Errorf("parse prompt %s: %w", name, err)
			}
			return t
		}

		evalSystem = strings.TrimSpace(read("evaluate_system.txt"))
		profileSystem = strings.TrimSpace(read("profile_system.txt"))
		evalUser = parse("evaluate_user.txt")
		profileUser = parse("profile_user.txt")
	})
	return loadErr
}

// EvaluationSystem returns the coach instruction for free-text evaluation.
func EvaluationSystem() (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	return evalSystem, nil
}

// ProfileSystem returns the instruction for profile generation. It tells the
// model to adopt precomputed skill scores verbatim.
func ProfileSystem() (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	return profileSystem, nil
}

// BuildEvaluationPrompt renders the user turn for a free-text evaluation.
func BuildEvaluationPrompt(scenario, answer string) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	data := EvalData{
		Scenario: strings.TrimSpace(scenario),
		Answer:   sanitizeAnswer(answer),
	}
	var buf bytes.Buffer
	if err := evalUser.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildProfilePrompt renders the user turn for a profile request.
func BuildProfilePrompt(items []model.SessionItem, precomputed map[string]float64, meta *model.ProfileMeta) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	if items == nil {
		items = []model.SessionItem{}
	}
	if precomputed == nil {
		precomputed = map[string]float64{}
	}
	itemsJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal session items: %w", err)
	}
	scoresJSON, err := json.Marshal(precomputed)
	if err != nil {
		return "", fmt.Errorf("marshal precomputed scores: %w", err)
	}

	data := ProfileData{
		Items:       string(itemsJSON),
		Precomputed: string(scoresJSON),
	}
	if meta != nil && meta.Total > 0 {
		data.Meta = fmt.Sprintf("正答数: %d / %d", meta.Correct, meta.Total)
	}

	var buf bytes.Buffer
	if err := profileUser.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAnswer(answer string) string {
	answer = userAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[回答なし]"
	}

	if utf8.RuneCountInString(answer) > MaxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:MaxAnswerRunes]) + "\n\n[長すぎるため省略]"
	}
	return answer
}
