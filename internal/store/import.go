package store

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/cqdrill/internal/model"
)

// ImportResult reports what ImportFile did with one file.
type ImportResult struct {
	Path    string
	Count   int
	Skipped bool
}

// importRecord is one question as written in a bank file.
type importRecord struct {
	ID           string                    `json:"id" yaml:"id"`
	Skill        string                    `json:"skill" yaml:"skill"`
	Level        string                    `json:"level" yaml:"level"`
	Type         string                    `json:"type" yaml:"type"`
	Prompt       string                    `json:"prompt" yaml:"prompt"`
	Choices      []string                  `json:"choices" yaml:"choices"`
	AnswerKey    string                    `json:"answer_key" yaml:"answer_key"`
	TargetKey    string                    `json:"target_key" yaml:"target_key"`
	Explanations map[string]string         `json:"explanations" yaml:"explanations"`
	Feedbacks    map[string]model.Feedback `json:"feedbacks" yaml:"feedbacks"`
	Difficulty   *float64                  `json:"difficulty" yaml:"difficulty"`
	Tags         []string                  `json:"tags" yaml:"tags"`
}

func (r importRecord) question() model.Question {
	q := model.Question{
		ID:           strings.TrimSpace(r.ID),
		Skill:        model.NormalizeSkill(r.Skill),
		Level:        strings.TrimSpace(r.Level),
		Type:         model.ParseItemType(r.Type),
		Prompt:       r.Prompt,
		Choices:      r.Choices,
		AnswerKey:    r.AnswerKey,
		TargetKey:    r.TargetKey,
		Explanations: r.Explanations,
		Feedbacks:    r.Feedbacks,
		Difficulty:   DefaultDifficulty,
		Tags:         r.Tags,
	}
	if r.Difficulty != nil {
		q.Difficulty = *r.Difficulty
	}
	if q.Type == "" {
		switch {
		case len(q.Feedbacks) > 0:
			q.Type = model.TypeSJT
		case len(q.Choices) > 0:
			q.Type = model.TypeMCQ
		default:
			q.Type = model.TypeFreeText
		}
	}
	return q
}

// ImportFile loads a question bank file into the store.
func (s *Store) ImportFile(path string) (ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{Path: path}, fmt.Errorf("read %s: %w", path, err)
	}
	return s.ImportData(path, data)
}

// ImportData imports a bank whose format is taken from name's extension.
// Data whose sha256 matches the previous import under the same name is
// skipped. Questions are upserted by id, so a changed file replaces the
// items it defines.
func (s *Store) ImportData(name string, data []byte) (ImportResult, error) {
	res := ImportResult{Path: name}
	hash := sha256sum(data)
	stored, err := s.GetImportedFileHash(name)
	if err != nil {
		return res, fmt.Errorf("check import status for %s: %w", name, err)
	}
	if stored == hash {
		slog.Info("questions file unchanged, skipping", "path", name)
		res.Skipped = true
		return res, nil
	}

	questions, err := ParseQuestions(name, data)
	if err != nil {
		return res, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return res, err
	}
	defer tx.Rollback()
	for _, q := range questions {
		if err := insertQuestion(tx, q); err != nil {
			return res, fmt.Errorf("insert question %s from %s: %w", q.ID, name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}

	if err := s.SetImportedFileHash(name, hash); err != nil {
		return res, fmt.Errorf("record import for %s: %w", name, err)
	}
	res.Count = len(questions)
	slog.Info("imported questions", "path", name, "count", res.Count)
	return res, nil
}

// ParseQuestions decodes a bank by file extension: .json holds an array,
// .jsonl one object per line, .yaml/.yml a list. Every record needs an id.
func ParseQuestions(name string, data []byte) ([]model.Question, error) {
	var records []importRecord
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".json":
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	case ".jsonl", ".ndjson":
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		line := 0
		for sc.Scan() {
			line++
			text := strings.TrimSpace(sc.Text())
			if text == "" {
				continue
			}
			var r importRecord
			if err := json.Unmarshal([]byte(text), &r); err != nil {
				return nil, fmt.Errorf("parse %s line %d: %w", name, line, err)
			}
			records = append(records, r)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported question file type %q", ErrInvalidInput, ext)
	}

	questions := make([]model.Question, 0, len(records))
	for i, r := range records {
		q := r.question()
		if q.ID == "" {
			return nil, fmt.Errorf("%w: %s record %d has no id", ErrInvalidInput, name, i+1)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
