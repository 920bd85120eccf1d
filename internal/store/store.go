// Package store persists the question bank, accounts and auth sessions in
// SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/cqdrill/internal/model"

	_ "modernc.org/sqlite"
)

// DefaultDifficulty is used for items stored without a difficulty.
const DefaultDifficulty = 0.5

// ErrInvalidInput is returned for records or credentials that cannot be stored.
var ErrInvalidInput = errors.New("invalid input")

type Store struct {
	db         *sql.DB
	sessionTTL time.Duration
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, sessionTTL: DefaultSessionTTL}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		skill TEXT NOT NULL DEFAULT '',
		level TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		prompt TEXT NOT NULL DEFAULT '',
		choices_json TEXT,
		answer_key TEXT NOT NULL DEFAULT '',
		target_key TEXT NOT NULL DEFAULT '',
		explanations_json TEXT,
		feedbacks_json TEXT,
		difficulty REAL,
		tags_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_questions_skill ON questions(skill);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const questionColumns = `id, skill, level, type, prompt, choices_json, answer_key, target_key,
	explanations_json, feedbacks_json, difficulty, tags_json`

// InsertQuestion stores q, replacing any question with the same id.
func (s *Store) InsertQuestion(q model.Question) error {
	return insertQuestion(s.db, q)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertQuestion(db execer, q model.Question) error {
	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("%w: question without id", ErrInvalidInput)
	}
	choices, err := jsonText(q.Choices)
	if err != nil {
		return err
	}
	explanations, err := jsonText(q.Explanations)
	if err != nil {
		return err
	}
	feedbacks, err := jsonText(q.Feedbacks)
	if err != nil {
		return err
	}
	tags, err := jsonText(q.Tags)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT OR REPLACE INTO questions (`+questionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(q.ID), model.NormalizeSkill(q.Skill), q.Level, string(q.Type), q.Prompt,
		choices, strings.ToUpper(strings.TrimSpace(q.AnswerKey)), strings.ToUpper(strings.TrimSpace(q.TargetKey)),
		explanations, feedbacks, q.Difficulty, tags,
	)
	return err
}

// Filter narrows Fetch. Empty fields match everything.
type Filter struct {
	Skill string
	Type  model.ItemType
}

// Fetch returns up to limit random questions matching f. Fewer are returned,
// without error, when the bank runs out.
func (s *Store) Fetch(f Filter, limit int) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	var args []any
	if f.Skill != "" {
		query += ` AND skill = ?`
		args = append(args, model.NormalizeSkill(f.Skill))
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	query += ` ORDER BY RANDOM() LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuestion returns a question by id, or nil if there is none.
func (s *Store) GetQuestion(id string) (*model.Question, error) {
	q, err := scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuestions returns the questions for ids in the caller's order. Unknown
// ids are skipped.
func (s *Store) GetQuestions(ids []string) ([]model.Question, error) {
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		q, err := s.GetQuestion(id)
		if err != nil {
			return nil, fmt.Errorf("get question %s: %w", id, err)
		}
		if q != nil {
			out = append(out, *q)
		}
	}
	return out, nil
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc scanner) (model.Question, error) {
	var (
		q                                      model.Question
		typ                                    string
		choices, explanations, feedbacks, tags sql.NullString
		difficulty                             sql.NullFloat64
	)
	err := sc.Scan(&q.ID, &q.Skill, &q.Level, &typ, &q.Prompt, &choices, &q.AnswerKey, &q.TargetKey,
		&explanations, &feedbacks, &difficulty, &tags)
	if err != nil {
		return q, err
	}
	q.Type = model.ParseItemType(typ)

	q.Choices = []string{}
	q.Explanations = map[string]string{}
	q.Feedbacks = map[string]model.Feedback{}
	q.Tags = []string{}
	for _, col := range []struct {
		raw  sql.NullString
		dest any
	}{
		{choices, &q.Choices},
		{explanations, &q.Explanations},
		{feedbacks, &q.Feedbacks},
		{tags, &q.Tags},
	} {
		if !col.raw.Valid || col.raw.String == "" || col.raw.String == "null" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw.String), col.dest); err != nil {
			return q, fmt.Errorf("decode question %s: %w", q.ID, err)
		}
	}
	// A JSON null inside the column leaves a nil container behind.
	if q.Choices == nil {
		q.Choices = []string{}
	}
	if q.Explanations == nil {
		q.Explanations = map[string]string{}
	}
	if q.Feedbacks == nil {
		q.Feedbacks = map[string]model.Feedback{}
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}

	q.Difficulty = DefaultDifficulty
	if difficulty.Valid {
		q.Difficulty = difficulty.Float64
	}
	return q, nil
}

// jsonText encodes v for a *_json column; nil containers are stored as NULL.
func jsonText(v any) (any, error) {
	switch t := v.(type) {
	case []string:
		if t == nil {
			return nil, nil
		}
	case map[string]string:
		if t == nil {
			return nil, nil
		}
	case map[string]model.Feedback:
		if t == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
