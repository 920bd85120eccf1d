package model

import (
	"context"
	"strings"
	"time"
)

// User is an account in the credential store.
type User struct {
	ID           int64     `json:"id"`
	AccountID    string    `json:"account_id"`
	DisplayName  string    `json:"display_name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type tokenCtxKey struct{}

// ContextWithToken stores the auth session token in context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey{}, token)
}

// TokenFromContext retrieves the auth session token from context.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenCtxKey{}).(string)
	return t
}

// ItemType is the kind of assessment item.
type ItemType string

const (
	TypeMCQ      ItemType = "mcq"
	TypeSJT      ItemType = "sjt"
	TypeFreeText ItemType = "free-text"
)

// ParseItemType maps stored type labels to an ItemType. Unknown labels are
// returned unchanged so callers can still see them.
func ParseItemType(s string) ItemType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mcq":
		return TypeMCQ
	case "sjt", "situational-judgment", "situational_judgment":
		return TypeSJT
	case "free", "free-text", "free_text", "freetext":
		return TypeFreeText
	}
	return ItemType(strings.TrimSpace(s))
}

// Skill taxonomy.
const (
	SkillSummary              = "summary"
	SkillIntentReading        = "intent-reading"
	SkillComposition          = "composition"
	SkillImpressionManagement = "impression-management"
	SkillSituationalJudgment  = "situational-judgment"
)

var skillAliases = map[string]string{
	"要約":        SkillSummary,
	"意図理解":      SkillIntentReading,
	"構成":        SkillComposition,
	"印象マネジメント":  SkillImpressionManagement,
	"状況判断":      SkillSituationalJudgment,
	"structure": SkillComposition,
	"sjt":       SkillSituationalJudgment,
}

// NormalizeSkill trims whitespace and maps known aliases (including the
// Japanese category labels used by older item banks) to the canonical name.
func NormalizeSkill(s string) string {
	s = strings.TrimSpace(s)
	if canonical, ok := skillAliases[s]; ok {
		return canonical
	}
	return s
}

// ChoiceKeys are the valid choice letters, in display order.
var ChoiceKeys = []string{"A", "B", "C", "D"}

// IsChoiceKey reports whether k is one of A-D.
func IsChoiceKey(k string) bool {
	for _, c := range ChoiceKeys {
		if k == c {
			return true
		}
	}
	return false
}

// Feedback is the descriptive outcome of choosing an sjt option.
type Feedback struct {
	Type string `json:"type" yaml:"type"`
	Desc string `json:"desc" yaml:"desc"`
}

// Question is an assessment item.
type Question struct {
	ID           string              `json:"id" yaml:"id"`
	Skill        string              `json:"skill" yaml:"skill"`
	Level        string              `json:"level" yaml:"level"`
	Type         ItemType            `json:"type" yaml:"type"`
	Prompt       string              `json:"prompt" yaml:"prompt"`
	Choices      []string            `json:"choices" yaml:"choices"`
	AnswerKey    string              `json:"answer_key" yaml:"answer_key"`
	TargetKey    string              `json:"target_key,omitempty" yaml:"target_key"`
	Explanations map[string]string   `json:"explanations" yaml:"explanations"`
	Feedbacks    map[string]Feedback `json:"feedbacks" yaml:"feedbacks"`
	Difficulty   float64             `json:"difficulty" yaml:"difficulty"`
	Tags         []string            `json:"tags" yaml:"tags"`
}

// BestKey returns the target letter of an sjt item: the explicit target key,
// else the answer key, else empty. Feedback categories are never inspected.
func (q Question) BestKey() string {
	for _, k := range []string{q.TargetKey, q.AnswerKey} {
		k = strings.ToUpper(strings.TrimSpace(k))
		if IsChoiceKey(k) {
			return k
		}
	}
	return ""
}

// AttemptResult is one graded mcq response. Chosen is empty and IsCorrect is
// nil when the item was left unanswered.
type AttemptResult struct {
	QuestionID  string `json:"question_id"`
	Chosen      string `json:"chosen,omitempty"`
	IsCorrect   *bool  `json:"is_correct"`
	CorrectKey  string `json:"correct_key"`
	Explanation string `json:"explanation,omitempty"`
}

// SituationalFeedback is one graded sjt response. It carries no correctness.
type SituationalFeedback struct {
	QuestionID   string `json:"question_id"`
	Chosen       string `json:"chosen,omitempty"`
	FeedbackType string `json:"feedback_type"`
	FeedbackDesc string `json:"feedback_desc"`
}

// Subscores are the three free-text evaluation dimensions.
type Subscores struct {
	ContextFit               int `json:"context_fit"`
	InterpersonalSensitivity int `json:"interpersonal_sensitivity"`
	Clarity                  int `json:"clarity"`
}

// FreeTextEvaluation is the score of one free-text submission.
type FreeTextEvaluation struct {
	ScoreTotal    int       `json:"score_total"`
	Subscores     Subscores `json:"subscores"`
	ShortFeedback string    `json:"short_feedback"`
	NextDrill     string    `json:"next_drill"`
}

// SessionItem is the per-item outcome fed to aggregation.
type SessionItem struct {
	QuestionID    string   `json:"question_id"`
	Type          ItemType `json:"type"`
	Skill         string   `json:"skill"`
	Tags          []string `json:"tags,omitempty"`
	IsCorrect     *bool    `json:"is_correct,omitempty"`
	Chosen        string   `json:"chosen,omitempty"`
	CorrectKey    string   `json:"correct_key,omitempty"`
	BestKey       string   `json:"best_key,omitempty"`
	FreeTextScore float64  `json:"free_text_score,omitempty"`
}

// Drill levels.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// DrillRecommendation suggests the next practice block.
type DrillRecommendation struct {
	Skill     string   `json:"skill"`
	Level     string   `json:"level"`
	Tags      []string `json:"tags"`
	Rationale string   `json:"rationale"`
}

// SkillProfile is the aggregation output.
type SkillProfile struct {
	SkillScores       map[string]float64    `json:"skill_scores"`
	Traits            []string              `json:"traits"`
	Strengths         []string              `json:"strengths"`
	Weaknesses        []string              `json:"weaknesses"`
	NextActions       []string              `json:"next_actions"`
	RecommendedDrills []DrillRecommendation `json:"recommended_drills"`
}

// ProfileMeta carries optional summary counts for the narrative request.
type ProfileMeta struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Config holds runtime drill parameters set via CLI flags.
type Config struct {
	BatchSize   int    // questions per drill batch
	CandidateN  int    // candidates fetched before tag filtering
	MaxBodySize int64  // request body limit in bytes
	AdminToken  string // enables question upload when set
}
