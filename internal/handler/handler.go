package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/cqdrill/internal/drill"
	"github.com/pavelanni/cqdrill/internal/evaluator"
	"github.com/pavelanni/cqdrill/internal/grader"
	appI18n "github.com/pavelanni/cqdrill/internal/i18n"
	"github.com/pavelanni/cqdrill/internal/metrics"
	"github.com/pavelanni/cqdrill/internal/model"
	"github.com/pavelanni/cqdrill/internal/profile"
	"github.com/pavelanni/cqdrill/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store      *store.Store
	evaluator  *evaluator.Evaluator
	aggregator *profile.Aggregator
	recorder   *metrics.Recorder
	config     model.Config

	mu       sync.Mutex
	sessions map[string]*drillSession
}

// drillSession is the in-memory state of one login: the questions already
// served and the graded batches.
type drillSession struct {
	mu      sync.Mutex
	picker  *drill.Picker
	history profile.History
}

// New creates a new Handler.
func New(s *store.Store, ev *evaluator.Evaluator, agg *profile.Aggregator, rec *metrics.Recorder, cfg model.Config) *Handler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = drill.DefaultBatchSize
	}
	return &Handler{
		store:      s,
		evaluator:  ev,
		aggregator: agg,
		recorder:   rec,
		config:     cfg,
		sessions:   make(map[string]*drillSession),
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", h.recorder.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(h.limitBody)
		r.Post("/accounts", h.handleCreateAccount)
		r.Post("/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.handleLogout)
			r.Get("/me", h.handleMe)
			r.Get("/drills", h.handleDrills)
			r.Post("/drills/reset", h.handleResetDrills)
			r.Post("/answers", h.handleAnswers)
			r.Get("/profile", h.handleProfile)
		})

		if h.config.AdminToken != "" {
			r.With(h.requireAdmin).Post("/admin/questions", h.handleUploadQuestions)
		}
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.QuestionCount()
	if err == nil {
		var accounts int
		if accounts, err = h.store.UserCount(); err == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "questions": questions, "accounts": accounts})
			return
		}
	}
	slog.Error("health check failed", "error", err)
	writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
}

// drillQuestion is a question as shown to the user, without answer keys.
type drillQuestion struct {
	ID      string         `json:"id"`
	Skill   string         `json:"skill"`
	Level   string         `json:"level,omitempty"`
	Type    model.ItemType `json:"type"`
	Prompt  string         `json:"prompt"`
	Choices []string       `json:"choices"`
	Tags    []string       `json:"tags"`
}

// maxDrillCount bounds the count query parameter of a drill request.
const maxDrillCount = 50

type drillResponse struct {
	Questions []drillQuestion `json:"questions"`
	Warning   string          `json:"warning,omitempty"`
}

func (h *Handler) handleDrills(w http.ResponseWriter, r *http.Request) {
	skill := strings.TrimSpace(r.URL.Query().Get("skill"))
	if skill == "" {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest", nil)
		return
	}
	count := h.config.BatchSize
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxDrillCount {
			writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest", nil)
			return
		}
		count = n
	}

	sess := h.session(model.TokenFromContext(r.Context()))
	sess.mu.Lock()
	batch, err := sess.picker.Next(skill, r.URL.Query().Get("domain"), count)
	sess.mu.Unlock()
	if errors.Is(err, store.ErrInvalidInput) {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest", nil)
		return
	}
	if err != nil {
		slog.Error("failed to pick drill batch", "skill", skill, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
		return
	}

	resp := drillResponse{Questions: make([]drillQuestion, 0, len(batch.Questions))}
	if batch.Short() {
		resp.Warning = appI18n.Td(r.Context(), "DrillShortage", map[string]any{
			"Found": len(batch.Questions),
			"Want":  batch.Want,
		})
	}
	for _, q := range batch.Questions {
		resp.Questions = append(resp.Questions, drillQuestion{
			ID:      q.ID,
			Skill:   q.Skill,
			Level:   q.Level,
			Type:    q.Type,
			Prompt:  q.Prompt,
			Choices: q.Choices,
			Tags:    q.Tags,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleResetDrills forgets the questions already served to the caller, so
// the next batch may repeat them. Graded history is kept.
func (h *Handler) handleResetDrills(w http.ResponseWriter, r *http.Request) {
	sess := h.session(model.TokenFromContext(r.Context()))
	sess.mu.Lock()
	sess.picker.Reset()
	sess.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

type answerInput struct {
	QuestionID string `json:"question_id"`
	Chosen     string `json:"chosen"`
	Text       string `json:"text"`
}

type answerRequest struct {
	Answers []answerInput `json:"answers"`
}

type evaluationResult struct {
	QuestionID string `json:"question_id"`
	model.FreeTextEvaluation
}

type answerResponse struct {
	BatchID     string                      `json:"batch_id"`
	Message     string                      `json:"message"`
	Correct     int                         `json:"correct"`
	Total       int                         `json:"total"`
	Results     []model.AttemptResult       `json:"results"`
	Feedback    []model.SituationalFeedback `json:"feedback"`
	Evaluations []evaluationResult          `json:"evaluations"`
}

// handleAnswers grades one submitted batch and records it in the caller's
// history. Items keep their submission order.
func (h *Handler) handleAnswers(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Answers) == 0 {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest", nil)
		return
	}

	ids := make([]string, len(req.Answers))
	for i, a := range req.Answers {
		ids[i] = a.QuestionID
	}
	found, err := h.store.GetQuestions(ids)
	if err != nil {
		slog.Error("failed to load questions", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
		return
	}
	byID := make(map[string]model.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}

	type group struct {
		questions []model.Question
		answers   []answerInput
		pos       []int
	}
	groups := make(map[model.ItemType]*group)
	for i, a := range req.Answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			writeError(w, r, http.StatusBadRequest, "ErrUnknownQuestion", map[string]any{"ID": a.QuestionID})
			return
		}
		switch q.Type {
		case model.TypeMCQ, model.TypeSJT, model.TypeFreeText:
		default:
			writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest", nil)
			return
		}
		g := groups[q.Type]
		if g == nil {
			g = &group{}
			groups[q.Type] = g
		}
		g.questions = append(g.questions, q)
		g.answers = append(g.answers, a)
		g.pos = append(g.pos, i)
	}

	ctx := r.Context()
	items := make([]model.SessionItem, len(req.Answers))
	resp := answerResponse{
		Results:     []model.AttemptResult{},
		Feedback:    []model.SituationalFeedback{},
		Evaluations: []evaluationResult{},
	}

	if g := groups[model.TypeMCQ]; g != nil {
		chosen := make([]string, len(g.answers))
		for i, a := range g.answers {
			chosen[i] = a.Chosen
		}
		results, correct, total, err := grader.GradeMCQ(g.questions, chosen)
		if err != nil {
			slog.Error("failed to grade mcq", "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
			return
		}
		mcqItems, err := profile.ItemsFromMCQ(g.questions, results)
		if err != nil {
			slog.Error("failed to build mcq items", "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
			return
		}
		for i, it := range mcqItems {
			items[g.pos[i]] = it
		}
		resp.Results, resp.Correct, resp.Total = results, correct, total
	}

	if g := groups[model.TypeSJT]; g != nil {
		chosen := make([]string, len(g.answers))
		scores := make([]float64, len(g.answers))
		for i, a := range g.answers {
			chosen[i] = a.Chosen
			if strings.TrimSpace(a.Text) == "" {
				continue
			}
			eval := h.evaluator.Evaluate(ctx, g.questions[i].Prompt, a.Text)
			scores[i] = profile.FreeTextScore(eval)
			resp.Evaluations = append(resp.Evaluations, evaluationResult{QuestionID: a.QuestionID, FreeTextEvaluation: eval})
		}
		feedback, err := grader.GradeSJT(g.questions, chosen)
		if err != nil {
			slog.Error("failed to grade sjt", "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
			return
		}
		sjtItems, err := profile.ItemsFromSJT(g.questions, chosen, scores)
		if err != nil {
			slog.Error("failed to build sjt items", "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
			return
		}
		for i, it := range sjtItems {
			items[g.pos[i]] = it
		}
		resp.Feedback = feedback
	}

	if g := groups[model.TypeFreeText]; g != nil {
		for i, a := range g.answers {
			q := g.questions[i]
			eval := h.evaluator.Evaluate(ctx, q.Prompt, a.Text)
			items[g.pos[i]] = profile.ItemFromFreeText(q, eval)
			resp.Evaluations = append(resp.Evaluations, evaluationResult{QuestionID: a.QuestionID, FreeTextEvaluation: eval})
		}
	}

	for typ, g := range groups {
		h.recorder.Answer(string(typ), len(g.answers))
	}

	sess := h.session(model.TokenFromContext(ctx))
	sess.mu.Lock()
	batch := sess.history.Append(items)
	sess.mu.Unlock()

	resp.BatchID = batch.ID
	resp.Message = appI18n.Tp(ctx, "ItemsGraded", len(items))
	writeJSON(w, http.StatusOK, resp)
}

type profileResponse struct {
	Scope   string             `json:"scope"`
	Items   int                `json:"items"`
	Correct int                `json:"correct"`
	Total   int                `json:"total"`
	Profile model.SkillProfile `json:"profile"`
}

// Profile scopes.
const (
	scopeBatch   = "batch"
	scopeHistory = "history"
)

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = scopeHistory
	}
	if scope != scopeBatch && scope != scopeHistory {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest", nil)
		return
	}

	sess := h.session(model.TokenFromContext(r.Context()))
	sess.mu.Lock()
	items := sess.history.All()
	if scope == scopeBatch {
		items = sess.history.LastBatch()
	}
	sess.mu.Unlock()

	meta := profile.Meta(items)
	p := h.aggregator.Aggregate(r.Context(), items, profile.SkillScores(items), &meta)
	writeJSON(w, http.StatusOK, profileResponse{
		Scope:   scope,
		Items:   len(items),
		Correct: meta.Correct,
		Total:   meta.Total,
		Profile: p,
	})
}

// session returns the drill state for token, creating it on first use.
func (h *Handler) session(token string) *drillSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[token]
	if !ok {
		s = &drillSession{picker: drill.NewPicker(h.store, h.config.CandidateN)}
		h.sessions[token] = s
	}
	return s
}

func (h *Handler) dropSession(token string) {
	h.mu.Lock()
	delete(h.sessions, token)
	h.mu.Unlock()
}

// PruneSessions drops the drill state of every token that no longer resolves
// to a user, and returns how many were dropped. Store errors keep the state.
func (h *Handler) PruneSessions() int {
	h.mu.Lock()
	tokens := make([]string, 0, len(h.sessions))
	for token := range h.sessions {
		tokens = append(tokens, token)
	}
	h.mu.Unlock()

	pruned := 0
	for _, token := range tokens {
		user, err := h.store.UserForToken(token)
		if err != nil {
			slog.Error("failed to check drill session token", "error", err)
			continue
		}
		if user == nil {
			h.dropSession(token)
			pruned++
		}
	}
	return pruned
}

// SweepSessions removes expired tokens from the store and prunes their drill
// state every interval until ctx is done.
func (h *Handler) SweepSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := h.store.CleanupExpiredSessions()
			if err != nil {
				slog.Warn("failed to clean up expired sessions", "error", err)
			}
			if pruned := h.PruneSessions(); n > 0 || pruned > 0 {
				slog.Info("swept sessions", "tokens", n, "drill_sessions", pruned)
			}
		}
	}
}

func (h *Handler) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.MaxBodySize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string, data map[string]any) {
	writeJSON(w, status, map[string]string{"error": appI18n.Td(r.Context(), msgID, data)})
}
