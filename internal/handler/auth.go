package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pavelanni/cqdrill/internal/model"
	"github.com/pavelanni/cqdrill/internal/store"
)

const adminTokenHeader = "X-Admin-Token"

// requireAuth is middleware that checks for a valid bearer token.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			writeError(w, r, http.StatusUnauthorized, "ErrUnauthorized", nil)
			return
		}

		user, err := h.store.UserForToken(token)
		if err != nil {
			slog.Error("failed to resolve auth token", "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
			return
		}
		if user == nil {
			h.dropSession(token)
			writeError(w, r, http.StatusUnauthorized, "ErrUnauthorized", nil)
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		ctx = model.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin checks the admin token header.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(adminTokenHeader)
		want := h.config.AdminToken
		if want == "" || len(got) != len(want) || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			slog.Warn("admin token mismatch", "remote", r.RemoteAddr)
			writeError(w, r, http.StatusForbidden, "ErrForbidden", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentials struct {
	AccountID   string `json:"account_id"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest", nil)
		return
	}

	user, err := h.store.CreateAccount(c.AccountID, c.Password, c.DisplayName)
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "ErrInvalidInput", nil)
		return
	case errors.Is(err, store.ErrAccountExists):
		writeError(w, r, http.StatusConflict, "ErrAccountExists", nil)
		return
	case err != nil:
		slog.Error("failed to create account", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest", nil)
		return
	}

	user, err := h.store.Authenticate(c.AccountID, c.Password)
	if err != nil {
		slog.Error("failed to authenticate", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
		return
	}
	if user == nil {
		writeError(w, r, http.StatusUnauthorized, "ErrInvalidCredentials", nil)
		return
	}

	sess, err := h.store.CreateAuthSession(user.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
		return
	}
	slog.Info("user logged in", "account_id", user.AccountID)
	writeJSON(w, http.StatusOK, loginResponse{Token: sess.ID, ExpiresAt: sess.ExpiresAt, User: user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := model.TokenFromContext(r.Context())
	if err := h.store.DeleteAuthSession(token); err != nil {
		slog.Error("failed to delete auth session", "error", err)
	}
	h.dropSession(token)
	w.WriteHeader(http.StatusNoContent)
}

type batchSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Items     int       `json:"items"`
}

type meResponse struct {
	User    *model.User    `json:"user"`
	Answers int            `json:"answers"`
	Batches []batchSummary `json:"batches"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	resp := meResponse{User: model.UserFromContext(r.Context()), Batches: []batchSummary{}}
	sess := h.session(model.TokenFromContext(r.Context()))
	sess.mu.Lock()
	resp.Answers = sess.history.Len()
	for _, b := range sess.history.Batches() {
		resp.Batches = append(resp.Batches, batchSummary{ID: b.ID, CreatedAt: b.CreatedAt, Items: len(b.Items)})
	}
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}
