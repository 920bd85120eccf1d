package handler

import (
	"io"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/cqdrill/internal/i18n"
	"github.com/pavelanni/cqdrill/internal/store"
)

const maxUploadSize = 10 << 20

type uploadResponse struct {
	Count   int    `json:"count"`
	Skipped bool   `json:"skipped"`
	Message string `json:"message"`
}

// handleUploadQuestions imports a question bank sent as the multipart field
// questions_file. The file name's extension selects the format.
func (h *Handler) handleUploadQuestions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest", nil)
		return
	}

	file, header, err := r.FormFile("questions_file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidRequest", nil)
		return
	}

	if _, err := store.ParseQuestions(header.Filename, data); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidQuestions", map[string]any{"Reason": err.Error()})
		return
	}

	res, err := h.store.ImportData(header.Filename, data)
	if err != nil {
		slog.Error("failed to import uploaded questions", "filename", header.Filename, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
		return
	}

	msg := appI18n.Tp(r.Context(), "QuestionsImported", res.Count)
	if res.Skipped {
		msg = appI18n.T(r.Context(), "UploadDuplicate")
	}
	slog.Info("uploaded questions via admin", "filename", header.Filename, "count", res.Count, "skipped", res.Skipped)
	writeJSON(w, http.StatusOK, uploadResponse{Count: res.Count, Skipped: res.Skipped, Message: msg})
}
