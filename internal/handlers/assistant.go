package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"aivision/internal/config"
	"aivision/internal/dto"
	"aivision/internal/logger"
	"aivision/internal/models"
	"aivision/internal/services/assistant"
	"aivision/internal/services/storage"
)

const maxFormMemory = 32 << 20

// QuestionAnswerer answers questions about an image and its detections.
type QuestionAnswerer interface {
	Ask(ctx context.Context, userID, question string, image []byte, detections []models.Detection) (string, error)
}

// AskHandler takes a question plus an optional image and detections list.
// Missing parts are taken from the user's workspace.
func AskHandler(answerer QuestionAnswerer, workspace *storage.WorkspaceService, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes()+multipartOverhead)
		if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				respondError(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			respondError(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}

		var image []byte
		if r.MultipartForm != nil {
			img, err := readUpload(r, cfg.MaxUploadBytes())
			switch {
			case err == nil:
				image = img.data
			case !errors.Is(err, errNoFile):
				status, detail := uploadErrorStatus(err)
				respondError(w, status, detail)
				return
			}
		}

		var detections []models.Detection
		if raw := r.FormValue("detections"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &detections); err != nil {
				respondError(w, http.StatusUnprocessableEntity, "Invalid detections")
				return
			}
		}

		if ws, err := workspace.Get(user.ID); err == nil {
			if image == nil {
				image = ws.Image
			}
			if detections == nil {
				detections = ws.Detections
			}
		}

		answer, err := answerer.Ask(r.Context(), user.ID, r.FormValue("question"), image, detections)
		if err != nil {
			switch {
			case errors.Is(err, assistant.ErrEmptyQuestion):
				respondError(w, http.StatusUnprocessableEntity, "Question is required")
			case errors.Is(err, assistant.ErrInvalidImage):
				respondError(w, http.StatusBadRequest, "Invalid image")
			default:
				logger.Error("Assistant request failed for user %s: %v", user.ID, err)
				respondError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
			}
			return
		}

		respondJSON(w, http.StatusOK, dto.AskResponse{Answer: answer}, logger)
	}
}
