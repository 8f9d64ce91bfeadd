package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"aivision/internal/config"
	"aivision/internal/dto"
	"aivision/internal/logger"
	"aivision/internal/services"
	"aivision/internal/services/ai"
	"aivision/internal/services/storage"
)

// multipartOverhead covers form boundaries and the other form fields.
const multipartOverhead = 1 << 20

// ObjectDetector runs detection for a user and stores the result.
type ObjectDetector interface {
	Detect(ctx context.Context, userID string, image []byte, filename, contentType string) (*ai.Result, error)
}

var (
	errNoFile       = errors.New("file is required")
	errNotImage     = errors.New("file must be an image")
	errFileTooBig   = errors.New("file too large")
	errBadMultipart = errors.New("invalid multipart form")
)

type upload struct {
	data        []byte
	filename    string
	contentType string
}

// readUpload reads the "file" field of a multipart request. It returns
// errNoFile when the field is absent.
func readUpload(r *http.Request, maxBytes int64) (*upload, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, errNoFile
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errFileTooBig
		}
		return nil, fmt.Errorf("%w: %v", errBadMultipart, err)
	}
	defer file.Close()

	return readPart(file, header, maxBytes)
}

func readPart(file multipart.File, header *multipart.FileHeader, maxBytes int64) (*upload, error) {
	if header.Size > maxBytes {
		return nil, errFileTooBig
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, errFileTooBig
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errNotImage
	}

	return &upload{data: data, filename: header.Filename, contentType: contentType}, nil
}

func uploadErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errNoFile):
		return http.StatusUnprocessableEntity, "File is required"
	case errors.Is(err, errNotImage):
		return http.StatusUnsupportedMediaType, "File must be an image"
	case errors.Is(err, errFileTooBig):
		return http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, errBadMultipart):
		return http.StatusBadRequest, "Invalid multipart form"
	}
	return http.StatusInternalServerError, "An error occurred while reading the upload"
}

func DetectHandler(detector ObjectDetector, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes()+multipartOverhead)
		img, err := readUpload(r, cfg.MaxUploadBytes())
		if err != nil {
			status, detail := uploadErrorStatus(err)
			if status == http.StatusInternalServerError {
				logger.Error("Error reading upload: %v", err)
			}
			respondError(w, status, detail)
			return
		}

		result, err := detector.Detect(r.Context(), user.ID, img.data, img.filename, img.contentType)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrQueueFull), errors.Is(err, services.ErrStopped):
				respondError(w, http.StatusServiceUnavailable, "Detection service is busy, try again later")
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				respondError(w, http.StatusGatewayTimeout, "Detection was cancelled")
			default:
				logger.Error("Detection failed for user %s: %v", user.ID, err)
				respondError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
			}
			return
		}

		respondJSON(w, http.StatusOK, dto.DetectResponse{
			AnnotatedImage: result.AnnotatedImage,
			Detections:     result.Detections,
		}, logger)
	}
}

func ResultsHandler(workspace *storage.WorkspaceService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		ws, err := workspace.Get(user.ID)
		if errors.Is(err, storage.ErrNoWorkspace) {
			respondError(w, http.StatusNotFound, "No image uploaded")
			return
		}

		respondJSON(w, http.StatusOK, dto.ResultsResponse{
			Filename:       ws.Filename,
			AnnotatedImage: ws.AnnotatedImage,
			Detections:     ws.Detections,
			Sort:           ws.Sort,
			Count:          len(ws.Detections),
		}, logger)
	}
}

// SortResultsHandler applies a header click to the stored detections.
func SortResultsHandler(workspace *storage.WorkspaceService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req dto.SortRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		detections, state, err := workspace.Sort(user.ID, req.Column)
		if errors.Is(err, storage.ErrNoWorkspace) {
			respondError(w, http.StatusNotFound, "No image uploaded")
			return
		}

		respondJSON(w, http.StatusOK, dto.SortResponse{Detections: detections, Sort: state}, logger)
	}
}

// ClearResultsHandler drops the uploaded image and its detections.
func ClearResultsHandler(workspace *storage.WorkspaceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		workspace.Remove(user.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}
