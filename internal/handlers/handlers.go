// Package handlers exposes the prediction pipeline over HTTP and maps
// classified failures to status codes and client-safe detail strings.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dermalytics/skindiag/internal/credential"
	"github.com/dermalytics/skindiag/internal/inference"
	"github.com/dermalytics/skindiag/internal/pipeline"
	"github.com/dermalytics/skindiag/internal/preprocess"
)

// TokenHeader carries the API key on every request.
const TokenHeader = "access_token"

const maxUploadBytes = 10 << 20

type Handler struct {
	logger *slog.Logger
	gate   pipeline.TokenValidator
	pipe   *pipeline.Pipeline
	creds  credential.Store
}

func NewHandler(logger *slog.Logger, gate pipeline.TokenValidator, pipe *pipeline.Pipeline, creds credential.Store) *Handler {
	return &Handler{logger: logger, gate: gate, pipe: pipe, creds: creds}
}

// Health reports liveness. It is credential-gated like every other route.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.gate.Validate(r.Context(), r.Header.Get(TokenHeader)); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Predict runs one uploaded image through the pipeline and, on success,
// consumes one unit of the credential's usage quota.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method Not Allowed"})
		return
	}

	token := r.Header.Get(TokenHeader)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid multipart form."})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "No file provided. Use 'file' as the form field name."})
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Failed to read uploaded file."})
		return
	}
	if len(fileBytes) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Uploaded file is empty."})
		return
	}

	resp, err := h.pipe.Run(r.Context(), token, fileBytes)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	if err := h.creds.ConsumeUsage(r.Context(), token); err != nil {
		// The prediction already happened; log the quota failure rather
		// than fail the request over it.
		h.logger.Error("consume usage failed", "error", err, "path", r.URL.Path)
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeFailure maps a classified pipeline error onto a status code and a
// client-safe detail string. Internal faults never echo the underlying error.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err, "path", r.URL.Path)
	} else {
		h.logger.Info("request rejected", "detail", detail, "path", r.URL.Path)
	}
	writeJSON(w, status, map[string]string{"detail": detail})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, credential.ErrMissingToken):
		return http.StatusBadRequest, "API Key is required"
	case errors.Is(err, credential.ErrNotFound):
		return http.StatusBadRequest, "API Key Not Found"
	case errors.Is(err, credential.ErrExpired):
		return http.StatusBadRequest, "API Key Expired"
	case errors.Is(err, credential.ErrQuotaExceeded):
		return http.StatusBadRequest, "API Key Limit Exceeded"
	case errors.Is(err, preprocess.ErrEmptyInput),
		errors.Is(err, preprocess.ErrInvalidElement),
		errors.Is(err, preprocess.ErrDecode):
		return http.StatusBadRequest, "Error in image preprocessing."
	case errors.Is(err, inference.ErrMissingOutput),
		errors.Is(err, inference.ErrUnexpectedShape),
		errors.Is(err, inference.ErrLabelMismatch),
		errors.Is(err, inference.ErrBackend):
		return http.StatusInternalServerError, "Prediction model failed."
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
