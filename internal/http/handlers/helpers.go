package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/middleware"
	"aicavalli-order-service/internal/utils"
	"aicavalli-order-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

var errMissingParam = errors.New("missing param")

// decodeJSON reads a single JSON object into dst and rejects unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ValidationError("Invalid request body", map[string]any{"body": err.Error()})
	}
	return nil
}

func readPathUUID(r *http.Request, key string) (uuid.UUID, error) {
	value := strings.TrimSpace(chi.URLParam(r, key))
	if value == "" {
		return uuid.Nil, errMissingParam
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, domain.ValidationError(fmt.Sprintf("%s must be a valid id", key), nil)
	}
	return id, nil
}

func readQueryInt(r *http.Request, key string, fallback int) int {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// writeError maps any service error onto the response envelope. Internal causes are
// logged and never sent to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errMissingParam) {
		response.Error(w, http.StatusBadRequest, string(domain.ErrCodeValidation), "Missing path parameter")
		return
	}
	de := domain.AsError(err)
	if de.StatusCode >= http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("requestId", middleware.RequestIDFrom(r.Context())),
			zap.Error(de.Cause),
		)
	}
	response.ErrorWithDetails(w, de.StatusCode, string(de.Code), de.Message, de.Details)
}

type fileReadErrorKind string

const (
	fileReadErrMissing     fileReadErrorKind = "missing"
	fileReadErrReadFailed  fileReadErrorKind = "read_failed"
	fileReadErrTooLarge    fileReadErrorKind = "too_large"
	fileReadErrInvalidType fileReadErrorKind = "invalid_type"
)

type fileReadError struct {
	Kind    fileReadErrorKind
	Message string
	Err     error
}

func readImageBytes(r *http.Request, field string, maxBytes int64) ([]byte, *fileReadError) {
	if maxBytes <= 0 {
		maxBytes = 5 * 1024 * 1024
	}
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, &fileReadError{Kind: fileReadErrMissing, Message: "File is required", Err: err}
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, &fileReadError{Kind: fileReadErrMissing, Message: "File is required", Err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, &fileReadError{Kind: fileReadErrReadFailed, Message: "Failed to read file", Err: err}
	}
	if int64(len(data)) > maxBytes {
		return nil, &fileReadError{Kind: fileReadErrTooLarge, Message: fmt.Sprintf("File size must be less than %dMB.", max(maxBytes/(1024*1024), 1))}
	}

	ct := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if ct == "" || ct == "application/octet-stream" {
		ct = utils.DetectContentType(data)
	}
	if !utils.ValidateImageContentType(ct) {
		return nil, &fileReadError{Kind: fileReadErrInvalidType, Message: "Invalid file type. Please upload an image file."}
	}
	return data, nil
}
