package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/opensource-finance/axle/internal/domain"
	"github.com/opensource-finance/axle/internal/plate"
)

// Plate detection outcomes, used as the metrics label.
const (
	plateMatched     = "matched"
	plateNoMatch     = "no_match"
	plateRejected    = "rejected"
	plateUnavailable = "unavailable"
	plateError       = "error"
)

// multipartMemory is the in-memory part of a parsed upload; the rest spills
// to temporary files.
const multipartMemory = 8 << 20

// PlateImageRequest is the JSON alternative to a multipart upload.
type PlateImageRequest struct {
	Image string `json:"image"` // base64 data URL
}

// PlateErrorResponse is the failure variant of POST /detect-plate.
type PlateErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DetectPlate handles POST /detect-plate. The upload is bounded and its
// content type checked before the OCR provider is called.
func (h *Handler) DetectPlate(w http.ResponseWriter, r *http.Request) {
	if !h.Extractor.Enabled() {
		h.Metrics.ObservePlateDetection(plateUnavailable)
		writeJSON(w, http.StatusServiceUnavailable, PlateErrorResponse{
			Message: "Plate detection is not configured",
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxBytes)

	image, status, msg := h.readImage(r)
	if status != http.StatusOK {
		h.Metrics.ObservePlateDetection(plateRejected)
		writeJSON(w, status, PlateErrorResponse{Message: msg})
		return
	}

	result, err := h.Extractor.ExtractPlate(r.Context(), image)
	if err != nil {
		status, outcome, msg := plateFailure(err)
		h.Metrics.ObservePlateDetection(outcome)
		if status >= http.StatusInternalServerError {
			slog.Error("plate detection failed", "error", err, "trace_id", GetTraceID(r.Context()))
		}
		writeJSON(w, status, PlateErrorResponse{Message: msg})
		return
	}

	if result.Success {
		h.Metrics.ObservePlateDetection(plateMatched)
	} else {
		h.Metrics.ObservePlateDetection(plateNoMatch)
	}
	writeJSON(w, http.StatusOK, result)
}

func plateFailure(err error) (status int, outcome, message string) {
	switch {
	case errors.Is(err, domain.ErrOCRNotConfigured):
		return http.StatusServiceUnavailable, plateUnavailable, "Plate detection is not configured"
	case errors.Is(err, plate.ErrInvalidImage):
		return http.StatusBadRequest, plateRejected, err.Error()
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, plateError, "Plate detection failed: " + err.Error()
	default:
		return http.StatusInternalServerError, plateError, "Plate detection failed"
	}
}

// readImage extracts the image bytes from a multipart or JSON body and
// checks its type against the allow-list.
func (h *Handler) readImage(r *http.Request) ([]byte, int, string) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, http.StatusBadRequest, "Content-Type must be multipart/form-data or application/json"
	}

	switch mediaType {
	case "multipart/form-data":
		return h.readMultipart(r)
	case "application/json":
		return h.readDataURL(r)
	default:
		return nil, http.StatusBadRequest, "Content-Type must be multipart/form-data or application/json"
	}
}

func (h *Handler) readMultipart(r *http.Request) ([]byte, int, string) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if tooLarge(err) {
			return nil, http.StatusRequestEntityTooLarge, h.tooLargeMessage()
		}
		return nil, http.StatusBadRequest, fmt.Sprintf("invalid multipart body: %v", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, http.StatusBadRequest, "No image file provided"
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if tooLarge(err) {
			return nil, http.StatusRequestEntityTooLarge, h.tooLargeMessage()
		}
		return nil, http.StatusBadRequest, fmt.Sprintf("failed to read image: %v", err)
	}
	if len(data) == 0 {
		return nil, http.StatusBadRequest, "No image file provided"
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !h.allowedType(contentType) {
		return nil, http.StatusBadRequest, fmt.Sprintf("Unsupported image type: %s", contentType)
	}

	return data, http.StatusOK, ""
}

func (h *Handler) readDataURL(r *http.Request) ([]byte, int, string) {
	var req PlateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if tooLarge(err) {
			return nil, http.StatusRequestEntityTooLarge, h.tooLargeMessage()
		}
		return nil, http.StatusBadRequest, "invalid JSON request body"
	}
	if req.Image == "" {
		return nil, http.StatusBadRequest, "No image file provided"
	}

	header, _, ok := strings.Cut(req.Image, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return nil, http.StatusBadRequest, "image must be a base64 data URL"
	}
	contentType, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	if !h.allowedType(contentType) {
		return nil, http.StatusBadRequest, fmt.Sprintf("Unsupported image type: %s", contentType)
	}

	// The extractor decodes the data URL.
	return []byte(req.Image), http.StatusOK, ""
}

func (h *Handler) allowedType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return slices.Contains(h.cfg.Upload.AllowedTypes, strings.ToLower(mediaType))
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("Image exceeds the maximum upload size of %d bytes", h.cfg.Upload.MaxBytes)
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
