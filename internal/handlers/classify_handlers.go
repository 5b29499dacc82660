package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"farmfresh-backend/internal/classifier"
	"farmfresh-backend/internal/models"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// ClassifyHandler stores uploaded produce images and forwards them to the classifier
type ClassifyHandler struct {
	responder
	classifier  classifier.Classifier
	uploadDir   string
	maxBodySize int64
}

// NewClassifyHandler creates a classification handler saving uploads under uploadDir
func NewClassifyHandler(c classifier.Classifier, uploadDir string, maxBodySize int64, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ClassifyHandler {
	if maxBodySize <= 0 {
		maxBodySize = 10 << 20
	}
	return &ClassifyHandler{
		responder:   responder{logger: logger, metrics: metricsCollector},
		classifier:  c,
		uploadDir:   uploadDir,
		maxBodySize: maxBodySize,
	}
}

// uploadPath confines a client-supplied name to the upload directory
func (h *ClassifyHandler) uploadPath(name string) (string, bool) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." {
		return "", false
	}
	return filepath.Join(h.uploadDir, base), true
}

// Predict handles POST /predict with a multipart "image" field
func (h *ClassifyHandler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	file, header, err := r.FormFile("image")
	if err != nil {
		h.sendError(w, r, "No image uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	path, ok := h.uploadPath(header.Filename)
	if !ok {
		h.sendError(w, r, "invalid file name", http.StatusBadRequest)
		return
	}

	if err := h.save(file, path); err != nil {
		h.logger.Error(ctx, "[API_UPLOAD_ERROR] Failed to store upload", logging.Fields{"file": filepath.Base(path)}, err)
		h.sendError(w, r, "failed to store image", http.StatusInternalServerError)
		return
	}

	h.classify(w, r, path)
}

// PredictUploaded handles GET /predict_uploaded?file=NAME for an image already in the upload directory
func (h *ClassifyHandler) PredictUploaded(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	if name == "" {
		h.sendError(w, r, "file query parameter required", http.StatusBadRequest)
		return
	}

	path, ok := h.uploadPath(name)
	if !ok {
		h.sendError(w, r, "invalid file name", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		h.sendError(w, r, fmt.Sprintf("File not found: %s", name), http.StatusNotFound)
		return
	}

	h.classify(w, r, path)
}

func (h *ClassifyHandler) classify(w http.ResponseWriter, r *http.Request, path string) {
	ctx := r.Context()

	result, err := h.classifier.ClassifyFile(ctx, path)
	if err != nil {
		if errors.Is(err, models.ErrClassifierUnavailable) {
			h.sendError(w, r, "image classifier is not configured", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error(ctx, "[API_CLASSIFY_ERROR] Classification failed", logging.Fields{"file": filepath.Base(path)}, err)
		h.sendError(w, r, "classification failed", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, result, http.StatusOK)
}

func (h *ClassifyHandler) save(src io.Reader, path string) error {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// RegisterRoutes registers the classification routes
func (h *ClassifyHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/predict", h.Predict).Methods("POST")
	router.HandleFunc("/predict_uploaded", h.PredictUploaded).Methods("GET")
}
