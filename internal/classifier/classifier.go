// Package classifier delegates produce freshness classification to an external model service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"farmfresh-backend/internal/models"
)

// Classifier labels an image file
type Classifier interface {
	ClassifyFile(ctx context.Context, path string) (*models.Classification, error)
}

// Unavailable is used when no classifier service is configured
type Unavailable struct{}

// ClassifyFile always returns models.ErrClassifierUnavailable
func (Unavailable) ClassifyFile(context.Context, string) (*models.Classification, error) {
	return nil, models.ErrClassifierUnavailable
}

// HTTPClassifier posts images as multipart form field "image" to a model server
type HTTPClassifier struct {
	url        string
	httpClient *http.Client
}

// NewHTTPClassifier creates a classifier for the given endpoint
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClassifier{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// ClassifyFile uploads the file and decodes {prediction, confidence}
func (c *HTTPClassifier) ClassifyFile(ctx context.Context, path string) (*models.Classification, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var result models.Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	if result.Prediction == "" {
		return nil, fmt.Errorf("classifier response has no prediction")
	}
	return &result, nil
}
