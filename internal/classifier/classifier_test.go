package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmfresh-backend/internal/models"
)

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tomato.jpg")
	require.NoError(t, os.WriteFile(path, []byte("fake-jpeg-bytes"), 0o644))
	return path
}

func TestHTTPClassifier_ClassifyFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "tomato.jpg", header.Filename)
		assert.Equal(t, "fake-jpeg-bytes", string(data))

		json.NewEncoder(w).Encode(models.Classification{Prediction: "Fresh Tomato", Confidence: 0.93})
	}))
	defer server.Close()

	c := NewHTTPClassifier(server.URL, time.Second)
	result, err := c.ClassifyFile(context.Background(), writeImage(t))
	require.NoError(t, err)
	assert.Equal(t, "Fresh Tomato", result.Prediction)
	assert.Equal(t, 0.93, result.Confidence)
}

func TestHTTPClassifier_Failures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := NewHTTPClassifier(server.URL, time.Second).ClassifyFile(context.Background(), writeImage(t))
		assert.ErrorContains(t, err, "status 500")
	})

	t.Run("empty prediction", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"confidence": 0.5}`))
		}))
		defer server.Close()

		_, err := NewHTTPClassifier(server.URL, time.Second).ClassifyFile(context.Background(), writeImage(t))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewHTTPClassifier("http://127.0.0.1:0", time.Second).ClassifyFile(context.Background(), "/nonexistent.jpg")
		assert.ErrorContains(t, err, "failed to open image")
	})
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.ClassifyFile(context.Background(), "x.jpg")
	assert.ErrorIs(t, err, models.ErrClassifierUnavailable)
}
