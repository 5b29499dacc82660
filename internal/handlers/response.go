package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// responder holds the shared JSON helpers embedded by every handler
type responder struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// sendJSON sends a JSON response. The body is encoded before the status is
// written, so an unencodable payload becomes a 500.
func (h *responder) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		h.logger.Error(context.Background(), "[API_ENCODE_ERROR] Failed to encode response", logging.Fields{"status": statusCode}, err)
		buf.Reset()
		statusCode = http.StatusInternalServerError
		json.NewEncoder(&buf).Encode(ErrorResponse{
			Error:   "failed to encode response",
			Message: "failed to encode response",
			Code:    statusCode,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn(context.Background(), "[API_WRITE_ERROR] Failed to write response", logging.Fields{"error": err.Error()})
	}
}

// sendError sends an error response
func (h *responder) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIError(http.StatusText(statusCode), routeName(r))

	response := ErrorResponse{
		Error:   message,
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}
