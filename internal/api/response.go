package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// SuccessResponse represents a standardised success response. The
// envelope is the wire contract the API client unwraps: success true
// implies data carries the result.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, r *http.Request, data interface{}, status int) {
	requestID := GetRequestID(r)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("Failed to encode JSON response")
	}
}

// WriteSuccess writes a standardised success response
func WriteSuccess(w http.ResponseWriter, r *http.Request, data interface{}, message string) {
	response := SuccessResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: GetRequestID(r),
	}

	WriteJSON(w, r, response, http.StatusOK)
}

// WriteCreated writes a standardised success response for created resources
func WriteCreated(w http.ResponseWriter, r *http.Request, data interface{}, message string) {
	response := SuccessResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: GetRequestID(r),
	}

	WriteJSON(w, r, response, http.StatusCreated)
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Database  string `json:"database,omitempty"`
	Version   string `json:"version,omitempty"`
}

// WriteHealthy writes a standardised health check response
func WriteHealthy(w http.ResponseWriter, r *http.Request, service, database, version string) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Service:   service,
		Database:  database,
		Version:   version,
	}

	WriteJSON(w, r, response, http.StatusOK)
}

// WriteUnhealthy writes a standardised unhealthy response. The
// non-2xx status matters: the client's health probe keys off it.
func WriteUnhealthy(w http.ResponseWriter, r *http.Request, service string, err error) {
	response := map[string]interface{}{
		"status":     "unhealthy",
		"timestamp":  time.Now().Format(time.RFC3339),
		"service":    service,
		"error":      err.Error(),
		"request_id": GetRequestID(r),
	}

	WriteJSON(w, r, response, http.StatusServiceUnavailable)
}
