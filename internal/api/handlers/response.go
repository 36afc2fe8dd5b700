package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// APIResponse envelopes every successful handler response.
type APIResponse struct {
	Data interface{} `json:"data"`
}

// APIError envelopes every failed handler response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail carries a machine-readable code alongside the message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIResponse{Data: data}); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{
		Error: APIErrorDetail{Code: code, Message: message},
	})
}
