package handler

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Health is the liveness probe. It needs no session.
//
// HTTP: GET /api/health
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Success:   true,
		Message:   "API is running",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}
