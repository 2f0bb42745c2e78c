package chat

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse reports provider availability without exposing credentials.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Providers any       `json:"providers"`
}

// HandleHealth is GET /api/health. It reports degraded rather than failing
// when no provider has a credential, so the frontend can render a notice.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.orchestrator.Registry().ProviderStatus()

	overall := "ok"
	if status.AvailableCount == 0 {
		overall = "degraded"
	}
	resp := HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Providers: status,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to write health response", "error", err)
	}
}
