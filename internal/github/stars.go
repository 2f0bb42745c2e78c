// Package github proxies the GitHub REST API for the portfolio frontend so
// the access token never reaches the browser.
package github

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/michaeltmk/portfolio/pkg/logging"
)

var apiBaseURL = "https://api.github.com"

// StarsHandler serves the repository star count.
type StarsHandler struct {
	client *http.Client
	token  string
	repo   string // "owner/name"
	logger *logging.Logger
}

func NewStarsHandler(token, repo string, client *http.Client, logger *logging.Logger) *StarsHandler {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StarsHandler{client: client, token: token, repo: repo, logger: logger}
}

// HandleStars is GET /api/github-stars.
func (h *StarsHandler) HandleStars(w http.ResponseWriter, r *http.Request) {
	url := fmt.Sprintf("%s/repos/%s", apiBaseURL, h.repo)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		http.Error(w, "failed to fetch stars", http.StatusInternalServerError)
		return
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("github request failed", "repo", h.repo, "error", err)
		http.Error(w, "failed to fetch stars", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.logger.Warn("github returned non-200", "repo", h.repo, "status", resp.StatusCode)
		http.Error(w, "failed to fetch stars", resp.StatusCode)
		return
	}

	var repo struct {
		StargazersCount int `json:"stargazers_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		h.logger.Error("failed to decode github response", "error", err)
		http.Error(w, "failed to fetch stars", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]int{"stars": repo.StargazersCount}); err != nil {
		h.logger.Error("failed to write stars response", "error", err)
	}
}
