package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/tiplinehq/tipline/internal/poller"
	"github.com/tiplinehq/tipline/pkg/common/logger"
)

type HealthResponse struct {
	Status    string                          `json:"status"`
	Timestamp time.Time                       `json:"timestamp"`
	Version   string                          `json:"version"`
	Hostname  string                          `json:"hostname"`
	PID       int                             `json:"pid"`
	Pollers   map[string]poller.StatsSnapshot `json:"pollers"`
}

type APIErrorResponse struct {
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type EngineHTTPHandler struct {
	version string
	manager *poller.Manager
}

func NewEngineHTTPHandler(version string, manager *poller.Manager) *EngineHTTPHandler {
	return &EngineHTTPHandler{
		version: version,
		manager: manager,
	}
}

func (h *EngineHTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
}

func (h *EngineHTTPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats := make(map[string]poller.StatsSnapshot)
	for _, p := range h.manager.Pollers() {
		stats[p.Name()] = p.Stats()
	}

	hostname, _ := os.Hostname()
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Hostname:  hostname,
		PID:       os.Getpid(),
		Pollers:   stats,
	}
	writeJSON(w, http.StatusOK, response)
}

func startHTTPServer(addr, version string, manager *poller.Manager) *http.Server {
	mux := http.NewServeMux()

	handler := NewEngineHTTPHandler(version, manager)
	handler.Register(mux)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server started",
			"addr", addr,
			"health_endpoint", "/health",
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed to start", "error", err)
		}
	}()

	return server
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "status", statusCode, "err", err)
	}
}

func writeErrorJSON(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, APIErrorResponse{
		Status:    "error",
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
}
