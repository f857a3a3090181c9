package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lexhub/legal-retrieval/internal/config"
	"github.com/lexhub/legal-retrieval/internal/core/domain"
	"github.com/lexhub/legal-retrieval/internal/core/ports"
	"github.com/lexhub/legal-retrieval/internal/observability/metrics"
)

const serviceName = "retrieval-api"

type Router struct {
	retriever ports.Retriever
	snapshot  ports.SnapshotReader
	metrics   *metrics.ServerMetrics
	cfg       config.Config
}

func NewRouter(
	retriever ports.Retriever,
	snapshot ports.SnapshotReader,
	serverMetrics *metrics.ServerMetrics,
	cfg config.Config,
) *Router {
	return &Router{
		retriever: retriever,
		snapshot:  snapshot,
		metrics:   serverMetrics,
		cfg:       cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/snapshot", rt.snapshotInfo)
	mux.Handle("/metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxConcurrent, time.Second)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
	Language string `json:"language"`
}

type retrieveResponse struct {
	Results []domain.RetrievedChunk `json:"results"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.TopK < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top_k must not be negative"})
		return
	}

	// language is a pass-through hint for the upstream translation
	// collaborator; retrieval itself is language-agnostic.
	if req.Language != "" {
		slog.Debug("retrieve_language_hint",
			"request_id", requestIDFromContext(r.Context()),
			"language", req.Language,
		)
	}

	results, err := rt.retriever.Retrieve(r.Context(), req.Query, req.TopK)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		slog.Error("retrieve_failed",
			"request_id", requestIDFromContext(r.Context()),
			"status", status,
			"error", err,
		)
		writeJSON(w, status, map[string]string{"error": publicErrorMessage(err)})
		return
	}
	if results == nil {
		results = []domain.RetrievedChunk{}
	}

	writeJSON(w, http.StatusOK, retrieveResponse{Results: results})
}

func (rt *Router) snapshotInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.snapshot.Info())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
