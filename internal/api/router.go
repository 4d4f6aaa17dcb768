package api

import (
	"encoding/json"
	"net/http"

	"github.com/tpepels/tidal-ui-sub001/internal/auth"
	"github.com/tpepels/tidal-ui-sub001/internal/metrics"
	"github.com/tpepels/tidal-ui-sub001/internal/websocket"
)

type Router struct {
	mux              *http.ServeMux
	authService      *auth.Service
	downloadHandlers *DownloadHandlers
	wsHandler        *websocket.Handler
	metrics          *metrics.Metrics
}

func NewRouter(authService *auth.Service, downloadHandlers *DownloadHandlers, wsHandler *websocket.Handler, m *metrics.Metrics) *Router {
	r := &Router{
		mux:              http.NewServeMux(),
		authService:      authService,
		downloadHandlers: downloadHandlers,
		wsHandler:        wsHandler,
		metrics:          m,
	}
	r.setupRoutes()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.metrics != nil {
		metrics.Middleware(r.metrics)(r.mux).ServeHTTP(w, req)
		return
	}
	r.mux.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Health check and metrics (no auth required)
	r.mux.HandleFunc("GET /health", healthHandler)
	if r.metrics != nil {
		r.mux.HandleFunc("GET /metrics", r.metrics.Handler())
	}

	// Token issuance (no auth required; the service is LAN-scoped)
	r.mux.HandleFunc("POST /api/v1/auth/token", r.issueToken)

	// Download routes (auth required)
	r.mux.HandleFunc("POST /api/v1/downloads", r.withAuth(r.downloadHandlers.Enqueue))
	r.mux.HandleFunc("POST /api/v1/downloads/{task_id}/retry", r.withAuth(r.downloadHandlers.Retry))
	r.mux.HandleFunc("POST /api/v1/downloads/{task_id}/cancel", r.withAuth(r.downloadHandlers.Cancel))

	// Queue routes (auth required)
	r.mux.HandleFunc("GET /api/v1/queue/status", r.withAuth(r.downloadHandlers.Status))
	r.mux.HandleFunc("POST /api/v1/queue/pause", r.withAuth(r.downloadHandlers.PauseQueue))
	r.mux.HandleFunc("POST /api/v1/queue/resume", r.withAuth(r.downloadHandlers.ResumeQueue))
	r.mux.HandleFunc("POST /api/v1/queue/restart", r.withAuth(r.downloadHandlers.RestartQueue))
	r.mux.HandleFunc("POST /api/v1/queue/stop", r.withAuth(r.downloadHandlers.StopQueue))
	r.mux.HandleFunc("POST /api/v1/queue/items/{id}/pause", r.withAuth(r.downloadHandlers.PauseItem))
	r.mux.HandleFunc("POST /api/v1/queue/items/{id}/resume", r.withAuth(r.downloadHandlers.ResumeItem))

	// Library routes (auth required)
	r.mux.HandleFunc("GET /api/v1/history", r.withAuth(r.downloadHandlers.History))
	r.mux.HandleFunc("GET /api/v1/files/{filename}", r.withAuth(r.downloadHandlers.ServeFile))

	// WebSocket progress feed (token via query parameter)
	if r.wsHandler != nil {
		r.mux.HandleFunc("GET /ws", r.wsHandler.ServeWS)
	}
}

func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	middleware := auth.Middleware(r.authService)
	return func(w http.ResponseWriter, req *http.Request) {
		middleware(http.HandlerFunc(next)).ServeHTTP(w, req)
	}
}

type tokenRequest struct {
	ClientName string `json:"client_name"`
}

func (r *Router) issueToken(w http.ResponseWriter, req *http.Request) {
	var body tokenRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if body.ClientName == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "client_name is required")
		return
	}

	token, err := r.authService.IssueToken(body.ClientName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}
