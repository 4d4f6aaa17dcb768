package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/tpepels/tidal-ui-sub001/internal/download"
	"github.com/tpepels/tidal-ui-sub001/internal/history"
	"github.com/tpepels/tidal-ui-sub001/internal/logger"
	"github.com/tpepels/tidal-ui-sub001/internal/storage"
)

// DownloadHandlers exposes the queue and orchestrator over HTTP.
type DownloadHandlers struct {
	queue        *download.Queue
	orchestrator *download.Orchestrator
	historyRepo  *history.Repository
	files        *storage.Client
	log          *logger.Logger
}

// NewDownloadHandlers creates the download handler set. historyRepo and
// files may be nil when those backends are not configured.
func NewDownloadHandlers(queue *download.Queue, orchestrator *download.Orchestrator, historyRepo *history.Repository, files *storage.Client, log *logger.Logger) *DownloadHandlers {
	if log == nil {
		log = logger.Default().WithComponent("api")
	}
	return &DownloadHandlers{
		queue:        queue,
		orchestrator: orchestrator,
		historyRepo:  historyRepo,
		files:        files,
		log:          log,
	}
}

// EnqueueRequest is the request body for creating a download.
type EnqueueRequest struct {
	ID       string            `json:"id,omitempty"`
	Track    download.Track    `json:"track"`
	Foreign  bool              `json:"foreign,omitempty"`
	Source   string            `json:"source,omitempty"`
	Options  *download.Options `json:"options,omitempty"`
	Priority int               `json:"priority,omitempty"`
	Group    string            `json:"group,omitempty"`
}

// EnqueueResponse acknowledges a queued download.
type EnqueueResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Enqueue handles POST /api/v1/downloads
func (h *DownloadHandlers) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	if req.Track.ID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "track.id is required")
		return
	}
	if !req.Foreign && req.Track.MediaURL == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "track.media_url is required for native tracks")
		return
	}

	id := req.ID
	if id == "" {
		id = req.Track.ID
	}

	h.queue.Enqueue(download.EnqueueRequest{
		ID:      id,
		TrackID: req.Track.ID,
		Group:   req.Group,
		Target: download.Target{
			Track:   req.Track,
			Foreign: req.Foreign,
			Source:  req.Source,
		},
		Options:  req.Options,
		Priority: req.Priority,
	})

	writeJSON(w, http.StatusAccepted, EnqueueResponse{ID: id, Status: "queued"})
}

// Status handles GET /api/v1/queue/status
func (h *DownloadHandlers) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.GetStatus())
}

// Retry handles POST /api/v1/downloads/{task_id}/retry
func (h *DownloadHandlers) Retry(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "task_id is required")
		return
	}

	// The retry runs detached from the request: downloads outlive the
	// HTTP exchange, and progress flows through the task surfaces.
	go func() {
		res := h.orchestrator.RetryDownload(context.Background(), taskID)
		if !res.Success && res.Err != nil {
			h.log.Warn(context.Background(), "retry failed", map[string]interface{}{
				"task_id": taskID,
				"code":    res.Err.Code,
			})
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "status": "retrying"})
}

// Cancel handles POST /api/v1/downloads/{task_id}/cancel
func (h *DownloadHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "task_id is required")
		return
	}

	h.orchestrator.CancelDownload(taskID)
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "cancelled"})
}

// PauseQueue handles POST /api/v1/queue/pause
func (h *DownloadHandlers) PauseQueue(w http.ResponseWriter, r *http.Request) {
	h.queue.Pause()
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// ResumeQueue handles POST /api/v1/queue/resume
func (h *DownloadHandlers) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	h.queue.Resume()
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// RestartQueue handles POST /api/v1/queue/restart
func (h *DownloadHandlers) RestartQueue(w http.ResponseWriter, r *http.Request) {
	h.queue.Restart()
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// StopQueue handles POST /api/v1/queue/stop
func (h *DownloadHandlers) StopQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Stop(r.Context()); err != nil {
		writeError(w, http.StatusGatewayTimeout, "STOP_TIMEOUT", "in-flight downloads did not drain in time")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// PauseItem handles POST /api/v1/queue/items/{id}/pause
func (h *DownloadHandlers) PauseItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.queue.PauseItem(id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "paused"})
}

// ResumeItem handles POST /api/v1/queue/items/{id}/resume
func (h *DownloadHandlers) ResumeItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.queue.ResumeItem(id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "queued"})
}

// History handles GET /api/v1/history
func (h *DownloadHandlers) History(w http.ResponseWriter, r *http.Request) {
	if h.historyRepo == nil {
		writeError(w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "history backend not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, total, err := h.historyRepo.List(r.Context(), limit, offset)
	if err != nil {
		h.log.Error(r.Context(), "failed to list history", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
	})
}

// ServeFile handles GET /api/v1/files/{filename} and streams a stored
// object back to the client.
func (h *DownloadHandlers) ServeFile(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "object storage not configured")
		return
	}

	filename := r.PathValue("filename")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "filename is required")
		return
	}

	obj, info, err := h.files.GetObject(r.Context(), filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "FILE_NOT_FOUND", "file not found")
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	if _, err := io.Copy(w, obj); err != nil {
		h.log.Warn(r.Context(), "file stream interrupted", map[string]interface{}{"filename": filename})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
