package websocket

import (
	"github.com/tpepels/tidal-ui-sub001/internal/download"
)

// TaskBroadcaster pushes download task state to connected clients. It is
// the hub-facing implementation of the download package's UI surface.
type TaskBroadcaster struct {
	hub *Hub
}

// NewTaskBroadcaster creates a broadcaster bound to the hub.
func NewTaskBroadcaster(hub *Hub) *TaskBroadcaster {
	return &TaskBroadcaster{hub: hub}
}

func (b *TaskBroadcaster) BeginTask(taskID string, track download.Track, filename string, meta download.TaskMeta) {
	b.hub.Broadcast(&TaskMessage{
		Type:     "task_begin",
		TaskID:   taskID,
		Title:    track.Title,
		Artist:   track.Artist,
		Filename: filename,
		Quality:  string(meta.Quality),
		Storage:  string(meta.Storage),
	})
}

func (b *TaskBroadcaster) UpdatePhase(taskID string, phase download.Phase, fraction float64) {
	b.hub.Broadcast(&TaskMessage{
		Type:     "task_phase",
		TaskID:   taskID,
		Phase:    string(phase),
		Fraction: fraction,
	})
}

func (b *TaskBroadcaster) UpdateProgress(taskID string, overall float64) {
	b.hub.Broadcast(&TaskMessage{
		Type:    "task_progress",
		TaskID:  taskID,
		Overall: overall,
	})
}

func (b *TaskBroadcaster) CompleteTask(taskID string) {
	b.hub.Broadcast(&TaskMessage{
		Type:    "task_complete",
		TaskID:  taskID,
		Overall: 1,
	})
}

func (b *TaskBroadcaster) ErrorTask(taskID string, message string) {
	b.hub.Broadcast(&TaskMessage{
		Type:   "task_error",
		TaskID: taskID,
		Error:  message,
	})
}

func (b *TaskBroadcaster) CancelTask(taskID string) {
	b.hub.Broadcast(&TaskMessage{
		Type:   "task_cancel",
		TaskID: taskID,
	})
}
