// Package events fans download task updates out over Redis pub/sub so
// other service instances and background consumers can mirror progress.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tpepels/tidal-ui-sub001/internal/download"
	"github.com/tpepels/tidal-ui-sub001/internal/logger"
)

// Channel is the Redis pub/sub channel task events are published on.
const Channel = "downloads:events"

// TaskEvent is the wire form of one task update.
type TaskEvent struct {
	Type     string    `json:"type"`
	TaskID   string    `json:"task_id"`
	Title    string    `json:"title,omitempty"`
	Artist   string    `json:"artist,omitempty"`
	Filename string    `json:"filename,omitempty"`
	Phase    string    `json:"phase,omitempty"`
	Fraction float64   `json:"fraction,omitempty"`
	Overall  float64   `json:"overall,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher publishes task events to Redis. It implements the download
// package's UI surface so it can sit alongside the websocket hub in the
// fan-out.
type Publisher struct {
	client *redis.Client
	log    *logger.Logger
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(addr string, log *logger.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if log == nil {
		log = logger.Default().WithComponent("events")
	}
	return &Publisher{client: client, log: log}, nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// publish marshals and publishes one event. Publishing is best-effort:
// a Redis outage must never fail a download.
func (p *Publisher) publish(event TaskEvent) {
	event.At = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn(context.Background(), "failed to marshal task event", map[string]interface{}{"type": event.Type})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.client.Publish(ctx, Channel, data).Err(); err != nil {
		p.log.Warn(ctx, "failed to publish task event", map[string]interface{}{
			"type":    event.Type,
			"task_id": event.TaskID,
		})
	}
}

func (p *Publisher) BeginTask(taskID string, track download.Track, filename string, meta download.TaskMeta) {
	p.publish(TaskEvent{
		Type:     "task_begin",
		TaskID:   taskID,
		Title:    track.Title,
		Artist:   track.Artist,
		Filename: filename,
	})
}

func (p *Publisher) UpdatePhase(taskID string, phase download.Phase, fraction float64) {
	p.publish(TaskEvent{Type: "task_phase", TaskID: taskID, Phase: string(phase), Fraction: fraction})
}

func (p *Publisher) UpdateProgress(taskID string, overall float64) {
	p.publish(TaskEvent{Type: "task_progress", TaskID: taskID, Overall: overall})
}

func (p *Publisher) CompleteTask(taskID string) {
	p.publish(TaskEvent{Type: "task_complete", TaskID: taskID, Overall: 1})
}

func (p *Publisher) ErrorTask(taskID string, message string) {
	p.publish(TaskEvent{Type: "task_error", TaskID: taskID, Error: message})
}

func (p *Publisher) CancelTask(taskID string) {
	p.publish(TaskEvent{Type: "task_cancel", TaskID: taskID})
}

// Subscribe returns a channel of task events published on the shared
// channel. The subscription ends when ctx is cancelled.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan TaskEvent, error) {
	sub := p.client.Subscribe(ctx, Channel)

	// Force the subscription to be established before returning.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan TaskEvent, 64)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event TaskEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				default:
					// Slow consumer: drop rather than stall the reader.
				}
			}
		}
	}()

	return out, nil
}
