package download

import (
	"context"
	"sync"
	"time"

	"github.com/tpepels/tidal-ui-sub001/internal/logger"
)

const (
	// DefaultMaxConcurrent bounds simultaneous in-flight executions.
	DefaultMaxConcurrent = 4
	// DefaultMaxRetries is the queue-level retry ceiling per item.
	DefaultMaxRetries = 3
	// UngroupedKey buckets items without a parent collection.
	UngroupedKey = "ungrouped"
)

// QueuedDownload is one queue entry. EnqueuedAt is fixed at first enqueue
// and survives retries, so older retries are not starved by newer items
// of equal priority.
type QueuedDownload struct {
	ID            string     `json:"id"`
	TrackID       string     `json:"track_id"`
	Group         string     `json:"group"`
	Target        Target     `json:"target"`
	Options       *Options   `json:"options,omitempty"`
	Priority      int        `json:"priority"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	EnqueuedAt    time.Time  `json:"enqueued_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// Executor is the queue's unit of work, typically the orchestrator.
type Executor func(ctx context.Context, item *QueuedDownload) error

// TerminalFailureFunc is invoked exactly once when an item exhausts its
// retry budget, regardless of notification mode: exhausted retries are
// definitively lost work.
type TerminalFailureFunc func(item QueuedDownload, err error)

// QueueConfig wires the queue's collaborators and limits.
type QueueConfig struct {
	MaxConcurrent     int
	MaxRetries        int
	Executor          Executor
	OnTerminalFailure TerminalFailureFunc
	Logger            *logger.Logger
}

// Queue holds pending and failed download requests and dispatches up to
// MaxConcurrent of them concurrently through the executor hook. All
// internal maps are owned exclusively by the queue.
type Queue struct {
	mu          sync.Mutex
	items       map[string]*QueuedDownload
	running     map[string]context.CancelFunc
	pausedItems map[string]bool
	paused      bool

	maxConcurrent int
	maxRetries    int
	executor      Executor
	onTerminal    TerminalFailureFunc
	log           *logger.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewQueue creates a queue.
func NewQueue(cfg *QueueConfig) *Queue {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default().WithComponent("queue")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		items:         make(map[string]*QueuedDownload),
		running:       make(map[string]context.CancelFunc),
		pausedItems:   make(map[string]bool),
		maxConcurrent: maxConcurrent,
		maxRetries:    maxRetries,
		executor:      cfg.Executor,
		onTerminal:    cfg.OnTerminalFailure,
		log:           log,
		baseCtx:       ctx,
		baseCancel:    cancel,
	}
}

// EnqueueRequest describes one item to enqueue.
type EnqueueRequest struct {
	ID         string
	TrackID    string
	Group      string
	Target     Target
	Options    *Options
	Priority   int
	MaxRetries int
}

// Enqueue adds a request. Enqueue is idempotent on ID: re-enqueueing a
// queued item raises its priority to the maximum of the two and changes
// nothing else; re-enqueueing a running item is ignored entirely.
func (q *Queue) Enqueue(req EnqueueRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, isRunning := q.running[req.ID]; isRunning {
		return
	}

	if existing, ok := q.items[req.ID]; ok {
		if req.Priority > existing.Priority {
			existing.Priority = req.Priority
		}
		q.dispatchLocked()
		return
	}

	trackID := req.TrackID
	if trackID == "" {
		trackID = req.Target.ID
	}
	group := req.Group
	if group == "" {
		group = req.Target.AlbumID
	}
	if group == "" {
		group = UngroupedKey
	}
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = q.maxRetries
	}

	q.items[req.ID] = &QueuedDownload{
		ID:         req.ID,
		TrackID:    trackID,
		Group:      group,
		Target:     req.Target,
		Options:    req.Options,
		Priority:   req.Priority,
		MaxRetries: maxRetries,
		EnqueuedAt: time.Now(),
	}

	q.dispatchLocked()
}

// MarkCompleted removes a finished item and opens its slot.
func (q *Queue) MarkCompleted(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cancel, ok := q.running[id]; ok {
		cancel()
		delete(q.running, id)
	}
	delete(q.items, id)

	q.dispatchLocked()
}

// RequeueFailed returns a failed item to the queue for another attempt,
// keeping its original enqueue time. Once the retry budget is spent the
// terminal-failure callback fires exactly once and the item is deleted.
func (q *Queue) RequeueFailed(id string, err error) {
	q.mu.Lock()

	if cancel, ok := q.running[id]; ok {
		cancel()
		delete(q.running, id)
	}

	item, ok := q.items[id]
	if !ok {
		// Stop() already cleared this item.
		q.dispatchLocked()
		q.mu.Unlock()
		return
	}

	item.RetryCount++
	if err != nil {
		item.LastError = err.Error()
	}

	if item.RetryCount < item.MaxRetries {
		q.log.Warn(q.baseCtx, "download requeued", map[string]interface{}{
			"id":    id,
			"retry": item.RetryCount,
			"max":   item.MaxRetries,
		})
		q.dispatchLocked()
		q.mu.Unlock()
		return
	}

	terminal := *item
	delete(q.items, id)
	q.dispatchLocked()
	q.mu.Unlock()

	q.log.Error(context.Background(), "download failed terminally", err, map[string]interface{}{
		"id":      id,
		"retries": terminal.RetryCount,
	})
	if q.onTerminal != nil {
		q.onTerminal(terminal, err)
	}
}

// Pause halts new dispatch. In-flight executions run to completion.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

// Resume re-enables dispatch.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
	q.dispatchLocked()
}

// PauseItem excludes a single item from dispatch without removing it.
func (q *Queue) PauseItem(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[id]; ok {
		q.pausedItems[id] = true
	}
}

// ResumeItem clears a single item's pause flag.
func (q *Queue) ResumeItem(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pausedItems, id)
	q.dispatchLocked()
}

// Restart clears all item-level pause flags and resumes dispatch.
func (q *Queue) Restart() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pausedItems = make(map[string]bool)
	q.paused = false
	q.dispatchLocked()
}

// Stop cancels in-flight executions, clears all state unconditionally,
// and waits for workers to drain or ctx to expire. The queue is reusable
// afterwards.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.baseCancel()
	for id, cancel := range q.running {
		cancel()
		delete(q.running, id)
	}
	q.items = make(map[string]*QueuedDownload)
	q.pausedItems = make(map[string]bool)
	q.paused = false
	q.baseCtx, q.baseCancel = context.WithCancel(context.Background())
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ItemStatus is one queue entry's externally visible state.
type ItemStatus struct {
	ID         string `json:"id"`
	TrackID    string `json:"track_id"`
	Priority   int    `json:"priority"`
	RetryCount int    `json:"retry_count"`
	Running    bool   `json:"running"`
	Paused     bool   `json:"paused"`
	LastError  string `json:"last_error,omitempty"`
}

// Status is the queue's aggregated state, grouped by parent collection
// for aggregate UI display.
type Status struct {
	Queued  int                     `json:"queued"`
	Running int                     `json:"running"`
	Paused  int                     `json:"paused"`
	Groups  map[string][]ItemStatus `json:"groups"`
}

// GetStatus returns a snapshot of the queue.
func (q *Queue) GetStatus() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := Status{Groups: make(map[string][]ItemStatus)}
	for id, item := range q.items {
		_, running := q.running[id]
		paused := q.pausedItems[id]

		if running {
			status.Running++
		} else {
			status.Queued++
		}
		if paused {
			status.Paused++
		}

		status.Groups[item.Group] = append(status.Groups[item.Group], ItemStatus{
			ID:         item.ID,
			TrackID:    item.TrackID,
			Priority:   item.Priority,
			RetryCount: item.RetryCount,
			Running:    running,
			Paused:     paused,
			LastError:  item.LastError,
		})
	}
	return status
}

// dispatchLocked fills open slots with the best candidates. Called with
// q.mu held; re-entrant by construction because every completion path
// funnels back through it.
func (q *Queue) dispatchLocked() {
	if q.paused {
		return
	}

	for len(q.running) < q.maxConcurrent {
		item := q.nextCandidateLocked()
		if item == nil {
			return
		}

		ctx, cancel := context.WithCancel(q.baseCtx)
		q.running[item.ID] = cancel

		now := time.Now()
		item.LastAttemptAt = &now

		// The executor gets a copy: queue bookkeeping fields stay owned
		// by the queue.
		snapshot := *item
		q.wg.Add(1)
		go q.run(ctx, &snapshot)
	}
}

// nextCandidateLocked selects the highest-priority non-running,
// non-paused item; ties break by earliest enqueue time.
func (q *Queue) nextCandidateLocked() *QueuedDownload {
	var best *QueuedDownload
	for id, item := range q.items {
		if _, isRunning := q.running[id]; isRunning {
			continue
		}
		if q.pausedItems[id] {
			continue
		}
		if best == nil ||
			item.Priority > best.Priority ||
			(item.Priority == best.Priority && item.EnqueuedAt.Before(best.EnqueuedAt)) {
			best = item
		}
	}
	return best
}

func (q *Queue) run(ctx context.Context, item *QueuedDownload) {
	defer q.wg.Done()

	err := q.executor(ctx, item)
	if err == nil {
		q.MarkCompleted(item.ID)
		return
	}
	q.RequeueFailed(item.ID, err)
}
