package download

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// blockingExecutor reports every start on started and holds each
// execution until a value is sent on proceed. Results are taken from
// results keyed by item ID (nil when absent).
type blockingExecutor struct {
	started chan string
	proceed chan struct{}

	mu      sync.Mutex
	results map[string]error
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{
		started: make(chan string, 16),
		proceed: make(chan struct{}),
		results: make(map[string]error),
	}
}

func (e *blockingExecutor) exec(ctx context.Context, item *QueuedDownload) error {
	e.started <- item.ID
	select {
	case <-e.proceed:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.results[item.ID]
}

func waitStart(t *testing.T, e *blockingExecutor) string {
	t.Helper()
	select {
	case id := <-e.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an execution to start")
		return ""
	}
}

func release(t *testing.T, e *blockingExecutor) {
	t.Helper()
	select {
	case e.proceed <- struct{}{}:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out releasing an execution")
	}
}

func waitIdle(t *testing.T, q *Queue) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := q.GetStatus()
		if st.Running == 0 && st.Queued == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("queue never drained: %+v", q.GetStatus())
}

func totalItems(st Status) int {
	return st.Queued + st.Running
}

func TestQueueEnqueueIdempotentPriorityMerge(t *testing.T) {
	q := NewQueue(&QueueConfig{Executor: func(context.Context, *QueuedDownload) error { return nil }})
	q.Pause()

	q.Enqueue(EnqueueRequest{ID: "dl-1", Target: nativeTarget(), Priority: 2})
	q.Enqueue(EnqueueRequest{ID: "dl-1", Target: nativeTarget(), Priority: 5})
	q.Enqueue(EnqueueRequest{ID: "dl-1", Target: nativeTarget(), Priority: 1})

	st := q.GetStatus()
	if totalItems(st) != 1 {
		t.Fatalf("expected a single entry, got %d", totalItems(st))
	}
	for _, items := range st.Groups {
		for _, item := range items {
			if item.Priority != 5 {
				t.Errorf("priority = %d, want max-merged 5", item.Priority)
			}
		}
	}
}

func TestQueueEnqueueIgnoredWhileRunning(t *testing.T) {
	exec := newBlockingExecutor()
	q := NewQueue(&QueueConfig{MaxConcurrent: 1, Executor: exec.exec})

	q.Enqueue(EnqueueRequest{ID: "dl-1", Target: nativeTarget(), Priority: 1})
	waitStart(t, exec)

	// Re-enqueueing a running item must not reinsert it.
	q.Enqueue(EnqueueRequest{ID: "dl-1", Target: nativeTarget(), Priority: 9})

	release(t, exec)
	waitIdle(t, q)
}

func TestQueueRetryExhaustionFiresTerminalOnce(t *testing.T) {
	var mu sync.Mutex
	var terminal []QueuedDownload

	q := NewQueue(&QueueConfig{
		MaxRetries: 3,
		Executor:   func(context.Context, *QueuedDownload) error { return nil },
		OnTerminalFailure: func(item QueuedDownload, err error) {
			mu.Lock()
			terminal = append(terminal, item)
			mu.Unlock()
		},
	})
	q.Pause()
	q.Enqueue(EnqueueRequest{ID: "dl-1", Target: nativeTarget(), Priority: 1})

	failure := errors.New("connection reset")
	for i := 0; i < 3; i++ {
		q.RequeueFailed("dl-1", failure)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(terminal) != 1 {
		t.Fatalf("terminal callbacks = %d, want exactly 1", len(terminal))
	}
	if terminal[0].RetryCount != 3 {
		t.Errorf("terminal retry count = %d, want 3", terminal[0].RetryCount)
	}
	if terminal[0].LastError != "connection reset" {
		t.Errorf("terminal last error = %q", terminal[0].LastError)
	}
	if got := totalItems(q.GetStatus()); got != 0 {
		t.Errorf("entries after exhaustion = %d, want 0", got)
	}
}

func TestQueueRequeueKeepsOriginalEnqueueTime(t *testing.T) {
	exec := newBlockingExecutor()
	q := NewQueue(&QueueConfig{MaxConcurrent: 1, MaxRetries: 5, Executor: exec.exec})
	q.Pause()

	q.Enqueue(EnqueueRequest{ID: "older", Target: nativeTarget(), Priority: 1})
	time.Sleep(10 * time.Millisecond)
	q.Enqueue(EnqueueRequest{ID: "newer", Target: nativeTarget(), Priority: 1})

	// A failed attempt must not push the item behind later arrivals.
	q.RequeueFailed("older", errors.New("timeout"))

	q.Resume()
	if id := waitStart(t, exec); id != "older" {
		t.Fatalf("first dispatch = %q, want the retried older item", id)
	}
	release(t, exec)
	if id := waitStart(t, exec); id != "newer" {
		t.Fatalf("second dispatch = %q, want %q", id, "newer")
	}
	release(t, exec)
	waitIdle(t, q)
}

func TestQueuePriorityOrderWithConcurrencyLimit(t *testing.T) {
	exec := newBlockingExecutor()
	q := NewQueue(&QueueConfig{MaxConcurrent: 2, Executor: exec.exec})
	q.Pause()

	ids := []string{"p1-a", "p3-a", "p2-a", "p1-b", "p3-b"}
	priorities := []int{1, 3, 2, 1, 3}
	for i, id := range ids {
		q.Enqueue(EnqueueRequest{ID: id, Target: nativeTarget(), Priority: priorities[i]})
		time.Sleep(5 * time.Millisecond)
	}

	q.Resume()

	// Both priority-3 items take the two slots before anything else.
	first := map[string]bool{waitStart(t, exec): true, waitStart(t, exec): true}
	if !first["p3-a"] || !first["p3-b"] {
		t.Fatalf("first wave = %v, want both priority-3 items", first)
	}

	release(t, exec)
	release(t, exec)

	// Slots refill in strict priority order, oldest first on ties.
	var order []string
	for i := 0; i < 3; i++ {
		order = append(order, waitStart(t, exec))
		release(t, exec)
	}
	want := []string{"p2-a", "p1-a", "p1-b"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}
	waitIdle(t, q)
}

func TestQueuePauseBlocksDispatch(t *testing.T) {
	exec := newBlockingExecutor()
	q := NewQueue(&QueueConfig{Executor: exec.exec})
	q.Pause()

	q.Enqueue(EnqueueRequest{ID: "dl-1", Target: nativeTarget(), Priority: 1})

	select {
	case id := <-exec.started:
		t.Fatalf("paused queue dispatched %q", id)
	case <-time.After(50 * time.Millisecond):
	}

	q.Resume()
	waitStart(t, exec)
	release(t, exec)
	waitIdle(t, q)
}

func TestQueuePerItemPause(t *testing.T) {
	exec := newBlockingExecutor()
	q := NewQueue(&QueueConfig{MaxConcurrent: 1, Executor: exec.exec})
	q.Pause()

	q.Enqueue(EnqueueRequest{ID: "held", Target: nativeTarget(), Priority: 5})
	q.Enqueue(EnqueueRequest{ID: "free", Target: nativeTarget(), Priority: 1})
	q.PauseItem("held")

	q.Resume()

	// The paused item is skipped even though it outranks the other.
	if id := waitStart(t, exec); id != "free" {
		t.Fatalf("dispatched %q with the higher-priority item paused", id)
	}
	release(t, exec)

	q.ResumeItem("held")
	if id := waitStart(t, exec); id != "held" {
		t.Fatalf("dispatched %q after per-item resume", id)
	}
	release(t, exec)
	waitIdle(t, q)
}

func TestQueueRestartClearsItemPauses(t *testing.T) {
	exec := newBlockingExecutor()
	q := NewQueue(&QueueConfig{Executor: exec.exec})
	q.Pause()

	q.Enqueue(EnqueueRequest{ID: "a", Target: nativeTarget(), Priority: 1})
	q.Enqueue(EnqueueRequest{ID: "b", Target: nativeTarget(), Priority: 1})
	q.PauseItem("a")
	q.PauseItem("b")

	q.Restart()

	seen := map[string]bool{waitStart(t, exec): true, waitStart(t, exec): true}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("restart dispatched %v, want both items", seen)
	}
	release(t, exec)
	release(t, exec)
	waitIdle(t, q)
}

func TestQueueStopCancelsInFlightAndClears(t *testing.T) {
	var mu sync.Mutex
	terminalCalls := 0

	exec := newBlockingExecutor()
	q := NewQueue(&QueueConfig{
		MaxConcurrent: 1,
		Executor:      exec.exec,
		OnTerminalFailure: func(QueuedDownload, error) {
			mu.Lock()
			terminalCalls++
			mu.Unlock()
		},
	})

	q.Enqueue(EnqueueRequest{ID: "in-flight", Target: nativeTarget(), Priority: 1})
	q.Enqueue(EnqueueRequest{ID: "waiting", Target: nativeTarget(), Priority: 1})
	waitStart(t, exec)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got := totalItems(q.GetStatus()); got != 0 {
		t.Errorf("entries after stop = %d, want 0", got)
	}

	mu.Lock()
	if terminalCalls != 0 {
		t.Errorf("stop produced %d terminal callbacks, want 0", terminalCalls)
	}
	mu.Unlock()

	// The queue stays usable after a stop.
	q.Enqueue(EnqueueRequest{ID: "fresh", Target: nativeTarget(), Priority: 1})
	if id := waitStart(t, exec); id != "fresh" {
		t.Fatalf("post-stop dispatch = %q", id)
	}
	release(t, exec)
	waitIdle(t, q)
}

func TestQueueStatusGrouping(t *testing.T) {
	q := NewQueue(&QueueConfig{Executor: func(context.Context, *QueuedDownload) error { return nil }})
	q.Pause()

	album := nativeTarget()
	album.AlbumID = "album-9"
	q.Enqueue(EnqueueRequest{ID: "grouped", Target: album, Priority: 1})

	single := nativeTarget()
	single.AlbumID = ""
	q.Enqueue(EnqueueRequest{ID: "solo", Target: single, Priority: 1})

	st := q.GetStatus()
	if len(st.Groups["album-9"]) != 1 {
		t.Errorf("album group items = %d, want 1", len(st.Groups["album-9"]))
	}
	if len(st.Groups[UngroupedKey]) != 1 {
		t.Errorf("ungrouped items = %d, want 1", len(st.Groups[UngroupedKey]))
	}
	if st.Queued != 2 || st.Running != 0 {
		t.Errorf("queued/running = %d/%d, want 2/0", st.Queued, st.Running)
	}
}
