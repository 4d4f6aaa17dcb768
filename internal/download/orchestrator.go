package download

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/tpepels/tidal-ui-sub001/internal/errors"
	"github.com/tpepels/tidal-ui-sub001/internal/logger"
)

// Result is the outcome of one download request. Success selects which
// fields are meaningful: Filename on success, Err on failure. TaskID is
// set whenever a UI task was created, so callers can offer retry.
type Result struct {
	Success  bool             `json:"success"`
	Filename string           `json:"filename,omitempty"`
	TaskID   string           `json:"task_id,omitempty"`
	Err      *apperrors.Error `json:"error,omitempty"`
}

// Orchestrator coordinates one download request end to end: resolve the
// target, set up the UI task, persist the attempt for retry, execute the
// selected strategy, and report the outcome through the sinks. One
// instance is created at the composition root and shared.
type Orchestrator struct {
	resolver   *Resolver
	strategies map[StrategyKind]Strategy
	ui         TaskUI
	notifier   Notifier
	log        *logger.Logger
	prefs      Preferences
	weight     float64
	attempts   *AttemptStore

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	Resolver       *Resolver
	Strategies     map[StrategyKind]Strategy
	UI             TaskUI
	Notifier       Notifier
	Logger         *logger.Logger
	Preferences    Preferences
	DownloadWeight float64
	MaxAttempts    int
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg *OrchestratorConfig) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = logger.Default().WithComponent("download")
	}
	return &Orchestrator{
		resolver:   cfg.Resolver,
		strategies: cfg.Strategies,
		ui:         cfg.UI,
		notifier:   cfg.Notifier,
		log:        log,
		prefs:      cfg.Preferences,
		weight:     cfg.DownloadWeight,
		attempts:   NewAttemptStore(cfg.MaxAttempts),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// DownloadTrack runs one download request to completion.
func (o *Orchestrator) DownloadTrack(ctx context.Context, target Target, opts *Options) Result {
	s := resolveOptions(opts, o.prefs)

	track, converted, rerr := o.resolver.Resolve(ctx, target, s.AutoResolve)
	if rerr != nil {
		// No UI task exists yet, so there is no partial state to clean up.
		o.log.Error(ctx, "resolve failed", rerr, map[string]interface{}{"track_id": target.ID})
		o.reportFailure(ctx, s.Notification, rerr, target)
		return Result{Success: false, Err: rerr}
	}

	filename := BuildFilename(track, s.Quality, s.ConvertFormat)

	taskID := uuid.New().String()
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	o.cancels[taskID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, taskID)
		o.mu.Unlock()
	}()

	taskCtx = apperrors.WithTaskID(taskCtx, taskID)

	o.ui.BeginTask(taskID, track, filename, TaskMeta{Quality: s.Quality, Storage: s.Storage})

	// Stored before execution begins: retry must remain possible even if
	// the process dies mid-download.
	o.attempts.Put(taskID, target, opts)

	strategy, ok := o.strategies[s.Strategy]
	if !ok {
		err := apperrors.Unknown(fmt.Sprintf("no %q execution strategy configured", s.Strategy))
		o.ui.ErrorTask(taskID, err.UserMessage)
		return Result{Success: false, TaskID: taskID, Err: err}
	}

	tracker := NewTracker(taskID, s.Storage, o.weight, o.ui)
	req := &Request{
		TaskID:         taskID,
		Track:          track,
		Quality:        s.Quality,
		Filename:       filename,
		Storage:        s.Storage,
		ConvertFormat:  s.ConvertFormat,
		FetchCoverArt:  s.FetchCoverArt,
		ConflictPolicy: s.ConflictPolicy,
		Progress:       tracker.OnProgress,
	}

	o.log.Info(taskCtx, "download started", map[string]interface{}{
		"track":     track.Title,
		"artist":    track.Artist,
		"strategy":  string(s.Strategy),
		"quality":   string(s.Quality),
		"converted": converted,
	})

	res, execErr := strategy.Execute(taskCtx, req)
	if execErr == nil {
		o.ui.CompleteTask(taskID)
		o.log.Success(taskCtx, "download complete", map[string]interface{}{"filename": filename})
		if res != nil && res.Message != "" {
			o.log.Info(taskCtx, res.Message)
		}
		if s.Notification == NotifyToast && o.notifier != nil {
			o.notifier.Notify(KindToast, fmt.Sprintf("Downloaded %s", filename))
		}
		return Result{Success: true, Filename: filename, TaskID: taskID}
	}

	// A deliberate cancellation is a user action, not an error: the task
	// closes as complete and nothing is alerted.
	if taskCtx.Err() == context.Canceled || errors.Is(execErr, context.Canceled) {
		o.ui.CompleteTask(taskID)
		o.log.Info(taskCtx, "download cancelled")
		return Result{Success: false, TaskID: taskID, Err: apperrors.Cancelled()}
	}

	classified := apperrors.Classify(execErr)
	o.ui.ErrorTask(taskID, classified.UserMessage)
	o.log.Error(taskCtx, "download failed", classified, map[string]interface{}{"track_id": track.ID})
	o.reportFailure(taskCtx, s.Notification, classified, target)

	return Result{Success: false, TaskID: taskID, Err: classified}
}

// RetryDownload replays a stored attempt with its original target and
// options. Once the attempt has been pruned the request is no longer
// reproducible.
func (o *Orchestrator) RetryDownload(ctx context.Context, taskID string) Result {
	attempt, ok := o.attempts.Get(taskID)
	if !ok {
		return Result{
			Success: false,
			Err:     apperrors.Unknown("this download attempt is no longer available, start it again from the track"),
		}
	}
	return o.DownloadTrack(ctx, attempt.Target, attempt.Options)
}

// CancelDownload signals the task's cancellation controller. Safe to call
// after the task has already finished.
func (o *Orchestrator) CancelDownload(taskID string) {
	o.mu.Lock()
	cancel, ok := o.cancels[taskID]
	o.mu.Unlock()
	if ok {
		cancel()
		o.ui.CancelTask(taskID)
	}
}

// Executor adapts the orchestrator as the queue's unit of work.
func (o *Orchestrator) Executor() Executor {
	return func(ctx context.Context, item *QueuedDownload) error {
		res := o.DownloadTrack(ctx, item.Target, item.Options)
		if res.Success {
			return nil
		}
		return res.Err
	}
}

func (o *Orchestrator) reportFailure(ctx context.Context, mode NotificationMode, err *apperrors.Error, target Target) {
	if o.notifier == nil {
		return
	}
	o.notifier.RecordError(err, map[string]any{
		"track_id": target.ID,
		"title":    target.Title,
	})
	switch mode {
	case NotifyAlert:
		o.notifier.Notify(KindAlert, err.UserMessage)
	case NotifyToast:
		o.notifier.Notify(KindToast, err.UserMessage)
	}
}
