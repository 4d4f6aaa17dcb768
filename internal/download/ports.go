package download

import (
	"context"
	"io"

	"github.com/tpepels/tidal-ui-sub001/internal/transport"
)

// Phase tags a progress event with its pipeline stage.
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseEmbedding   Phase = "embedding"
	PhaseUploading   Phase = "uploading"
)

// ProgressEvent is one phase-tagged progress observation. TotalBytes is
// zero when the source did not report a size; Fraction is only meaningful
// for the embedding phase.
type ProgressEvent struct {
	Phase         Phase
	ReceivedBytes int64
	UploadedBytes int64
	TotalBytes    int64
	Fraction      float64
}

// TaskMeta carries display metadata for a UI task.
type TaskMeta struct {
	Quality Quality
	Storage StorageTarget
}

// TaskUI is the UI-visible task surface. Implementations must tolerate
// calls for task IDs they have already discarded.
type TaskUI interface {
	BeginTask(taskID string, track Track, filename string, meta TaskMeta)
	UpdatePhase(taskID string, phase Phase, fraction float64)
	UpdateProgress(taskID string, overall float64)
	CompleteTask(taskID string)
	ErrorTask(taskID string, message string)
	CancelTask(taskID string)
}

// NotificationKind selects the surface a notification is shown on.
type NotificationKind string

const (
	KindAlert NotificationKind = "alert"
	KindToast NotificationKind = "toast"
)

// Notifier receives user-facing notifications and error telemetry.
type Notifier interface {
	Notify(kind NotificationKind, message string)
	RecordError(err error, context map[string]any)
}

// Converter turns a foreign reference into a native, downloadable track.
type Converter interface {
	ConvertToNative(ctx context.Context, target Target) (Track, error)
}

// Transport performs the actual byte transfer. The implementation owns
// timeouts and byte-level retry; failures surfacing here are final for
// the attempt.
type Transport interface {
	Fetch(ctx context.Context, url string) (*transport.Response, error)
}

// Tagger embeds metadata and cover art into a downloaded file.
type Tagger interface {
	Embed(path string, track Track, cover []byte, progress func(float64)) error
}

// ObjectStore is the server-mediated storage sink.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress func(uploaded, total int64)) error
}

// ObjectMeta describes the object a SaveCoordinator is asked to store.
type ObjectMeta struct {
	Title       string
	Artist      string
	Album       string
	ContentHash string
	ContentType string
}

// SaveOutcome reports what a transactional save actually did.
type SaveOutcome struct {
	Written bool
	Reason  string
}

// SaveCoordinator is a transactional save operation with conflict
// resolution: it owns the decision whether an existing object is replaced.
type SaveCoordinator interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, policy ConflictPolicy, meta ObjectMeta, progress func(uploaded, total int64)) (*SaveOutcome, error)
}
