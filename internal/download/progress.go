package download

// DefaultDownloadWeight is the share of the overall fraction assigned to
// the download phase for server-mediated saves; the remainder belongs to
// the upload phase.
const DefaultDownloadWeight = 0.55

// Embedding progress advances the tail of the download fraction so the
// bar visibly moves during tagging without crossing into upload range.
const (
	embedFloor = 0.85
	embedSpan  = 0.15
)

// When the total size is unknown the fraction is nudged forward a fixed
// increment instead of stalling at zero, bounded until a terminal signal.
const (
	unknownSizeStep    = 0.05
	unknownSizeCeiling = 0.9
)

// Tracker folds one in-flight attempt's heterogeneous progress events into
// a single non-decreasing completion fraction. Both per-phase fractions
// are ratchets: byte-count estimates can be non-monotonic near phase
// boundaries, so new values only ever move the fraction forward. A
// Tracker is owned by exactly one attempt and discarded with it.
type Tracker struct {
	taskID  string
	storage StorageTarget
	weight  float64
	ui      TaskUI

	downloadFrac float64
	uploadFrac   float64
}

// NewTracker creates a tracker for one attempt. weight is the download
// phase weight W for server-mediated saves; zero selects the default.
func NewTracker(taskID string, storage StorageTarget, weight float64, ui TaskUI) *Tracker {
	if weight <= 0 || weight >= 1 {
		weight = DefaultDownloadWeight
	}
	return &Tracker{
		taskID:  taskID,
		storage: storage,
		weight:  weight,
		ui:      ui,
	}
}

// OnProgress consumes one phase-tagged event. Tracker is not goroutine
// safe; strategies deliver events from a single goroutine per attempt.
func (t *Tracker) OnProgress(ev ProgressEvent) {
	switch ev.Phase {
	case PhaseDownloading:
		f := byteFraction(ev.ReceivedBytes, ev.TotalBytes, t.downloadFrac)
		t.downloadFrac = ratchet(t.downloadFrac, f)
	case PhaseEmbedding:
		f := embedFloor + clamp01(ev.Fraction)*embedSpan
		if t.storage == StorageClient {
			// Single combined phase range: the embed fraction is the
			// stage value itself, not a weighted tail.
			f = clamp01(ev.Fraction)
		}
		t.downloadFrac = ratchet(t.downloadFrac, f)
	case PhaseUploading:
		f := byteFraction(ev.UploadedBytes, ev.TotalBytes, t.uploadFrac)
		t.uploadFrac = ratchet(t.uploadFrac, f)
	default:
		return
	}

	if t.ui == nil {
		return
	}

	t.ui.UpdatePhase(t.taskID, ev.Phase, t.phaseFraction(ev.Phase))
	t.ui.UpdateProgress(t.taskID, t.Overall())
}

// Overall returns the folded completion fraction in [0,1].
func (t *Tracker) Overall() float64 {
	if t.storage == StorageClient {
		// Client-direct saves have no upload phase.
		return clamp01(t.downloadFrac)
	}
	return clamp01(t.downloadFrac*t.weight + t.uploadFrac*(1-t.weight))
}

// Fractions returns the current per-phase ratchet values.
func (t *Tracker) Fractions() (download, upload float64) {
	return t.downloadFrac, t.uploadFrac
}

func (t *Tracker) phaseFraction(phase Phase) float64 {
	if phase == PhaseUploading {
		return t.uploadFrac
	}
	return t.downloadFrac
}

func byteFraction(done, total int64, prev float64) float64 {
	if total > 0 {
		return clamp01(float64(done) / float64(total))
	}
	next := prev + unknownSizeStep
	if next > unknownSizeCeiling {
		next = unknownSizeCeiling
	}
	return next
}

func ratchet(prev, next float64) float64 {
	if next > prev {
		return next
	}
	return prev
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
