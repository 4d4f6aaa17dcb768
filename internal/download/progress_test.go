package download

import (
	"math"
	"sync"
	"testing"
)

// recordingUI captures UI task calls for assertions.
type recordingUI struct {
	mu        sync.Mutex
	begun     []string
	phases    []Phase
	stages    []float64
	progress  []float64
	completed []string
	errored   map[string]string
	cancelled []string
}

func newRecordingUI() *recordingUI {
	return &recordingUI{errored: make(map[string]string)}
}

func (r *recordingUI) BeginTask(taskID string, track Track, filename string, meta TaskMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begun = append(r.begun, taskID)
}

func (r *recordingUI) UpdatePhase(taskID string, phase Phase, fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
	r.stages = append(r.stages, fraction)
}

func (r *recordingUI) UpdateProgress(taskID string, overall float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, overall)
}

func (r *recordingUI) CompleteTask(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, taskID)
}

func (r *recordingUI) ErrorTask(taskID string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errored[taskID] = message
}

func (r *recordingUI) CancelTask(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, taskID)
}

func TestTracker_DownloadRatchet(t *testing.T) {
	tr := NewTracker("t1", StorageServer, 0, nil)

	// Byte counts regress near a phase boundary; the fraction must not.
	sequence := []int64{100, 400, 900, 700, 1000}
	var prev float64
	for _, received := range sequence {
		tr.OnProgress(ProgressEvent{Phase: PhaseDownloading, ReceivedBytes: received, TotalBytes: 1000})
		dl, _ := tr.Fractions()
		if dl < prev {
			t.Fatalf("download fraction regressed: %f -> %f", prev, dl)
		}
		prev = dl
	}

	dl, _ := tr.Fractions()
	if dl != 1.0 {
		t.Errorf("final download fraction = %f, want 1.0", dl)
	}
}

func TestTracker_UnknownTotalNudgesForward(t *testing.T) {
	tr := NewTracker("t1", StorageServer, 0, nil)

	for i := 0; i < 30; i++ {
		tr.OnProgress(ProgressEvent{Phase: PhaseDownloading, ReceivedBytes: int64(i * 1024)})
	}

	dl, _ := tr.Fractions()
	if dl <= 0 {
		t.Error("fraction should advance even without a total size")
	}
	if dl > unknownSizeCeiling {
		t.Errorf("fraction %f exceeded the unknown-size ceiling %f", dl, unknownSizeCeiling)
	}
}

func TestTracker_ServerWeighting(t *testing.T) {
	tr := NewTracker("t1", StorageServer, 0.55, nil)

	tr.OnProgress(ProgressEvent{Phase: PhaseDownloading, ReceivedBytes: 1000, TotalBytes: 1000})
	if got, want := tr.Overall(), 0.55; math.Abs(got-want) > 1e-9 {
		t.Errorf("overall after download = %f, want %f", got, want)
	}

	tr.OnProgress(ProgressEvent{Phase: PhaseUploading, UploadedBytes: 500, TotalBytes: 1000})
	if got, want := tr.Overall(), 0.55+0.5*0.45; math.Abs(got-want) > 1e-9 {
		t.Errorf("overall mid-upload = %f, want %f", got, want)
	}

	tr.OnProgress(ProgressEvent{Phase: PhaseUploading, UploadedBytes: 1000, TotalBytes: 1000})
	if got := tr.Overall(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("overall at completion = %f, want 1.0", got)
	}
}

func TestTracker_EmbeddingMapsIntoDownloadTail(t *testing.T) {
	tr := NewTracker("t1", StorageServer, 0.55, nil)

	tr.OnProgress(ProgressEvent{Phase: PhaseDownloading, ReceivedBytes: 1000, TotalBytes: 1000})
	tr.OnProgress(ProgressEvent{Phase: PhaseEmbedding, Fraction: 0.0})

	dl, _ := tr.Fractions()
	if dl != 1.0 {
		t.Errorf("embedding at 0 must not pull a finished download back, got %f", dl)
	}

	tr = NewTracker("t2", StorageServer, 0.55, nil)
	tr.OnProgress(ProgressEvent{Phase: PhaseDownloading, ReceivedBytes: 800, TotalBytes: 1000})
	tr.OnProgress(ProgressEvent{Phase: PhaseEmbedding, Fraction: 0.5})

	dl, _ = tr.Fractions()
	if want := 0.85 + 0.5*0.15; math.Abs(dl-want) > 1e-9 {
		t.Errorf("embed-mapped fraction = %f, want %f", dl, want)
	}

	tr.OnProgress(ProgressEvent{Phase: PhaseEmbedding, Fraction: 1.0})
	dl, _ = tr.Fractions()
	if dl != 1.0 {
		t.Errorf("embedding complete should reach the download ceiling, got %f", dl)
	}
}

func TestTracker_ClientForwardsPhases(t *testing.T) {
	ui := newRecordingUI()
	tr := NewTracker("t1", StorageClient, 0, ui)

	tr.OnProgress(ProgressEvent{Phase: PhaseDownloading, ReceivedBytes: 500, TotalBytes: 1000})
	tr.OnProgress(ProgressEvent{Phase: PhaseEmbedding, Fraction: 1.0})

	if len(ui.phases) != 2 || ui.phases[0] != PhaseDownloading || ui.phases[1] != PhaseEmbedding {
		t.Fatalf("phase sequence = %v", ui.phases)
	}

	// The stage value must end at 1.0 and never drop below a value
	// already reported.
	var prev float64
	for _, v := range ui.stages {
		if v < prev {
			t.Fatalf("stage value regressed: %v", ui.stages)
		}
		prev = v
	}
	if ui.stages[len(ui.stages)-1] != 1.0 {
		t.Errorf("final stage value = %f, want 1.0", ui.stages[len(ui.stages)-1])
	}
}

func TestTracker_OverallNeverDecreases(t *testing.T) {
	tr := NewTracker("t1", StorageServer, 0.55, nil)

	events := []ProgressEvent{
		{Phase: PhaseDownloading, ReceivedBytes: 300, TotalBytes: 1000},
		{Phase: PhaseDownloading, ReceivedBytes: 200, TotalBytes: 1000},
		{Phase: PhaseEmbedding, Fraction: 0.2},
		{Phase: PhaseEmbedding, Fraction: 0.1},
		{Phase: PhaseUploading, UploadedBytes: 100, TotalBytes: 1000},
		{Phase: PhaseUploading, UploadedBytes: 50, TotalBytes: 1000},
		{Phase: PhaseUploading, UploadedBytes: 1000, TotalBytes: 1000},
	}

	var prev float64
	for i, ev := range events {
		tr.OnProgress(ev)
		if got := tr.Overall(); got < prev {
			t.Fatalf("overall regressed at event %d: %f -> %f", i, prev, got)
		} else {
			prev = got
		}
	}
}
