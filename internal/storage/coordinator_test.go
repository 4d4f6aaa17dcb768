package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/tpepels/tidal-ui-sub001/internal/download"
)

func TestResolveConflict(t *testing.T) {
	tests := []struct {
		name         string
		policy       download.ConflictPolicy
		exists       bool
		existingHash string
		newHash      string
		wantWrite    bool
	}{
		{"overwrite always writes", download.ConflictOverwrite, true, "abc", "abc", true},
		{"overwrite writes when missing", download.ConflictOverwrite, false, "", "abc", true},
		{"skip elides existing", download.ConflictSkip, true, "abc", "def", false},
		{"skip writes when missing", download.ConflictSkip, false, "", "abc", true},
		{"if_changed elides identical", download.ConflictIfChanged, true, "abc", "abc", false},
		{"if_changed writes changed", download.ConflictIfChanged, true, "abc", "def", true},
		{"if_changed writes when missing", download.ConflictIfChanged, false, "", "abc", true},
		{"if_changed writes when unverifiable", download.ConflictIfChanged, true, "", "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			write, reason := resolveConflict(tt.policy, tt.exists, tt.existingHash, tt.newHash)
			if write != tt.wantWrite {
				t.Errorf("write = %v, want %v", write, tt.wantWrite)
			}
			if !write && reason == "" {
				t.Error("an elided save must carry a reason")
			}
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	if !isNotFoundError(errors.New("operation error S3: HeadObject, https response error StatusCode: 404")) {
		t.Error("404 response not recognized")
	}
	if !isNotFoundError(errors.New("NoSuchKey: the specified key does not exist")) {
		t.Error("NoSuchKey not recognized")
	}
	if isNotFoundError(errors.New("access denied")) {
		t.Error("access denied misclassified as not-found")
	}
	if isNotFoundError(nil) {
		t.Error("nil error misclassified")
	}
}

func TestCountingReaderReportsCumulativeProgress(t *testing.T) {
	var uploads []int64
	var totals []int64
	cr := &countingReader{
		r:     strings.NewReader("0123456789"),
		total: 10,
		report: func(uploaded, total int64) {
			uploads = append(uploads, uploaded)
			totals = append(totals, total)
		},
	}

	buf := make([]byte, 4)
	for {
		if _, err := cr.Read(buf); err != nil {
			break
		}
	}

	if len(uploads) == 0 {
		t.Fatal("no progress reported")
	}
	var prev int64
	for i, u := range uploads {
		if u < prev {
			t.Fatalf("cumulative count regressed: %v", uploads)
		}
		prev = u
		if totals[i] != 10 {
			t.Errorf("total = %d, want 10", totals[i])
		}
	}
	if uploads[len(uploads)-1] != 10 {
		t.Errorf("final cumulative count = %d, want 10", uploads[len(uploads)-1])
	}

	// An unknown size must never surface as a negative total.
	cr = &countingReader{r: strings.NewReader("xx"), total: -1, report: func(_, total int64) {
		if total != 0 {
			t.Errorf("unknown-size total = %d, want 0", total)
		}
	}}
	_, _ = cr.Read(buf)
}

func TestMetadataKeyFor(t *testing.T) {
	if got := metadataKeyFor("Artist - Song [LOSSLESS].flac"); got != "Artist - Song [LOSSLESS].flac.meta.json" {
		t.Errorf("metadata key = %q", got)
	}
}
