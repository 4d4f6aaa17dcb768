package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tpepels/tidal-ui-sub001/internal/transport"
)

type fakeTransport struct {
	bodies map[string]string
	failed map[string]bool
}

func (f *fakeTransport) Fetch(ctx context.Context, url string) (*transport.Response, error) {
	if f.failed[url] {
		return nil, errors.New("connection refused")
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return &transport.Response{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		ContentType:   "audio/flac",
	}, nil
}

type fakeTagger struct {
	path  string
	cover []byte
	err   error
}

func (f *fakeTagger) Embed(path string, track Track, cover []byte, progress func(float64)) error {
	f.path = path
	f.cover = cover
	if progress != nil {
		progress(1)
	}
	return f.err
}

type fakeStore struct {
	key         string
	contentType string
	size        int64
	data        []byte
}

func (f *fakeStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress func(uploaded, total int64)) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.key = key
	f.contentType = contentType
	f.size = size
	f.data = data
	if progress != nil {
		progress(size, size)
	}
	return nil
}

type fakeCoordinator struct {
	key     string
	size    int64
	policy  ConflictPolicy
	meta    ObjectMeta
	outcome SaveOutcome
	err     error
}

func (f *fakeCoordinator) Save(ctx context.Context, key string, r io.Reader, size int64, policy ConflictPolicy, meta ObjectMeta, progress func(uploaded, total int64)) (*SaveOutcome, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	f.key = key
	f.size = size
	f.policy = policy
	f.meta = meta
	if f.err != nil {
		return nil, f.err
	}
	if progress != nil && f.outcome.Written {
		progress(size, size)
	}
	out := f.outcome
	return &out, nil
}

func mediaRequest(events *[]ProgressEvent) *Request {
	return &Request{
		TaskID:   "task-1",
		Track:    Track{ID: "42", Title: "Song", Artist: "Artist", MediaURL: "https://catalog/42"},
		Filename: "Artist - Song.flac",
		Progress: func(ev ProgressEvent) {
			if events != nil {
				*events = append(*events, ev)
			}
		},
	}
}

func TestClientStrategy_SavesToDownloadDir(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTransport{bodies: map[string]string{"https://catalog/42": "media-bytes"}}
	s := NewClientStrategy(tr, nil, dir)

	var events []ProgressEvent
	res, err := s.Execute(context.Background(), mediaRequest(&events))
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Artist - Song.flac"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "media-bytes" {
		t.Errorf("file content = %q", data)
	}
	if res.Location != filepath.Join(dir, "Artist - Song.flac") {
		t.Errorf("location = %s", res.Location)
	}

	last := events[len(events)-1]
	if last.Phase != PhaseDownloading || last.ReceivedBytes != int64(len("media-bytes")) {
		t.Errorf("last event = %+v", last)
	}
}

func TestClientStrategy_EmbedsCoverArt(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTransport{bodies: map[string]string{
		"https://catalog/42": "media-bytes",
		"https://covers/42":  "cover-bytes",
	}}
	tagger := &fakeTagger{}
	s := NewClientStrategy(tr, tagger, dir)

	req := mediaRequest(nil)
	req.Track.CoverURL = "https://covers/42"
	req.FetchCoverArt = true

	if _, err := s.Execute(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if string(tagger.cover) != "cover-bytes" {
		t.Errorf("cover = %q", tagger.cover)
	}
	if tagger.path != filepath.Join(dir, "Artist - Song.flac") {
		t.Errorf("embed path = %s", tagger.path)
	}
}

func TestClientStrategy_CoverFailureDoesNotFailDownload(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTransport{
		bodies: map[string]string{"https://catalog/42": "media-bytes"},
		failed: map[string]bool{"https://covers/42": true},
	}
	s := NewClientStrategy(tr, &fakeTagger{}, dir)

	req := mediaRequest(nil)
	req.Track.CoverURL = "https://covers/42"
	req.FetchCoverArt = true

	if _, err := s.Execute(context.Background(), req); err != nil {
		t.Fatalf("cover failure surfaced: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Artist - Song.flac")); err != nil {
		t.Error("media file missing")
	}
}

func TestClientStrategy_RemovesFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTransport{failed: map[string]bool{"https://catalog/42": true}}
	s := NewClientStrategy(tr, nil, dir)

	if _, err := s.Execute(context.Background(), mediaRequest(nil)); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(filepath.Join(dir, "Artist - Song.flac")); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}
}

func TestClientStrategy_RemovesFileOnEmbedFailure(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTransport{bodies: map[string]string{"https://catalog/42": "media-bytes"}}
	tagger := &fakeTagger{err: errors.New("corrupt header")}
	s := NewClientStrategy(tr, tagger, dir)

	req := mediaRequest(nil)
	req.ConvertFormat = true

	if _, err := s.Execute(context.Background(), req); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(filepath.Join(dir, "Artist - Song.flac")); !os.IsNotExist(err) {
		t.Error("file left behind after embed failure")
	}
}

func TestCoordinatorStrategy_PassesContentHash(t *testing.T) {
	tr := &fakeTransport{bodies: map[string]string{"https://catalog/42": "media-bytes"}}
	coord := &fakeCoordinator{outcome: SaveOutcome{Written: true}}
	s := NewCoordinatorStrategy(tr, coord, t.TempDir())

	req := mediaRequest(nil)
	req.ConflictPolicy = ConflictIfChanged

	res, err := s.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256([]byte("media-bytes"))
	if coord.meta.ContentHash != hex.EncodeToString(sum[:]) {
		t.Errorf("content hash = %s", coord.meta.ContentHash)
	}
	if coord.policy != ConflictIfChanged {
		t.Errorf("policy = %s", coord.policy)
	}
	if coord.key != "Artist - Song.flac" || coord.size != int64(len("media-bytes")) {
		t.Errorf("save call = %s/%d", coord.key, coord.size)
	}
	if res.Location != "Artist - Song.flac" {
		t.Errorf("location = %s", res.Location)
	}
}

func TestCoordinatorStrategy_ElidedSaveCompletesProgress(t *testing.T) {
	tr := &fakeTransport{bodies: map[string]string{"https://catalog/42": "media-bytes"}}
	coord := &fakeCoordinator{outcome: SaveOutcome{Written: false, Reason: "content unchanged"}}
	s := NewCoordinatorStrategy(tr, coord, t.TempDir())

	var events []ProgressEvent
	res, err := s.Execute(context.Background(), mediaRequest(&events))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Message, "already up to date") {
		t.Errorf("message = %s", res.Message)
	}

	last := events[len(events)-1]
	if last.Phase != PhaseUploading || last.UploadedBytes != last.TotalBytes || last.TotalBytes == 0 {
		t.Errorf("last event = %+v, want completed upload", last)
	}
}

func TestCoordinatorStrategy_CleansUpStagedFile(t *testing.T) {
	tmp := t.TempDir()
	tr := &fakeTransport{bodies: map[string]string{"https://catalog/42": "media-bytes"}}
	coord := &fakeCoordinator{outcome: SaveOutcome{Written: true}}
	s := NewCoordinatorStrategy(tr, coord, tmp)

	if _, err := s.Execute(context.Background(), mediaRequest(nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "task-1.part")); !os.IsNotExist(err) {
		t.Error("staged file left behind")
	}
}

func TestServerStrategy_UploadsTaggedFile(t *testing.T) {
	tmp := t.TempDir()
	tr := &fakeTransport{bodies: map[string]string{
		"https://catalog/42": "media-bytes",
		"https://covers/42":  "cover-bytes",
	}}
	store := &fakeStore{}
	tagger := &fakeTagger{}
	s := NewServerStrategy(tr, store, tagger, tmp)

	var events []ProgressEvent
	req := mediaRequest(&events)
	req.Track.CoverURL = "https://covers/42"
	req.FetchCoverArt = true

	res, err := s.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if store.key != "Artist - Song.flac" {
		t.Errorf("uploaded key = %s", store.key)
	}
	if store.contentType != "audio/flac" {
		t.Errorf("content type = %s", store.contentType)
	}
	if string(store.data) != "media-bytes" {
		t.Errorf("uploaded bytes = %q", store.data)
	}
	if string(tagger.cover) != "cover-bytes" {
		t.Errorf("cover = %q", tagger.cover)
	}
	if res.Location != "Artist - Song.flac" {
		t.Errorf("location = %s", res.Location)
	}
	if _, err := os.Stat(filepath.Join(tmp, "task-1.part")); !os.IsNotExist(err) {
		t.Error("staged file left behind")
	}

	phases := map[Phase]bool{}
	for _, ev := range events {
		phases[ev.Phase] = true
	}
	for _, want := range []Phase{PhaseDownloading, PhaseEmbedding, PhaseUploading} {
		if !phases[want] {
			t.Errorf("missing %s phase event", want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"a.flac", "audio/flac"},
		{"a.mp3", "audio/mpeg"},
		{"a.m4a", "audio/mp4"},
		{"a.bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := contentTypeFor(tt.filename); got != tt.want {
			t.Errorf("contentTypeFor(%s) = %s, want %s", tt.filename, got, tt.want)
		}
	}
}
