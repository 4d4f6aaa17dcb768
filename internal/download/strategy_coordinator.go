package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CoordinatorStrategy delegates to a transactional save coordinator that
// owns conflict resolution: the staged file's content hash travels with
// the save request so the coordinator can decide whether an existing
// object needs replacing at all.
type CoordinatorStrategy struct {
	transport   Transport
	coordinator SaveCoordinator
	tmpDir      string
}

// NewCoordinatorStrategy creates the transactional backend.
func NewCoordinatorStrategy(transport Transport, coordinator SaveCoordinator, tmpDir string) *CoordinatorStrategy {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &CoordinatorStrategy{
		transport:   transport,
		coordinator: coordinator,
		tmpDir:      tmpDir,
	}
}

func (s *CoordinatorStrategy) Execute(ctx context.Context, req *Request) (*StrategyResult, error) {
	staged := filepath.Join(s.tmpDir, fmt.Sprintf("%s.part", req.TaskID))
	defer os.Remove(staged)

	hash, size, err := s.stage(ctx, req, staged)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(staged)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	meta := ObjectMeta{
		Title:       req.Track.Title,
		Artist:      req.Track.Artist,
		Album:       req.Track.Album,
		ContentHash: hash,
		ContentType: contentTypeFor(req.Filename),
	}

	outcome, err := s.coordinator.Save(ctx, req.Filename, file, size, req.ConflictPolicy, meta, func(uploaded, total int64) {
		req.report(ProgressEvent{
			Phase:         PhaseUploading,
			UploadedBytes: uploaded,
			TotalBytes:    total,
		})
	})
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("saved %s", req.Filename)
	if !outcome.Written {
		message = fmt.Sprintf("%s already up to date (%s)", req.Filename, outcome.Reason)
		// The save was elided; report the upload phase as finished so the
		// overall fraction still reaches 1.
		req.report(ProgressEvent{Phase: PhaseUploading, UploadedBytes: size, TotalBytes: size})
	}

	return &StrategyResult{Message: message, Location: req.Filename}, nil
}

// stage downloads the media into path and returns its content hash.
func (s *CoordinatorStrategy) stage(ctx context.Context, req *Request, path string) (string, int64, error) {
	resp, err := s.transport.Fetch(ctx, req.Track.MediaURL)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}

	hasher := sha256.New()
	reader := &progressReader{r: io.TeeReader(resp.Body, hasher), req: req, total: resp.ContentLength}

	size, err := io.Copy(out, reader)
	if err != nil {
		out.Close()
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
