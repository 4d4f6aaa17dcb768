package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// ServerStrategy delegates to a server-side save: the media is staged
// locally, metadata is embedded, and the result is uploaded to the
// object store. Its three-phase progress (download, embed, upload) is
// normalized into the common event shape before reaching the tracker.
type ServerStrategy struct {
	transport Transport
	store     ObjectStore
	tagger    Tagger
	tmpDir    string
}

// NewServerStrategy creates the server-mediated backend.
func NewServerStrategy(transport Transport, store ObjectStore, tagger Tagger, tmpDir string) *ServerStrategy {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &ServerStrategy{
		transport: transport,
		store:     store,
		tagger:    tagger,
		tmpDir:    tmpDir,
	}
}

func (s *ServerStrategy) Execute(ctx context.Context, req *Request) (*StrategyResult, error) {
	staged, cover, err := s.stage(ctx, req)
	if err != nil {
		return nil, err
	}
	defer os.Remove(staged)

	if s.tagger != nil {
		err := s.tagger.Embed(staged, req.Track, cover, func(p float64) {
			req.report(ProgressEvent{Phase: PhaseEmbedding, Fraction: p})
		})
		if err != nil {
			return nil, fmt.Errorf("embed metadata: %w", err)
		}
	}

	if err := s.upload(ctx, req, staged); err != nil {
		return nil, err
	}

	return &StrategyResult{
		Message:  fmt.Sprintf("uploaded %s", req.Filename),
		Location: req.Filename,
	}, nil
}

func (s *ServerStrategy) stage(ctx context.Context, req *Request) (string, []byte, error) {
	staged := filepath.Join(s.tmpDir, fmt.Sprintf("%s.part", req.TaskID))

	g, gctx := errgroup.WithContext(ctx)

	var cover []byte
	if req.FetchCoverArt && req.Track.CoverURL != "" {
		g.Go(func() error {
			data, err := fetchAll(gctx, s.transport, req.Track.CoverURL)
			if err != nil {
				return nil
			}
			cover = data
			return nil
		})
	}

	g.Go(func() error {
		resp, err := s.transport.Fetch(gctx, req.Track.MediaURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		out, err := os.Create(staged)
		if err != nil {
			return err
		}

		reader := &progressReader{r: resp.Body, req: req, total: resp.ContentLength}
		if _, err := io.Copy(out, reader); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})

	if err := g.Wait(); err != nil {
		os.Remove(staged)
		return "", nil, err
	}
	return staged, cover, nil
}

func (s *ServerStrategy) upload(ctx context.Context, req *Request, staged string) error {
	file, err := os.Open(staged)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	return s.store.Put(ctx, req.Filename, file, info.Size(), contentTypeFor(req.Filename), func(uploaded, total int64) {
		req.report(ProgressEvent{
			Phase:         PhaseUploading,
			UploadedBytes: uploaded,
			TotalBytes:    total,
		})
	})
}

func contentTypeFor(filename string) string {
	switch filepath.Ext(filename) {
	case ".flac":
		return "audio/flac"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
