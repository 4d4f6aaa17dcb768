package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// ClientStrategy saves directly to the caller's environment: the media
// stream is written to the configured download directory and progress
// events are forwarded phase-tagged, exactly as the transport reports
// them.
type ClientStrategy struct {
	transport Transport
	tagger    Tagger
	dir       string
}

// NewClientStrategy creates the direct-save backend. tagger may be nil
// when metadata embedding is unavailable.
func NewClientStrategy(transport Transport, tagger Tagger, dir string) *ClientStrategy {
	return &ClientStrategy{
		transport: transport,
		tagger:    tagger,
		dir:       dir,
	}
}

func (s *ClientStrategy) Execute(ctx context.Context, req *Request) (*StrategyResult, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	path := filepath.Join(s.dir, req.Filename)

	cover, err := s.fetchMedia(ctx, req, path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	if s.tagger != nil && (req.ConvertFormat || len(cover) > 0) {
		err := s.tagger.Embed(path, req.Track, cover, func(p float64) {
			req.report(ProgressEvent{Phase: PhaseEmbedding, Fraction: p})
		})
		if err != nil {
			os.Remove(path)
			return nil, fmt.Errorf("embed metadata: %w", err)
		}
	}

	return &StrategyResult{
		Message:  fmt.Sprintf("saved %s", req.Filename),
		Location: path,
	}, nil
}

// fetchMedia streams the track into path, fetching cover art in parallel
// when requested. Returns the cover bytes for the embed step.
func (s *ClientStrategy) fetchMedia(ctx context.Context, req *Request, path string) ([]byte, error) {
	g, gctx := errgroup.WithContext(ctx)

	var cover []byte
	if req.FetchCoverArt && req.Track.CoverURL != "" {
		g.Go(func() error {
			data, err := fetchAll(gctx, s.transport, req.Track.CoverURL)
			if err != nil {
				// Cover art is decoration; its failure never fails the download.
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

		out, err := os.Create(path)
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
		return nil, err
	}
	return cover, nil
}

// fetchAll reads an entire resource into memory.
func fetchAll(ctx context.Context, t Transport, url string) ([]byte, error) {
	resp, err := t.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
