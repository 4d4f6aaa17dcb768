package download

import (
	"context"
	"io"
)

// Request carries everything an execution backend needs for one attempt.
type Request struct {
	TaskID         string
	Track          Track
	Quality        Quality
	Filename       string
	Storage        StorageTarget
	ConvertFormat  bool
	FetchCoverArt  bool
	ConflictPolicy ConflictPolicy
	Progress       func(ProgressEvent)
}

func (r *Request) report(ev ProgressEvent) {
	if r.Progress != nil {
		r.Progress(ev)
	}
}

// StrategyResult is a successful execution outcome.
type StrategyResult struct {
	Message  string
	Location string
}

// Strategy is the common execution contract. Implementations are
// interchangeable and selected by caller option only.
type Strategy interface {
	Execute(ctx context.Context, req *Request) (*StrategyResult, error)
}

// progressReader reports received bytes through the request's progress
// callback while the media body streams through it.
type progressReader struct {
	r        io.Reader
	req      *Request
	total    int64
	received int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.received += int64(n)
		p.req.report(ProgressEvent{
			Phase:         PhaseDownloading,
			ReceivedBytes: p.received,
			TotalBytes:    p.total,
		})
	}
	return n, err
}
