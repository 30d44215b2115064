package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// RequestState tracks an AudioRequest through the pipeline
type RequestState int32

const (
	RequestPending RequestState = iota
	RequestDecoding
	RequestReady
	RequestFailed
)

func (s RequestState) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestDecoding:
		return "decoding"
	case RequestReady:
		return "ready"
	case RequestFailed:
		return "failed"
	default:
		return fmt.Sprintf("RequestState(%d)", int32(s))
	}
}

// Request is one in-flight resolution of a logical sound name.
// Volume, Pitch and Pan are already resolved by the caller and are not
// validated here.
type Request struct {
	Name       string
	Extensions []string
	Volume     float64 // 0-100
	Pitch      float64 // percent, 100 = unmodified rate
	Pan        float64 // -100..100

	state atomic.Int32
	path  atomic.Pointer[string]
}

// NewRequest creates a pending request
func NewRequest(name string, extensions []string, volume, pitch, pan float64) *Request {
	return &Request{
		Name:       name,
		Extensions: extensions,
		Volume:     volume,
		Pitch:      pitch,
		Pan:        pan,
	}
}

// State returns the current pipeline state
func (r *Request) State() RequestState {
	return RequestState(r.state.Load())
}

// Path returns the candidate that resolved, or "" before Ready
func (r *Request) Path() string {
	if p := r.path.Load(); p != nil {
		return *p
	}
	return ""
}

// Gain is volume/100
func (r *Request) Gain() float64 {
	return r.Volume / 100
}

// Rate is pitch/100, unclamped
func (r *Request) Rate() float64 {
	return r.Pitch / 100
}

func (r *Request) setState(s RequestState) {
	r.state.Store(int32(s))
}

// Pipeline turns requests into clips: resolve candidates, then fetch and
// decode each in order until one succeeds.
type Pipeline struct {
	resolver   Resolver
	fetcher    Fetcher
	decoder    FileDecoder
	extensions []string
	timeout    time.Duration
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithTimeout bounds each candidate attempt. Zero disables the limit.
func WithTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithExtensions sets the extensions used when a request carries none
func WithExtensions(exts []string) PipelineOption {
	return func(p *Pipeline) {
		p.extensions = exts
	}
}

// WithDecoder replaces the default decoder registry
func WithDecoder(d FileDecoder) PipelineOption {
	return func(p *Pipeline) {
		p.decoder = d
	}
}

// DefaultExtensions are tried in order when nothing else is configured
var DefaultExtensions = []string{".ogg", ".m4a"}

// NewPipeline creates a pipeline over resolver and fetcher
func NewPipeline(resolver Resolver, fetcher Fetcher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver:   resolver,
		fetcher:    fetcher,
		decoder:    NewDefaultRegistry(),
		extensions: DefaultExtensions,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extensions returns the default candidate extensions
func (p *Pipeline) Extensions() []string {
	return p.extensions
}

// Load runs the request to a terminal state. On exhaustion the failure is
// logged once here and returned as *ExhaustedCandidatesError.
func (p *Pipeline) Load(ctx context.Context, req *Request) (*Clip, error) {
	req.setState(RequestDecoding)

	exts := req.Extensions
	if len(exts) == 0 {
		exts = p.extensions
	}
	candidates := p.resolver.Candidates(req.Name, exts)

	var last error
	for i, candidate := range candidates {
		clip, err := p.attempt(ctx, candidate)
		if err == nil {
			req.path.Store(&candidate)
			req.setState(RequestReady)
			slog.Debug("sound resolved",
				"name", req.Name,
				"path", candidate,
				"candidate_index", i,
				"frames", clip.Len())
			return clip, nil
		}
		last = err
		if ctx.Err() != nil {
			break
		}
		slog.Debug("candidate failed, trying next",
			"name", req.Name,
			"path", candidate,
			"candidate_index", i,
			"error", err)
	}

	req.setState(RequestFailed)
	exhausted := &ExhaustedCandidatesError{
		Name:       req.Name,
		Candidates: candidates,
		Last:       last,
	}
	if ctx.Err() != nil {
		slog.Debug("sound load canceled",
			"name", req.Name,
			"error", ctx.Err())
		return nil, exhausted
	}
	slog.Error("sound could not be loaded",
		"name", req.Name,
		"candidates", candidates,
		"error", exhausted)
	return nil, exhausted
}

type attemptResult struct {
	clip *Clip
	err  error
}

// attempt fetches and decodes one candidate. The fetch itself cannot be
// aborted; on timeout its result is abandoned.
func (p *Pipeline) attempt(ctx context.Context, path string) (*Clip, error) {
	if p.timeout <= 0 {
		return p.fetchAndDecode(ctx, path)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		clip, err := p.fetchAndDecode(attemptCtx, path)
		done <- attemptResult{clip: clip, err: err}
	}()

	select {
	case res := <-done:
		return res.clip, res.err
	case <-attemptCtx.Done():
		return nil, &FetchError{Path: path, Err: attemptCtx.Err()}
	}
}

func (p *Pipeline) fetchAndDecode(ctx context.Context, path string) (*Clip, error) {
	data, err := p.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, &FetchError{Path: path, Err: err}
	}

	pcm, err := p.decoder.DecodeFile(path, bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	clip, err := NewClip(path, pcm)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	clip.Bytes = len(data)
	return clip, nil
}
