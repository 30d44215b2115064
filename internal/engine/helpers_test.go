package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voicebus.click/internal/audio"
)

const testRate = 1000

// gatedLoader resolves requests instantly unless the test holds their
// name, which lets a test choose resolution order
type gatedLoader struct {
	mu     sync.Mutex
	gates  map[string]chan struct{}
	frames int
}

func newGatedLoader(frames int) *gatedLoader {
	return &gatedLoader{gates: make(map[string]chan struct{}), frames: frames}
}

func (l *gatedLoader) hold(names ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range names {
		l.gates[name] = make(chan struct{})
	}
}

func (l *gatedLoader) release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	close(l.gates[name])
}

func (l *gatedLoader) Load(ctx context.Context, req *audio.Request) (*audio.Clip, error) {
	l.mu.Lock()
	gate := l.gates[req.Name]
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if strings.HasPrefix(req.Name, "missing") {
		return nil, &audio.ExhaustedCandidatesError{Name: req.Name}
	}
	return silentClip(req.Name, l.frames)
}

func silentClip(name string, frames int) (*audio.Clip, error) {
	return audio.NewClip("audio/se/"+name+".ogg", &audio.AudioData{
		Samples:    make([]byte, frames*4),
		Channels:   2,
		SampleRate: testRate,
		Precision:  2,
	})
}

// recorder collects observer events
type recorder struct {
	events []Event
}

func (r *recorder) observe(e Event) {
	r.events = append(r.events, e)
}

func (r *recorder) kinds(name string) []EventKind {
	var out []EventKind
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e.Kind)
		}
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T, loader Loader, mutate func(*Options)) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts := DefaultOptions()
	opts.Observers = []Observer{rec.observe}
	if mutate != nil {
		mutate(&opts)
	}
	return New(loader, audio.NewOutput(testRate), opts), rec
}

// step waits for one loop task, failing the test after a timeout
func step(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Loop().Step(ctx), "timed out waiting for loop task")
}

func names(voices []*audio.Voice) []string {
	out := make([]string, 0, len(voices))
	for _, v := range voices {
		out = append(out, v.Name())
	}
	return out
}

// errorCounter counts error-level records
type errorCounter struct {
	mu sync.Mutex
	n  int
}

func (h *errorCounter) Enabled(context.Context, slog.Level) bool { return true }

func (h *errorCounter) Handle(_ context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		h.mu.Lock()
		h.n++
		h.mu.Unlock()
	}
	return nil
}

func (h *errorCounter) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *errorCounter) WithGroup(string) slog.Handler      { return h }

func (h *errorCounter) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

func captureErrors(t *testing.T) *errorCounter {
	t.Helper()
	h := &errorCounter{}
	prev := slog.Default()
	slog.SetDefault(slog.New(h))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return h
}
