package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"voicebus.click/internal/audio"
	"voicebus.click/internal/engine"
	"voicebus.click/internal/observe"
	"voicebus.click/internal/soundpack"
	"voicebus.click/internal/tracking"
)

const sampleRate = 8000

const manifest = `name: integration
sounds:
  Cursor1: se/cursor
  Buzzer1: se/buzzer
  Decision1: se/decision
  hello: voice/line01
  bye: voice/line02
`

// recorder collects engine events for assertions from the test goroutine
type recorder struct {
	mu     sync.Mutex
	events []engine.Event
}

func (r *recorder) observe(ev engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(kind engine.EventKind, slot engine.Slot, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind && ev.Slot == slot && (name == "" || ev.Name == name) {
			n++
		}
	}
	return n
}

// gatedFetcher holds back fetches of paths containing a marker until released
type gatedFetcher struct {
	inner   audio.Fetcher
	marker  string
	release chan struct{}
}

func (g *gatedFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	if strings.Contains(path, g.marker) {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.inner.Fetch(ctx, path)
}

type harness struct {
	engine  *engine.Engine
	events  *recorder
	db      *sql.DB
	hook    *tracking.DBHook
	reader  *sdkmetric.ManualReader
	release chan struct{}
	cancel  context.CancelFunc
	done    chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/pack/soundpack.yaml", []byte(manifest), 0644))
	for path, frames := range map[string]int{
		"/pack/se/cursor.wav":    sampleRate * 4,
		"/pack/se/buzzer.wav":    sampleRate * 4,
		"/pack/se/decision.wav":  sampleRate * 4,
		"/pack/voice/line01.wav": sampleRate * 4,
		"/pack/voice/line02.wav": sampleRate * 4,
		"/audio/Cancel1.wav":     sampleRate / 10,
	} {
		require.NoError(t, afero.WriteFile(fs, path, generateWAV(sampleRate, frames), 0644))
	}

	resolver, err := soundpack.Open(fs, "/pack/soundpack.yaml", "/audio", nil)
	require.NoError(t, err)

	release := make(chan struct{})
	fetcher := &gatedFetcher{inner: audio.NewFsFetcher(fs), marker: "line01", release: release}
	pipeline := audio.NewPipeline(resolver, fetcher,
		audio.WithExtensions([]string{".ogg", ".wav"}),
		audio.WithTimeout(5*time.Second))

	db, err := tracking.NewDatabase(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	hook := tracking.NewDBHook(db, "integration")

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	events := &recorder{}
	opts := engine.DefaultOptions()
	opts.Capacity = 2
	opts.FadeFrames = 3
	opts.Observers = []engine.Observer{events.observe, hook.Observer(), metrics.Observer()}

	out := audio.NewOutput(sampleRate)
	eng := engine.New(pipeline, out, opts)

	backend := audio.NewNullBackend()
	require.NoError(t, backend.Start(out, sampleRate))
	t.Cleanup(func() { backend.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	h := &harness{
		engine:  eng,
		events:  events,
		db:      db,
		hook:    hook,
		reader:  reader,
		release: release,
		cancel:  cancel,
		done:    done,
	}
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	select {
	case <-h.release:
	default:
		close(h.release)
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = h.engine.Close(closeCtx)
	h.cancel()
	<-h.done
}

func (h *harness) waitFor(t *testing.T, kind engine.EventKind, slot engine.Slot, name string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.events.count(kind, slot, name) >= n
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d %s %s events for %q", n, slot, kind, name)
}

func TestBusEvictsOldestAcrossPipeline(t *testing.T) {
	h := newHarness(t)

	h.engine.PlaySE("Cursor1")
	h.waitFor(t, engine.EventStarted, engine.SlotBus, "Cursor1", 1)
	h.engine.PlaySE("Buzzer1")
	h.waitFor(t, engine.EventStarted, engine.SlotBus, "Buzzer1", 1)
	h.engine.PlaySE("Decision1")
	h.waitFor(t, engine.EventStarted, engine.SlotBus, "Decision1", 1)

	assert.Equal(t, 1, h.events.count(engine.EventEvicted, engine.SlotBus, "Cursor1"))
	assert.Zero(t, h.events.count(engine.EventEvicted, engine.SlotBus, "Buzzer1"))

	snap, err := h.engine.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.BusActive, 2)

	h.engine.StopAll()
	h.waitFor(t, engine.EventStopped, engine.SlotBus, "", 2)
	assert.Equal(t, 1, h.events.count(engine.EventStopped, engine.SlotBus, "Buzzer1"))
	assert.Equal(t, 1, h.events.count(engine.EventStopped, engine.SlotBus, "Decision1"))
}

func TestBusFallsBackToAudioDirAndCompletes(t *testing.T) {
	h := newHarness(t)

	h.engine.PlaySE("Cancel1")
	h.waitFor(t, engine.EventCompleted, engine.SlotBus, "Cancel1", 1)

	h.engine.PlaySE("Missing1")
	h.waitFor(t, engine.EventFailed, engine.SlotBus, "Missing1", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.engine.WaitIdle(ctx, 5*time.Millisecond))
}

func TestChannelSupersedesSlowLoad(t *testing.T) {
	h := newHarness(t)

	h.engine.PlayVoice("hello")
	h.engine.PlayVoice("bye")
	h.waitFor(t, engine.EventStarted, engine.SlotChannel, "bye", 1)

	close(h.release)
	h.waitFor(t, engine.EventSuperseded, engine.SlotChannel, "hello", 1)
	assert.Zero(t, h.events.count(engine.EventStarted, engine.SlotChannel, "hello"))

	h.engine.SkipVoice()
	h.waitFor(t, engine.EventFaded, engine.SlotChannel, "bye", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.engine.WaitIdle(ctx, 5*time.Millisecond))
}

func TestChannelPlayCutsCurrentVoice(t *testing.T) {
	h := newHarness(t)
	close(h.release)

	h.engine.PlayVoice("hello")
	h.waitFor(t, engine.EventStarted, engine.SlotChannel, "hello", 1)

	h.engine.PlayVoice("bye")
	h.waitFor(t, engine.EventStarted, engine.SlotChannel, "bye", 1)
	assert.Equal(t, 1, h.events.count(engine.EventStopped, engine.SlotChannel, "hello"))
}

func TestEventsReachTrackingAndMetrics(t *testing.T) {
	h := newHarness(t)
	close(h.release)

	h.engine.PlaySE("Cursor1")
	h.engine.PlaySE("Buzzer1")
	h.waitFor(t, engine.EventStarted, engine.SlotBus, "", 2)
	h.engine.PlaySE("Decision1")
	h.waitFor(t, engine.EventEvicted, engine.SlotBus, "", 1)
	h.engine.PlaySE("Missing1")
	h.waitFor(t, engine.EventFailed, engine.SlotBus, "Missing1", 1)

	h.engine.PlayVoice("hello")
	h.waitFor(t, engine.EventStarted, engine.SlotChannel, "hello", 1)
	h.engine.StopVoice()
	h.waitFor(t, engine.EventFaded, engine.SlotChannel, "hello", 1)

	require.Eventually(t, func() bool { return h.hook.Written() >= 7 }, 2*time.Second, 5*time.Millisecond)

	summary, err := tracking.GetUsageSummary(h.db, tracking.QueryFilter{SessionID: "integration"})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.KindCounts["started"])
	assert.Equal(t, 1, summary.KindCounts["evicted"])
	assert.Equal(t, 1, summary.KindCounts["failed"])
	assert.Equal(t, 1, summary.KindCounts["faded"])
	assert.Equal(t, 1, summary.Sessions)

	failures, err := tracking.GetFailures(h.db, tracking.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "Missing1", failures[0].Name)

	channel, err := tracking.GetSoundUsage(h.db, tracking.QueryFilter{Slot: "channel"})
	require.NoError(t, err)
	require.Len(t, channel, 1)
	assert.Equal(t, "hello", channel[0].Name)
	assert.Equal(t, 1, channel[0].Plays)
	assert.Equal(t, 1, channel[0].Stops)

	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(3), sumWhere(rm, "voicebus.voices.started", "slot", "bus"))
	assert.Equal(t, int64(1), sumWhere(rm, "voicebus.voices.evicted", "slot", "bus"))
	assert.Equal(t, int64(1), sumWhere(rm, "voicebus.load.failures", "slot", "bus"))
	assert.Equal(t, int64(1), sumWhere(rm, "voicebus.voices.stopped", "reason", "fade"))
}

// sumWhere adds up int64 sum points whose attributes include key=value
func sumWhere(rm metricdata.ResourceMetrics, name, key, value string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

// generateWAV builds a stereo 16-bit PCM WAV filled with a quiet constant
func generateWAV(rate, frames int) []byte {
	const channels = 2
	dataSize := frames * channels * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(bytes.Repeat([]byte{0xe8, 0x03}, frames*channels))
	return buf.Bytes()
}
