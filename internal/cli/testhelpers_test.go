package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fmueller/voxtype/internal/config"
	"github.com/fmueller/voxtype/internal/domain"
	"github.com/fmueller/voxtype/internal/hotkey"
	"github.com/fmueller/voxtype/internal/inject"
	"github.com/fmueller/voxtype/internal/record"
	"github.com/fmueller/voxtype/internal/session"
	"github.com/fmueller/voxtype/internal/whisper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func makePCM16WAVForTest(samples []int16, sampleRate int, channels int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(channels))
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*channels*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(channels*bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}

// testApp is an appState whose devices, engine and hotkeys are fakes.
type testApp struct {
	*appState
	engine   *fakeEngine
	backend  *toneBackend
	injector *fakeInjector
	hotkeys  *fakeHotkeys
	beeper   *fakeBeeper

	modelPath string
	recDir    string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.bin")
	require.NoError(t, os.WriteFile(modelPath, []byte("model"), 0o644))

	cfg := config.Default()
	cfg.Model = modelPath
	cfg.ModelDir = filepath.Join(dir, "models")
	cfg.RecordingDir = filepath.Join(dir, "recordings")
	cfg.NoProgress = true
	cfg.MicCheck = false
	cfg.Beep = false

	ta := &testApp{
		appState: newAppState(cfg, nil),
		engine:   &fakeEngine{text: "hello world"},
		backend:  &toneBackend{},
		injector: &fakeInjector{},
		hotkeys:  &fakeHotkeys{},
		beeper:   &fakeBeeper{},

		modelPath: modelPath,
		recDir:    cfg.RecordingDir,
	}
	ta.in = new(bytes.Buffer)
	ta.debounce = time.Nanosecond
	ta.newEngine = func(*zap.Logger) (whisper.Engine, error) {
		if ta.engine.missing != nil {
			return nil, ta.engine.missing
		}
		return ta.engine, nil
	}
	ta.backends = func() []record.Backend { return []record.Backend{ta.backend} }
	ta.newInjector = func(inject.Config) session.Injector { return ta.injector }
	ta.newBeeper = func(*zap.Logger) beeper { return ta.beeper }
	ta.hotkeyFactory = ta.hotkeys.factory
	return ta
}

// execute runs args against a fresh command tree over the same app.
func (ta *testApp) execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCmd(ta.appState)
	outBuf := new(syncBuffer)
	errBuf := new(syncBuffer)
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeEngine struct {
	mu      sync.Mutex
	text    string
	err     error
	missing error
	calls   []whisper.TranscriptionRequest
}

func (e *fakeEngine) Transcribe(_ context.Context, req whisper.TranscriptionRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, req)
	return e.text, e.err
}

func (e *fakeEngine) requests() []whisper.TranscriptionRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]whisper.TranscriptionRequest(nil), e.calls...)
}

// toneBackend streams a loud 440 Hz tone until the stream is closed.
type toneBackend struct {
	mu      sync.Mutex
	openErr error
	streams []*toneStream
}

func (b *toneBackend) Name() string    { return "tone" }
func (b *toneBackend) Available() bool { return true }

func (b *toneBackend) Open(_ context.Context, cfg record.Config) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	s := &toneStream{rate: cfg.SampleRate, closed: make(chan struct{})}
	b.streams = append(b.streams, s)
	return s, nil
}

func (b *toneBackend) ListDevices(context.Context) (string, error) { return "tone generator", nil }

func (b *toneBackend) opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams)
}

func (b *toneBackend) allClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.streams {
		if !s.isClosed() {
			return false
		}
	}
	return true
}

type toneStream struct {
	rate   int
	n      int
	once   sync.Once
	closed chan struct{}
}

func (s *toneStream) Read(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, io.EOF
	case <-time.After(5 * time.Millisecond):
	}
	p = p[:len(p)&^1]
	for i := 0; i+1 < len(p); i += 2 {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(s.n)/float64(s.rate)))
		binary.LittleEndian.PutUint16(p[i:], uint16(v))
		s.n++
	}
	return len(p), nil
}

func (s *toneStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *toneStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeInjector struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeInjector) Inject(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeInjector) injected() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeHotkeys struct {
	mu     sync.Mutex
	regErr error
	keys   []*hotkey.FakeHotkey
}

func (f *fakeHotkeys) factory(hotkey.Binding) (hotkey.Hotkey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hk := hotkey.NewFake()
	hk.RegErr = f.regErr
	f.keys = append(f.keys, hk)
	return hk, nil
}

func (f *fakeHotkeys) registered() []*hotkey.FakeHotkey {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*hotkey.FakeHotkey
	for _, hk := range f.keys {
		if hk.Registered() {
			out = append(out, hk)
		}
	}
	return out
}

type fakeBeeper struct {
	mu     sync.Mutex
	states []domain.SessionState
	closed bool
}

func (b *fakeBeeper) Observe(s session.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = append(b.states, s.State)
}

func (b *fakeBeeper) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *fakeBeeper) snapshot() ([]domain.SessionState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.SessionState(nil), b.states...), b.closed
}

var errPermission = errors.Join(domain.ErrDeviceUnavailable, domain.ErrPermissionDenied)
