package record

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fmueller/voxtype/internal/domain"
	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// chunkQueue bounds how many device periods may wait for the reader.
const chunkQueue = 256

type miniaudioBackend struct{}

func newMiniaudioBackend() Backend {
	return &miniaudioBackend{}
}

func (b *miniaudioBackend) Name() string {
	return "miniaudio"
}

func (b *miniaudioBackend) Available() bool {
	return true
}

func (b *miniaudioBackend) Open(ctx context.Context, cfg Config) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, deviceError("init audio context", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(defaultChannels(cfg.Channels))
	deviceConfig.SampleRate = uint32(defaultSampleRate(cfg.SampleRate))
	if cfg.ChunkFrames > 0 {
		deviceConfig.PeriodSizeInFrames = uint32(cfg.ChunkFrames)
	}

	if cfg.Input != "" {
		id, err := findCaptureDevice(mctx, cfg.Input)
		if err != nil {
			freeContext(mctx)
			return nil, err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	s := &miniaudioStream{
		mctx:   mctx,
		chunks: make(chan []byte, chunkQueue),
		closed: make(chan struct{}),
		lost:   make(chan struct{}),
		logger: cfg.logger(),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		freeContext(mctx)
		return nil, deviceError("init capture device", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(mctx)
		return nil, deviceError("start capture device", err)
	}

	return s, nil
}

func (b *miniaudioBackend) ListDevices(context.Context) (string, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return "", deviceError("init audio context", err)
	}
	defer freeContext(mctx)

	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return "", fmt.Errorf("malgo devices: %w", err)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("%w: no capture devices found", domain.ErrDeviceUnavailable)
	}

	lines := make([]string, 0, len(devices))
	for _, d := range devices {
		marker := " "
		if d.IsDefault != 0 {
			marker = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %s (%s)", marker, d.Name(), hex.EncodeToString(d.ID[:])))
	}
	return strings.Join(lines, "\n"), nil
}

// findCaptureDevice matches input against a device ID in hex or a
// case-insensitive substring of the device name.
func findCaptureDevice(mctx *malgo.AllocatedContext, input string) (malgo.DeviceID, error) {
	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, deviceError("enumerate capture devices", err)
	}

	needle := strings.ToLower(strings.TrimSpace(input))
	for _, d := range devices {
		if hex.EncodeToString(d.ID[:]) == needle {
			return d.ID, nil
		}
	}
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name()), needle) {
			return d.ID, nil
		}
	}

	return malgo.DeviceID{}, fmt.Errorf("%w: no capture device matches %q", domain.ErrDeviceUnavailable, input)
}

type miniaudioStream struct {
	mctx   *malgo.AllocatedContext
	device *malgo.Device
	logger *zap.Logger

	chunks  chan []byte
	pending []byte
	dropped atomic.Int64

	stopping  atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once
	lost      chan struct{}
	lostOnce  sync.Once
}

func (s *miniaudioStream) onData(_, input []byte, _ uint32) {
	if len(input) == 0 {
		return
	}
	chunk := make([]byte, len(input))
	copy(chunk, input)

	select {
	case s.chunks <- chunk:
	default:
		s.dropped.Add(1)
	}
}

func (s *miniaudioStream) onStop() {
	if s.stopping.Load() {
		return
	}
	s.lostOnce.Do(func() { close(s.lost) })
}

func (s *miniaudioStream) Read(p []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}

	select {
	case chunk := <-s.chunks:
		return s.fill(p, chunk), nil
	case <-s.lost:
		return 0, fmt.Errorf("%w: capture device stopped", domain.ErrDeviceUnavailable)
	case <-s.closed:
		select {
		case chunk := <-s.chunks:
			return s.fill(p, chunk), nil
		default:
			return 0, io.EOF
		}
	}
}

func (s *miniaudioStream) fill(p, chunk []byte) int {
	n := copy(p, chunk)
	if n < len(chunk) {
		s.pending = chunk[n:]
	}
	return n
}

func (s *miniaudioStream) Close() error {
	s.closeOnce.Do(func() {
		s.stopping.Store(true)
		s.device.Uninit()
		freeContext(s.mctx)
		if dropped := s.dropped.Load(); dropped > 0 {
			s.logger.Warn("capture dropped audio periods", zap.Int64("periods", dropped))
		}
		close(s.closed)
	})
	return nil
}

func freeContext(mctx *malgo.AllocatedContext) {
	_ = mctx.Uninit()
	mctx.Free()
}

func deviceError(op string, err error) error {
	if isPermissionText(err.Error()) {
		return fmt.Errorf("%w: %w: %s: %w", domain.ErrDeviceUnavailable, domain.ErrPermissionDenied, op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrDeviceUnavailable, op, err)
}
