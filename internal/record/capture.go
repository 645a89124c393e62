package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/domain"
	"go.uber.org/zap"
)

var ErrNotCapturing = errors.New("capture is not running")

// Capture owns the microphone between Start and Stop. It is safe for
// concurrent use; only one recording can be active at a time.
type Capture struct {
	backends  []Backend
	preferred string
	cfg       Config

	mu     sync.Mutex
	active *captureRun
}

type captureRun struct {
	stream   io.ReadCloser
	acc      *audio.Accumulator
	backend  string
	started  time.Time
	stopping atomic.Bool
	done     chan struct{}
	err      error
}

func NewCapture(backends []Backend, preferred string, cfg Config) *Capture {
	return &Capture{backends: backends, preferred: preferred, cfg: cfg}
}

// Active reports whether the device is currently held.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *Capture) activeLocked() bool {
	if c.active == nil {
		return false
	}
	select {
	case <-c.active.done:
		return false
	default:
		return true
	}
}

// Start opens the device and begins accumulating audio. The returned
// channel delivers at most one error if the device is lost before Stop and
// is closed when the recording ends.
func (c *Capture) Start() (<-chan error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeLocked() {
		return nil, domain.ErrAlreadyCapturing
	}
	c.active = nil

	logger := c.cfg.logger()
	stream, backend, err := openWithFallback(context.Background(), c.backends, c.preferred, c.cfg)
	if err != nil {
		return nil, err
	}

	run := &captureRun{
		stream:  stream,
		acc:     audio.NewAccumulator(c.cfg.AudioFormat()),
		backend: backend,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	failed := make(chan error, 1)
	c.active = run

	logger.Debug("capture started", zap.String("backend", backend))
	go c.pump(run, failed)

	return failed, nil
}

func (c *Capture) pump(run *captureRun, failed chan<- error) {
	_, err := io.Copy(run.acc, run.stream)
	if run.stopping.Load() {
		close(run.done)
		close(failed)
		return
	}

	_ = run.stream.Close()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	if !errors.Is(err, domain.ErrDeviceUnavailable) {
		err = fmt.Errorf("%w: %s stream ended: %w", domain.ErrDeviceUnavailable, run.backend, err)
	}
	run.err = err
	close(run.done)

	c.cfg.logger().Warn("capture device lost", zap.String("backend", run.backend), zap.Error(err))
	failed <- err
	close(failed)
}

// Stop releases the device and returns everything captured so far. After a
// device loss Stop still returns the partial buffer together with the loss
// error.
func (c *Capture) Stop() (audio.Buffer, error) {
	c.mu.Lock()
	run := c.active
	c.active = nil
	c.mu.Unlock()

	if run == nil {
		return audio.Buffer{}, ErrNotCapturing
	}

	run.stopping.Store(true)
	closeErr := run.stream.Close()
	<-run.done

	buf := run.acc.Freeze()
	c.cfg.logger().Debug("capture stopped",
		zap.String("backend", run.backend),
		zap.Duration("elapsed", time.Since(run.started)),
		zap.Int("frames", buf.Frames()),
		zap.Duration("audio", buf.Duration()),
	)

	if run.err != nil {
		return buf, run.err
	}
	if closeErr != nil {
		return buf, fmt.Errorf("release microphone: %w", closeErr)
	}
	return buf, nil
}
