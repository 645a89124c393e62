package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fmueller/voxtype/internal/domain"
	"go.uber.org/zap"
)

const stopGrace = 2 * time.Second

// commandStream exposes the stdout of a capture process as a PCM stream.
type commandStream struct {
	name   string
	cmd    *exec.Cmd
	reader *io.PipeReader
	stderr *tailBuffer
	logger *zap.Logger

	stopping  bool
	mu        sync.Mutex
	exited    chan struct{}
	closeOnce sync.Once
}

func startCommandStream(ctx context.Context, logger *zap.Logger, name string, args ...string) (*commandStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pr, pw := io.Pipe()
	stderr := &tailBuffer{limit: 4096}

	cmd := exec.Command(name, args...)
	cmd.Stdout = pw
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return nil, fmt.Errorf("%w: start %s: %w", domain.ErrDeviceUnavailable, name, err)
	}
	logger.Debug("capture process started", zap.String("command", name), zap.Strings("args", args), zap.Int("pid", cmd.Process.Pid))

	s := &commandStream{
		name:   name,
		cmd:    cmd,
		reader: pr,
		stderr: stderr,
		logger: logger,
		exited: make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		_ = pw.CloseWithError(s.exitError(err))
		close(s.exited)
	}()

	return s, nil
}

func (s *commandStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

// Close interrupts the process, waits for it to flush its output and
// kills it if it does not exit within stopGrace.
func (s *commandStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()

		select {
		case <-s.exited:
			return
		default:
		}

		if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
			_ = s.cmd.Process.Kill()
		}

		timer := time.NewTimer(stopGrace)
		defer timer.Stop()

		select {
		case <-s.exited:
		case <-timer.C:
			s.logger.Debug("capture process ignored interrupt, killing", zap.String("command", s.name))
			_ = s.cmd.Process.Kill()
			_ = s.reader.CloseWithError(io.ErrClosedPipe)
			<-s.exited
		}
	})
	return nil
}

func (s *commandStream) exitError(err error) error {
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()

	if err == nil || stopping {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			s.logger.Debug("capture process stopped by signal", zap.String("signal", status.Signal().String()))
		}
	}

	detail := strings.TrimSpace(s.stderr.String())
	if detail != "" {
		err = fmt.Errorf("%s exited: %w (%s)", s.name, err, detail)
	} else {
		err = fmt.Errorf("%s exited: %w", s.name, err)
	}

	if isPermissionText(detail) {
		return fmt.Errorf("%w: %w: %w", domain.ErrDeviceUnavailable, domain.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrDeviceUnavailable, err)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
