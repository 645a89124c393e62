package record

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var ErrInteractiveRequiresTTY = errors.New("interactive recording requires terminal input")
var ErrNoBackendAvailable = errors.New("no recording backend available")

type Config struct {
	SampleRate int
	Channels   int
	// ChunkFrames is the device period in frames. Zero leaves it to the backend.
	ChunkFrames int
	Input       string
	Format      string
	Logger      *zap.Logger
}

func (c Config) AudioFormat() audio.Format {
	return audio.Format{SampleRate: defaultSampleRate(c.SampleRate), Channels: defaultChannels(c.Channels)}
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Backend opens a raw signed 16-bit little-endian PCM stream from a microphone.
// Closing the stream releases the device.
type Backend interface {
	Name() string
	Available() bool
	Open(ctx context.Context, cfg Config) (io.ReadCloser, error)
	ListDevices(ctx context.Context) (string, error)
}

func SelectBackend(backends []Backend, preferred string) (Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred != "" && preferred != "auto" {
		for _, backend := range backends {
			if backend.Name() == preferred {
				if !backend.Available() {
					return nil, fmt.Errorf("requested backend %q is not available", preferred)
				}
				return backend, nil
			}
		}
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	for _, backend := range backends {
		if backend.Available() {
			return backend, nil
		}
	}

	return nil, ErrNoBackendAvailable
}

func DefaultBackends(goos string) []Backend {
	switch goos {
	case "linux":
		return []Backend{newMiniaudioBackend(), newPipeWireBackend(), newALSARecorderBackend(), newFFMPEGLinuxBackend()}
	case "darwin":
		return []Backend{newMiniaudioBackend(), newFFMPEGMacOSBackend()}
	case "windows":
		return []Backend{newMiniaudioBackend()}
	default:
		return nil
	}
}

// openWithFallback opens the preferred backend first and then every other
// available one until a stream opens.
func openWithFallback(ctx context.Context, backends []Backend, preferred string, cfg Config) (io.ReadCloser, string, error) {
	orderedBackends, err := orderBackends(backends, preferred)
	if err != nil {
		return nil, "", err
	}

	var errs []error
	for _, backend := range orderedBackends {
		if !backend.Available() {
			errs = append(errs, fmt.Errorf("%s: backend is not available", backend.Name()))
			continue
		}

		stream, err := backend.Open(ctx, cfg)
		if err == nil {
			return stream, backend.Name(), nil
		}

		err = fmt.Errorf("%s: %w", backend.Name(), err)
		errs = append(errs, err)
		cfg.logger().Debug("capture backend failed to open", zap.String("backend", backend.Name()), zap.Error(err))

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, "", err
		}
	}

	if len(errs) == 0 {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrDeviceUnavailable, ErrNoBackendAvailable)
	}

	joined := errors.Join(errs...)
	if errors.Is(joined, domain.ErrDeviceUnavailable) {
		return nil, "", fmt.Errorf("open microphone: %w", joined)
	}
	return nil, "", fmt.Errorf("open microphone: %w: %w", domain.ErrDeviceUnavailable, joined)
}

func orderBackends(backends []Backend, preferred string) ([]Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred == "" || preferred == "auto" {
		return backends, nil
	}

	preferredIndex := -1
	for i, backend := range backends {
		if backend.Name() == preferred {
			preferredIndex = i
			break
		}
	}
	if preferredIndex == -1 {
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	ordered := make([]Backend, 0, len(backends))
	ordered = append(ordered, backends[preferredIndex])
	for i, backend := range backends {
		if i == preferredIndex {
			continue
		}
		ordered = append(ordered, backend)
	}

	return ordered, nil
}

func WaitForEnter(in io.Reader, out io.Writer, message string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return ErrInteractiveRequiresTTY
	}

	if message != "" {
		if _, err := fmt.Fprintln(out, message); err != nil {
			return err
		}
	}

	reader := bufio.NewReader(in)
	_, err := reader.ReadString('\n')
	return err
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func commandOutput(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed != "" {
			return "", fmt.Errorf("%s %s failed: %w (%s)", name, strings.Join(args, " "), err, trimmed)
		}
		return "", fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return trimmed, nil
}

func defaultSampleRate(value int) int {
	if value <= 0 {
		return audio.DefaultFormat.SampleRate
	}
	return value
}

func defaultChannels(value int) int {
	if value <= 0 {
		return audio.DefaultFormat.Channels
	}
	return value
}

func isPermissionText(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "not permitted") ||
		strings.Contains(lower, "not authorized")
}
