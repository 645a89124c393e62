package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/domain"
	"go.uber.org/zap"
)

type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
)

func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatWAV:
		return FormatWAV, nil
	case FormatFLAC:
		return FormatFLAC, nil
	default:
		return "", fmt.Errorf("unknown recording format %q (expected wav or flac)", value)
	}
}

type Config struct {
	Dir    string
	Format Format
	Logger *zap.Logger
	Now    func() time.Time
}

// Store persists one audio file per session.
type Store struct {
	cfg Config
}

func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("%w: recording directory is empty", domain.ErrStorageUnavailable)
	}
	format, err := ParseFormat(string(cfg.Format))
	if err != nil {
		return nil, err
	}
	cfg.Format = format
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{cfg: cfg}, nil
}

func (s *Store) Dir() string {
	return s.cfg.Dir
}

// Save writes buf to the recording directory and returns its path. The
// file appears under its final name only once fully written.
func (s *Store) Save(ctx context.Context, buf audio.Buffer, sessionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", classify(fmt.Errorf("create recording directory %s: %w", s.cfg.Dir, err))
	}

	payload := &memWriteSeeker{}
	var err error
	switch s.cfg.Format {
	case FormatFLAC:
		err = EncodeFLAC(payload, buf)
	default:
		err = audio.EncodeWAV(payload, buf)
	}
	if err != nil {
		return "", fmt.Errorf("%w: encode %s: %w", domain.ErrStorageUnavailable, s.cfg.Format, err)
	}

	path := filepath.Join(s.cfg.Dir, FileName(s.cfg.Now(), sessionID, s.cfg.Format))
	if err := writeFileAtomic(path, payload.buf); err != nil {
		return "", classify(err)
	}

	s.cfg.Logger.Debug("recording saved", zap.String("path", path), zap.String("session", sessionID), zap.Int("bytes", len(payload.buf)))
	return path, nil
}

// FileName is recording-<YYYYMMDD-HHMMSS>-<id8>.<ext>.
func FileName(now time.Time, sessionID string, format Format) string {
	if format == "" {
		format = FormatWAV
	}
	return fmt.Sprintf("recording-%s-%s.%s", now.Format("20060102-150405"), shortID(sessionID), format)
}

// shortID keeps the last eight characters of the ID. For time-ordered IDs
// those are the random bits.
func shortID(id string) string {
	compact := strings.ReplaceAll(strings.TrimSpace(id), "-", "")
	if compact == "" {
		return "unknown"
	}
	if len(compact) > 8 {
		compact = compact[len(compact)-8:]
	}
	return strings.ToLower(compact)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".recording-*.part")
	if err != nil {
		return fmt.Errorf("create temp recording: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write recording: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move recording into place: %w", err)
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %w", domain.ErrStorageFull, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}
