package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/domain"
	"go.uber.org/zap"
)

// EngineFormat is the only input format whisper accepts.
var EngineFormat = audio.Format{SampleRate: 16000, Channels: 1}

type InvokerConfig struct {
	ModelPath string
	Language  string
	ForceCPU  bool
	Threads   int

	SilenceGate          bool
	SilenceThresholdDBFS float64

	// TempDir holds the intermediate WAV handed to the engine.
	TempDir string
	Logger  *zap.Logger
}

// Invoker turns a finished recording into text. Calls are serialised.
type Invoker struct {
	engine Engine
	cfg    InvokerConfig
	mu     sync.Mutex
}

func NewInvoker(engine Engine, cfg InvokerConfig) *Invoker {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Invoker{engine: engine, cfg: cfg}
}

func (i *Invoker) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	if buf.Empty() {
		return "", fmt.Errorf("%w: recording is empty", domain.ErrTranscriptionFailed)
	}

	if i.cfg.SilenceGate {
		if silent, metrics := audio.IsSilent(buf, i.cfg.SilenceThresholdDBFS); silent {
			i.cfg.Logger.Info(
				"audio considered silent; skipping transcription",
				zap.Float64("rms_dbfs", metrics.RMSdBFS),
				zap.Float64("peak_dbfs", metrics.PeakdBFS),
				zap.Float64("threshold_dbfs", i.cfg.SilenceThresholdDBFS),
			)
			return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, ErrNoSpeech)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	wavPath, err := i.writeTempWAV(buf)
	if err != nil {
		return "", err
	}
	defer os.Remove(wavPath)

	started := time.Now()
	text, err := i.engine.Transcribe(ctx, TranscriptionRequest{
		AudioPath: wavPath,
		ModelPath: i.cfg.ModelPath,
		Language:  i.cfg.Language,
		ForceCPU:  i.cfg.ForceCPU,
		Threads:   i.cfg.Threads,
	})
	elapsed := time.Since(started)
	if err != nil {
		i.cfg.Logger.Debug("whisper engine failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		if errors.Is(err, domain.ErrModelUnavailable) || errors.Is(err, domain.ErrTranscriptionFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, err)
	}

	if IsBlankTranscript(text) {
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, ErrNoSpeech)
	}

	i.cfg.Logger.Debug("whisper engine finished", zap.Duration("elapsed", elapsed), zap.Duration("audio", buf.Duration()))
	return CleanTranscript(text), nil
}

func (i *Invoker) writeTempWAV(buf audio.Buffer) (string, error) {
	f, err := os.CreateTemp(i.cfg.TempDir, "voxtype-*.wav")
	if err != nil {
		return "", fmt.Errorf("%w: create temp audio: %w", domain.ErrTranscriptionFailed, err)
	}
	path := f.Name()

	encodeErr := audio.EncodeWAV(f, audio.Convert(buf, EngineFormat))
	closeErr := f.Close()
	if err := errors.Join(encodeErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: write temp audio: %w", domain.ErrTranscriptionFailed, err)
	}
	return path, nil
}
