package record

import (
	"context"
	"io"
	"strconv"
)

type alsaBackend struct{}

func newALSARecorderBackend() Backend {
	return &alsaBackend{}
}

func (b *alsaBackend) Name() string {
	return "arecord"
}

func (b *alsaBackend) Available() bool {
	return commandAvailable("arecord")
}

func (b *alsaBackend) Open(ctx context.Context, cfg Config) (io.ReadCloser, error) {
	args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", strconv.Itoa(defaultSampleRate(cfg.SampleRate)), "-c", strconv.Itoa(defaultChannels(cfg.Channels))}
	if cfg.ChunkFrames > 0 {
		args = append(args, "--period-size", strconv.Itoa(cfg.ChunkFrames))
	}
	if cfg.Input != "" {
		args = append(args, "-D", cfg.Input)
	}

	return startCommandStream(ctx, cfg.logger(), "arecord", args...)
}

func (b *alsaBackend) ListDevices(ctx context.Context) (string, error) {
	return commandOutput(ctx, "arecord", "-L")
}
