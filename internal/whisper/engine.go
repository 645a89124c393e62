package whisper

import "context"

type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	Language  string
	ForceCPU  bool
	Threads   int
}

// Engine runs a whisper model over a 16 kHz mono WAV file.
type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}
