package whisper

import (
	"errors"
	"strings"
)

const BlankAudioToken = "[BLANK_AUDIO]"

// ErrNoSpeech marks recordings that were silent or produced blank output.
var ErrNoSpeech = errors.New("no speech detected")

// IsBlankTranscript reports whether whisper produced no usable text.
func IsBlankTranscript(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return true
	}

	return strings.EqualFold(trimmed, BlankAudioToken)
}

func NoSpeechHint() string {
	return "No speech detected. Check mic mute and selected input device, then try again."
}

// CleanTranscript joins whisper's output lines into one line of text and
// drops blank-audio markers.
func CleanTranscript(transcript string) string {
	fields := strings.Fields(transcript)
	kept := fields[:0]
	for _, field := range fields {
		if strings.EqualFold(field, BlankAudioToken) {
			continue
		}
		kept = append(kept, field)
	}
	return strings.Join(kept, " ")
}
