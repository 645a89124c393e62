package domain

// SessionState models the record, transcribe, inject lifecycle.
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateRecording    SessionState = "recording"
	StateTranscribing SessionState = "transcribing"
	StateInjecting    SessionState = "injecting"
	StateCompleted    SessionState = "completed"
	StateFailed       SessionState = "failed"
)

// Busy reports whether a session in this state blocks new toggles.
func (s SessionState) Busy() bool {
	return s == StateTranscribing || s == StateInjecting
}

// Terminal reports whether the state ends a session.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
