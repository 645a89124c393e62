package session

import (
	"time"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/domain"
)

// Snapshot is a copy of a session at one transition. Observers and
// Controller.Last only ever see snapshots.
type Snapshot struct {
	ID         string
	State      domain.SessionState
	Transcript string
	SavedPath  string
	Err        error
	Frames     int
	Audio      time.Duration
	StartedAt  time.Time
	EndedAt    time.Time
}

// Elapsed is the wall time from start to the terminal state, or zero while
// the session is still running.
func (s Snapshot) Elapsed() time.Duration {
	if s.EndedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Observer is told about every transition. Observe runs on the goroutine
// that made the transition while the controller lock is held, so it must
// return quickly and must not call back into the Controller.
type Observer interface {
	Observe(Snapshot)
}

type ObserverFunc func(Snapshot)

func (f ObserverFunc) Observe(s Snapshot) { f(s) }

type session struct {
	id    string
	state domain.SessionState
	// stopping is set once the stop toggle arrived and the worker owns
	// the capture.
	stopping   bool
	audio      audio.Buffer
	transcript string
	savedPath  string
	err        error
	startedAt  time.Time
	endedAt    time.Time
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		ID:         s.id,
		State:      s.state,
		Transcript: s.transcript,
		SavedPath:  s.savedPath,
		Err:        s.err,
		Frames:     s.audio.Frames(),
		Audio:      s.audio.Duration(),
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
	}
}
