package cue

import "github.com/fmueller/voxtype/internal/session"

// Multi fans a transition out to several observers in order.
type Multi []session.Observer

func (m Multi) Observe(s session.Snapshot) {
	for _, o := range m {
		if o != nil {
			o.Observe(s)
		}
	}
}
