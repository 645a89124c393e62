package cue

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fmueller/voxtype/internal/domain"
	"github.com/fmueller/voxtype/internal/session"
	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// Beeper plays short tones on start, stop and failure. Permission failures
// get their own triple beep. Tones play on a background goroutine so
// Observe never waits for the audio device.
type Beeper struct {
	logger *zap.Logger
	play   func([]byte)

	queue     chan []byte
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	once    sync.Once
	initErr error
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	running bool

	current atomic.Pointer[playback]
}

// drainSlack covers device buffering on top of a sound's own length.
const drainSlack = 250 * time.Millisecond

// playback is one sound handed to the audio thread. drained closes once
// every sample has been copied out.
type playback struct {
	samples []byte
	pos     uint32
	drained chan struct{}
}

func newPlayback(sound []byte) *playback {
	return &playback{samples: sound, drained: make(chan struct{})}
}

func soundLength(sound []byte) time.Duration {
	return time.Duration(len(sound)/2) * time.Second / toneRate
}

func NewBeeper(logger *zap.Logger) *Beeper {
	return newBeeper(logger, nil)
}

func newBeeper(logger *zap.Logger, play func([]byte)) *Beeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Beeper{
		logger:  logger,
		play:    play,
		queue:   make(chan []byte, 4),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if b.play == nil {
		b.play = b.playDevice
	}
	go b.loop()
	return b
}

func (b *Beeper) Observe(s session.Snapshot) {
	sound := soundFor(s)
	if sound == nil {
		return
	}
	select {
	case <-b.done:
	case b.queue <- sound:
	default:
		b.logger.Debug("audio cue dropped", zap.String("state", string(s.State)))
	}
}

func (b *Beeper) loop() {
	defer close(b.stopped)
	for {
		select {
		case <-b.done:
			return
		case sound := <-b.queue:
			b.play(sound)
		}
	}
}

func soundFor(s session.Snapshot) []byte {
	switch s.State {
	case domain.StateRecording:
		return startSound
	case domain.StateTranscribing:
		return stopSound
	case domain.StateFailed:
		if domain.NeedsPermission(s.Err) {
			return permissionSound
		}
		return errorSound
	default:
		return nil
	}
}

func (b *Beeper) init() {
	b.mctx, b.initErr = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if b.initErr != nil {
		b.logger.Warn("audio cues disabled", zap.Error(b.initErr))
		return
	}
	if b.initErr = b.initDevice(); b.initErr != nil {
		_ = b.mctx.Uninit()
		b.mctx.Free()
		b.mctx = nil
		b.logger.Warn("audio cues disabled", zap.Error(b.initErr))
	}
}

func (b *Beeper) initDevice() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = toneRate

	device, err := malgo.InitDevice(b.mctx.Context, cfg, malgo.DeviceCallbacks{Data: b.fill})
	if err != nil {
		return err
	}
	b.device = device
	return nil
}

// fill runs on the audio thread and is the only writer of the playback
// position.
func (b *Beeper) fill(out, _ []byte, frames uint32) {
	want := min(frames*2, uint32(len(out)))
	var written uint32
	if p := b.current.Load(); p != nil {
		if remaining := uint32(len(p.samples)) - p.pos; remaining > 0 {
			written = min(want, remaining)
			copy(out[:written], p.samples[p.pos:p.pos+written])
			p.pos += written
			if p.pos == uint32(len(p.samples)) {
				b.current.Store(nil)
				close(p.drained)
			}
		}
	}
	clear(out[written:want])
}

// playDevice only runs on the loop goroutine. It returns once the sound
// has been handed to the device, so queued cues play back to back.
func (b *Beeper) playDevice(sound []byte) {
	b.once.Do(b.init)
	if b.initErr != nil || b.device == nil || len(sound) == 0 {
		return
	}

	p := newPlayback(sound)
	b.current.Store(p)

	if !b.running {
		if err := b.startDevice(); err != nil {
			b.current.Store(nil)
			b.logger.Debug("audio cue failed", zap.Error(err))
			return
		}
	}
	b.waitDrained(p)
}

func (b *Beeper) startDevice() error {
	if err := b.device.Start(); err == nil {
		b.running = true
		return nil
	}
	// The device goes stale across sleep and output changes; rebuild once.
	b.device.Uninit()
	b.device = nil
	if err := b.initDevice(); err != nil {
		return err
	}
	if err := b.device.Start(); err != nil {
		return err
	}
	b.running = true
	return nil
}

// waitDrained blocks until p has been played, the beeper closes or the
// sound overran its length. An overrun means the device stalled; it is
// restarted for the next cue.
func (b *Beeper) waitDrained(p *playback) {
	timer := time.NewTimer(soundLength(p.samples) + drainSlack)
	defer timer.Stop()

	select {
	case <-p.drained:
	case <-b.done:
	case <-timer.C:
		b.current.CompareAndSwap(p, nil)
		if b.device != nil {
			_ = b.device.Stop()
		}
		b.running = false
		b.logger.Debug("audio cue did not finish in time")
	}
}

// Close stops the cue goroutine and releases the playback device.
func (b *Beeper) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		<-b.stopped
		if b.device != nil {
			b.device.Uninit()
			b.device = nil
		}
		if b.mctx != nil {
			_ = b.mctx.Uninit()
			b.mctx.Free()
			b.mctx = nil
		}
	})
}
