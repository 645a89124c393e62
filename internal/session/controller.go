package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrShutdown = errors.New("recording interrupted by shutdown")

// Capture holds the microphone between Start and Stop. The channel from
// Start yields at most one error on device loss and is closed when the
// recording ends either way.
type Capture interface {
	Start() (<-chan error, error)
	Stop() (audio.Buffer, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, buf audio.Buffer) (string, error)
}

type Injector interface {
	Inject(ctx context.Context, text string) error
}

type Store interface {
	Save(ctx context.Context, buf audio.Buffer, sessionID string) (string, error)
}

type Config struct {
	Capture     Capture
	Transcriber Transcriber
	Injector    Injector
	// Store is optional. Without it recordings are discarded after
	// transcription.
	Store Store
	// Observer is optional. cue.Multi combines several.
	Observer Observer
	// TranscribeTimeout bounds each model call. Zero means no bound.
	TranscribeTimeout time.Duration
	Logger            *zap.Logger

	NewID func() (string, error)
	Now   func() time.Time
}

// Controller drives the Idle, Recording, Transcribing, Injecting cycle from
// toggle events. It owns the current session exclusively.
type Controller struct {
	cfg    Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   domain.SessionState
	current *session
	last    *session
	closed  bool
}

func New(cfg Config) (*Controller, error) {
	if cfg.Capture == nil {
		return nil, errors.New("session controller needs an audio capture")
	}
	if cfg.Transcriber == nil {
		return nil, errors.New("session controller needs a transcriber")
	}
	if cfg.Injector == nil {
		return nil, errors.New("session controller needs an injector")
	}
	if cfg.TranscribeTimeout < 0 {
		return nil, fmt.Errorf("transcribe timeout must not be negative: %s", cfg.TranscribeTimeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NewID == nil {
		cfg.NewID = newSessionID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:    cfg,
		logger: cfg.Logger,
		ctx:    ctx,
		cancel: cancel,
		state:  domain.StateIdle,
	}, nil
}

func newSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Toggle starts a recording when idle and stops it when recording. It never
// waits for the device release, transcription or injection; toggles during
// those are ignored.
func (c *Controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("toggle ignored; controller closed")
		return
	}

	switch c.state {
	case domain.StateIdle:
		c.startLocked()
	case domain.StateRecording:
		if c.current.stopping {
			c.logger.Debug("toggle ignored while releasing the microphone", c.sessionField())
			return
		}
		c.stopLocked()
	default:
		c.logger.Debug("toggle ignored while busy", zap.String("state", string(c.state)), c.sessionField())
	}
}

func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Last returns the most recent finished session.
func (c *Controller) Last() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Snapshot{}, false
	}
	return c.last.snapshot(), true
}

func (c *Controller) startLocked() {
	s := &session{startedAt: c.cfg.Now()}
	id, err := c.cfg.NewID()
	if err != nil {
		s.id = "unknown"
		c.current = s
		c.finishLocked(s, fmt.Errorf("create session id: %w", err))
		return
	}
	s.id = id
	c.current = s

	failed, err := c.cfg.Capture.Start()
	if err != nil {
		c.finishLocked(s, err)
		return
	}

	c.transitionLocked(s, domain.StateRecording)
	c.logger.Info("recording started", zap.String("session", s.id))

	c.wg.Add(1)
	go c.watchCapture(s, failed)
}

// watchCapture fails the session if the device goes away before Stop.
func (c *Controller) watchCapture(s *session, failed <-chan error) {
	defer c.wg.Done()

	err, ok := <-failed
	if !ok || err == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != s || s.state != domain.StateRecording || s.stopping {
		return
	}
	c.finishLocked(s, err)
}

// stopLocked hands the recording to a worker. Releasing the device can
// take a while for subprocess backends, so Stop runs off the caller.
func (c *Controller) stopLocked() {
	s := c.current
	s.stopping = true

	c.wg.Add(1)
	go c.process(s)
}

// process releases the microphone, then runs transcription and injection.
func (c *Controller) process(s *session) {
	defer c.wg.Done()

	buf, err := c.cfg.Capture.Stop()

	c.mu.Lock()
	s.audio = buf
	switch {
	case err != nil:
		c.finishLocked(s, err)
	case c.closed:
		c.finishLocked(s, ErrShutdown)
	case buf.Empty():
		c.finishLocked(s, fmt.Errorf("%w: no audio captured", domain.ErrTranscriptionFailed))
	default:
		c.transitionLocked(s, domain.StateTranscribing)
	}
	state := s.state
	c.mu.Unlock()
	if state != domain.StateTranscribing {
		return
	}

	c.logger.Info("recording stopped",
		zap.String("session", s.id),
		zap.Int("frames", buf.Frames()),
		zap.Duration("audio", buf.Duration()),
	)

	text, err := c.transcribe(s)
	if err != nil {
		c.finish(s, err)
		return
	}

	c.mu.Lock()
	s.transcript = text
	c.transitionLocked(s, domain.StateInjecting)
	c.mu.Unlock()

	if c.cfg.Store != nil {
		c.wg.Add(1)
		go c.save(s)
	}

	// Injection is short and runs to completion even during shutdown so
	// the focused window never receives half a transcript.
	err = c.cfg.Injector.Inject(context.WithoutCancel(c.ctx), text)
	if err != nil && !errors.Is(err, domain.ErrInjectionDenied) && !errors.Is(err, domain.ErrInjectionTargetLost) {
		err = fmt.Errorf("%w: %w", domain.ErrInjectionTargetLost, err)
	}
	c.finish(s, err)
}

func (c *Controller) transcribe(s *session) (string, error) {
	ctx := c.ctx
	if c.cfg.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.TranscribeTimeout)
		defer cancel()
	}

	started := c.cfg.Now()
	text, err := c.cfg.Transcriber.Transcribe(ctx, s.audio)
	if err != nil {
		if !errors.Is(err, domain.ErrTranscriptionFailed) && !errors.Is(err, domain.ErrModelUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, err)
		}
		return "", err
	}

	c.logger.Debug("transcription finished",
		zap.String("session", s.id),
		zap.Duration("elapsed", c.cfg.Now().Sub(started)),
		zap.Int("chars", len(text)),
	)
	return text, nil
}

// save persists the recording. Failures are only logged.
func (c *Controller) save(s *session) {
	defer c.wg.Done()

	path, err := c.cfg.Store.Save(context.WithoutCancel(c.ctx), s.audio, s.id)
	if err != nil {
		if !domain.IsStorage(err) {
			err = fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}
		c.logger.Warn("recording not saved",
			zap.String("session", s.id),
			zap.String("kind", domain.Kind(err)),
			zap.Error(err),
		)
		return
	}

	c.mu.Lock()
	s.savedPath = path
	c.mu.Unlock()
	c.logger.Info("recording saved", zap.String("session", s.id), zap.String("path", path))
}

func (c *Controller) finish(s *session, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishLocked(s, err)
}

// finishLocked moves s to its terminal state and the controller back to
// Idle.
func (c *Controller) finishLocked(s *session, err error) {
	s.endedAt = c.cfg.Now()
	if err != nil {
		s.err = err
		c.transitionLocked(s, domain.StateFailed)
		c.logger.Warn("session failed",
			zap.String("session", s.id),
			zap.String("kind", domain.Kind(err)),
			zap.Duration("elapsed", s.endedAt.Sub(s.startedAt)),
			zap.Error(err),
		)
	} else {
		c.transitionLocked(s, domain.StateCompleted)
		c.logger.Info("session completed",
			zap.String("session", s.id),
			zap.Duration("elapsed", s.endedAt.Sub(s.startedAt)),
		)
	}

	c.last = s
	c.current = nil
	c.state = domain.StateIdle
	c.notifyLocked(Snapshot{ID: s.id, State: domain.StateIdle})
}

func (c *Controller) transitionLocked(s *session, state domain.SessionState) {
	s.state = state
	c.state = state
	c.logger.Debug("session state", zap.String("session", s.id), zap.String("state", string(state)))
	c.notifyLocked(s.snapshot())
}

func (c *Controller) notifyLocked(snap Snapshot) {
	if c.cfg.Observer != nil {
		c.cfg.Observer.Observe(snap)
	}
}

func (c *Controller) sessionField() zap.Field {
	if c.current == nil {
		return zap.Skip()
	}
	return zap.String("session", c.current.id)
}

// Close releases the microphone if a recording is running, cancels model
// work in flight and waits for the workers until ctx is done. A recording
// already being stopped is failed by its worker.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	if c.state == domain.StateRecording && c.current != nil && !c.current.stopping {
		s := c.current
		buf, err := c.cfg.Capture.Stop()
		s.audio = buf
		c.finishLocked(s, errors.Join(ErrShutdown, err))
	}
	c.cancel()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for session workers: %w", ctx.Err())
	}
}
