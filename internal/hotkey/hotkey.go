package hotkey

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultDebounce = 500 * time.Millisecond

var ErrListenerClosed = errors.New("hotkey listener closed")

// Hotkey is one registered OS-level key combination.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
}

// Factory builds the platform hotkey for a binding.
type Factory func(Binding) (Hotkey, error)

type Config struct {
	// Debounce drops key-downs that arrive within this window of the last
	// accepted one, across all bindings.
	Debounce time.Duration
	Factory  Factory
	Logger   *zap.Logger
	Now      func() time.Time
}

// Listener routes key-downs of any number of bindings to callbacks.
type Listener struct {
	cfg Config

	mu      sync.Mutex
	hotkeys []registered
	last    time.Time
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

type registered struct {
	binding Binding
	hk      Hotkey
}

func NewListener(cfg Config) *Listener {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Factory == nil {
		cfg.Factory = NewSystem
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Listener{cfg: cfg, done: make(chan struct{})}
}

// Register grabs the combination globally and calls fn on each accepted
// key-down. fn runs on the listener goroutine and must not block.
func (l *Listener) Register(b Binding, fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrListenerClosed
	}

	hk, err := l.cfg.Factory(b)
	if err != nil {
		return fmt.Errorf("hotkey %s: %w", b, err)
	}
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register hotkey %s: %w", b, err)
	}
	l.hotkeys = append(l.hotkeys, registered{binding: b, hk: hk})
	l.cfg.Logger.Info("hotkey registered", zap.String("hotkey", b.String()))

	l.wg.Add(1)
	go l.listen(b, hk, fn)
	return nil
}

func (l *Listener) listen(b Binding, hk Hotkey, fn func()) {
	defer l.wg.Done()
	for {
		select {
		case <-l.done:
			return
		case _, ok := <-hk.Keydown():
			if !ok {
				return
			}
			if !l.accept() {
				l.cfg.Logger.Debug("hotkey debounced", zap.String("hotkey", b.String()))
				continue
			}
			fn()
		}
	}
}

func (l *Listener) accept() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.cfg.Now()
	if !l.last.IsZero() && now.Sub(l.last) < l.cfg.Debounce {
		return false
	}
	l.last = now
	return true
}

// Close unregisters every hotkey and waits for the listener goroutines.
func (l *Listener) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.done)
	hotkeys := l.hotkeys
	l.hotkeys = nil
	l.mu.Unlock()

	for _, r := range hotkeys {
		r.hk.Unregister()
		l.cfg.Logger.Debug("hotkey unregistered", zap.String("hotkey", r.binding.String()))
	}
	l.wg.Wait()
}
