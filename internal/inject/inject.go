package inject

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fmueller/voxtype/internal/domain"
	"go.uber.org/zap"
)

type Mode string

const (
	ModeType  Mode = "type"
	ModePaste Mode = "paste"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeType:
		return ModeType, nil
	case ModePaste:
		return ModePaste, nil
	default:
		return "", fmt.Errorf("unknown inject mode %q (expected type or paste)", value)
	}
}

// Keyboard sends synthetic key events to the focused window.
type Keyboard interface {
	Tap(k Keystroke) error
	Paste() error
}

type Clipboard interface {
	WriteAll(text string) error
}

type Keystroke struct {
	Code  int
	Shift bool
}

type Config struct {
	Mode         Mode
	KeyDelay     time.Duration
	SmartSpacing bool
	Logger       *zap.Logger
}

// Injector delivers text to whatever has input focus. Calls are serialised
// so two injections never interleave their keystrokes.
type Injector struct {
	cfg       Config
	keyboard  Keyboard
	clipboard Clipboard
	keymap    func(rune) (Keystroke, bool)
	spacer    *Spacer
	mu        sync.Mutex
}

func New(cfg Config) *Injector {
	return NewWithDevices(cfg, newSystemKeyboard(), systemClipboard{})
}

func NewWithDevices(cfg Config, keyboard Keyboard, clipboard Clipboard) *Injector {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeType
	}
	inj := &Injector{cfg: cfg, keyboard: keyboard, clipboard: clipboard, keymap: keystrokeFor}
	if cfg.SmartSpacing {
		inj.spacer = &Spacer{}
	}
	return inj
}

func (i *Injector) Inject(ctx context.Context, text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.spacer != nil {
		text = i.spacer.Apply(text)
	}
	if text == "" {
		return nil
	}

	var err error
	switch i.cfg.Mode {
	case ModePaste:
		err = i.paste(text)
	default:
		strokes, ok := i.keystrokes(text)
		if !ok {
			i.cfg.Logger.Debug("text has characters without a key mapping; pasting instead")
			err = i.paste(text)
		} else {
			err = i.typeKeys(ctx, strokes)
		}
	}
	if err != nil {
		return err
	}

	if i.spacer != nil {
		i.spacer.Record(text)
	}
	return nil
}

func (i *Injector) keystrokes(text string) ([]Keystroke, bool) {
	strokes := make([]Keystroke, 0, len(text))
	for _, r := range text {
		k, ok := i.keymap(r)
		if !ok {
			return nil, false
		}
		strokes = append(strokes, k)
	}
	return strokes, true
}

func (i *Injector) typeKeys(ctx context.Context, strokes []Keystroke) error {
	for n, k := range strokes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: typed %d of %d keys: %w", domain.ErrInjectionTargetLost, n, len(strokes), err)
		}
		if err := i.keyboard.Tap(k); err != nil {
			return classify(err, fmt.Sprintf("typed %d of %d keys", n, len(strokes)))
		}
		if i.cfg.KeyDelay > 0 {
			time.Sleep(i.cfg.KeyDelay)
		}
	}
	return nil
}

func (i *Injector) paste(text string) error {
	if err := i.clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: write clipboard: %w", domain.ErrInjectionTargetLost, err)
	}
	if err := i.keyboard.Paste(); err != nil {
		return classify(err, "send paste shortcut")
	}
	return nil
}

// errKeyboardSetup marks failures to create the virtual keyboard, which
// the OS only refuses for lack of permission.
var errKeyboardSetup = errors.New("virtual keyboard unavailable")

func classify(err error, op string) error {
	if errors.Is(err, domain.ErrInjectionDenied) || errors.Is(err, domain.ErrInjectionTargetLost) {
		return err
	}
	if errors.Is(err, errKeyboardSetup) {
		return fmt.Errorf("%w: %w: %w", domain.ErrInjectionDenied, domain.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrInjectionTargetLost, op, err)
}
