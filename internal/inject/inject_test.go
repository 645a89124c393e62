package inject

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fmueller/voxtype/internal/domain"
	"github.com/stretchr/testify/require"
)

type fakeKeyboard struct {
	mu      sync.Mutex
	taps    []Keystroke
	pastes  int
	tapErr  error
	failAt  int
	pasteEr error
}

func (f *fakeKeyboard) Tap(k Keystroke) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tapErr != nil && len(f.taps) == f.failAt {
		return f.tapErr
	}
	f.taps = append(f.taps, k)
	return nil
}

func (f *fakeKeyboard) Paste() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pasteEr != nil {
		return f.pasteEr
	}
	f.pastes++
	return nil
}

type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) WriteAll(text string) error {
	if f.err != nil {
		return f.err
	}
	f.text = text
	return nil
}

// letterMap types a-z as codes 1-26 so tests stay platform independent.
func letterMap(r rune) (Keystroke, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return Keystroke{Code: int(r-'a') + 1}, true
	case r >= 'A' && r <= 'Z':
		return Keystroke{Code: int(r-'A') + 1, Shift: true}, true
	case r == ' ':
		return Keystroke{Code: 100}, true
	default:
		return Keystroke{}, false
	}
}

func newTestInjector(cfg Config, kb *fakeKeyboard, clip *fakeClipboard) *Injector {
	inj := NewWithDevices(cfg, kb, clip)
	inj.keymap = letterMap
	return inj
}

func TestInjectTypesEveryCharacterInOrder(t *testing.T) {
	t.Parallel()

	kb := &fakeKeyboard{}
	inj := newTestInjector(Config{Mode: ModeType}, kb, &fakeClipboard{})

	require.NoError(t, inj.Inject(context.Background(), "Hi yo"))
	require.Equal(t, []Keystroke{
		{Code: 8, Shift: true}, {Code: 9}, {Code: 100}, {Code: 25}, {Code: 15},
	}, kb.taps)
	require.Zero(t, kb.pastes)
}

func TestInjectFallsBackToPasteForUnmappedCharacters(t *testing.T) {
	t.Parallel()

	kb := &fakeKeyboard{}
	clip := &fakeClipboard{}
	inj := newTestInjector(Config{Mode: ModeType}, kb, clip)

	require.NoError(t, inj.Inject(context.Background(), "grüße"))
	require.Empty(t, kb.taps)
	require.Equal(t, 1, kb.pastes)
	require.Equal(t, "grüße", clip.text)
}

func TestInjectPasteMode(t *testing.T) {
	t.Parallel()

	kb := &fakeKeyboard{}
	clip := &fakeClipboard{}
	inj := newTestInjector(Config{Mode: ModePaste}, kb, clip)

	require.NoError(t, inj.Inject(context.Background(), "hello world"))
	require.Equal(t, "hello world", clip.text)
	require.Equal(t, 1, kb.pastes)
	require.Empty(t, kb.taps)
}

func TestInjectKeyboardSetupFailureIsDenied(t *testing.T) {
	t.Parallel()

	kb := &fakeKeyboard{tapErr: errors.Join(errKeyboardSetup, errors.New("open /dev/uinput: permission denied"))}
	inj := newTestInjector(Config{}, kb, &fakeClipboard{})

	err := inj.Inject(context.Background(), "hello")
	require.ErrorIs(t, err, domain.ErrInjectionDenied)
	require.True(t, domain.NeedsPermission(err))
}

func TestInjectDeliveryFailureIsTargetLost(t *testing.T) {
	t.Parallel()

	kb := &fakeKeyboard{tapErr: errors.New("write: broken pipe"), failAt: 2}
	inj := newTestInjector(Config{}, kb, &fakeClipboard{})

	err := inj.Inject(context.Background(), "hello")
	require.ErrorIs(t, err, domain.ErrInjectionTargetLost)
	require.ErrorContains(t, err, "typed 2 of 5 keys")
}

func TestInjectClipboardFailureIsTargetLost(t *testing.T) {
	t.Parallel()

	inj := newTestInjector(Config{Mode: ModePaste}, &fakeKeyboard{}, &fakeClipboard{err: errors.New("no display")})

	err := inj.Inject(context.Background(), "hello")
	require.ErrorIs(t, err, domain.ErrInjectionTargetLost)
}

func TestInjectCanceledContextStopsTyping(t *testing.T) {
	t.Parallel()

	kb := &fakeKeyboard{}
	inj := newTestInjector(Config{}, kb, &fakeClipboard{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := inj.Inject(ctx, "hello")
	require.ErrorIs(t, err, domain.ErrInjectionTargetLost)
	require.Empty(t, kb.taps)
}

func TestInjectSmartSpacingBetweenCalls(t *testing.T) {
	t.Parallel()

	clip := &fakeClipboard{}
	inj := newTestInjector(Config{Mode: ModePaste, SmartSpacing: true}, &fakeKeyboard{}, clip)

	require.NoError(t, inj.Inject(context.Background(), "hello"))
	require.Equal(t, "hello", clip.text)
	require.NoError(t, inj.Inject(context.Background(), "world"))
	require.Equal(t, " world", clip.text)
	require.NoError(t, inj.Inject(context.Background(), "."))
	require.Equal(t, ".", clip.text)
}

func TestInjectEmptyTextIsNoop(t *testing.T) {
	t.Parallel()

	kb := &fakeKeyboard{}
	inj := newTestInjector(Config{SmartSpacing: true}, kb, &fakeClipboard{})
	require.NoError(t, inj.Inject(context.Background(), "   "))
	require.Empty(t, kb.taps)
	require.Zero(t, kb.pastes)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	mode, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeType, mode)

	mode, err = ParseMode("PASTE")
	require.NoError(t, err)
	require.Equal(t, ModePaste, mode)

	_, err = ParseMode("shout")
	require.Error(t, err)
}
