package hotkey

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeFactory struct {
	mu      sync.Mutex
	hotkeys map[string]*FakeHotkey
	regErr  error
}

func (f *fakeFactory) New(b Binding) (Hotkey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hk := NewFake()
	hk.RegErr = f.regErr
	if f.hotkeys == nil {
		f.hotkeys = map[string]*FakeHotkey{}
	}
	f.hotkeys[b.String()] = hk
	return hk, nil
}

func (f *fakeFactory) get(name string) *FakeHotkey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hotkeys[name]
}

func mustBinding(t *testing.T, s string) Binding {
	t.Helper()
	b, err := ParseBinding(s)
	require.NoError(t, err)
	return b
}

func TestListenerDeliversKeydown(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	l := NewListener(Config{Factory: factory.New})
	t.Cleanup(l.Close)

	var calls atomic.Int32
	require.NoError(t, l.Register(mustBinding(t, "ctrl+shift+space"), func() { calls.Add(1) }))
	require.True(t, factory.get("ctrl+shift+space").Registered())

	factory.get("ctrl+shift+space").SimKeydown()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestListenerDebouncesAcrossBindings(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	factory := &fakeFactory{}
	l := NewListener(Config{Factory: factory.New, Now: clock.Now})
	t.Cleanup(l.Close)

	var calls atomic.Int32
	fn := func() { calls.Add(1) }
	require.NoError(t, l.Register(mustBinding(t, "ctrl+shift+space"), fn))
	require.NoError(t, l.Register(mustBinding(t, "f9"), fn))

	factory.get("ctrl+shift+space").SimKeydown()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(200 * time.Millisecond)
	factory.get("f9").SimKeydown()
	factory.get("ctrl+shift+space").SimKeydown()
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, calls.Load())

	clock.Advance(DefaultDebounce)
	factory.get("f9").SimKeydown()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestListenerRegisterFailure(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{regErr: errors.New("grab failed: BadAccess")}
	l := NewListener(Config{Factory: factory.New})
	t.Cleanup(l.Close)

	err := l.Register(mustBinding(t, "ctrl+shift+space"), func() {})
	require.ErrorContains(t, err, "register hotkey ctrl+shift+space")
	require.ErrorContains(t, err, "BadAccess")
}

func TestListenerCloseUnregisters(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	l := NewListener(Config{Factory: factory.New})

	require.NoError(t, l.Register(mustBinding(t, "ctrl+shift+space"), func() {}))
	require.NoError(t, l.Register(mustBinding(t, "alt+r"), func() {}))

	l.Close()
	require.False(t, factory.get("ctrl+shift+space").Registered())
	require.False(t, factory.get("alt+r").Registered())

	l.Close()
	require.ErrorIs(t, l.Register(mustBinding(t, "f1"), func() {}), ErrListenerClosed)
}
