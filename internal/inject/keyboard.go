package inject

import (
	"fmt"
	"sync"

	cb "github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	if cb.Unsupported {
		return fmt.Errorf("no clipboard utility available")
	}
	return cb.WriteAll(text)
}

// systemKeyboard creates the OS virtual keyboard on first use.
type systemKeyboard struct {
	once sync.Once
	kb   keybd_event.KeyBonding
	err  error
}

func newSystemKeyboard() *systemKeyboard {
	return &systemKeyboard{}
}

func (s *systemKeyboard) init() error {
	s.once.Do(func() {
		s.kb, s.err = keybd_event.NewKeyBonding()
		if s.err != nil {
			s.err = fmt.Errorf("%w: %w", errKeyboardSetup, s.err)
			return
		}
		settleVirtualKeyboard()
	})
	return s.err
}

func (s *systemKeyboard) Tap(k Keystroke) error {
	if err := s.init(); err != nil {
		return err
	}
	s.kb.Clear()
	s.kb.SetKeys(k.Code)
	s.kb.HasSHIFT(k.Shift)
	return s.kb.Launching()
}

func (s *systemKeyboard) Paste() error {
	if err := s.init(); err != nil {
		return err
	}
	s.kb.Clear()
	s.kb.SetKeys(keybd_event.VK_V)
	setPasteModifier(&s.kb)
	return s.kb.Launching()
}
