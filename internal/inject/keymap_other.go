//go:build !linux

package inject

import "github.com/micmonay/keybd_event"

var letterCodes = [26]int{
	keybd_event.VK_A, keybd_event.VK_B, keybd_event.VK_C, keybd_event.VK_D,
	keybd_event.VK_E, keybd_event.VK_F, keybd_event.VK_G, keybd_event.VK_H,
	keybd_event.VK_I, keybd_event.VK_J, keybd_event.VK_K, keybd_event.VK_L,
	keybd_event.VK_M, keybd_event.VK_N, keybd_event.VK_O, keybd_event.VK_P,
	keybd_event.VK_Q, keybd_event.VK_R, keybd_event.VK_S, keybd_event.VK_T,
	keybd_event.VK_U, keybd_event.VK_V, keybd_event.VK_W, keybd_event.VK_X,
	keybd_event.VK_Y, keybd_event.VK_Z,
}

var digitCodes = [10]int{
	keybd_event.VK_0, keybd_event.VK_1, keybd_event.VK_2, keybd_event.VK_3,
	keybd_event.VK_4, keybd_event.VK_5, keybd_event.VK_6, keybd_event.VK_7,
	keybd_event.VK_8, keybd_event.VK_9,
}

// keystrokeFor covers the layout-independent keys only. Everything else
// goes through the clipboard.
func keystrokeFor(r rune) (Keystroke, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return Keystroke{Code: letterCodes[r-'a']}, true
	case r >= 'A' && r <= 'Z':
		return Keystroke{Code: letterCodes[r-'A'], Shift: true}, true
	case r >= '0' && r <= '9':
		return Keystroke{Code: digitCodes[r-'0']}, true
	case r == ' ':
		return Keystroke{Code: keybd_event.VK_SPACE}, true
	default:
		return Keystroke{}, false
	}
}

func settleVirtualKeyboard() {}
