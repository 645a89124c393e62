//go:build linux

package inject

import "time"

// Linux key codes are evdev codes, which is what keybd_event expects there.
// a=30, b=48, c=46, d=32, e=18, f=33, g=34, h=35, i=23, j=36,
// k=37, l=38, m=50, n=49, o=24, p=25, q=16, r=19, s=31, t=20,
// u=22, v=47, w=17, x=45, y=21, z=44
var letterCodes = [26]int{
	30, 48, 46, 32, 18, 33, 34, 35, 23, 36,
	37, 38, 50, 49, 24, 25, 16, 19, 31, 20,
	22, 47, 17, 45, 21, 44,
}

// 0=11, 1=2, 2=3, ..., 9=10
var digitCodes = [10]int{11, 2, 3, 4, 5, 6, 7, 8, 9, 10}

var punctuation = map[rune]Keystroke{
	'.': {52, false}, ',': {51, false}, '/': {53, false},
	';': {39, false}, '\'': {40, false}, '[': {26, false},
	']': {27, false}, '-': {12, false}, '=': {13, false},
	'\\': {43, false}, '`': {41, false},
	'!': {2, true}, '@': {3, true}, '#': {4, true},
	'$': {5, true}, '%': {6, true}, '^': {7, true},
	'&': {8, true}, '*': {9, true}, '(': {10, true},
	')': {11, true}, '_': {12, true}, '+': {13, true},
	'{': {26, true}, '}': {27, true}, '|': {43, true},
	':': {39, true}, '"': {40, true}, '<': {51, true},
	'>': {52, true}, '?': {53, true}, '~': {41, true},
}

func keystrokeFor(r rune) (Keystroke, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return Keystroke{Code: letterCodes[r-'a']}, true
	case r >= 'A' && r <= 'Z':
		return Keystroke{Code: letterCodes[r-'A'], Shift: true}, true
	case r >= '0' && r <= '9':
		return Keystroke{Code: digitCodes[r-'0']}, true
	case r == ' ':
		return Keystroke{Code: 57}, true
	case r == '\n':
		return Keystroke{Code: 28}, true
	case r == '\t':
		return Keystroke{Code: 15}, true
	default:
		k, ok := punctuation[r]
		return k, ok
	}
}

// settleVirtualKeyboard gives the compositor time to pick up the new
// uinput device before the first event.
func settleVirtualKeyboard() {
	time.Sleep(200 * time.Millisecond)
}
