package hotkey

import "golang.design/x/hotkey"

// Mod1 is Alt and Mod4 is Super on every common X11 keymap.
var modifiers = map[string]hotkey.Modifier{
	ModCtrl:  hotkey.ModCtrl,
	ModShift: hotkey.ModShift,
	ModAlt:   hotkey.Mod1,
	ModSuper: hotkey.Mod4,
}
