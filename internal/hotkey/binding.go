package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

const DefaultBinding = "ctrl+shift+space"

// Modifier names are platform neutral. Each platform maps them onto its
// own modifier set (alt is Option on macOS, super is Cmd or Win).
const (
	ModCtrl  = "ctrl"
	ModShift = "shift"
	ModAlt   = "alt"
	ModSuper = "super"
)

var modifierOrder = []string{ModCtrl, ModShift, ModAlt, ModSuper}

var modifierAliases = map[string]string{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"win":     ModSuper,
	"meta":    ModSuper,
}

var keyAliases = map[string]string{
	"space":  "space",
	"return": "enter",
	"enter":  "enter",
	"esc":    "escape",
	"escape": "escape",
	"tab":    "tab",
}

// Binding is a parsed key combination such as ctrl+shift+space.
type Binding struct {
	Modifiers []string
	Key       string
}

func ParseBinding(value string) (Binding, error) {
	raw := strings.ToLower(strings.TrimSpace(value))
	if raw == "" {
		return Binding{}, fmt.Errorf("empty hotkey")
	}

	seen := map[string]bool{}
	var b Binding
	for _, part := range strings.Split(raw, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Binding{}, fmt.Errorf("hotkey %q: empty key name", value)
		}
		if mod, ok := modifierAliases[part]; ok {
			if seen[mod] {
				return Binding{}, fmt.Errorf("hotkey %q: modifier %s repeated", value, mod)
			}
			seen[mod] = true
			continue
		}
		if b.Key != "" {
			return Binding{}, fmt.Errorf("hotkey %q: more than one key (%s, %s)", value, b.Key, part)
		}
		key, ok := normalizeKey(part)
		if !ok {
			return Binding{}, fmt.Errorf("hotkey %q: unknown key %q", value, part)
		}
		b.Key = key
	}
	if b.Key == "" {
		return Binding{}, fmt.Errorf("hotkey %q: no key, only modifiers", value)
	}

	for _, mod := range modifierOrder {
		if seen[mod] {
			b.Modifiers = append(b.Modifiers, mod)
		}
	}
	return b, nil
}

func (b Binding) String() string {
	parts := append(append([]string{}, b.Modifiers...), b.Key)
	return strings.Join(parts, "+")
}

func normalizeKey(name string) (string, bool) {
	if key, ok := keyAliases[name]; ok {
		return key, true
	}
	if len(name) == 1 {
		c := name[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return name, true
		}
		return "", false
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(name, "f")); err == nil && name[0] == 'f' && n >= 1 && n <= 12 && name == "f"+strconv.Itoa(n) {
		return name, true
	}
	return "", false
}
