package input

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Key is a keyboard key as delivered by a Source. Exactly one of Char or Name
// is set: printable keys carry their character, every other key carries a
// canonical lower-case name such as "enter", "space" or "ctrl_r".
type Key struct {
	Char     rune
	Name     string
	Modifier bool
}

var modifierNames = map[string]struct{}{
	"shift": {}, "shift_l": {}, "shift_r": {},
	"ctrl": {}, "ctrl_l": {}, "ctrl_r": {},
	"alt": {}, "alt_l": {}, "alt_r": {}, "alt_gr": {},
	"cmd": {}, "cmd_l": {}, "cmd_r": {},
}

// CharKey returns the printable key for r.
func CharKey(r rune) Key {
	return Key{Char: r}
}

// NamedKey returns the non-printable key called name. Known modifier names are
// flagged as modifiers.
func NamedKey(name string) Key {
	name = strings.ToLower(strings.TrimSpace(name))
	_, modifier := modifierNames[name]
	return Key{Name: name, Modifier: modifier}
}

// ParseKey parses a configured key: a single printable character or a key name.
func ParseKey(value string) (Key, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Key{}, fmt.Errorf("key must not be empty")
	}
	if utf8.RuneCountInString(trimmed) == 1 {
		r, _ := utf8.DecodeRuneInString(trimmed)
		if unicode.IsPrint(r) {
			return CharKey(r), nil
		}
	}
	for _, r := range trimmed {
		if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return Key{}, fmt.Errorf("invalid key name %q", value)
		}
	}
	return NamedKey(trimmed), nil
}

// Printable reports whether the key contributes text to a typing run.
func (k Key) Printable() bool {
	return k.Name == "" && k.Char != 0
}

// Label renders the key for the event log: printable keys as themselves, the
// space bar as " " and everything else as "[name]".
func (k Key) Label() string {
	if k.Printable() {
		return string(k.Char)
	}
	if k.Name == "space" {
		return " "
	}
	return "[" + k.Name + "]"
}

// String implements fmt.Stringer.
func (k Key) String() string {
	if k.Printable() {
		return string(k.Char)
	}
	return k.Name
}

// Matches reports whether k and other name the same physical key.
func (k Key) Matches(other Key) bool {
	if k.Printable() || other.Printable() {
		return k.Printable() && other.Printable() && k.Char == other.Char
	}
	return k.Name == other.Name
}
