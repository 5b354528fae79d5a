package input

import "testing"

func TestParseKey(t *testing.T) {
	cases := map[string]struct {
		value string
		want  Key
	}{
		"char":     {"a", CharKey('a')},
		"named":    {"Ctrl_R", Key{Name: "ctrl_r", Modifier: true}},
		"function": {"f9", Key{Name: "f9"}},
		"padded":   {"  enter ", Key{Name: "enter"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseKey(tc.value)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.value, err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestParseKeyRejectsInvalid(t *testing.T) {
	for _, value := range []string{"", "   ", "ctrl+c", "two words"} {
		if _, err := ParseKey(value); err == nil {
			t.Fatalf("expected error for %q", value)
		}
	}
}

func TestKeyLabel(t *testing.T) {
	cases := map[string]struct {
		key  Key
		want string
	}{
		"printable": {CharKey('x'), "x"},
		"space":     {NamedKey("space"), " "},
		"enter":     {NamedKey("enter"), "[enter]"},
		"backspace": {NamedKey("backspace"), "[backspace]"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := tc.key.Label(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestKeyMatches(t *testing.T) {
	if !NamedKey("ctrl_r").Matches(NamedKey("CTRL_R")) {
		t.Fatalf("expected named keys to match case-insensitively")
	}
	if CharKey('a').Matches(CharKey('b')) {
		t.Fatalf("different characters must not match")
	}
	if CharKey('a').Matches(NamedKey("a")) {
		t.Fatalf("printable key must not match a named key")
	}
	if !NamedKey("shift").Modifier || NamedKey("enter").Modifier {
		t.Fatalf("unexpected modifier classification")
	}
}
