package hotkey

import (
	"testing"

	gohook "github.com/robotn/gohook"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"cmd", []uint16{91, 92}},

		{"q", []uint16{81}},
		{"a", []uint16{65}},
		{"z", []uint16{90}},

		{"0", []uint16{48}},
		{"9", []uint16{57}},

		{"f1", []uint16{112}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},

		{"space", []uint16{32}},
		{"enter", []uint16{13}},
		{"esc", []uint16{27}},
		{"down", []uint16{40}},

		{"f25", nil},
		{"f01", nil},
		{"unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			result := keyNameToRawcodes(tt.keyName)
			if len(result) != len(tt.expected) {
				t.Fatalf("keyNameToRawcodes(%q) = %v, expected %v", tt.keyName, result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("keyNameToRawcodes(%q)[%d] = %d, expected %d", tt.keyName, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Ctrl+Alt+Q", []string{"ctrl", "alt", "q"}},
		{"Control+Option+S", []string{"ctrl", "alt", "s"}},
		{"Alt+F4", []string{"alt", "f4"}},
		{"Ctrl+Win+E", []string{"ctrl", "cmd", "e"}},
		{"Super + Shift + x", []string{"cmd", "shift", "x"}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseHotkey(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("parseHotkey(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("parseHotkey(%q)[%d] = %q, expected %q", tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestNewMatcherRejectsUnknownKeys(t *testing.T) {
	for _, spec := range []string{"", "Ctrl+Hyper", "Alt+F99"} {
		if _, err := newMatcher(spec); err == nil {
			t.Errorf("newMatcher(%q) succeeded, expected error", spec)
		}
	}
}

func TestMatcher(t *testing.T) {
	m, err := newMatcher("Ctrl+Alt+Q")
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		kind    uint8
		rawcode uint16
		fires   bool
	}{
		{gohook.KeyHold, 162, false},
		{gohook.KeyDown, 81, false},
		{gohook.KeyUp, 81, false},
		{gohook.KeyDown, 165, false},
		{gohook.KeyDown, 81, true},
		// Held combination does not refire until pressed again.
		{gohook.KeyDown, 81, false},
		{gohook.MouseDown, 81, false},
	}

	for i, s := range steps {
		if got := m.handle(s.kind, s.rawcode); got != s.fires {
			t.Errorf("step %d: handle(%d, %d) = %v, expected %v", i, s.kind, s.rawcode, got, s.fires)
		}
	}
}
