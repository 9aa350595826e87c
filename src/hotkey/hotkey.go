// Package hotkey watches a global key combination and reports each press.
package hotkey

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
	"github.com/rs/zerolog/log"
)

// Listen installs the global hook and calls onPress every time the whole
// combination is held down. The hook is released when ctx is done.
func Listen(ctx context.Context, spec string, onPress func()) error {
	m, err := newMatcher(spec)
	if err != nil {
		return err
	}
	logger := log.With().Str("component", "hotkey").Logger()

	evChan := gohook.Start()
	if evChan == nil {
		return fmt.Errorf("global keyboard hook unavailable")
	}
	logger.Info().Str("hotkey", spec).Msg("stop hotkey registered")

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("hotkey listener crashed")
			}
		}()
		defer gohook.End()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evChan:
				if !ok {
					logger.Debug().Msg("event channel closed")
					return
				}
				if m.handle(ev.Kind, ev.Rawcode) {
					logger.Info().Str("hotkey", spec).Msg("hotkey pressed")
					if onPress != nil {
						onPress()
					}
				}
			}
		}
	}()
	return nil
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// matcher tracks which keys of one combination are currently held.
type matcher struct {
	mu   sync.Mutex
	keys []keyState
}

func newMatcher(spec string) (*matcher, error) {
	names := parseHotkey(spec)
	if len(names) == 0 {
		return nil, fmt.Errorf("empty hotkey %q", spec)
	}
	m := &matcher{}
	for _, name := range names {
		codes := keyNameToRawcodes(name)
		if len(codes) == 0 {
			return nil, fmt.Errorf("hotkey %q: unknown key %q", spec, name)
		}
		m.keys = append(m.keys, keyState{name: name, rawcodes: codes})
	}
	return m, nil
}

// handle records one key event and reports whether it completed the combination.
// Key states reset after a match so a held combination fires once.
func (m *matcher) handle(kind uint8, rawcode uint16) bool {
	down := kind == gohook.KeyDown || kind == gohook.KeyHold
	if !down && kind != gohook.KeyUp {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.keys {
		for _, code := range m.keys[i].rawcodes {
			if code == rawcode {
				m.keys[i].pressed = down
				break
			}
		}
	}
	if !down {
		return false
	}

	for i := range m.keys {
		if !m.keys[i].pressed {
			return false
		}
	}
	for i := range m.keys {
		m.keys[i].pressed = false
	}
	return true
}

// parseHotkey converts "Ctrl+Alt+q" to normalized key names.
func parseHotkey(spec string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(spec), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			part = "ctrl"
		case "option":
			part = "alt"
		case "win", "super", "meta":
			part = "cmd"
		}
		keys = append(keys, part)
	}
	return keys
}

var namedRawcodes = map[string][]uint16{
	// Modifiers match both the left and right variant.
	"ctrl":  {162, 163},
	"alt":   {164, 165},
	"shift": {160, 161},
	"cmd":   {91, 92},

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a key name to Windows virtual-key codes.
func keyNameToRawcodes(name string) []uint16 {
	name = strings.ToLower(strings.TrimSpace(name))
	if codes, ok := namedRawcodes[name]; ok {
		return codes
	}

	if len(name) == 1 {
		switch c := name[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
	}

	var n int
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && n >= 1 && n <= 24 && name == fmt.Sprintf("f%d", n) {
		return []uint16{uint16(111 + n)}
	}
	return nil
}
