// Package window enumerates, activates and measures top-level windows and
// injects navigation keystrokes into them.
package window

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ThomsenDrake/screen-capture-ocr/src/screenshot"
)

// ErrNotFound means no window matched a query.
var ErrNotFound = errors.New("window not found")

// KeyInterval separates consecutive advance keystrokes.
const KeyInterval = 100 * time.Millisecond

// Info describes one capturable window.
type Info struct {
	PID   int
	Name  string
	Title string
}

// Label is the title shortened for menus.
func (i Info) Label(max int) string {
	title := i.Title
	if r := []rune(title); max > 0 && len(r) > max {
		title = string(r[:max]) + "..."
	}
	return fmt.Sprintf("%s (%s)", title, i.Name)
}

type backend interface {
	processes() ([]Info, error)
	activate(pid int) error
	bounds(pid int) (x, y, w, h int)
	keyTap(key string) error
}

type Manager struct {
	b     backend
	sleep func(context.Context, time.Duration) error
}

func New() *Manager {
	return &Manager{b: robotgoBackend{}, sleep: sleepCtx}
}

// List returns windows that have a title, sorted by title.
func (m *Manager) List() ([]Info, error) {
	procs, err := m.b.processes()
	if err != nil {
		return nil, fmt.Errorf("enumerate windows: %w", err)
	}

	seen := make(map[string]struct{})
	var out []Info
	for _, p := range procs {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			continue
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		p.Title = title
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out, nil
}

// Resolve maps a query to a target: a numeric pid, an exact title
// (case-insensitive), or a substring of a title or process name.
func (m *Manager) Resolve(query string) (screenshot.Target, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return screenshot.Target{}, nil
	}

	windows, err := m.List()
	if err != nil {
		return screenshot.Target{}, err
	}

	if pid, err := strconv.Atoi(query); err == nil {
		for _, w := range windows {
			if w.PID == pid {
				return screenshot.Target{Title: w.Title, PID: w.PID}, nil
			}
		}
		return screenshot.Target{}, fmt.Errorf("%w: pid %d", ErrNotFound, pid)
	}

	q := strings.ToLower(query)
	for _, w := range windows {
		if strings.ToLower(w.Title) == q {
			return screenshot.Target{Title: w.Title, PID: w.PID}, nil
		}
	}
	for _, w := range windows {
		if strings.Contains(strings.ToLower(w.Title), q) || strings.Contains(strings.ToLower(w.Name), q) {
			return screenshot.Target{Title: w.Title, PID: w.PID}, nil
		}
	}
	return screenshot.Target{}, fmt.Errorf("%w: %q", ErrNotFound, query)
}

// Activate brings target to the foreground. The full screen needs no
// activation.
func (m *Manager) Activate(target screenshot.Target) error {
	if target.FullScreen() {
		return nil
	}
	pid, err := m.pid(target)
	if err != nil {
		return err
	}
	if err := m.b.activate(pid); err != nil {
		return fmt.Errorf("activate %s: %w", target, err)
	}
	return nil
}

// Bounds implements screenshot.Locator.
func (m *Manager) Bounds(target screenshot.Target) (screenshot.Region, error) {
	pid, err := m.pid(target)
	if err != nil {
		return screenshot.Region{}, err
	}
	x, y, w, h := m.b.bounds(pid)
	if w <= 0 || h <= 0 {
		return screenshot.Region{}, fmt.Errorf("%s has no visible area", target)
	}
	return screenshot.Region{X: x, Y: y, Width: w, Height: h}, nil
}

func (m *Manager) pid(target screenshot.Target) (int, error) {
	if target.PID > 0 {
		return target.PID, nil
	}
	resolved, err := m.Resolve(target.Title)
	if err != nil {
		return 0, err
	}
	return resolved.PID, nil
}

// Navigator pages through a live table by re-activating the target and
// tapping a key.
type Navigator struct {
	m      *Manager
	target screenshot.Target
	key    string
}

func (m *Manager) Navigator(target screenshot.Target, key string) *Navigator {
	return &Navigator{m: m, target: target, key: key}
}

func (n *Navigator) Activate(ctx context.Context) error {
	return n.m.Activate(n.target)
}

// Advance sends count keystrokes, KeyInterval apart.
func (n *Navigator) Advance(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		if i > 0 {
			if err := n.m.sleep(ctx, KeyInterval); err != nil {
				return err
			}
		}
		if err := n.m.b.keyTap(n.key); err != nil {
			return fmt.Errorf("send %q: %w", n.key, err)
		}
	}
	log.Debug().Str("component", "window").Str("key", n.key).Int("count", count).Msg("advance keystrokes sent")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
