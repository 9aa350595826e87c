package screenshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/kbinani/screenshot"
	"github.com/rs/zerolog/log"
)

// ErrNoCaptureMechanism means no display can be captured.
var ErrNoCaptureMechanism = errors.New("no capture mechanism available: no active displays found")

// Region represents a screen region to capture
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Target is the capture target of a run. The zero value is the full screen.
type Target struct {
	Title string
	PID   int
}

func (t Target) FullScreen() bool { return t.Title == "" && t.PID == 0 }

func (t Target) String() string {
	switch {
	case t.FullScreen():
		return "full screen"
	case t.Title != "":
		return fmt.Sprintf("window %q (pid %d)", t.Title, t.PID)
	default:
		return fmt.Sprintf("pid %d", t.PID)
	}
}

// Provider returns PNG bytes of its target.
type Provider interface {
	Capture(ctx context.Context) ([]byte, error)
	Name() string
}

// Locator reports the on-screen bounds of a window target.
type Locator interface {
	Bounds(target Target) (Region, error)
}

// Probe selects the provider for target once at startup.
func Probe(target Target, locator Locator) (Provider, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, ErrNoCaptureMechanism
	}
	display := DisplayProvider{}
	if target.FullScreen() || locator == nil {
		return display, nil
	}
	return &WindowProvider{Target: target, Locator: locator, Fallback: display}, nil
}

// DisplayProvider captures the union of all active displays.
type DisplayProvider struct{}

func (DisplayProvider) Name() string { return "display" }

func (DisplayProvider) Capture(ctx context.Context) ([]byte, error) {
	img, err := Capture()
	if err != nil {
		return nil, err
	}
	return Encode(img)
}

// WindowProvider captures a window's bounds, falling back to the full
// screen when the window cannot be located or captured.
type WindowProvider struct {
	Target   Target
	Locator  Locator
	Fallback Provider
}

func (p *WindowProvider) Name() string { return "window" }

func (p *WindowProvider) Capture(ctx context.Context) ([]byte, error) {
	region, err := p.Locator.Bounds(p.Target)
	if err == nil {
		var data []byte
		if data, err = CaptureRegion(region); err == nil {
			return data, nil
		}
	}
	if p.Fallback == nil {
		return nil, fmt.Errorf("capture %s: %w", p.Target, err)
	}
	log.Warn().Str("component", "screenshot").Err(err).Stringer("target", p.Target).
		Msg("window capture failed, using full screen")
	return p.Fallback.Capture(ctx)
}

// Capture captures the entire virtual screen across all active displays
func Capture() (*image.RGBA, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrNoCaptureMechanism
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return screenshot.CaptureRect(union)
}

// CaptureRegion captures a specific region of the screen as PNG.
func CaptureRegion(region Region) ([]byte, error) {
	if region.Width <= 0 || region.Height <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}

	img, err := screenshot.CaptureRect(region.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return Encode(img)
}

// DisplayBounds returns the bounds of the primary display.
func DisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, ErrNoCaptureMechanism
	}
	return screenshot.GetDisplayBounds(0), nil
}

func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}
