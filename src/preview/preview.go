// Package preview shows a live thumbnail of the capture target and a tray
// menu that can stop the run. It owns the GUI main loop.
package preview

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"image"
	_ "image/png"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	AppID           = "com.thomsendrake.screencaptureocr"
	DefaultInterval = time.Second
)

//go:embed icon.svg
var iconSVG []byte

// Icon is the application and tray icon.
var Icon = fyne.NewStaticResource("icon.svg", iconSVG)

// Source returns the current frame as encoded image bytes.
type Source func(ctx context.Context) ([]byte, error)

type Options struct {
	Title    string
	Source   Source
	Interval time.Duration
	// OnStop runs when the user picks "Stop capture" from the tray or window.
	OnStop func()
}

type Window struct {
	opts   Options
	logger zerolog.Logger

	app    fyne.App
	win    fyne.Window
	img    *canvas.Image
	status *widget.Label

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

func New(opts Options) *Window {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Title == "" {
		opts.Title = "Screen Capture Preview"
	}
	return &Window{opts: opts, logger: log.With().Str("component", "preview").Logger()}
}

// Run builds the window and blocks in the GUI loop until Stop is called.
// It must be called from the main goroutine.
func (w *Window) Run(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.app = app.NewWithID(AppID)
	refreshCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	w.win = w.app.NewWindow(w.opts.Title)

	w.img = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	w.img.FillMode = canvas.ImageFillContain
	w.img.SetMinSize(fyne.NewSize(320, 200))
	w.status = widget.NewLabel("waiting for first frame")

	stop := widget.NewButton("Stop capture", w.requestStop)
	w.win.SetContent(container.NewBorder(nil, container.NewHBox(w.status, stop), nil, nil, w.img))
	w.win.Resize(fyne.NewSize(480, 360))
	// Closing the window only hides it; the run ends through Stop.
	w.win.SetCloseIntercept(w.win.Hide)

	w.app.SetIcon(Icon)
	if desk, ok := w.app.(desktop.App); ok {
		desk.SetSystemTrayIcon(Icon)
		desk.SetSystemTrayMenu(fyne.NewMenu("Screen Capture OCR",
			fyne.NewMenuItem("Show preview", w.win.Show),
			fyne.NewMenuItem("Stop capture", w.requestStop),
		))
	}

	go w.refreshLoop(refreshCtx)

	w.win.Show()
	w.app.Run()
}

// Stop ends the GUI loop. Safe to call from any goroutine, more than once,
// and before Run has started.
func (w *Window) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	a, cancel := w.app, w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if a != nil {
		fyne.Do(a.Quit)
	}
}

func (w *Window) requestStop() {
	w.logger.Info().Msg("stop requested from preview")
	if w.opts.OnStop != nil {
		w.opts.OnStop()
	}
}

func (w *Window) refreshLoop(ctx context.Context) {
	t := time.NewTicker(w.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.refresh(ctx)
		}
	}
}

func (w *Window) refresh(ctx context.Context) {
	if w.opts.Source == nil {
		return
	}
	data, err := w.opts.Source(ctx)
	if err != nil {
		w.logger.Debug().Err(err).Msg("preview frame unavailable")
		fyne.Do(func() { w.status.SetText("capture unavailable") })
		return
	}
	img, err := decodeFrame(data)
	if err != nil {
		w.logger.Debug().Err(err).Msg("preview frame undecodable")
		return
	}
	text := statusText(img.Bounds(), time.Now())
	fyne.Do(func() {
		w.img.Image = img
		w.img.Refresh()
		w.status.SetText(text)
	})
}

func decodeFrame(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

func statusText(b image.Rectangle, at time.Time) string {
	return fmt.Sprintf("%dx%d at %s", b.Dx(), b.Dy(), at.Format("15:04:05"))
}
