package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ThomsenDrake/screen-capture-ocr/src/clipboard"
	"github.com/ThomsenDrake/screen-capture-ocr/src/config"
	"github.com/ThomsenDrake/screen-capture-ocr/src/eventloop"
	"github.com/ThomsenDrake/screen-capture-ocr/src/hotkey"
	"github.com/ThomsenDrake/screen-capture-ocr/src/ocr"
	"github.com/ThomsenDrake/screen-capture-ocr/src/preview"
	"github.com/ThomsenDrake/screen-capture-ocr/src/runtimeinit"
	"github.com/ThomsenDrake/screen-capture-ocr/src/screenshot"
	"github.com/ThomsenDrake/screen-capture-ocr/src/session"
	"github.com/ThomsenDrake/screen-capture-ocr/src/singleinstance"
	"github.com/ThomsenDrake/screen-capture-ocr/src/table"
	"github.com/ThomsenDrake/screen-capture-ocr/src/ui"
	"github.com/ThomsenDrake/screen-capture-ocr/src/window"
)

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

func newConsole(opts *mainOptions) *ui.Console {
	return ui.New(os.Stdin, os.Stdout, opts.noColor)
}

func bootstrap(cmd *cobra.Command, opts *mainOptions, rtOpts runtimeinit.Options) (*runtimeinit.Runtime, error) {
	rtOpts.LoadOptions = config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath, ProfilePath: opts.profile}
	rtOpts.Override = overrides(cmd, opts)
	return runtimeinit.Bootstrap(cmd.Context(), rtOpts)
}

// resolveHeaders returns configured headers, or prompts for them when
// running on a terminal.
func resolveHeaders(cfg *config.Config, console *ui.Console, canPrompt bool) ([]string, bool, error) {
	headers := cfg.Headers
	prompted := false
	if len(headers) == 0 {
		if !canPrompt {
			return nil, false, fmt.Errorf("%w: pass --header or set HEADERS", config.ErrNoHeaders)
		}
		var err error
		if headers, err = console.PromptHeaders(); err != nil {
			return nil, false, err
		}
		prompted = true
	}
	if err := config.ValidateHeaders(headers); err != nil {
		return nil, false, err
	}
	return headers, prompted, nil
}

func newRunner(rt *runtimeinit.Runtime, headers []string, capture session.CaptureFunc, artifactDir string) (*session.Runner, error) {
	cfg := rt.Config
	var reformatter table.Reformatter
	if rt.Capabilities.Reformat {
		reformatter = rt.Client
	}
	extractor := table.NewExtractor(reformatter, cfg.FormatModel)
	recognizer := ocr.NewRemoteClient(rt.Client, cfg.OCRModel)

	return session.NewRunner(session.Options{
		Headers:     table.Headers(headers),
		OutputCSV:   cfg.OutputCSV,
		ArtifactDir: artifactDir,
		Deadline:    cfg.OCRDeadline(),
		SkipSimilar: cfg.SkipSimilar >= 0,
		SimilarBits: cfg.SkipSimilar,
		Capture:     capture,
		Recognize:   recognizer.Recognize,
		Extract:     extractor.Extract,
	})
}

func runCapture(cmd *cobra.Command, opts *mainOptions) error {
	rt, err := bootstrap(cmd, opts, runtimeinit.Options{})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, caps := rt.Config, rt.Capabilities
	logger := log.With().Str("component", "main").Logger()

	detectCtx, cancelDetect := context.WithTimeout(cmd.Context(), 500*time.Millisecond)
	port, running := singleinstance.DetectResidentPort(detectCtx)
	cancelDetect()
	if running {
		return fmt.Errorf("a capture run is already active on port %d; stop it with `screen-capture-ocr stop`", port)
	}

	if !caps.Display {
		return screenshot.ErrNoCaptureMechanism
	}

	console := newConsole(opts)
	canPrompt := interactive()
	headers, prompted, err := resolveHeaders(cfg, console, canPrompt)
	if err != nil {
		return err
	}

	if prompted && !cmd.Flags().Changed("wait") && !cmd.Flags().Changed("arrow-strokes") {
		if cfg.WaitTime, cfg.ArrowStrokes, err = console.PromptNavigation(cfg.WaitTime, cfg.ArrowStrokes); err != nil {
			return err
		}
	}

	mgr := window.New()
	target, err := chooseTarget(cfg, caps, mgr, console, canPrompt && prompted)
	if err != nil {
		return err
	}

	provider, err := screenshot.Probe(target, mgr)
	if err != nil {
		return err
	}
	logger.Info().Str("provider", provider.Name()).Stringer("target", target).Msg("capture provider selected")

	runner, err := newRunner(rt, headers, provider.Capture, cfg.ScreenshotsDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pv *preview.Window
	if caps.Preview {
		pv = preview.New(preview.Options{Source: provider.Capture, OnStop: cancel})
	}

	loop, err := eventloop.New(eventloop.Options{
		Cycler:         runner,
		Navigator:      navigatorFor(mgr, target, cfg.AdvanceKey),
		Confirmer:      console,
		Reporter:       console,
		Capabilities:   caps,
		Headers:        headers,
		OutputCSV:      cfg.OutputCSV,
		ScreenshotsDir: cfg.ScreenshotsDir,
		Interval:       cfg.Interval,
		WaitTime:       cfg.WaitTime,
		ArrowStrokes:   cfg.ArrowStrokes,
		DebugConfirm:   cfg.DebugConfirm,
		MaxCycles:      opts.maxCycles,
		OnFinalize: func() {
			if pv != nil {
				pv.Stop()
			}
		},
	})
	if err != nil {
		return err
	}

	srv := singleinstance.NewServer()
	if err := srv.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("remote stop unavailable")
	} else {
		defer srv.Close()
		go serveRequests(ctx, srv, loop, cancel)
	}

	if caps.Hotkey {
		if err := hotkey.Listen(ctx, cfg.StopHotkey, cancel); err != nil {
			logger.Warn().Err(err).Msg("stop hotkey unavailable")
		}
	}

	console.Success("Capturing %s every %s into %s", target, cfg.Interval, cfg.OutputCSV)
	console.Info("Press Ctrl+C or %s to stop.", cfg.StopHotkey)

	sum, err := runLoop(ctx, loop, pv)
	if err != nil {
		return err
	}

	if caps.Clipboard {
		if n, err := clipboard.CopyFile(sum.Output); err != nil {
			console.Warning("Could not copy %s to the clipboard: %v", sum.Output, err)
		} else {
			console.Success("Copied %d bytes of CSV to the clipboard", n)
		}
	}
	return nil
}

// runLoop runs the capture loop, keeping the preview on the calling
// goroutine when there is one.
func runLoop(ctx context.Context, loop *eventloop.Loop, pv *preview.Window) (eventloop.Summary, error) {
	if pv == nil {
		return loop.Run(ctx)
	}

	type outcome struct {
		sum eventloop.Summary
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sum, err := loop.Run(ctx)
		pv.Stop()
		done <- outcome{sum, err}
	}()
	pv.Run(ctx)
	o := <-done
	return o.sum, o.err
}

// navigatorFor returns nil for the full screen: keystrokes would land in
// whatever application has focus.
func navigatorFor(mgr *window.Manager, target screenshot.Target, key string) eventloop.Navigator {
	if target.FullScreen() {
		return nil
	}
	return mgr.Navigator(target, key)
}

func chooseTarget(cfg *config.Config, caps eventloop.Capabilities, mgr *window.Manager, console *ui.Console, prompt bool) (screenshot.Target, error) {
	if !caps.Windows {
		if cfg.Window != "" {
			console.Warning("Window selection unavailable. Using full screen capture.")
		}
		return screenshot.Target{}, nil
	}
	if cfg.Window != "" {
		return mgr.Resolve(cfg.Window)
	}
	if !prompt {
		return screenshot.Target{}, nil
	}

	windows, err := mgr.List()
	if err != nil {
		console.Warning("Could not list windows: %v. Using full screen capture.", err)
		return screenshot.Target{}, nil
	}
	sel, ok, err := console.ChooseWindow(windows)
	if err != nil || !ok {
		return screenshot.Target{}, err
	}
	return screenshot.Target{Title: sel.Title, PID: sel.PID}, nil
}

type runState interface {
	RunID() string
	Progress() eventloop.Progress
}

func serveRequests(ctx context.Context, srv singleinstance.Server, loop runState, stop func()) {
	for {
		conn, err := srv.Next(ctx)
		if err != nil {
			return
		}
		handleRequest(conn, loop, stop)
	}
}

func handleRequest(conn singleinstance.Conn, loop runState, stop func()) {
	defer conn.Close()
	switch conn.Request().Command {
	case singleinstance.CommandStop:
		log.Info().Str("component", "main").Msg("stop requested by another process")
		stop()
		_ = conn.RespondSuccess("stopping run " + loop.RunID() + "\n")
	case singleinstance.CommandStatus:
		_ = conn.RespondSuccess(statusLine(loop))
	default:
		_ = conn.RespondError("unsupported command")
	}
}

func statusLine(loop runState) string {
	p := loop.Progress()
	return fmt.Sprintf("run %s: %s, %d cycles (%d failed), %d rows appended\n",
		loop.RunID(), p.State, p.Cycles, p.Failed, p.RowsAppended)
}

var errNotRunning = errors.New("no capture run is active")
