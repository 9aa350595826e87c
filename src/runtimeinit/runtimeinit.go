// Package runtimeinit turns configuration into a ready runtime: logging,
// the API client (verified by a ping) and the host capability probe.
package runtimeinit

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/ThomsenDrake/screen-capture-ocr/src/clipboard"
	"github.com/ThomsenDrake/screen-capture-ocr/src/config"
	"github.com/ThomsenDrake/screen-capture-ocr/src/eventloop"
	"github.com/ThomsenDrake/screen-capture-ocr/src/llm"
	"github.com/ThomsenDrake/screen-capture-ocr/src/logutil"
	"github.com/ThomsenDrake/screen-capture-ocr/src/ocr"
	"github.com/ThomsenDrake/screen-capture-ocr/src/screenshot"
	"github.com/ThomsenDrake/screen-capture-ocr/src/window"
)

type Options struct {
	LoadOptions config.LoadOptions
	// Override applies command-line flags on top of the loaded config.
	Override func(*config.Config)
	// LogConsole receives console logs; nil means stderr.
	LogConsole io.Writer
	// SkipPing skips the startup API check (offline subcommands).
	SkipPing bool
	// Probes replaces the host probes, mainly for tests.
	Probes *Probes
}

type Runtime struct {
	Config       *config.Config
	Client       *llm.Client
	Capabilities eventloop.Capabilities
	logs         io.Closer
}

// Close flushes and releases the log file.
func (r *Runtime) Close() error {
	if r.logs == nil {
		return nil
	}
	return r.logs.Close()
}

func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.Override != nil {
		opts.Override(cfg)
		cfg.Normalize()
	}

	rt := &Runtime{Config: cfg}
	rt.logs = logutil.Setup(logutil.Options{
		Level:             cfg.LogLevel,
		EnableFileLogging: cfg.EnableFileLogging,
		Console:           opts.LogConsole,
	})
	logger := logutil.Component("runtimeinit")

	if err := cfg.Validate(); err != nil {
		rt.Close()
		if errors.Is(err, config.ErrMissingAPIKey) {
			return nil, fmt.Errorf("%w: checked key file %s and %s env var", err, cfg.APIKeyPath, config.APIKeyEnvVar)
		}
		return nil, err
	}
	logger.Debug().
		Str("api_key", logutil.RedactKey(cfg.APIKey)).
		Str("base_url", cfg.BaseURL).
		Str("ocr_model", cfg.OCRModel).
		Str("format_model", cfg.FormatModel).
		Msg("configuration loaded")

	client, err := llm.New(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.OCRDeadline(),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Client = client

	if !opts.SkipPing {
		if err := client.Ping(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("startup check failed: %w", err)
		}
		logger.Info().Msg("Mistral API ping succeeded")
	}

	probes := DefaultProbes()
	if opts.Probes != nil {
		probes = *opts.Probes
	}
	rt.Capabilities = Probe(cfg, probes)
	return rt, nil
}

// Probes are the host checks behind Capabilities.
type Probes struct {
	Display   func() error
	Windows   func() error
	Clipboard func() error
}

func DefaultProbes() Probes {
	return Probes{
		Display: func() error {
			_, err := screenshot.DisplayBounds()
			return err
		},
		Windows: func() error {
			_, err := window.New().List()
			return err
		},
		Clipboard: clipboard.Init,
	}
}

// Probe runs each check once. The clipboard is only probed when the
// configuration asks for it.
func Probe(cfg *config.Config, p Probes) eventloop.Capabilities {
	logger := logutil.Component("runtimeinit")
	check := func(name string, f func() error) bool {
		if f == nil {
			return false
		}
		if err := f(); err != nil {
			logger.Warn().Err(err).Str("capability", name).Msg("unavailable")
			return false
		}
		return true
	}

	caps := eventloop.Capabilities{
		Display:  check("display", p.Display),
		Windows:  check("windows", p.Windows),
		Reformat: cfg.FormatModel != "",
		LocalOCR: ocr.TesseractAvailable,
	}
	caps.Keystrokes = caps.Windows
	caps.Hotkey = cfg.StopHotkey != ""
	caps.Preview = cfg.Preview && caps.Display
	if cfg.CopyToClipboard {
		caps.Clipboard = check("clipboard", p.Clipboard)
	}

	log.Debug().Str("component", "runtimeinit").Interface("capabilities", caps).Msg("host probed")
	return caps
}
