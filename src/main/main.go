package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ThomsenDrake/screen-capture-ocr/src/config"
)

type mainOptions struct {
	apiKey         string
	apiKeyPath     string
	profile        string
	model          string
	formatModel    string
	output         string
	screenshotsDir string
	headers        []string
	window         string
	interval       int
	wait           int
	arrowStrokes   int
	advanceKey     string
	skipSimilar    int
	hotkey         string
	noPreview      bool
	debug          bool
	copyOutput     bool
	verbose        bool
	noColor        bool
	maxCycles      int
}

func main() {
	enableDPIAwareness()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"screen-capture-ocr"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screen-capture-ocr",
		Short: "Capture a window on an interval and accumulate its tables into a CSV",
		Long: "Captures the screen or a chosen window every interval, recognizes it with Mistral OCR,\n" +
			"extracts rows for the requested columns and appends them to a CSV. On stop (Ctrl+C,\n" +
			"the stop hotkey, the tray menu or `screen-capture-ocr stop`) duplicates are removed.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.apiKey, "api-key", "", "Mistral API key (overrides key file and environment)")
	pf.StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	pf.StringVar(&opts.profile, "profile", "", "YAML run profile")
	pf.StringVar(&opts.model, "model", "", "Mistral OCR model (default "+config.DefaultOCRModel+")")
	pf.StringVar(&opts.formatModel, "format-model", "", "Model used to reformat OCR text into rows (default "+config.DefaultFormatModel+")")
	pf.StringVar(&opts.output, "output", "", "CSV output path (default "+config.DefaultOutputCSV+")")
	pf.StringArrayVar(&opts.headers, "header", nil, "Column header to extract (repeatable)")
	pf.IntVar(&opts.skipSimilar, "skip-similar", -1, "Skip OCR when a capture is within N hash bits of the previous one (-1 disables)")
	pf.BoolVar(&opts.debug, "debug", false, "Ask before deduplicating the CSV")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	pf.BoolVar(&opts.noColor, "no-color", false, "Disable coloured output")

	f := cmd.Flags()
	f.StringVar(&opts.screenshotsDir, "screenshots-dir", "", "Directory for raw captures, cleared at start (default "+config.DefaultScreenshotsDir+")")
	f.StringVar(&opts.window, "window", "", "Window to capture: pid, title or process name (default: prompt or full screen)")
	f.IntVar(&opts.interval, "interval", config.DefaultIntervalSec, "Seconds between capture starts")
	f.IntVar(&opts.wait, "wait", config.DefaultWaitSec, "Settle seconds after each capture before advancing")
	f.IntVar(&opts.arrowStrokes, "arrow-strokes", config.DefaultArrowStrokes, "Advance keystrokes per cycle")
	f.StringVar(&opts.advanceKey, "advance-key", config.DefaultAdvanceKey, "Key sent to advance the target")
	f.StringVar(&opts.hotkey, "hotkey", config.DefaultStopHotkey, "Global hotkey that stops the run")
	f.BoolVar(&opts.noPreview, "no-preview", false, "Disable the preview window")
	f.BoolVar(&opts.copyOutput, "copy", false, "Copy the final CSV to the clipboard")
	f.IntVar(&opts.maxCycles, "cycles", 0, "Stop after N cycles (0 runs until stopped)")

	cmd.AddCommand(
		newStopCmd(),
		newStatusCmd(),
		newWindowsCmd(),
		newDedupCmd(opts),
		newReplayCmd(opts),
	)
	return cmd
}

// overrides applies the flags the user actually set on top of the loaded
// configuration.
func overrides(cmd *cobra.Command, opts *mainOptions) func(*config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	return func(cfg *config.Config) {
		if changed("api-key") {
			cfg.APIKey = strings.TrimSpace(opts.apiKey)
		}
		if changed("model") {
			cfg.OCRModel = opts.model
		}
		if changed("format-model") {
			cfg.FormatModel = opts.formatModel
		}
		if changed("output") {
			cfg.OutputCSV = opts.output
		}
		if changed("screenshots-dir") {
			cfg.ScreenshotsDir = opts.screenshotsDir
		}
		if changed("header") {
			cfg.Headers = config.ParseList(strings.Join(opts.headers, ","))
		}
		if changed("window") {
			cfg.Window = opts.window
		}
		if changed("interval") {
			cfg.Interval = seconds(opts.interval)
		}
		if changed("wait") {
			cfg.WaitTime = seconds(opts.wait)
		}
		if changed("arrow-strokes") {
			cfg.ArrowStrokes = opts.arrowStrokes
		}
		if changed("advance-key") {
			cfg.AdvanceKey = opts.advanceKey
		}
		if changed("skip-similar") {
			cfg.SkipSimilar = opts.skipSimilar
		}
		if changed("hotkey") {
			cfg.StopHotkey = opts.hotkey
		}
		if changed("no-preview") {
			cfg.Preview = !opts.noPreview
		}
		if changed("debug") {
			cfg.DebugConfirm = opts.debug
		}
		if changed("copy") {
			cfg.CopyToClipboard = opts.copyOutput
		}
		if opts.verbose {
			cfg.LogLevel = "debug"
		}
	}
}

var legacyFlags = []string{
	"api-key", "api-key-path", "profile", "model", "format-model", "output", "header",
	"skip-similar", "debug", "verbose", "no-color", "screenshots-dir", "window", "interval",
	"wait", "arrow-strokes", "advance-key", "hotkey", "no-preview", "copy", "cycles",
}

// normalizeLegacyArgs accepts single-dash long flags (-output x, -debug)
// by rewriting them to their double-dash form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		name := strings.TrimPrefix(arg, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name = name[:eq]
		}
		for _, known := range legacyFlags {
			if name == known {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}
