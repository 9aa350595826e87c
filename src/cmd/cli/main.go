package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/ThomsenDrake/screen-capture-ocr/src/config"
	"github.com/ThomsenDrake/screen-capture-ocr/src/csvstore"
	"github.com/ThomsenDrake/screen-capture-ocr/src/llm"
	"github.com/ThomsenDrake/screen-capture-ocr/src/logutil"
	"github.com/ThomsenDrake/screen-capture-ocr/src/ocr"
	"github.com/ThomsenDrake/screen-capture-ocr/src/table"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type cliOptions struct {
	filePath   string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
	model      string
	headers    []string
	local      bool
	markdown   bool
}

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), streams{os.Stdin, os.Stdout, os.Stderr})
}

func runWithArgs(args []string, std streams) error {
	if len(args) == 0 {
		args = []string{"ocr-tool"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, std)
	cmd.SetArgs(args[1:])
	cmd.SetOut(std.out)
	cmd.SetErr(std.err)
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, std streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ocr-tool",
		Short:         "Recognize one PNG and print its text or table",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts, std)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Mistral OCR model")
	cmd.Flags().StringArrayVar(&opts.headers, "header", nil, "Extract a table with these columns and print it as CSV (repeatable)")
	cmd.Flags().BoolVar(&opts.markdown, "markdown", false, "Print the recognized markdown instead of plain text")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Use the local Tesseract engine (requires -tags tesseract)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func verbosef(std streams, on bool, format string, args ...interface{}) {
	if on {
		fmt.Fprintf(std.err, "[verbose] "+format+"\n", args...)
	}
}

func runWithOptions(ctx context.Context, opts cliOptions, std streams) error {
	level := "off"
	if opts.verbose {
		level = "debug"
	}
	closer := logutil.Setup(logutil.Options{Level: level, Console: std.err})
	defer closer.Close()
	verbosef(std, opts.verbose, "Starting OCR tool")

	imageData, err := readInput(opts.filePath, std.in)
	if err != nil {
		return err
	}
	verbosef(std, opts.verbose, "Read %d bytes, PNG validation passed", len(imageData))

	headers := config.ParseList(strings.Join(opts.headers, ","))
	if len(opts.headers) > 0 {
		if err := config.ValidateHeaders(headers); err != nil {
			return err
		}
	}

	var (
		recognizer  ocr.Client
		reformatter table.Reformatter
		formatModel string
	)
	if opts.local {
		tc, err := ocr.NewTesseractClient("eng")
		if err != nil {
			return err
		}
		defer tc.Close()
		recognizer = tc
	} else {
		cfg, err := config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath})
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if opts.model != "" {
			cfg.OCRModel = opts.model
		}
		verbosef(std, opts.verbose, "Config loaded: Model=%s", cfg.OCRModel)
		verbosef(std, opts.verbose, "Effective API key path: %s", cfg.APIKeyPath)

		if err := cfg.Validate(); err != nil {
			if errors.Is(err, config.ErrMissingAPIKey) {
				return fmt.Errorf("%w. Checked key file %s and %s env var", err, cfg.APIKeyPath, config.APIKeyEnvVar)
			}
			return err
		}
		verbosef(std, opts.verbose, "API key: %s", logutil.RedactKey(cfg.APIKey))

		client, err := llm.New(llm.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.OCRDeadline()})
		if err != nil {
			return err
		}
		recognizer = ocr.NewRemoteClient(client, cfg.OCRModel)
		reformatter, formatModel = client, cfg.FormatModel
	}

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(std.err))
	spin.Suffix = " recognizing"
	if !opts.verbose {
		spin.Start()
	}
	start := time.Now()
	res, err := recognizer.Recognize(ctx, imageData)
	elapsed := time.Since(start)
	spin.Stop()

	if err != nil && !errors.Is(err, ocr.ErrNoContent) {
		verbosef(std, opts.verbose, "OCR failed after %v: %v", elapsed, err)
		return fmt.Errorf("OCR failed: %w", err)
	}
	text := res.PlainText()
	if opts.markdown {
		text = res.Content()
	}
	verbosef(std, opts.verbose, "OCR completed in %v, extracted %d characters", elapsed, len(text))

	var t *table.Table
	if len(headers) > 0 {
		t = table.NewExtractor(reformatter, formatModel).Extract(ctx, res, table.Headers(headers))
		verbosef(std, opts.verbose, "Extracted %d rows", t.Len())
	}

	return outputResult(std.out, text, t, headers, opts.filePath, elapsed, opts.jsonOutput)
}

func readInput(filePath string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if filePath == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if err := validatePNG(data); err != nil {
		return nil, err
	}
	return data, nil
}

func validatePNG(data []byte) error {
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

// normalizeLegacyArgs rewrites single-dash long flags to their double-dash form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "api-key-path", "model", "header", "local", "markdown"} {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}

type OCRResult struct {
	Text      string     `json:"text"`
	Headers   []string   `json:"headers,omitempty"`
	Rows      [][]string `json:"rows,omitempty"`
	Source    string     `json:"source"`
	Timestamp string     `json:"timestamp"`
	Duration  float64    `json:"duration_seconds"`
	CharCount int        `json:"character_count"`
}

func outputResult(out io.Writer, text string, t *table.Table, headers []string, sourcePath string, elapsed time.Duration, jsonOutput bool) error {
	if jsonOutput {
		result := OCRResult{
			Text:      text,
			Source:    sourcePath,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Duration:  elapsed.Seconds(),
			CharCount: len(text),
		}
		if len(headers) > 0 {
			result.Headers = headers
			result.Rows = t.Records()
		}

		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}

	if len(headers) == 0 {
		fmt.Fprint(out, text)
		return nil
	}

	if err := csvstore.Write(out, append([][]string{headers}, t.Records()...)); err != nil {
		return fmt.Errorf("failed to write CSV output: %w", err)
	}
	return nil
}
