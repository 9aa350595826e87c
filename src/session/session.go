// Package session runs one capture cycle: capture, persist the raw artifact,
// recognize, extract and append.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ThomsenDrake/screen-capture-ocr/src/csvstore"
	"github.com/ThomsenDrake/screen-capture-ocr/src/ocr"
	"github.com/ThomsenDrake/screen-capture-ocr/src/screenshot"
	"github.com/ThomsenDrake/screen-capture-ocr/src/table"
)

// Stage names the step a cycle failed in.
type Stage string

const (
	StageCapture Stage = "capture"
	StageOCR     Stage = "ocr"
	StageAppend  Stage = "append"
)

// CycleError wraps a failure with the stage it happened in.
type CycleError struct {
	Stage Stage
	Err   error
}

func (e *CycleError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *CycleError) Unwrap() error { return e.Err }

type CaptureFunc func(ctx context.Context) ([]byte, error)

type RecognizeFunc func(ctx context.Context, image []byte) (ocr.Result, error)

type ExtractFunc func(ctx context.Context, res ocr.Result, headers table.Headers) *table.Table

type AppendFunc func(path string, rows [][]string) error

type Options struct {
	Headers   table.Headers
	OutputCSV string
	// ArtifactDir receives every capture; empty disables persisting.
	ArtifactDir string
	// Deadline bounds recognition plus extraction. Zero means 60s.
	Deadline time.Duration
	// SkipSimilar skips recognition when the capture's average hash is
	// within SimilarBits of the previous capture.
	SkipSimilar bool
	SimilarBits int

	Capture   CaptureFunc
	Recognize RecognizeFunc
	Extract   ExtractFunc
	Append    AppendFunc
	Now       func() time.Time
}

type Result struct {
	Artifact string
	Rows     int
	Table    *table.Table
	// Skipped is set when the capture matched the previous one.
	Skipped bool
	// NoContent is set when recognition found nothing.
	NoContent bool
}

// Runner executes cycles and remembers the previous capture's hash.
type Runner struct {
	opts     Options
	lastHash uint64
	hasHash  bool
}

func NewRunner(opts Options) (*Runner, error) {
	if opts.Capture == nil {
		return nil, errors.New("Capture is required")
	}
	if opts.Recognize == nil {
		return nil, errors.New("Recognize is required")
	}
	if len(opts.Headers) == 0 {
		return nil, errors.New("Headers are required")
	}
	if opts.Extract == nil {
		opts.Extract = table.NewExtractor(nil, "").Extract
	}
	if opts.Append == nil {
		opts.Append = csvstore.Append
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Deadline <= 0 {
		opts.Deadline = 60 * time.Second
	}
	return &Runner{opts: opts}, nil
}

// Execute runs one cycle. Capture and recognition failures come back as
// *CycleError with zero rows; the CSV is untouched by a failed cycle.
func (r *Runner) Execute(ctx context.Context) (Result, error) {
	logger := log.With().Str("component", "session").Logger()
	var res Result

	image, err := r.opts.Capture(ctx)
	if err != nil {
		return res, &CycleError{Stage: StageCapture, Err: err}
	}

	if r.opts.ArtifactDir != "" {
		path, err := screenshot.SaveArtifact(r.opts.ArtifactDir, image, r.opts.Now())
		if err != nil {
			logger.Warn().Err(err).Msg("could not save screenshot")
		} else {
			res.Artifact = path
		}
	}

	if r.similarToPrevious(image) {
		res.Skipped = true
		return res, nil
	}

	jobCtx, cancel := context.WithTimeout(ctx, r.opts.Deadline)
	defer cancel()

	result, err := r.opts.Recognize(jobCtx, image)
	if errors.Is(err, ocr.ErrNoContent) {
		res.NoContent = true
		return res, nil
	}
	if err != nil {
		return res, &CycleError{Stage: StageOCR, Err: err}
	}

	t := r.opts.Extract(jobCtx, result, r.opts.Headers)
	if t.Len() == 0 {
		return res, nil
	}
	res.Table = t

	if err := r.opts.Append(r.opts.OutputCSV, t.Records()); err != nil {
		return res, &CycleError{Stage: StageAppend, Err: err}
	}
	res.Rows = t.Len()
	return res, nil
}

func (r *Runner) similarToPrevious(image []byte) bool {
	if !r.opts.SkipSimilar {
		return false
	}
	h, err := screenshot.AverageHash(image)
	if err != nil {
		r.hasHash = false
		return false
	}
	similar := r.hasHash && screenshot.Similar(h, r.lastHash, r.opts.SimilarBits)
	r.lastHash, r.hasHash = h, true
	return similar
}
