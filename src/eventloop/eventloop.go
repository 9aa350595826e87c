// Package eventloop drives a capture run through its states:
// Idle, Running (cyclic), Stopping, optionally ConfirmDedup, Finalized.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ThomsenDrake/screen-capture-ocr/src/csvstore"
	"github.com/ThomsenDrake/screen-capture-ocr/src/screenshot"
	"github.com/ThomsenDrake/screen-capture-ocr/src/session"
)

const (
	// StartSettle follows the initial activation of the target.
	StartSettle = time.Second
	// ActivationSettle separates re-activation from the keystrokes.
	ActivationSettle = 500 * time.Millisecond
)

// Cycler runs one capture cycle.
type Cycler interface {
	Execute(ctx context.Context) (session.Result, error)
}

// Navigator brings the target forward and pages it.
type Navigator interface {
	Activate(ctx context.Context) error
	Advance(ctx context.Context, count int) error
}

// Confirmer answers the debug-mode question before deduplication.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Reporter receives user-facing progress.
type Reporter interface {
	CycleStarted(n int)
	CycleFinished(n int, res session.Result, err error)
	Waiting(d time.Duration)
	Finalized(s Summary)
}

type Options struct {
	Cycler    Cycler
	Navigator Navigator
	Confirmer Confirmer
	Reporter  Reporter

	Capabilities Capabilities

	Headers        []string
	OutputCSV      string
	ScreenshotsDir string

	Interval     time.Duration
	WaitTime     time.Duration
	ArrowStrokes int
	DebugConfirm bool

	// MaxCycles stops the run after this many cycles; zero is unbounded.
	MaxCycles int
	// StopOn ends the run when a cycle fails with an error matching it.
	StopOn error

	// OnStateChange observes transitions.
	OnStateChange func(State)
	// OnFinalize runs once the run is finalized, e.g. to stop the preview.
	OnFinalize func()

	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

type Summary struct {
	RunID        string
	Cycles       int
	Failed       int
	RowsAppended int
	Deduplicated bool
	Dedup        csvstore.Stats
	Output       string
	Started      time.Time
	Ended        time.Time
}

// Progress is a point-in-time view of a running loop.
type Progress struct {
	State        State
	Cycles       int
	Failed       int
	RowsAppended int
}

type Loop struct {
	opts   Options
	runID  string
	logger zerolog.Logger

	mu       sync.Mutex
	state    State
	progress Progress
}

func New(opts Options) (*Loop, error) {
	if opts.Cycler == nil {
		return nil, errors.New("Cycler is required")
	}
	if len(opts.Headers) == 0 {
		return nil, errors.New("Headers are required")
	}
	if opts.OutputCSV == "" {
		return nil, errors.New("OutputCSV is required")
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if !opts.Capabilities.Keystrokes {
		opts.Navigator = nil
	}

	runID := uuid.NewString()
	return &Loop{
		opts:   opts,
		runID:  runID,
		logger: log.With().Str("component", "eventloop").Str("run", runID[:8]).Logger(),
		state:  Idle,
	}, nil
}

func (l *Loop) RunID() string { return l.runID }

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Progress returns the current state and counters. Safe for concurrent use.
func (l *Loop) Progress() Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.progress
	p.State = l.state
	return p
}

func (l *Loop) record(sum Summary) {
	l.mu.Lock()
	l.progress = Progress{Cycles: sum.Cycles, Failed: sum.Failed, RowsAppended: sum.RowsAppended}
	l.mu.Unlock()
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	l.logger.Debug().Stringer("state", s).Msg("state changed")
	if l.opts.OnStateChange != nil {
		l.opts.OnStateChange(s)
	}
}

// Run blocks until ctx is cancelled (or MaxCycles / StopOn end the run),
// then finalizes. A cycle in flight always completes: cycles run on a
// context detached from ctx, and ctx is only observed between cycles and
// during waits.
func (l *Loop) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: l.runID, Output: l.opts.OutputCSV, Started: l.opts.Now()}

	if err := l.start(ctx); err != nil {
		return sum, err
	}

	l.setState(Running)
	cycleCtx := context.WithoutCancel(ctx)

	for ctx.Err() == nil {
		if l.opts.MaxCycles > 0 && sum.Cycles >= l.opts.MaxCycles {
			break
		}
		sum.Cycles++
		cycleStart := l.opts.Now()
		l.opts.Reporter.CycleStarted(sum.Cycles)

		res, err := l.opts.Cycler.Execute(cycleCtx)
		l.opts.Reporter.CycleFinished(sum.Cycles, res, err)
		sum.RowsAppended += res.Rows
		if err != nil {
			sum.Failed++
		}
		l.record(sum)
		if err != nil {
			l.logger.Warn().Err(err).Int("cycle", sum.Cycles).Msg("cycle failed")
			if l.opts.StopOn != nil && errors.Is(err, l.opts.StopOn) {
				break
			}
		}

		if !l.advance(ctx, cycleStart) {
			break
		}
	}

	l.setState(Stopping)
	return l.finalize(cycleCtx, sum)
}

// start moves out of Idle: reset artifacts, write the header, bring the
// target forward.
func (l *Loop) start(ctx context.Context) error {
	if l.opts.ScreenshotsDir != "" {
		if err := screenshot.ResetDir(l.opts.ScreenshotsDir); err != nil {
			return err
		}
	}
	if err := csvstore.Initialize(l.opts.OutputCSV, l.opts.Headers); err != nil {
		return fmt.Errorf("initialize %s: %w", l.opts.OutputCSV, err)
	}
	l.logger.Info().Str("output", l.opts.OutputCSV).Strs("headers", l.opts.Headers).Msg("capture started")

	if l.opts.Navigator != nil {
		if err := l.opts.Navigator.Activate(ctx); err != nil {
			l.logger.Warn().Err(err).Msg("could not activate target")
		}
		return ignoreCancel(l.opts.Sleep(ctx, StartSettle))
	}
	return nil
}

// advance performs the post-cycle settle, navigation and interval wait.
// It returns false when the run should stop.
func (l *Loop) advance(ctx context.Context, cycleStart time.Time) bool {
	if l.opts.WaitTime > 0 {
		l.opts.Reporter.Waiting(l.opts.WaitTime)
		if l.opts.Sleep(ctx, l.opts.WaitTime) != nil {
			return false
		}
	}

	if l.opts.Navigator != nil {
		if err := l.opts.Navigator.Activate(ctx); err != nil {
			l.logger.Warn().Err(err).Msg("could not re-activate target")
		}
		if l.opts.Sleep(ctx, ActivationSettle) != nil {
			return false
		}
		if err := l.opts.Navigator.Advance(ctx, l.opts.ArrowStrokes); err != nil {
			if ctx.Err() != nil {
				return false
			}
			l.logger.Warn().Err(err).Msg("could not send advance keystrokes")
		}
	}

	if remaining := l.opts.Interval - l.opts.Now().Sub(cycleStart); remaining > 0 {
		if l.opts.Sleep(ctx, remaining) != nil {
			return false
		}
	}
	return ctx.Err() == nil
}

func (l *Loop) finalize(ctx context.Context, sum Summary) (Summary, error) {
	defer func() {
		if l.opts.OnFinalize != nil {
			l.opts.OnFinalize()
		}
	}()

	dedup := true
	if l.opts.DebugConfirm && l.opts.Confirmer != nil {
		l.setState(ConfirmDedup)
		ok, err := l.opts.Confirmer.Confirm(ctx, "Proceed with deduplication?")
		if err != nil {
			l.logger.Warn().Err(err).Msg("confirmation failed, keeping raw CSV")
			ok = false
		}
		dedup = ok
	}

	if dedup {
		stats, err := csvstore.Deduplicate(l.opts.OutputCSV)
		if err != nil {
			l.setState(Finalized)
			sum.Ended = l.opts.Now()
			return sum, fmt.Errorf("deduplicate %s: %w", l.opts.OutputCSV, err)
		}
		sum.Dedup = stats
		sum.Deduplicated = true
	} else {
		l.logger.Info().Str("output", l.opts.OutputCSV).Msg("skipping deduplication, raw data preserved")
	}

	l.setState(Finalized)
	sum.Ended = l.opts.Now()
	l.logger.Info().
		Int("cycles", sum.Cycles).
		Int("failed", sum.Failed).
		Int("rows", sum.RowsAppended).
		Int("removed", sum.Dedup.Removed).
		Msg("capture finished")
	l.opts.Reporter.Finalized(sum)
	return sum, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

type nopReporter struct{}

func (nopReporter) CycleStarted(int)                         {}
func (nopReporter) CycleFinished(int, session.Result, error) {}
func (nopReporter) Waiting(time.Duration)                    {}
func (nopReporter) Finalized(Summary)                        {}
