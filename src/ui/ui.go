// Package ui is the terminal front end: coloured status lines, the
// interactive setup prompts and the per-cycle progress reporter.
package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/ThomsenDrake/screen-capture-ocr/src/eventloop"
	"github.com/ThomsenDrake/screen-capture-ocr/src/session"
	"github.com/ThomsenDrake/screen-capture-ocr/src/window"
)

// LabelWidth bounds window titles in the selection menu.
const LabelWidth = 50

// ErrNoInput is returned when the input closes before a required answer.
var ErrNoInput = errors.New("input closed")

type Console struct {
	in      *bufio.Reader
	out     io.Writer
	noColor bool
	spin    *spinner.Spinner
}

func New(in io.Reader, out io.Writer, noColor bool) *Console {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	return &Console{in: bufio.NewReader(in), out: out, noColor: noColor, spin: s}
}

func (c *Console) paint(attr color.Attribute, prefix, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if c.noColor {
		fmt.Fprintf(c.out, "%s %s\n", prefix, msg)
		return
	}
	color.New(attr).Fprintf(c.out, "%s %s\n", prefix, msg)
}

func (c *Console) Success(format string, args ...interface{}) {
	c.paint(color.FgGreen, "✓", format, args...)
}

func (c *Console) Error(format string, args ...interface{}) {
	c.paint(color.FgRed, "✗", format, args...)
}

func (c *Console) Warning(format string, args ...interface{}) {
	c.paint(color.FgYellow, "⚠", format, args...)
}

func (c *Console) Info(format string, args ...interface{}) {
	c.paint(color.FgCyan, "ℹ", format, args...)
}

func (c *Console) Step(format string, args ...interface{}) {
	c.paint(color.FgBlue, "→", format, args...)
}

func (c *Console) Section(title string) {
	fmt.Fprintf(c.out, "\n=== %s ===\n", title)
}

// readLine prompts and returns one trimmed line. A final line without a
// newline is still returned; only a closed, empty input is ErrNoInput.
func (c *Console) readLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptHeaders reads column headers one per line until a blank line.
// At least one header is required and duplicates are refused.
func (c *Console) PromptHeaders() ([]string, error) {
	c.Section("Screen Capture OCR CSV Extractor")
	fmt.Fprintln(c.out, "What data points do you want to extract from the tables?")
	fmt.Fprintln(c.out, "Enter each column header (press Enter on an empty line when done):")

	var headers []string
	seen := map[string]bool{}
	for {
		h, err := c.readLine(fmt.Sprintf("Column %d: ", len(headers)+1))
		if err != nil {
			if errors.Is(err, ErrNoInput) && len(headers) > 0 {
				break
			}
			return nil, err
		}
		if h == "" {
			if len(headers) > 0 {
				break
			}
			c.Warning("Please enter at least one column header.")
			continue
		}
		if seen[h] {
			c.Warning("%q is already a column.", h)
			continue
		}
		seen[h] = true
		headers = append(headers, h)
	}

	c.Info("You entered %d column headers: %s", len(headers), strings.Join(headers, ", "))
	return headers, nil
}

// PromptNavigation asks for the settle time and the keystrokes per cycle.
// Blank input keeps the default; out-of-range or invalid input falls back
// to it with a warning.
func (c *Console) PromptNavigation(wait time.Duration, strokes int) (time.Duration, int, error) {
	c.Section("Navigation Settings")

	defWait := int(wait / time.Second)
	line, err := c.readLine(fmt.Sprintf("Enter wait time between captures in seconds (default: %d): ", defWait))
	if err != nil && !errors.Is(err, ErrNoInput) {
		return 0, 0, err
	}
	secs := defWait
	if line != "" {
		n, convErr := strconv.Atoi(line)
		switch {
		case convErr != nil:
			c.Warning("Invalid wait time. Using default of %d seconds.", defWait)
		case n < 1:
			c.Warning("Wait time must be at least 1 second. Using default of %d seconds.", defWait)
		default:
			secs = n
		}
	}

	line, err = c.readLine(fmt.Sprintf("Enter number of arrow key strokes per cycle (default: %d): ", strokes))
	if err != nil && !errors.Is(err, ErrNoInput) {
		return 0, 0, err
	}
	n := strokes
	if line != "" {
		v, convErr := strconv.Atoi(line)
		switch {
		case convErr != nil:
			c.Warning("Invalid arrow strokes count. Using default of %d.", strokes)
		case v < 0:
			c.Warning("Arrow strokes cannot be negative. Using default of %d.", strokes)
		default:
			n = v
		}
	}

	c.Info("Navigation configured: %ds wait, %d arrow strokes", secs, n)
	return time.Duration(secs) * time.Second, n, nil
}

// ChooseWindow lists windows and returns the selection. ok is false when
// the user picks the full screen.
func (c *Console) ChooseWindow(windows []window.Info) (window.Info, bool, error) {
	if len(windows) == 0 {
		c.Info("No windows found. Using full screen capture.")
		return window.Info{}, false, nil
	}

	fmt.Fprintln(c.out, "\nAvailable windows:")
	for i, w := range windows {
		fmt.Fprintf(c.out, "%2d. %s\n", i+1, w.Label(LabelWidth))
	}

	for {
		line, err := c.readLine(fmt.Sprintf("\nSelect window (1-%d) or press Enter for full screen: ", len(windows)))
		if errors.Is(err, ErrNoInput) {
			return window.Info{}, false, nil
		}
		if err != nil {
			return window.Info{}, false, err
		}
		if line == "" {
			return window.Info{}, false, nil
		}
		n, convErr := strconv.Atoi(line)
		if convErr != nil {
			c.Warning("Please enter a valid number")
			continue
		}
		if n < 1 || n > len(windows) {
			c.Warning("Please enter a number between 1 and %d", len(windows))
			continue
		}
		sel := windows[n-1]
		c.Success("Selected: %s", sel.Title)
		return sel, true, nil
	}
}

// Confirm asks a y/n question until it gets an answer. A closed input or a
// cancelled ctx counts as no.
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	for ctx.Err() == nil {
		line, err := c.readLine(fmt.Sprintf("\n%s (y/n): ", question))
		if errors.Is(err, ErrNoInput) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		c.Warning("Please enter 'y' for yes or 'n' for no.")
	}
	return false, ctx.Err()
}

var _ eventloop.Confirmer = (*Console)(nil)
var _ eventloop.Reporter = (*Console)(nil)

func stamp() string { return time.Now().Format("15:04:05") }

func (c *Console) CycleStarted(n int) {
	c.spin.Suffix = fmt.Sprintf(" cycle %d: capturing and recognizing", n)
	c.spin.Start()
}

func (c *Console) CycleFinished(n int, res session.Result, err error) {
	c.spin.Stop()
	switch {
	case err != nil:
		c.Warning("[%s] cycle %d failed: %v", stamp(), n, err)
	case res.Skipped:
		c.Info("[%s] cycle %d: screen unchanged, skipped", stamp(), n)
	case res.NoContent:
		c.Info("[%s] cycle %d: no text recognized", stamp(), n)
	case res.Rows == 0:
		c.Info("[%s] cycle %d: no table found", stamp(), n)
	default:
		c.Success("[%s] cycle %d: appended %d rows", stamp(), n, res.Rows)
	}
}

func (c *Console) Waiting(d time.Duration) {
	c.Step("waiting %s before advancing", d)
}

func (c *Console) Finalized(s eventloop.Summary) {
	if s.Deduplicated {
		c.Success("Deduplication complete: %d original rows, %d unique, %d duplicates removed",
			s.Dedup.Original, s.Dedup.Unique, s.Dedup.Removed)
	} else {
		c.Info("Skipped deduplication. Raw data preserved.")
	}
	c.Success("Final output saved to: %s (%d cycles, %d rows appended)", s.Output, s.Cycles, s.RowsAppended)
}
