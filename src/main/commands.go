package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ThomsenDrake/screen-capture-ocr/src/config"
	"github.com/ThomsenDrake/screen-capture-ocr/src/csvstore"
	"github.com/ThomsenDrake/screen-capture-ocr/src/eventloop"
	"github.com/ThomsenDrake/screen-capture-ocr/src/runtimeinit"
	"github.com/ThomsenDrake/screen-capture-ocr/src/screenshot"
	"github.com/ThomsenDrake/screen-capture-ocr/src/singleinstance"
	"github.com/ThomsenDrake/screen-capture-ocr/src/window"
)

const remoteTimeout = 3 * time.Second

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active capture run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Loads .env so SINGLEINSTANCE_PORT_* apply before the scan.
			_, _ = config.Load()
			return sendCommand(cmd.Context(), singleinstance.NewClient(), singleinstance.CommandStop, cmd.OutOrStdout())
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the active capture run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = config.Load()
			return sendCommand(cmd.Context(), singleinstance.NewClient(), singleinstance.CommandStatus, cmd.OutOrStdout())
		},
	}
}

func sendCommand(ctx context.Context, client singleinstance.Client, command singleinstance.Command, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	delivered, text, err := client.Send(ctx, command)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	if !delivered {
		return errNotRunning
	}
	fmt.Fprint(out, text)
	return nil
}

type windowLister interface {
	List() ([]window.Info, error)
}

func newWindowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "windows",
		Short: "List capturable windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listWindows(window.New(), cmd.OutOrStdout())
		},
	}
}

func listWindows(l windowLister, out io.Writer) error {
	windows, err := l.List()
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	if len(windows) == 0 {
		fmt.Fprintln(out, "No titled windows found.")
		return nil
	}
	for _, w := range windows {
		fmt.Fprintf(out, "%7d  %s\n", w.PID, w.Label(0))
	}
	return nil
}

func newDedupCmd(opts *mainOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dedup <csv>",
		Short: "Remove duplicate rows from an existing CSV in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDedup(args[0], newConsole(opts))
		},
	}
}

type reporter interface {
	Success(format string, args ...interface{})
	Info(format string, args ...interface{})
}

func runDedup(path string, out reporter) error {
	stats, err := csvstore.Deduplicate(path)
	if err != nil {
		return fmt.Errorf("deduplicate %s: %w", path, err)
	}
	if stats.Removed == 0 {
		out.Info("%s: %d rows, no duplicates", path, stats.Original)
		return nil
	}
	out.Success("%s: %d original rows, %d unique, %d duplicates removed", path, stats.Original, stats.Unique, stats.Removed)
	return nil
}

func newReplayCmd(opts *mainOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <dir>",
		Short: "Run extraction over saved screenshots into the output CSV",
		Long: "Processes every PNG in <dir> in name order as one cycle each, appending extracted rows\n" +
			"to the output CSV, then deduplicates it. No window is touched.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts, args[0])
		},
	}
}

func runReplay(cmd *cobra.Command, opts *mainOptions, dir string) error {
	provider, err := screenshot.NewDirectoryProvider(dir)
	if err != nil {
		return err
	}

	rt, err := bootstrap(cmd, opts, runtimeinit.Options{Probes: &runtimeinit.Probes{}})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	console := newConsole(opts)
	headers, _, err := resolveHeaders(cfg, console, interactive())
	if err != nil {
		return err
	}

	runner, err := newRunner(rt, headers, provider.Capture, "")
	if err != nil {
		return err
	}

	loop, err := eventloop.New(eventloop.Options{
		Cycler:       runner,
		Confirmer:    console,
		Reporter:     console,
		Capabilities: eventloop.Capabilities{Reformat: rt.Capabilities.Reformat},
		Headers:      headers,
		OutputCSV:    cfg.OutputCSV,
		DebugConfirm: cfg.DebugConfirm,
		StopOn:       screenshot.ErrExhausted,
	})
	if err != nil {
		return err
	}

	console.Info("Replaying %d screenshots from %s into %s", provider.Len(), dir, cfg.OutputCSV)
	_, err = loop.Run(cmd.Context())
	return err
}
