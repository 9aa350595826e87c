package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/ThomsenDrake/screen-capture-ocr/src/singleinstance"
)

type stressOptions struct {
	n        int
	command  string
	deadline time.Duration
}

type tally struct {
	ok, absent, rejected, failed int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	return newRootCmd(opts).Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-control",
		Short:         "Stress test the control channel of a running capture",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCommand(opts.command)
			if err != nil {
				return err
			}
			t := runWithOptions(cmd.Context(), singleinstance.NewClient(), c, *opts)
			report(cmd.OutOrStdout(), opts.n, t)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of concurrent clients")
	cmd.Flags().StringVar(&opts.command, "command", "status", "status|stop: command each client sends")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func parseCommand(s string) (singleinstance.Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "status":
		return singleinstance.CommandStatus, nil
	case "stop":
		return singleinstance.CommandStop, nil
	}
	return "", fmt.Errorf("unknown command %q (want status or stop)", s)
}

func runWithOptions(ctx context.Context, client singleinstance.Client, c singleinstance.Command, opts stressOptions) *tally {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &tally{}
	var wg sync.WaitGroup
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, opts.deadline)
			defer cancel()

			delegated, _, err := client.Send(cctx, c)
			switch {
			case !delegated && err == nil:
				atomic.AddInt32(&t.absent, 1)
			case delegated && err != nil:
				atomic.AddInt32(&t.rejected, 1)
			case err != nil:
				atomic.AddInt32(&t.failed, 1)
			default:
				atomic.AddInt32(&t.ok, 1)
			}
		}()
	}
	wg.Wait()
	return t
}

func report(w io.Writer, n int, t *tally) {
	fmt.Fprintf(w, "launched=%d ok=%d absent=%d rejected=%d err=%d\n", n, t.ok, t.absent, t.rejected, t.failed)
}
