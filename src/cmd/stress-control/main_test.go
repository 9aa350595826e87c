package main

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThomsenDrake/screen-capture-ocr/src/singleinstance"
)

type fakeClient struct {
	calls     atomic.Int32
	delivered bool
	err       error
}

func (f *fakeClient) Send(ctx context.Context, cmd singleinstance.Command) (bool, string, error) {
	f.calls.Add(1)
	return f.delivered, "state=running", f.err
}

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 50 {
		t.Fatalf("Expected default n=50, got %d", opts.n)
	}
	if opts.command != "status" {
		t.Fatalf("Expected default command=status, got %q", opts.command)
	}
	if opts.deadline != 5*time.Second {
		t.Fatalf("Expected default deadline=5s, got %v", opts.deadline)
	}
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--n", "3", "--command", "stop", "--deadline", "7s"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 3 || opts.command != "stop" || opts.deadline != 7*time.Second {
		t.Fatalf("unexpected options %+v", *opts)
	}
}

func TestParseCommand(t *testing.T) {
	if c, err := parseCommand(" STOP "); err != nil || c != singleinstance.CommandStop {
		t.Errorf("parseCommand(STOP) = %q, %v", c, err)
	}
	if c, err := parseCommand("status"); err != nil || c != singleinstance.CommandStatus {
		t.Errorf("parseCommand(status) = %q, %v", c, err)
	}
	if _, err := parseCommand("ping"); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestRunWithOptionsTally(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
		want   tally
	}{
		{"ok", &fakeClient{delivered: true}, tally{ok: 4}},
		{"absent", &fakeClient{}, tally{absent: 4}},
		{"rejected", &fakeClient{delivered: true, err: errors.New("not running")}, tally{rejected: 4}},
		{"failed", &fakeClient{err: context.DeadlineExceeded}, tally{failed: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runWithOptions(context.Background(), tt.client, singleinstance.CommandStatus, stressOptions{n: 4, deadline: time.Second})
			if *got != tt.want {
				t.Errorf("tally = %+v, want %+v", *got, tt.want)
			}
			if tt.client.calls.Load() != 4 {
				t.Errorf("calls = %d, want 4", tt.client.calls.Load())
			}
		})
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	report(&buf, 3, &tally{ok: 1, absent: 1, failed: 1})
	want := "launched=3 ok=1 absent=1 rejected=0 err=1\n"
	if buf.String() != want {
		t.Errorf("report = %q, want %q", buf.String(), want)
	}
}
