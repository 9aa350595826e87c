package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomsenDrake/screen-capture-ocr/src/config"
	"github.com/ThomsenDrake/screen-capture-ocr/src/csvstore"
	"github.com/ThomsenDrake/screen-capture-ocr/src/eventloop"
	"github.com/ThomsenDrake/screen-capture-ocr/src/screenshot"
	"github.com/ThomsenDrake/screen-capture-ocr/src/singleinstance"
	"github.com/ThomsenDrake/screen-capture-ocr/src/window"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"screen-capture-ocr", "-output", "out.csv", "-debug"},
			out:  []string{"screen-capture-ocr", "--output", "out.csv", "--debug"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"screen-capture-ocr", "-interval=5", "-api-key-path=/tmp/key"},
			out:  []string{"screen-capture-ocr", "--interval=5", "--api-key-path=/tmp/key"},
		},
		{
			name: "Leaves short, unknown and positional args unchanged",
			in:   []string{"screen-capture-ocr", "-v", "-x", "replay", "-dir"},
			out:  []string{"screen-capture-ocr", "-v", "-x", "replay", "-dir"},
		},
		{
			name: "Stops at terminator",
			in:   []string{"screen-capture-ocr", "dedup", "--", "-output"},
			out:  []string{"screen-capture-ocr", "dedup", "--", "-output"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, normalizeLegacyArgs(tt.in))
		})
	}
}

func TestOverridesOnlyChangedFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{
		"--output", "leads.csv", "--header", "Name", "--header", "Company, Title",
		"--wait", "2", "--no-preview", "--skip-similar", "3", "-v",
	}))

	cfg := &config.Config{
		OutputCSV:    "default.csv",
		Interval:     10 * time.Second,
		WaitTime:     5 * time.Second,
		ArrowStrokes: 7,
		Preview:      true,
		SkipSimilar:  -1,
		LogLevel:     "info",
	}
	overrides(cmd, opts)(cfg)

	assert.Equal(t, "leads.csv", cfg.OutputCSV)
	assert.Equal(t, []string{"Name", "Company", "Title"}, cfg.Headers)
	assert.Equal(t, 2*time.Second, cfg.WaitTime)
	assert.Equal(t, 10*time.Second, cfg.Interval, "unset flag keeps loaded value")
	assert.Equal(t, 7, cfg.ArrowStrokes, "unset flag keeps loaded value")
	assert.False(t, cfg.Preview)
	assert.Equal(t, 3, cfg.SkipSimilar)
	assert.Equal(t, "debug", cfg.LogLevel)
}

type fakeClient struct {
	delivered bool
	text      string
	err       error
	got       singleinstance.Command
}

func (f *fakeClient) Send(ctx context.Context, cmd singleinstance.Command) (bool, string, error) {
	f.got = cmd
	return f.delivered, f.text, f.err
}

func TestSendCommand(t *testing.T) {
	var out bytes.Buffer
	client := &fakeClient{delivered: true, text: "stopping run abc\n"}
	require.NoError(t, sendCommand(context.Background(), client, singleinstance.CommandStop, &out))
	assert.Equal(t, singleinstance.CommandStop, client.got)
	assert.Equal(t, "stopping run abc\n", out.String())

	err := sendCommand(context.Background(), &fakeClient{}, singleinstance.CommandStop, &out)
	assert.ErrorIs(t, err, errNotRunning)

	err = sendCommand(context.Background(), &fakeClient{delivered: true, err: errors.New("refused")}, singleinstance.CommandStatus, &out)
	assert.ErrorContains(t, err, "refused")
}

type fakeConn struct {
	req     singleinstance.Request
	success string
	failure string
	closed  bool
}

func (c *fakeConn) Request() singleinstance.Request  { return c.req }
func (c *fakeConn) RespondSuccess(text string) error { c.success = text; return nil }
func (c *fakeConn) RespondError(msg string) error    { c.failure = msg; return nil }
func (c *fakeConn) Close() error                     { c.closed = true; return nil }

type fakeRun struct{}

func (fakeRun) RunID() string { return "run-1" }
func (fakeRun) Progress() eventloop.Progress {
	return eventloop.Progress{State: eventloop.Running, Cycles: 7, Failed: 2, RowsAppended: 31}
}

func TestHandleRequest(t *testing.T) {
	stopped := false
	stop := func() { stopped = true }

	conn := &fakeConn{req: singleinstance.Request{Command: singleinstance.CommandStatus}}
	handleRequest(conn, fakeRun{}, stop)
	assert.Equal(t, "run run-1: running, 7 cycles (2 failed), 31 rows appended\n", conn.success)
	assert.False(t, stopped)
	assert.True(t, conn.closed)

	conn = &fakeConn{req: singleinstance.Request{Command: singleinstance.CommandStop}}
	handleRequest(conn, fakeRun{}, stop)
	assert.True(t, stopped)
	assert.Contains(t, conn.success, "stopping run run-1")

	conn = &fakeConn{req: singleinstance.Request{Command: "REBOOT"}}
	handleRequest(conn, fakeRun{}, stop)
	assert.Equal(t, "unsupported command", conn.failure)
}

type fakeLister struct {
	windows []window.Info
	err     error
}

func (f fakeLister) List() ([]window.Info, error) { return f.windows, f.err }

func TestListWindows(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listWindows(fakeLister{windows: []window.Info{{PID: 42, Name: "code", Title: "main.go"}}}, &out))
	assert.Equal(t, "     42  main.go (code)\n", out.String())

	out.Reset()
	require.NoError(t, listWindows(fakeLister{}, &out))
	assert.Contains(t, out.String(), "No titled windows")

	assert.Error(t, listWindows(fakeLister{err: errors.New("no display")}, &out))
}

type captured struct{ lines []string }

func (c *captured) Success(format string, args ...interface{}) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func (c *captured) Info(format string, args ...interface{}) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func TestRunDedup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name,Company\nJohn,Acme\nJohn,Acme\nJane,Initech\n"), 0644))

	out := &captured{}
	require.NoError(t, runDedup(path, out))
	require.Len(t, out.lines, 1)
	assert.Contains(t, out.lines[0], "3 original rows, 2 unique, 1 duplicates removed")

	_, rows, err := csvstore.ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"John", "Acme"}, {"Jane", "Initech"}}, rows)

	assert.Error(t, runDedup(filepath.Join(t.TempDir(), "missing.csv"), out))
}

func TestReplayEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			_, _ = w.Write([]byte(`{"data":[]}`))
		case "/v1/ocr":
			_, _ = w.Write([]byte(`{"pages":[{"index":0,"markdown":"| Name | Company |\n|---|---|\n| John | Acme |"}]}`))
		case "/v1/chat/completions":
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"not json"}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	work := t.TempDir()
	chdirForTest(t, work)
	t.Setenv(config.APIKeyPathEnvVar, filepath.Join(work, "missing"))
	t.Setenv(config.APIKeyEnvVar, "sk-test-123456")
	t.Setenv(config.AltEnvFileEnvVar, "")
	t.Setenv("MISTRAL_BASE_URL", srv.URL)
	t.Setenv("HEADERS", "")
	t.Setenv("DEBUG_CONFIRM", "")

	shots := filepath.Join(work, "shots")
	require.NoError(t, os.MkdirAll(shots, 0755))
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	for _, name := range []string{"a.png", "b.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(shots, name), png, 0644))
	}

	csvPath := filepath.Join(work, "out.csv")
	err := runWithArgs([]string{"screen-capture-ocr", "replay", shots,
		"--header", "Name", "--header", "Company", "--output", csvPath, "--no-color"})
	require.NoError(t, err)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "Name,Company\nJohn,Acme\n", string(data))
}

func TestRootRejectsArgs(t *testing.T) {
	err := runWithArgs([]string{"screen-capture-ocr", "unexpected"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown command") || strings.Contains(err.Error(), "unexpected"))
}

func TestNavigatorOnlyForWindowTargets(t *testing.T) {
	mgr := window.New()
	assert.Nil(t, navigatorFor(mgr, screenshot.Target{}, "down"), "full screen must not receive keystrokes")
	assert.NotNil(t, navigatorFor(mgr, screenshot.Target{Title: "Sales Navigator", PID: 42}, "down"))
}
