package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ThomsenDrake/screen-capture-ocr/src/config"
)

var testPNG = append(append([]byte{}, pngMagic...), 0, 0, 0, 0)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"ocr-tool", "-file", "a.png", "-json"},
			out:  []string{"ocr-tool", "--file", "a.png", "--json"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"ocr-tool", "-file=a.png", "-header=Name"},
			out:  []string{"ocr-tool", "--file=a.png", "--header=Name"},
		},
		{
			name: "Leaves short and double dash flags unchanged",
			in:   []string{"ocr-tool", "-v", "--json", "-", "-files"},
			out:  []string{"ocr-tool", "-v", "--json", "-", "-files"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLegacyArgs(tt.in)
			if len(got) != len(tt.out) {
				t.Fatalf("Expected len=%d, got %d", len(tt.out), len(got))
			}
			for i := range got {
				if got[i] != tt.out[i] {
					t.Fatalf("Expected arg[%d]=%q, got %q", i, tt.out[i], got[i])
				}
			}
		})
	}
}

func TestPNGValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"ValidPNG", testPNG, false},
		{"InvalidMagic", []byte{0x00, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, true},
		{"TooShort", []byte{0x89, 'P', 'N', 'G'}, true},
		{"Empty", []byte{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePNG(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePNG() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.png")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := readInput(empty, nil); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("expected empty input error, got %v", err)
	}
	if _, err := readInput(filepath.Join(dir, "missing.png"), nil); err == nil {
		t.Error("expected error for missing file")
	}

	data, err := readInput("-", bytes.NewReader(testPNG))
	if err != nil {
		t.Fatalf("stdin input: %v", err)
	}
	if !bytes.Equal(data, testPNG) {
		t.Error("stdin bytes differ")
	}

	big := bytes.NewReader(append(append([]byte{}, pngMagic...), make([]byte, maxFileSize)...))
	if _, err := readInput("-", big); err == nil || !strings.Contains(err.Error(), "maximum size") {
		t.Errorf("expected size error, got %v", err)
	}
}

func fakeMistral(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/ocr":
			_, _ = w.Write([]byte(`{"pages":[{"index":0,"markdown":"| Name | Company |\n|---|---|\n| John | Acme, Inc |"}]}`))
		case "/v1/chat/completions":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"bad request"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	chdirForTest(t, t.TempDir())
	t.Setenv(config.APIKeyPathEnvVar, filepath.Join(t.TempDir(), "missing"))
	t.Setenv(config.APIKeyEnvVar, "sk-test-123456")
	t.Setenv(config.AltEnvFileEnvVar, "")
	t.Setenv("MISTRAL_BASE_URL", srv.URL)
	t.Setenv("OCR_MODEL", "")
	return srv
}

func runTool(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := runWithArgs(append([]string{"ocr-tool"}, args...), streams{bytes.NewReader(testPNG), &stdout, &stderr})
	return stdout.String(), stderr.String(), err
}

func TestPlainTextOutput(t *testing.T) {
	fakeMistral(t)
	stdout, stderr, err := runTool(t, "--file", "-")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "Name\tCompany\nJohn\tAcme, Inc" {
		t.Errorf("stdout = %q", stdout)
	}
	if strings.Contains(stderr, "[verbose]") {
		t.Errorf("unexpected verbose output without -v: %q", stderr)
	}
}

func TestMarkdownOutput(t *testing.T) {
	fakeMistral(t)
	stdout, _, err := runTool(t, "--file", "-", "--markdown")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout, "| John | Acme, Inc |") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestCSVOutput(t *testing.T) {
	fakeMistral(t)
	stdout, _, err := runTool(t, "--file", "-", "--header", "Name", "--header", "Company")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "Name,Company\nJohn,\"Acme, Inc\"\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestJSONOutput(t *testing.T) {
	fakeMistral(t)
	stdout, _, err := runTool(t, "--file", "-", "--json", "--header", "Name")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var result OCRResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if result.Source != "-" {
		t.Errorf("Source = %q, want -", result.Source)
	}
	if result.CharCount != len(result.Text) || result.CharCount == 0 {
		t.Errorf("CharCount = %d for %d chars", result.CharCount, len(result.Text))
	}
	if len(result.Rows) != 1 || result.Rows[0][0] != "John" {
		t.Errorf("Rows = %v", result.Rows)
	}
}

func TestVerboseGoesToStderr(t *testing.T) {
	fakeMistral(t)
	stdout, stderr, err := runTool(t, "--file", "-", "-v")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(stdout, "[verbose]") {
		t.Error("Found [verbose] in stdout")
	}
	if !strings.Contains(stderr, "[verbose]") {
		t.Error("Expected [verbose] logs in stderr with -v flag")
	}
}

func TestMissingAPIKey(t *testing.T) {
	fakeMistral(t)
	t.Setenv(config.APIKeyEnvVar, "")

	stdout, _, err := runTool(t, "--file", "-")
	if err == nil || !strings.Contains(err.Error(), config.APIKeyEnvVar) {
		t.Fatalf("expected missing key error, got %v", err)
	}
	if stdout != "" {
		t.Errorf("Expected empty stdout on error, got %q", stdout)
	}
}

func TestDuplicateHeadersRejected(t *testing.T) {
	fakeMistral(t)
	if _, _, err := runTool(t, "--file", "-", "--header", "Name,Name"); err == nil {
		t.Error("expected duplicate header error")
	}
}
