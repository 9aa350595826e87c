package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/mistral"
	APIKeyPathEnvVar  = "MISTRAL_API_KEY_FILE"
	APIKeyEnvVar      = "MISTRAL_API_KEY"
	AltEnvFileEnvVar  = "SCREEN_CAPTURE_OCR"

	DefaultBaseURL        = "https://api.mistral.ai"
	DefaultOCRModel       = "mistral-ocr-latest"
	DefaultFormatModel    = "mistral-medium-2505"
	DefaultOutputCSV      = "screen_capture_table.csv"
	DefaultScreenshotsDir = "screenshots"
	DefaultIntervalSec    = 10
	DefaultWaitSec        = 5
	DefaultArrowStrokes   = 11
	DefaultAdvanceKey     = "down"
	DefaultStopHotkey     = "Ctrl+Alt+Q"
	DefaultOCRDeadlineSec = 60
)

var (
	ErrMissingAPIKey = errors.New("Mistral API key not found")
	ErrNoHeaders     = errors.New("at least one column header is required")
)

type LoadOptions struct {
	APIKeyPathOverride string
	ProfilePath        string
}

type Config struct {
	APIKey     string
	APIKeyPath string
	BaseURL    string

	OCRModel    string
	FormatModel string

	OutputCSV      string
	ScreenshotsDir string
	Headers        []string
	Window         string

	Interval     time.Duration
	WaitTime     time.Duration
	ArrowStrokes int
	AdvanceKey   string
	SkipSimilar  int

	Preview         bool
	DebugConfirm    bool
	CopyToClipboard bool
	StopHotkey      string
	OCRDeadlineSec  int

	EnableFileLogging bool
	LogLevel          string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order (lowest first):
	// 1) .env in the executable directory, or the file named by SCREEN_CAPTURE_OCR
	// 2) process environment
	// 3) YAML profile, when one is given
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		APIKey:     resolveAPIKey(apiKeyPath),
		APIKeyPath: apiKeyPath,
		BaseURL:    strings.TrimRight(getEnvWithDefault("MISTRAL_BASE_URL", DefaultBaseURL), "/"),

		OCRModel:    getEnvWithDefault("OCR_MODEL", DefaultOCRModel),
		FormatModel: getEnvWithDefault("FORMAT_MODEL", DefaultFormatModel),

		OutputCSV:      getEnvWithDefault("OUTPUT_CSV", DefaultOutputCSV),
		ScreenshotsDir: getEnvWithDefault("SCREENSHOTS_DIR", DefaultScreenshotsDir),
		Headers:        ParseList(os.Getenv("HEADERS")),
		Window:         strings.TrimSpace(os.Getenv("WINDOW")),

		Interval:     time.Duration(getEnvInt("CAPTURE_INTERVAL_SEC", DefaultIntervalSec)) * time.Second,
		WaitTime:     time.Duration(getEnvInt("WAIT_TIME_SEC", DefaultWaitSec)) * time.Second,
		ArrowStrokes: getEnvInt("ARROW_STROKES", DefaultArrowStrokes),
		AdvanceKey:   getEnvWithDefault("ADVANCE_KEY", DefaultAdvanceKey),
		SkipSimilar:  getEnvInt("SKIP_SIMILAR", -1),

		Preview:         getEnvBool("PREVIEW", true),
		DebugConfirm:    getEnvBool("DEBUG_CONFIRM", false),
		CopyToClipboard: getEnvBool("COPY_TO_CLIPBOARD", false),
		StopHotkey:      getEnvWithDefault("STOP_HOTKEY", DefaultStopHotkey),
		OCRDeadlineSec:  getEnvInt("OCR_DEADLINE_SEC", DefaultOCRDeadlineSec),

		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
	}

	if opts.ProfilePath != "" {
		profile, err := LoadProfile(opts.ProfilePath)
		if err != nil {
			return nil, err
		}
		profile.Apply(cfg)
	}

	cfg.Normalize()
	return cfg, nil
}

// Normalize replaces out-of-range values with their defaults.
func (c *Config) Normalize() {
	if c.Interval < time.Second {
		c.Interval = DefaultIntervalSec * time.Second
	}
	if c.WaitTime < time.Second {
		c.WaitTime = DefaultWaitSec * time.Second
	}
	if c.ArrowStrokes < 0 {
		c.ArrowStrokes = DefaultArrowStrokes
	}
	if c.OCRDeadlineSec <= 0 {
		c.OCRDeadlineSec = DefaultOCRDeadlineSec
	}
	if strings.TrimSpace(c.AdvanceKey) == "" {
		c.AdvanceKey = DefaultAdvanceKey
	}
	if c.OutputCSV == "" {
		c.OutputCSV = DefaultOutputCSV
	}
	if c.ScreenshotsDir == "" {
		c.ScreenshotsDir = DefaultScreenshotsDir
	}
}

// OCRDeadline is the per-request transport timeout for OCR and reformatting calls.
func (c *Config) OCRDeadline() time.Duration {
	return time.Duration(c.OCRDeadlineSec) * time.Second
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.OCRModel == "" {
		return errors.New("OCR_MODEL must not be empty")
	}
	return nil
}

// ValidateHeaders rejects empty header sets, blank names and duplicates.
// Headers double as JSON keys in the reformatting response, so they must be unique.
func ValidateHeaders(headers []string) error {
	if len(headers) == 0 {
		return ErrNoHeaders
	}
	seen := make(map[string]struct{}, len(headers))
	for i, h := range headers {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("header %d is blank", i+1)
		}
		if _, dup := seen[h]; dup {
			return fmt.Errorf("duplicate header %q", h)
		}
		seen[h] = struct{}{}
	}
	return nil
}

// ParseList splits a comma-separated value, trimming blanks.
func ParseList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if _, err := os.Stat(".env"); err == nil {
		return ".env"
	}

	if alt := os.Getenv(AltEnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return strings.TrimSpace(os.Getenv(APIKeyEnvVar))
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return defaultValue
}
