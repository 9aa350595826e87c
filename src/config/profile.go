package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is a reusable capture setup stored as YAML. Unset fields leave the
// environment-derived value untouched.
type Profile struct {
	Output         string   `yaml:"output"`
	ScreenshotsDir string   `yaml:"screenshots_dir"`
	Headers        []string `yaml:"headers"`
	Window         string   `yaml:"window"`
	OCRModel       string   `yaml:"ocr_model"`
	FormatModel    string   `yaml:"format_model"`
	AdvanceKey     string   `yaml:"advance_key"`
	StopHotkey     string   `yaml:"stop_hotkey"`
	IntervalSec    *int     `yaml:"interval_sec"`
	WaitSec        *int     `yaml:"wait_sec"`
	ArrowStrokes   *int     `yaml:"arrow_strokes"`
	SkipSimilar    *int     `yaml:"skip_similar"`
	Preview        *bool    `yaml:"preview"`
	Debug          *bool    `yaml:"debug"`
	Copy           *bool    `yaml:"copy_to_clipboard"`
}

func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

func (p *Profile) Apply(cfg *Config) {
	setString(&cfg.OutputCSV, p.Output)
	setString(&cfg.ScreenshotsDir, p.ScreenshotsDir)
	setString(&cfg.Window, p.Window)
	setString(&cfg.OCRModel, p.OCRModel)
	setString(&cfg.FormatModel, p.FormatModel)
	setString(&cfg.AdvanceKey, p.AdvanceKey)
	setString(&cfg.StopHotkey, p.StopHotkey)

	var headers []string
	for _, h := range p.Headers {
		if trimmed := strings.TrimSpace(h); trimmed != "" {
			headers = append(headers, trimmed)
		}
	}
	if len(headers) > 0 {
		cfg.Headers = headers
	}

	if p.IntervalSec != nil {
		cfg.Interval = time.Duration(*p.IntervalSec) * time.Second
	}
	if p.WaitSec != nil {
		cfg.WaitTime = time.Duration(*p.WaitSec) * time.Second
	}
	if p.ArrowStrokes != nil {
		cfg.ArrowStrokes = *p.ArrowStrokes
	}
	if p.SkipSimilar != nil {
		cfg.SkipSimilar = *p.SkipSimilar
	}
	if p.Preview != nil {
		cfg.Preview = *p.Preview
	}
	if p.Debug != nil {
		cfg.DebugConfirm = *p.Debug
	}
	if p.Copy != nil {
		cfg.CopyToClipboard = *p.Copy
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
