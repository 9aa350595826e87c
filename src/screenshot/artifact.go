package screenshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const artifactLayout = "20060102_150405"

// ResetDir removes dir with its content and recreates it empty.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// SaveArtifact writes a capture as screenshot_<YYYYMMDD_HHMMSS>.png in dir.
// A second capture within the same second gets a _<n> suffix.
func SaveArtifact(dir string, data []byte, at time.Time) (string, error) {
	base := "screenshot_" + at.Format(artifactLayout)
	path := filepath.Join(dir, base+".png")
	for n := 1; ; n++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if os.IsExist(err) {
			path = filepath.Join(dir, fmt.Sprintf("%s_%d.png", base, n))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("save screenshot: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("save screenshot: %w", err)
		}
		return path, f.Close()
	}
}
