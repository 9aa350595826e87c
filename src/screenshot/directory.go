package screenshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrExhausted is returned once a DirectoryProvider has served every file.
var ErrExhausted = errors.New("no more images")

// DirectoryProvider replays saved PNG files in name order, one per Capture.
type DirectoryProvider struct {
	mu    sync.Mutex
	files []string
	next  int
}

func NewDirectoryProvider(dir string) (*DirectoryProvider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no PNG files in %s", dir)
	}
	sort.Strings(files)
	return &DirectoryProvider{files: files}, nil
}

func (p *DirectoryProvider) Name() string { return "directory" }

func (p *DirectoryProvider) Len() int { return len(p.files) }

// Remaining reports how many files have not been served yet.
func (p *DirectoryProvider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files) - p.next
}

func (p *DirectoryProvider) Capture(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	if p.next >= len(p.files) {
		p.mu.Unlock()
		return nil, ErrExhausted
	}
	path := p.files[p.next]
	p.next++
	p.mu.Unlock()

	return os.ReadFile(path)
}
