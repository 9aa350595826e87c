// Package csvstore owns the accumulated CSV file: a header record written
// once, rows appended durably per cycle, and a final order-preserving
// deduplication.
package csvstore

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Stats reports a deduplication pass.
type Stats struct {
	Original int
	Unique   int
	Removed  int
}

// Initialize creates or truncates path with exactly one header record.
func Initialize(path string, headers []string) error {
	if len(headers) == 0 {
		return errors.New("csvstore: empty header")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeRecords(f, [][]string{headers}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Append writes rows at the end of path and syncs before returning. It never
// reads the existing content.
func Append(path string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	if err := writeRecords(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Deduplicate keeps the header and the first occurrence of every data row,
// in order, and rewrites path through a temp file and rename. Running it
// again removes nothing.
func Deduplicate(path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open %s: %w", path, err)
	}
	header, rows, err := readAll(f)
	f.Close()
	if err != nil {
		return Stats{}, fmt.Errorf("read %s: %w", path, err)
	}
	if header == nil {
		return Stats{}, nil
	}

	seen := make(map[string]struct{}, len(rows))
	unique := make([][]string, 0, len(rows))
	for _, r := range rows {
		k := key(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, r)
	}

	stats := Stats{Original: len(rows), Unique: len(unique), Removed: len(rows) - len(unique)}
	if stats.Removed == 0 {
		return stats, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return stats, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := writeRecords(tmp, append([][]string{header}, unique...)); err != nil {
		tmp.Close()
		return stats, err
	}
	if err := tmp.Close(); err != nil {
		return stats, err
	}
	if st, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmpName, st.Mode().Perm())
	}
	if err := os.Rename(tmpName, path); err != nil {
		return stats, fmt.Errorf("replace %s: %w", path, err)
	}
	return stats, nil
}

// ReadAll returns the header and data rows of path.
func ReadAll(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return readAll(f)
}

func readAll(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func writeRecords(f *os.File, records [][]string) error {
	if err := Write(f, records); err != nil {
		return fmt.Errorf("write %s: %w", f.Name(), err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", f.Name(), err)
	}
	return nil
}

// Write encodes records as CSV. A record holding a single empty cell is
// written as a quoted empty field so readers do not skip it as a blank line.
func Write(out io.Writer, records [][]string) error {
	bw := bufio.NewWriter(out)
	w := csv.NewWriter(bw)
	for _, rec := range records {
		if len(rec) == 1 && rec[0] == "" {
			w.Flush()
			if _, err := bw.WriteString(`""` + "\n"); err != nil {
				return err
			}
			continue
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// key encodes a row as length-prefixed cells.
func key(row []string) string {
	var b strings.Builder
	for _, c := range row {
		fmt.Fprintf(&b, "%d\x1f%s", len(c), c)
	}
	return b.String()
}
