package table

import "strings"

// ParseMarkdown returns the rows of the first pipe-delimited table in text,
// header row first. Separator rows are dropped. Data rows keep whatever cell
// count they had. It returns nil when no table is found or every cell is empty.
func ParseMarkdown(text string) [][]string {
	if text == "" {
		return nil
	}

	var (
		rows    [][]string
		started bool
		columns int
	)

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		trimmed := strings.TrimSpace(line)
		if !isTableLine(trimmed) {
			if started {
				break
			}
			continue
		}

		cells := splitCells(trimmed)
		if !started {
			started = true
			columns = len(cells)
			rows = append(rows, cells)
			continue
		}
		if len(cells) == columns && isSeparator(cells) {
			continue
		}
		rows = append(rows, cells)
	}

	if len(rows) == 0 || allEmpty(rows) {
		return nil
	}
	return rows
}

func isTableLine(s string) bool {
	return strings.HasPrefix(s, "|") && strings.HasSuffix(s, "|")
}

func splitCells(line string) []string {
	inner := ""
	if len(line) >= 2 {
		inner = line[1 : len(line)-1]
	}
	parts := strings.Split(inner, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if c == "" || strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

func allEmpty(rows [][]string) bool {
	for _, r := range rows {
		for _, c := range r {
			if c != "" {
				return false
			}
		}
	}
	return true
}
