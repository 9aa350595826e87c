package table

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ThomsenDrake/screen-capture-ocr/src/ocr"
)

// Reformatter runs one JSON-mode chat completion.
type Reformatter interface {
	ChatJSON(ctx context.Context, model, prompt string) (string, error)
}

type Extractor struct {
	reformatter Reformatter
	model       string
}

// NewExtractor returns an extractor. A nil reformatter disables the
// structured tier and leaves only markdown parsing.
func NewExtractor(r Reformatter, model string) *Extractor {
	return &Extractor{reformatter: r, model: model}
}

// Extract maps OCR output onto headers. It returns nil when no rows were
// found; failures of the structured tier fall through to markdown parsing.
func (e *Extractor) Extract(ctx context.Context, res ocr.Result, headers Headers) *Table {
	logger := log.With().Str("component", "table").Logger()

	text := strings.TrimSpace(res.Content())
	if text == "" {
		return nil
	}

	if e != nil && e.reformatter != nil {
		rows, err := e.Reformat(ctx, text, headers)
		switch {
		case err != nil:
			logger.Debug().Err(err).Msg("structured formatting failed, falling back to markdown parsing")
		case len(rows) == 0:
			logger.Debug().Msg("structured formatting returned no rows, falling back to markdown parsing")
		default:
			logger.Debug().Int("rows", len(rows)).Msg("structured formatting succeeded")
			return &Table{Headers: headers, Rows: rows}
		}
	}

	return FromMarkdown(res, headers)
}

// Reformat asks the model to map free text onto headers.
func (e *Extractor) Reformat(ctx context.Context, text string, headers Headers) ([]Row, error) {
	reply, err := e.reformatter.ChatJSON(ctx, e.model, BuildPrompt(text, headers))
	if err != nil {
		return nil, err
	}
	return ParseRows(reply, headers)
}

// FromMarkdown parses each page's markdown in order and uses the first page
// holding a table. The parsed header row is replaced by headers.
func FromMarkdown(res ocr.Result, headers Headers) *Table {
	for _, page := range res.Pages {
		if page.Markdown == "" {
			continue
		}
		parsed := ParseMarkdown(page.Markdown)
		if len(parsed) == 0 {
			continue
		}
		if len(parsed) == 1 {
			return nil
		}

		t := &Table{Headers: headers, Rows: make([]Row, 0, len(parsed)-1)}
		for _, cells := range parsed[1:] {
			t.Rows = append(t.Rows, Normalize(cells, len(headers)))
		}
		return t
	}
	return nil
}

var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?\\s*```$")

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ParseRows decodes a reformatting reply. Every element of "rows" must be an
// object; missing keys become empty cells.
func ParseRows(reply string, headers Headers) ([]Row, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	raw, ok := envelope["rows"]
	if !ok {
		return nil, fmt.Errorf("%w: missing \"rows\"", ErrMalformedResponse)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: \"rows\" is not an array", ErrMalformedResponse)
	}

	rows := make([]Row, 0, len(items))
	for i, item := range items {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("%w: row %d is not an object", ErrMalformedResponse, i)
		}
		row := make(Row, len(headers))
		for j, h := range headers {
			row[j] = cellString(obj[h])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
