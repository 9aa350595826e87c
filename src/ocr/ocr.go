// Package ocr turns captured images into page-structured text. Every backend
// is normalized into Result here so the rest of the pipeline never sees
// backend-specific response shapes.
package ocr

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ThomsenDrake/screen-capture-ocr/src/llm"
)

// ErrNoContent means the backend answered but recognized nothing.
var ErrNoContent = errors.New("no content recognized")

// Page is one recognized page. Either rendering may be empty.
type Page struct {
	Index    int
	Markdown string
	Text     string
}

type Result struct {
	Pages []Page
}

// Content returns the markdown of each page, or its plain text when the
// markdown is empty, joined by newlines in page order.
func (r Result) Content() string {
	var parts []string
	for _, p := range r.Pages {
		switch {
		case strings.TrimSpace(p.Markdown) != "":
			parts = append(parts, p.Markdown)
		case strings.TrimSpace(p.Text) != "":
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// PlainText returns the plain text of each page, or its markdown when no
// plain rendering exists, joined by newlines in page order.
func (r Result) PlainText() string {
	var parts []string
	for _, p := range r.Pages {
		switch {
		case strings.TrimSpace(p.Text) != "":
			parts = append(parts, p.Text)
		case strings.TrimSpace(p.Markdown) != "":
			parts = append(parts, p.Markdown)
		}
	}
	return strings.Join(parts, "\n")
}

// Empty reports whether no page carries any text.
func (r Result) Empty() bool { return strings.TrimSpace(r.Content()) == "" }

type Client interface {
	Recognize(ctx context.Context, image []byte) (Result, error)
}

// RemoteOCR is the subset of *llm.Client used by RemoteClient.
type RemoteOCR interface {
	OCR(ctx context.Context, req llm.OCRRequest) (*llm.OCRResponse, error)
}

// RemoteClient recognizes images with the hosted OCR model.
type RemoteClient struct {
	api   RemoteOCR
	model string
}

func NewRemoteClient(api RemoteOCR, model string) *RemoteClient {
	return &RemoteClient{api: api, model: model}
}

func (c *RemoteClient) Recognize(ctx context.Context, image []byte) (Result, error) {
	if len(image) == 0 {
		return Result{}, errors.New("image is empty")
	}

	resp, err := c.api.OCR(ctx, llm.OCRRequest{
		Model:    c.model,
		Image:    image,
		MIMEType: http.DetectContentType(image),
	})
	if err != nil {
		return Result{}, err
	}

	res := FromResponse(resp)
	log.Debug().Str("component", "ocr").Int("pages", len(res.Pages)).Msg("OCR response normalized")
	if res.Empty() {
		return res, ErrNoContent
	}
	return res, nil
}

// FromResponse converts an API response into a Result, deriving plain text
// from each page's markdown.
func FromResponse(resp *llm.OCRResponse) Result {
	if resp == nil {
		return Result{}
	}
	res := Result{Pages: make([]Page, 0, len(resp.Pages))}
	for _, p := range resp.Pages {
		res.Pages = append(res.Pages, Page{
			Index:    p.Index,
			Markdown: p.Markdown,
			Text:     PlainText(p.Markdown),
		})
	}
	return res
}
