//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractAvailable reports whether the local engine was compiled in.
const TesseractAvailable = true

// TesseractClient runs recognition locally through Tesseract. It yields a
// single page with plain text only.
type TesseractClient struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func NewTesseractClient(lang string) (*TesseractClient, error) {
	client := gosseract.NewClient()
	if lang != "" {
		if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set language: %w", err)
		}
	}
	return &TesseractClient{client: client}, nil
}

func (c *TesseractClient) Recognize(ctx context.Context, image []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.SetImageFromBytes(image); err != nil {
		return Result{}, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := c.client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("OCR failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrNoContent
	}
	return Result{Pages: []Page{{Index: 0, Text: text}}}, nil
}

func (c *TesseractClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
