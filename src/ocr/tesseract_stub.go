//go:build !tesseract

package ocr

import (
	"context"
	"errors"
)

// ErrTesseractNotEnabled is returned when the binary was built without the
// tesseract tag. Rebuild with -tags tesseract to enable local recognition.
var ErrTesseractNotEnabled = errors.New("local OCR not enabled; rebuild with -tags tesseract")

const TesseractAvailable = false

type TesseractClient struct{}

func NewTesseractClient(lang string) (*TesseractClient, error) {
	return nil, ErrTesseractNotEnabled
}

func (c *TesseractClient) Recognize(ctx context.Context, image []byte) (Result, error) {
	return Result{}, ErrTesseractNotEnabled
}

func (c *TesseractClient) Close() error { return nil }
