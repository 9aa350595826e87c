package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
)

type OCRRequest struct {
	Model    string
	Image    []byte
	MIMEType string
}

type OCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type OCRResponse struct {
	Model string    `json:"model"`
	Pages []OCRPage `json:"pages"`
}

type ocrDocument struct {
	Type     string `json:"type"`
	ImageURL string `json:"image_url"`
}

type ocrPayload struct {
	Model              string      `json:"model"`
	Document           ocrDocument `json:"document"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

// OCR sends one image to the document OCR endpoint as a data URL.
func (c *Client) OCR(ctx context.Context, req OCRRequest) (*OCRResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model is required")
	}
	if len(req.Image) == 0 {
		return nil, errors.New("image is empty")
	}

	mime := req.MIMEType
	if mime == "" {
		mime = http.DetectContentType(req.Image)
	}

	payload := ocrPayload{
		Model: req.Model,
		Document: ocrDocument{
			Type:     "image_url",
			ImageURL: fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(req.Image)),
		},
	}

	var out OCRResponse
	if err := c.postJSON(ctx, "/v1/ocr", payload, &out); err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	return &out, nil
}
