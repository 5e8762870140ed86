package qrbundle

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// Renderer turns bundles into PNG QR codes.
type Renderer struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewRenderer creates a Renderer producing size×size images.
func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = 256
	}
	return &Renderer{size: size, level: qrcode.Medium}
}

// Encode renders content as a PNG data URL.
func (r *Renderer) Encode(content string) (string, error) {
	qr, err := qrcode.New(content, r.level)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	pngBytes, err := qr.PNG(r.size)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes), nil
}

// EncodeBundle renders the JSON form of bundle.
func (r *Renderer) EncodeBundle(bundle *Bundle) (string, error) {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("failed to serialize bundle: %w", err)
	}
	return r.Encode(string(raw))
}
