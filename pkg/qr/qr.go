// Package qr encodes license numbers into QR payloads and reads them back,
// from text or from an uploaded image.
package qr

import (
	"encoding/json"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	qrgen "github.com/skip2/go-qrcode"

	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

const (
	PayloadTypeClinic = "clinic"

	DefaultSize = 256
	// maxDecodeEdge bounds the image handed to the decoder; phone photos are
	// much larger than a QR code needs.
	maxDecodeEdge = 1600
)

type Payload struct {
	Type    string `json:"type"`
	License string `json:"license"`
}

// EncodePayload is the text stored in a clinic's QR code.
func EncodePayload(license string) string {
	b, _ := json.Marshal(Payload{Type: PayloadTypeClinic, License: license})
	return string(b)
}

// ParseLicense extracts the license number from scanned text. A clinic
// payload yields its license; any other text is taken verbatim as the
// license number.
func ParseLicense(text string) string {
	var p struct {
		Type    string      `json:"type"`
		License interface{} `json:"license"`
	}
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return text
	}
	if license, ok := p.License.(string); ok && p.Type == PayloadTypeClinic && license != "" {
		return license
	}
	return text
}

// RenderPNG draws the clinic payload for license as a size x size PNG.
func RenderPNG(license string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrgen.Encode(EncodePayload(license), qrgen.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}

// DecodeImage finds a QR code in an uploaded image and returns its text.
// Unreadable images and images without a code are bad requests.
func DecodeImage(r io.Reader) (string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", apperrors.NewBadRequest("unsupported image", err)
	}
	if b := img.Bounds(); b.Dx() > maxDecodeEdge || b.Dy() > maxDecodeEdge {
		img = imaging.Fit(img, maxDecodeEdge, maxDecodeEdge, imaging.Lanczos)
	}

	text, err := decode(img)
	if err != nil {
		// Low contrast photos often decode once the colour is gone.
		text, err = decode(imaging.AdjustContrast(imaging.Grayscale(img), 30))
	}
	if err != nil {
		return "", apperrors.NewBadRequest("no qr code found in image", err)
	}
	return text, nil
}

func decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := zxqrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", err
	}
	return result.GetText(), nil
}
