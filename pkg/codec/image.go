package codec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/aretw0/companion/pkg/domain"
	"github.com/gabriel-vasile/mimetype"
)

// allowedMIMEs are the formats image.DecodeConfig can read.
var allowedMIMEs = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// DecodeImage validates raw bytes as an image and returns them with their
// format and dimensions. Errors wrap domain.ErrImageDecoding.
func DecodeImage(data []byte) (domain.Image, error) {
	if len(data) == 0 {
		return domain.Image{}, fmt.Errorf("%w: empty payload", domain.ErrImageDecoding)
	}

	mimeType := mimetype.Detect(data).String()
	if !allowedMIMEs[mimeType] {
		return domain.Image{}, fmt.Errorf("%w: unsupported mime type %s", domain.ErrImageDecoding, mimeType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.Image{}, fmt.Errorf("%w: %v", domain.ErrImageDecoding, err)
	}

	return domain.Image{
		Data:     data,
		MIMEType: mimeType,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}
