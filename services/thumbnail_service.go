package services

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"anonlink/config"

	"github.com/disintegration/imaging"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".gif": true, ".bmp": true, ".webp": true,
}

func IsImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return imageExtensions[ext]
}

// GenerateThumbnail decodes an image from r and returns a JPEG thumbnail
// fitted to the configured bounds. Works on streams so the blob store
// stays opaque.
func GenerateThumbnail(r io.Reader) ([]byte, error) {
	cfg := config.AppConfig.Thumbnail

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Fit(img, cfg.Width, cfg.Height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(cfg.Quality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
