package services

import (
	"path/filepath"
	"strings"
)

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	replacer := strings.NewReplacer("..", "_", "/", "_", "\\", "_", "\"", "_")
	return replacer.Replace(name)
}

func normalizeMimeType(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
