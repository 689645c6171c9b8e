package domain

import (
	"path/filepath"
	"strings"
)

// ValidationRule is the static allow-list and size interval an upload is checked against.
// A zero MinSizeBytes or MaxSizeBytes disables that bound.
type ValidationRule struct {
	AllowedTypes map[string]struct{}
	MinSizeBytes int64
	MaxSizeBytes int64
}

func NewValidationRule(allowedTypes []string, minSize, maxSize int64) ValidationRule {
	types := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		types[t] = struct{}{}
	}

	return ValidationRule{
		AllowedTypes: types,
		MinSizeBytes: minSize,
		MaxSizeBytes: maxSize,
	}
}

const (
	KiB = int64(1024)
	MiB = 1024 * KiB
)

// DefaultAllowedTypes covers .wav, .flac, .m4a, .mp3, .ogg, .opus and .mp4 files.
var DefaultAllowedTypes = []string{
	"audio/wav",
	"audio/x-wav",
	"audio/flac",
	"audio/mp4",
	"audio/x-m4a",
	"audio/mpeg",
	"audio/ogg",
	"audio/opus",
	"video/mp4",
}

func DefaultValidationRule() ValidationRule {
	return NewValidationRule(DefaultAllowedTypes, 50*KiB, 50*MiB)
}

func (r ValidationRule) Allows(mimeType string) bool {
	_, ok := r.AllowedTypes[mimeType]
	return ok
}

var extensionTypes = map[string]string{
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".m4a":  "audio/x-m4a",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

// TypeForName guesses a MIME type from the file extension. It returns an empty string for
// unknown extensions.
func TypeForName(name string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(name))]
}

var typeExtensions = map[string]string{
	"audio/webm":  ".webm",
	"video/webm":  ".webm",
	"audio/ogg":   ".ogg",
	"audio/wav":   ".wav",
	"audio/mp4":   ".m4a",
	"audio/mpeg":  ".mp3",
	"video/mp4":   ".mp4",
	"audio/flac":  ".flac",
	"audio/opus":  ".opus",
	"audio/x-m4a": ".m4a",
}

// ExtensionForType returns the file extension for a recorded content type. Codec parameters
// ("video/webm;codecs=vp8") are ignored.
func ExtensionForType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	if ext, ok := typeExtensions[strings.TrimSpace(base)]; ok {
		return ext
	}
	return ".bin"
}
