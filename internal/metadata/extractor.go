package metadata

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata is what embedded image metadata yields for the sync
// pipeline: an optional coordinate pair and an optional capture time.
// Latitude and longitude are set together or not at all.
type Metadata struct {
	Latitude   *float64
	Longitude  *float64
	CapturedAt *time.Time
}

// HasCoordinates reports whether a full coordinate pair was found.
func (m Metadata) HasCoordinates() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// Extractor parses embedded metadata out of raw image bytes.
type Extractor interface {
	Extract(data []byte, mimeType string) Metadata
}

// extractableMimeTypes are the still-image formats that carry EXIF.
// Everything else short-circuits to empty metadata.
var extractableMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/tiff": true,
}

// IsExtractable reports whether Extract will even attempt to parse
// files of the given MIME type.
func IsExtractable(mimeType string) bool {
	return extractableMimeTypes[mimeType]
}

// ExifExtractor implements Extractor on top of goexif. Parse failures
// are non-fatal: corrupt or EXIF-less files yield empty metadata.
type ExifExtractor struct {
	logger *slog.Logger
}

func NewExifExtractor(logger *slog.Logger) *ExifExtractor {
	return &ExifExtractor{logger: logger}
}

// Extract implements Extractor.
func (e *ExifExtractor) Extract(data []byte, mimeType string) Metadata {
	if !IsExtractable(mimeType) {
		return Metadata{}
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		e.logger.Warn("exif parse failed", "mime_type", mimeType, "error", err)
		return Metadata{}
	}

	var meta Metadata

	// DateTime prefers DateTimeOriginal and falls back to DateTime.
	if t, err := x.DateTime(); err == nil {
		meta.CapturedAt = &t
	}

	// LatLong yields both coordinates or an error, which keeps the
	// pairing invariant: a file with only one GPS axis counts as none.
	if lat, lng, err := x.LatLong(); err == nil {
		meta.Latitude = &lat
		meta.Longitude = &lng
	}

	return meta
}
