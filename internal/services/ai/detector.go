package ai

import (
	"context"
	"encoding/base64"
	"strings"

	"aivision/internal/models"
)

// Result is the outcome of running detection on one image.
type Result struct {
	Detections     []models.Detection `json:"detections"`
	AnnotatedImage string             `json:"annotatedImage"` // data URL, may be empty
}

// Detector runs object detection on an encoded image.
type Detector interface {
	Detect(ctx context.Context, image []byte, filename string) (*Result, error)
}

// Annotator draws detections onto an image and returns it as a data URL.
type Annotator interface {
	Annotate(image []byte, detections []models.Detection) (string, error)
}

// DataURL encodes data as a base64 data URL of the given MIME type.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a base64 data URL into its MIME type and payload.
func ParseDataURL(url string) (string, []byte, bool) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, false
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, false
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	return mimeType, data, true
}
