package cv

import (
	"fmt"
	"image"
	"image/color"

	"aivision/internal/models"
	"aivision/internal/services/ai"

	"gocv.io/x/gocv"
)

// palette cycles box colors per detection.
var palette = []color.RGBA{
	{R: 16, G: 185, B: 129, A: 0},
	{R: 37, G: 99, B: 235, A: 0},
	{R: 245, G: 158, B: 11, A: 0},
	{R: 236, G: 72, B: 153, A: 0},
	{R: 139, G: 92, B: 246, A: 0},
}

// Annotator draws labelled boxes and encodes the result as a PNG data URL.
type Annotator struct {
	thickness int
	fontScale float64
}

func NewAnnotator() *Annotator {
	return &Annotator{thickness: 2, fontScale: 0.5}
}

func (a *Annotator) Annotate(img []byte, detections []models.Detection) (string, error) {
	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return "", fmt.Errorf("decoded image is empty")
	}

	for i, detection := range detections {
		c := palette[i%len(palette)]
		box := detection.BoundingBox
		rect := image.Rect(int(box[0]), int(box[1]), int(box[2]), int(box[3])).Canon()

		if err := gocv.Rectangle(&mat, rect, c, a.thickness); err != nil {
			return "", fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s (%.2f)", detection.Object, detection.Confidence)
		pt := image.Pt(rect.Min.X+4, max(rect.Min.Y-6, 12))
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, a.fontScale, c, 1); err != nil {
			return "", fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, mat)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	return ai.DataURL("image/png", buf.GetBytes()), nil
}
