package cv

import (
	"image"
	"image/color"
	"testing"

	"aivision/internal/models"
	"aivision/internal/services/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func blankJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer mat.Close()
	require.NoError(t, gocv.Rectangle(&mat, image.Rect(0, 0, width, height), color.RGBA{R: 240, G: 240, B: 240}, -1))

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	require.NoError(t, err)
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...)
}

func TestAnnotator_ProducesPNGDataURL(t *testing.T) {
	img := blankJPEG(t, 600, 400)
	detections := []models.Detection{
		{Object: "car", Confidence: 0.94, BoundingBox: models.BoundingBox{80, 120, 260, 280}},
		{Object: "person", Confidence: 0.89, BoundingBox: models.BoundingBox{480, 260, 340, 80}},
	}

	url, err := NewAnnotator().Annotate(img, detections)
	require.NoError(t, err)

	mimeType, data, ok := ai.ParseDataURL(url)
	require.True(t, ok)
	assert.Equal(t, "image/png", mimeType)

	decoded, err := gocv.IMDecode(data, gocv.IMReadColor)
	require.NoError(t, err)
	defer decoded.Close()
	assert.Equal(t, 600, decoded.Cols())
	assert.Equal(t, 400, decoded.Rows())
}

func TestAnnotator_RejectsGarbage(t *testing.T) {
	_, err := NewAnnotator().Annotate([]byte("not an image"), nil)
	assert.Error(t, err)
}

func TestClassLabel(t *testing.T) {
	assert.Equal(t, "person", classLabel(1))
	assert.Equal(t, "car", classLabel(3))
	assert.Equal(t, "unknown_0", classLabel(0))
	assert.Equal(t, "unknown_500", classLabel(500))
}

func TestNewLocalDetector_MissingModel(t *testing.T) {
	_, err := NewLocalDetector("/nonexistent/model.pb", "/nonexistent/model.pbtxt", 0.5, nil)
	assert.Error(t, err)
}
