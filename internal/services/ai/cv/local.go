// Package cv holds the OpenCV-backed detector and box annotation.
package cv

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"aivision/internal/logger"
	"aivision/internal/models"
	"aivision/internal/services/ai"

	"gocv.io/x/gocv"
)

// DefaultThreshold is the minimum confidence kept when none is configured.
const DefaultThreshold = 0.5

// LocalDetector runs an SSD-style DNN in-process. A gocv.Net is not safe
// for concurrent use, so callers create one detector per worker.
type LocalDetector struct {
	net       gocv.Net
	threshold float32
	annotator *Annotator
	logger    *logger.Logger
	mu        sync.Mutex
}

// NewLocalDetector loads the network from modelPath and configPath.
func NewLocalDetector(modelPath, configPath string, threshold float64, logger *logger.Logger) (*LocalDetector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	logger.Info("Detection network initialized from %s", modelPath)
	return &LocalDetector{
		net:       net,
		threshold: float32(threshold),
		annotator: NewAnnotator(),
		logger:    logger,
	}, nil
}

// Detect decodes the image, runs the network and annotates the result.
func (d *LocalDetector) Detect(ctx context.Context, imageBytes []byte, filename string) (*ai.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detections, err := d.detectObjects(imageBytes)
	if err != nil {
		return nil, err
	}

	annotated, err := d.annotator.Annotate(imageBytes, detections)
	if err != nil {
		d.logger.Warning("Failed to annotate %s: %v", filename, err)
	}

	return &ai.Result{Detections: detections, AnnotatedImage: annotated}, nil
}

func (d *LocalDetector) detectObjects(imageBytes []byte) ([]models.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	cols := float32(mat.Cols())
	rows := float32(mat.Rows())

	// Each row: [imageId, classId, confidence, x1, y1, x2, y2], coordinates normalized.
	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	detections := []models.Detection{}
	for i := 0; i < reshaped.Rows(); i++ {
		confidence := reshaped.GetFloatAt(i, 2)
		if confidence < d.threshold {
			continue
		}

		classID := int(reshaped.GetFloatAt(i, 1))
		detections = append(detections, models.Detection{
			Object:     classLabel(classID),
			Confidence: float64(confidence),
			BoundingBox: models.BoundingBox{
				float64(clamp(reshaped.GetFloatAt(i, 3)) * cols),
				float64(clamp(reshaped.GetFloatAt(i, 4)) * rows),
				float64(clamp(reshaped.GetFloatAt(i, 5)) * cols),
				float64(clamp(reshaped.GetFloatAt(i, 6)) * rows),
			},
		})
	}

	return detections, nil
}

// Close releases the network.
func (d *LocalDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func clamp(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
