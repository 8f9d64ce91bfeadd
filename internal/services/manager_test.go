package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aivision/internal/config"
	"aivision/internal/logger"
	"aivision/internal/models"
	"aivision/internal/services/ai"
	"aivision/internal/services/storage"
	"aivision/internal/services/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	result  *ai.Result
	err     error
	started chan struct{}
	release chan struct{}
}

func (d *fakeDetector) Detect(ctx context.Context, image []byte, filename string) (*ai.Result, error) {
	if d.started != nil {
		d.started <- struct{}{}
	}
	if d.release != nil {
		<-d.release
	}
	if d.err != nil {
		return nil, d.err
	}
	copied := *d.result
	return &copied, nil
}

// gatedDetector blocks on the gate registered for a filename.
type gatedDetector struct {
	started chan string
	gates   map[string]chan struct{}
}

func (d *gatedDetector) Detect(ctx context.Context, image []byte, filename string) (*ai.Result, error) {
	d.started <- filename
	if gate, ok := d.gates[filename]; ok {
		<-gate
	}
	return &ai.Result{
		Detections:     []models.Detection{{Object: filename, Confidence: 0.9}},
		AnnotatedImage: "data:image/png;base64,eA==",
	}, nil
}

type nilDetector struct{}

func (nilDetector) Detect(ctx context.Context, image []byte, filename string) (*ai.Result, error) {
	return nil, nil
}

type fakeAnnotator struct {
	err error
}

func (a fakeAnnotator) Annotate(image []byte, detections []models.Detection) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "data:image/png;base64,YW5ub3RhdGVk", nil
}

type recordedEvent struct {
	userID    string
	eventType string
	data      any
}

type recordingSender struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *recordingSender) SendEvent(userID, eventType string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{userID, eventType, data})
	return nil
}

func newTestManager(t *testing.T, queue int, annotator ai.Annotator, detectors ...ai.Detector) (*Manager, *recordingSender) {
	t.Helper()

	cfg := &config.Config{LogDirectory: t.TempDir(), ProcessingQueue: queue}
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	sender := &recordingSender{}
	m := NewManager(detectors, annotator, storage.NewWorkspaceService(time.Hour), sender, cfg, log)
	t.Cleanup(m.Stop)
	return m, sender
}

var streetDetections = []models.Detection{
	{Object: "Car", Confidence: 0.94, BoundingBox: models.BoundingBox{80, 120, 260, 280}},
}

func TestManager_DetectStoresWorkspaceAndNotifies(t *testing.T) {
	detector := &fakeDetector{result: &ai.Result{Detections: streetDetections}}
	m, sender := newTestManager(t, 4, fakeAnnotator{}, detector)

	result, err := m.Detect(context.Background(), "u1", []byte("jpeg"), "street.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, streetDetections, result.Detections)
	assert.Equal(t, "data:image/png;base64,YW5ub3RhdGVk", result.AnnotatedImage)

	ws, err := m.Workspace().Get("u1")
	require.NoError(t, err)
	assert.Equal(t, "street.jpg", ws.Filename)
	assert.Equal(t, []byte("jpeg"), ws.Image)
	assert.Equal(t, streetDetections, ws.Detections)

	require.Len(t, sender.events, 1)
	assert.Equal(t, "u1", sender.events[0].userID)
	assert.Equal(t, websocket.EventDetection, sender.events[0].eventType)
}

func TestManager_KeepsBackendAnnotation(t *testing.T) {
	detector := &fakeDetector{result: &ai.Result{Detections: streetDetections, AnnotatedImage: "data:image/png;base64,cmVtb3Rl"}}
	m, _ := newTestManager(t, 4, fakeAnnotator{}, detector)

	result, err := m.Detect(context.Background(), "u1", []byte("jpeg"), "street.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,cmVtb3Rl", result.AnnotatedImage)
}

func TestManager_AnnotationFailureFallsBackToUpload(t *testing.T) {
	detector := &fakeDetector{result: &ai.Result{}}
	m, _ := newTestManager(t, 4, fakeAnnotator{err: errors.New("decode")}, detector)

	result, err := m.Detect(context.Background(), "u1", []byte("jpeg"), "street.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, ai.DataURL("image/jpeg", []byte("jpeg")), result.AnnotatedImage)
	assert.NotNil(t, result.Detections)
}

func TestManager_DetectorErrorLeavesWorkspace(t *testing.T) {
	detector := &fakeDetector{err: errors.New("backend down")}
	m, sender := newTestManager(t, 4, nil, detector)

	_, err := m.Detect(context.Background(), "u1", []byte("jpeg"), "street.jpg", "image/jpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")

	_, err = m.Workspace().Get("u1")
	assert.ErrorIs(t, err, storage.ErrNoWorkspace)
	assert.Empty(t, sender.events)
}

func TestManager_QueueFullFailsFast(t *testing.T) {
	detector := &fakeDetector{
		result:  &ai.Result{Detections: streetDetections},
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	m, _ := newTestManager(t, 1, nil, detector)

	var wg sync.WaitGroup
	detect := func() {
		defer wg.Done()
		_, err := m.Detect(context.Background(), "u1", []byte("jpeg"), "a.jpg", "image/jpeg")
		assert.NoError(t, err)
	}

	wg.Add(1)
	go detect()
	<-detector.started

	wg.Add(1)
	go detect()
	require.Eventually(t, func() bool { return len(m.processingQueue) == 1 }, time.Second, 5*time.Millisecond)

	_, err := m.Detect(context.Background(), "u1", []byte("jpeg"), "b.jpg", "image/jpeg")
	assert.ErrorIs(t, err, ErrQueueFull)

	close(detector.release)
	wg.Wait()
}

func TestManager_DetectAfterStop(t *testing.T) {
	detector := &fakeDetector{result: &ai.Result{}}
	m, _ := newTestManager(t, 1, nil, detector)
	m.Stop()

	_, err := m.Detect(context.Background(), "u1", []byte("jpeg"), "a.jpg", "image/jpeg")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestManager_SlowerEarlierUploadDoesNotOverwriteNewer(t *testing.T) {
	detector := &gatedDetector{
		started: make(chan string, 2),
		gates:   map[string]chan struct{}{"first.png": make(chan struct{})},
	}
	m, sender := newTestManager(t, 4, nil, detector, detector)

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.Detect(context.Background(), "u1", []byte("one"), "first.png", "image/png")
		firstDone <- err
	}()
	require.Equal(t, "first.png", <-detector.started)

	_, err := m.Detect(context.Background(), "u1", []byte("two"), "second.png", "image/png")
	require.NoError(t, err)
	<-detector.started

	close(detector.gates["first.png"])
	require.NoError(t, <-firstDone)

	ws, err := m.Workspace().Get("u1")
	require.NoError(t, err)
	assert.Equal(t, "second.png", ws.Filename)
	assert.Equal(t, "second.png", ws.Detections[0].Object)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.events, 1)
	assert.Equal(t, "second.png", sender.events[0].data.(DetectionEvent).Filename)
}

func TestManager_NilResultIsAnError(t *testing.T) {
	m, _ := newTestManager(t, 4, nil, nilDetector{})

	_, err := m.Detect(context.Background(), "u1", []byte("jpeg"), "a.jpg", "image/jpeg")
	assert.ErrorIs(t, err, ErrNoResult)

	_, err = m.Workspace().Get("u1")
	assert.ErrorIs(t, err, storage.ErrNoWorkspace)
}
