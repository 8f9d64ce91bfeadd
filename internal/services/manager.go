package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"aivision/internal/config"
	"aivision/internal/logger"
	"aivision/internal/models"
	"aivision/internal/services/ai"
	"aivision/internal/services/storage"
	"aivision/internal/services/websocket"
)

var (
	ErrQueueFull = errors.New("processing queue is full")
	ErrStopped   = errors.New("manager stopped")
	ErrNoResult  = errors.New("detector returned no result")
)

// EventSender pushes events to a user's open dashboards.
type EventSender interface {
	SendEvent(userID, eventType string, data any) error
}

// DetectionEvent is sent to the user's sockets after a successful run.
type DetectionEvent struct {
	Filename       string             `json:"filename"`
	Detections     []models.Detection `json:"detections"`
	AnnotatedImage string             `json:"annotatedImage"`
}

type Manager struct {
	detectors []ai.Detector
	annotator ai.Annotator
	workspace *storage.WorkspaceService
	events    EventSender
	logger    *logger.Logger

	processingQueue chan detectionTask
	numWorkers      int
	uploadSeq       atomic.Uint64

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

type detectionTask struct {
	ctx         context.Context
	userID      string
	image       []byte
	filename    string
	contentType string
	seq         uint64
	reply       chan detectionOutcome
}

type detectionOutcome struct {
	result *ai.Result
	err    error
}

// NewManager starts one worker per detector. annotator may be nil, in which
// case results without an annotated image fall back to the original upload.
func NewManager(detectors []ai.Detector, annotator ai.Annotator, workspace *storage.WorkspaceService, events EventSender, cfg *config.Config, logger *logger.Logger) *Manager {
	queueSize := cfg.ProcessingQueue
	if queueSize < 1 {
		queueSize = 1
	}

	manager := &Manager{
		detectors:       detectors,
		annotator:       annotator,
		workspace:       workspace,
		events:          events,
		logger:          logger,
		processingQueue: make(chan detectionTask, queueSize),
		numWorkers:      len(detectors),
	}

	for i := 0; i < manager.numWorkers; i++ {
		manager.wg.Add(1)
		go manager.processingWorker(i)
	}

	manager.logger.Info("Manager started with %d worker(s), queue size %d", manager.numWorkers, queueSize)
	return manager
}

// Detect queues the image and waits for its result. A full queue fails
// immediately with ErrQueueFull.
func (m *Manager) Detect(ctx context.Context, userID string, image []byte, filename, contentType string) (*ai.Result, error) {
	task := detectionTask{
		ctx:         ctx,
		userID:      userID,
		image:       image,
		filename:    filename,
		contentType: contentType,
		seq:         m.uploadSeq.Add(1),
		reply:       make(chan detectionOutcome, 1),
	}

	m.mu.RLock()
	if m.stopped {
		m.mu.RUnlock()
		return nil, ErrStopped
	}
	select {
	case m.processingQueue <- task:
		m.mu.RUnlock()
	default:
		m.mu.RUnlock()
		m.logger.Warning("Processing queue full, rejecting %s from user %s", filename, userID)
		return nil, ErrQueueFull
	}

	select {
	case outcome := <-task.reply:
		return outcome.result, outcome.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) Workspace() *storage.WorkspaceService {
	return m.workspace
}

func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Info("Processing worker %d started", workerID)

	for task := range m.processingQueue {
		result, err := m.process(task, workerID)
		task.reply <- detectionOutcome{result: result, err: err}
	}

	m.logger.Info("Processing worker %d stopped", workerID)
}

func (m *Manager) process(task detectionTask, workerID int) (*ai.Result, error) {
	if err := task.ctx.Err(); err != nil {
		return nil, err
	}

	result, err := m.detectors[workerID].Detect(task.ctx, task.image, task.filename)
	if err != nil {
		m.logger.Error("Detection failed for %s: %v", task.filename, err)
		return nil, fmt.Errorf("detect objects: %w", err)
	}
	if result == nil {
		m.logger.Error("Detector returned no result for %s", task.filename)
		return nil, fmt.Errorf("detect objects: %w", ErrNoResult)
	}
	if result.Detections == nil {
		result.Detections = []models.Detection{}
	}

	if result.AnnotatedImage == "" {
		result.AnnotatedImage = m.annotate(task, result.Detections)
	}

	stored := m.workspace.Put(task.userID, &storage.Workspace{
		Filename:       task.filename,
		ContentType:    task.contentType,
		Image:          task.image,
		AnnotatedImage: result.AnnotatedImage,
		Detections:     result.Detections,
		Seq:            task.seq,
	})
	if !stored {
		m.logger.Info("Worker %d: %s finished after a newer upload, workspace kept", workerID, task.filename)
		return result, nil
	}

	if m.events != nil {
		event := DetectionEvent{
			Filename:       task.filename,
			Detections:     result.Detections,
			AnnotatedImage: result.AnnotatedImage,
		}
		if err := m.events.SendEvent(task.userID, websocket.EventDetection, event); err != nil {
			m.logger.Warning("Failed to send detection event: %v", err)
		}
	}

	m.logger.Info("Worker %d: %d object(s) detected in %s", workerID, len(result.Detections), task.filename)
	return result, nil
}

func (m *Manager) annotate(task detectionTask, detections []models.Detection) string {
	if m.annotator != nil {
		annotated, err := m.annotator.Annotate(task.image, detections)
		if err == nil {
			return annotated
		}
		m.logger.Warning("Failed to draw detections on %s: %v", task.filename, err)
	}
	return ai.DataURL(task.contentType, task.image)
}

// Stop rejects new work and waits for queued tasks to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.processingQueue)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("All processing workers stopped")
}
