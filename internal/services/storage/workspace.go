package storage

import (
	"errors"
	"slices"
	"sync"
	"time"

	"aivision/internal/models"
	"aivision/internal/services/results"
)

// ErrNoWorkspace is returned when the user has no uploaded image.
var ErrNoWorkspace = errors.New("no image uploaded")

// Workspace is the server-side copy of one user's dashboard view: the
// uploaded image, its detections and the current table ordering.
type Workspace struct {
	Filename       string
	ContentType    string
	Image          []byte
	AnnotatedImage string
	Detections     []models.Detection
	Sort           results.SortState
	UpdatedAt      time.Time
	// Seq orders uploads; a lower Seq never replaces a higher one.
	Seq uint64
}

func (w *Workspace) clone() *Workspace {
	copied := *w
	copied.Detections = slices.Clone(w.Detections)
	return &copied
}

// WorkspaceService keeps one Workspace per user in memory.
type WorkspaceService struct {
	workspaces map[string]*Workspace
	ttl        time.Duration
	now        func() time.Time
	mu         sync.Mutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewWorkspaceService(ttl time.Duration) *WorkspaceService {
	return &WorkspaceService{
		workspaces: make(map[string]*Workspace),
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
}

// Run expires idle workspaces every interval until Stop is called.
func (s *WorkspaceService) Run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Stop ends Run.
func (s *WorkspaceService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Put replaces the user's workspace wholesale and resets the sort state.
// It reports false and keeps the stored workspace when ws is older than it.
func (s *WorkspaceService) Put(userID string, ws *Workspace) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.workspaces[userID]; ok && ws.Seq < current.Seq {
		return false
	}

	stored := ws.clone()
	stored.Sort = results.SortState{}
	stored.UpdatedAt = s.now()
	s.workspaces[userID] = stored
	return true
}

// Get returns a copy of the user's workspace.
func (s *WorkspaceService) Get(userID string) (*Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.workspaces[userID]
	if !ok {
		return nil, ErrNoWorkspace
	}
	ws.UpdatedAt = s.now()
	return ws.clone(), nil
}

// Remove discards the user's workspace, if any.
func (s *WorkspaceService) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workspaces, userID)
}

// Sort reorders the user's detections by column and stores the new order
// and sort state.
func (s *WorkspaceService) Sort(userID string, column results.Column) ([]models.Detection, results.SortState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.workspaces[userID]
	if !ok {
		return nil, results.SortState{}, ErrNoWorkspace
	}

	sorted, state := results.Sort(ws.Detections, column, ws.Sort)
	ws.Detections = sorted
	ws.Sort = state
	ws.UpdatedAt = s.now()

	return slices.Clone(sorted), state, nil
}

// Sweep drops workspaces idle for longer than the TTL and returns how many
// were removed.
func (s *WorkspaceService) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl <= 0 {
		return 0
	}

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for userID, ws := range s.workspaces {
		if ws.UpdatedAt.Before(cutoff) {
			delete(s.workspaces, userID)
			removed++
		}
	}
	return removed
}

// Len returns the number of live workspaces.
func (s *WorkspaceService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}
