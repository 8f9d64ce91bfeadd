package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"aivision/internal/logger"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

const (
	EventDetection = "detection"
	EventMessage   = "message"
)

// Event is the JSON frame pushed to dashboard sockets.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// clientBuffer is how many events may wait for one slow socket before
// the hub drops it.
const clientBuffer = 16

type client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

type registration struct {
	conn   *websocket.Conn
	userID string
}

type delivery struct {
	userID  string
	payload []byte
}

// HubService fans events out to the sockets of one user. The Run loop owns
// the client map; each connection is written by its own goroutine.
type HubService struct {
	clients    map[*websocket.Conn]*client
	send       chan delivery
	register   chan registration
	unregister chan *websocket.Conn
	quit       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]*client),
		send:       make(chan delivery, 64),
		register:   make(chan registration),
		unregister: make(chan *websocket.Conn),
		quit:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *HubService) Run() {
	for {
		select {
		case reg := <-h.register:
			c := &client{conn: reg.conn, userID: reg.userID, send: make(chan []byte, clientBuffer)}
			h.mutex.Lock()
			h.clients[reg.conn] = c
			total := len(h.clients)
			h.mutex.Unlock()
			go h.writePump(c)
			h.logger.Info("Client connected for user %s. Total: %d", reg.userID, total)

		case conn := <-h.unregister:
			if h.remove(conn) {
				h.logger.Info("Client disconnected. Total: %d", h.ClientCount())
			}

		case msg := <-h.send:
			h.deliver(msg)

		case <-h.quit:
			h.mutex.Lock()
			for conn, c := range h.clients {
				close(c.send)
				conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// remove drops conn from the map and stops its writer. Only Run calls it.
func (h *HubService) remove(conn *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	c, ok := h.clients[conn]
	if !ok {
		return false
	}
	delete(h.clients, conn)
	close(c.send)
	conn.Close()
	return true
}

func (h *HubService) deliver(msg delivery) {
	h.mutex.RLock()
	var slow []*websocket.Conn
	for conn, c := range h.clients {
		if c.userID != msg.userID {
			continue
		}
		select {
		case c.send <- msg.payload:
		default:
			slow = append(slow, conn)
		}
	}
	h.mutex.RUnlock()

	for _, conn := range slow {
		h.logger.Warning("Dropping slow client for user %s", msg.userID)
		h.remove(conn)
	}
}

func (h *HubService) writePump(c *client) {
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Error("Error sending message: %v", err)
			h.Unregister(c.conn)
			// Drain until Run closes the channel.
			for range c.send {
			}
			return
		}
	}
}

func (h *HubService) Register(conn *websocket.Conn, userID string) {
	select {
	case h.register <- registration{conn: conn, userID: userID}:
	case <-h.quit:
		conn.Close()
	}
}

func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.quit:
	}
}

// Send queues a raw payload for every socket of userID. It drops the
// payload when the hub is stopped.
func (h *HubService) Send(userID string, payload []byte) {
	select {
	case h.send <- delivery{userID: userID, payload: payload}:
	case <-h.quit:
	}
}

// SendEvent marshals an Event and queues it for userID.
func (h *HubService) SendEvent(userID, eventType string, data any) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	h.Send(userID, payload)
	return nil
}

func (h *HubService) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Stop closes every connection and ends Run.
func (h *HubService) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}
