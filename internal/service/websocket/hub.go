package websocket

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"camdetect/internal/logger"
	"camdetect/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// MessageFrame carries a base64 JPEG camera frame.
	MessageFrame = "frame"
	// MessageDetections carries the latest detections and the rendered overlay.
	MessageDetections = "detections"

	writeWait = 2 * time.Second
)

// Message is the JSON envelope sent to viewers.
type Message struct {
	Type       string            `json:"type"`
	Seq        uint64            `json:"seq"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Image      string            `json:"image,omitempty"`
	Overlay    string            `json:"overlay,omitempty"`
	Detections []model.Detection `json:"detections,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Conn is the subset of *websocket.Conn used by the hub.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// HubService keeps the connected viewers and broadcasts messages to them.
type HubService struct {
	clients    map[Conn]bool
	broadcast  chan []byte
	register   chan Conn
	unregister chan Conn
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// NewHubService creates a hub. Pacing frames is up to the caller.
func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[Conn]bool),
		broadcast:  make(chan []byte, 8),
		register:   make(chan Conn),
		unregister: make(chan Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves register, unregister and broadcast requests until ctx is cancelled.
// All remaining viewers are disconnected on return.
func (h *HubService) Run(ctx context.Context) error {
	defer h.stopOnce.Do(func() { close(h.done) })
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

func (h *HubService) send(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Warning("Error sending message: %v", err)
			delete(h.clients, client)
			client.Close()
		}
	}
}

func (h *HubService) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

// Register adds a viewer. It returns false once the hub has stopped.
func (h *HubService) Register(ctx context.Context, client Conn) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Unregister removes a viewer and closes its connection.
func (h *HubService) Unregister(ctx context.Context, client Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	case <-ctx.Done():
	}
}

// Broadcast queues a message for every viewer. The message is dropped when
// the queue is full.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// BroadcastFrame sends a camera frame. Frames without dimensions are rejected.
func (h *HubService) BroadcastFrame(frame model.Frame) bool {
	if !frame.Valid() {
		return false
	}
	msg, err := json.Marshal(Message{
		Type:   MessageFrame,
		Seq:    frame.Seq,
		Width:  frame.Width,
		Height: frame.Height,
		Image:  base64.StdEncoding.EncodeToString(frame.Data),
	})
	if err != nil {
		h.logger.Error("Failed to encode frame message: %v", err)
		return false
	}
	return h.Broadcast(msg)
}

// BroadcastDetections sends a detection result. overlay is a PNG and may be nil.
func (h *HubService) BroadcastDetections(seq uint64, width, height int, detections []model.Detection, overlay []byte, detectErr error) bool {
	msg := Message{
		Type:       MessageDetections,
		Seq:        seq,
		Width:      width,
		Height:     height,
		Detections: detections,
	}
	if len(overlay) > 0 {
		msg.Overlay = base64.StdEncoding.EncodeToString(overlay)
	}
	if detectErr != nil {
		msg.Error = detectErr.Error()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode detections message: %v", err)
		return false
	}
	return h.Broadcast(data)
}

// GetClientCount returns the number of connected viewers.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
