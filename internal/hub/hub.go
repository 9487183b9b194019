// Package hub broadcasts ingestion and classification events to all
// currently connected viewers. Delivery is best-effort: no replay buffer,
// no guarantee for viewers that connect after an event is emitted.
package hub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/CoderParva/Onebox/internal/database/models"
	"github.com/CoderParva/Onebox/internal/services"
	"github.com/gorilla/websocket"
)

// Conn is the slice of *websocket.Conn the hub needs. The read side only
// serves to detect the peer closing.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Event types pushed to viewers.
const (
	EventNewMail    = "new_mail"
	EventClassified = "classified"
)

// sendQueueSize bounds how far a viewer may fall behind. A viewer whose
// queue overflows is dropped rather than allowed to stall broadcasts.
const sendQueueSize = 32

// Event is the push payload sent to every open viewer connection.
type Event struct {
	Type      string        `json:"type"`
	Document  *models.Email `json:"document,omitempty"`
	MessageID string        `json:"messageId,omitempty"`
	Category  string        `json:"category,omitempty"`
}

// Hub maintains the set of connected viewers. Each viewer has a buffered
// send queue drained by its own write pump, so network writes never happen
// under the hub mutex; the mutex covers only membership bookkeeping.
type Hub struct {
	mu         sync.Mutex
	viewers    map[Conn]chan []byte
	logService *services.LogService
}

// New creates a new Hub instance
func New(logService *services.LogService) *Hub {
	return &Hub{
		viewers:    make(map[Conn]chan []byte),
		logService: logService,
	}
}

// Register adds a viewer connection and starts its read and write pumps.
// The read pump's only job is to notice the peer going away.
func (h *Hub) Register(conn Conn) {
	send := make(chan []byte, sendQueueSize)

	h.mu.Lock()
	h.viewers[conn] = send
	count := len(h.viewers)
	h.mu.Unlock()

	log.Printf("[Hub] Viewer connected (%d total)", count)

	go h.writePump(conn, send)
	go h.readPump(conn)
}

// Unregister removes a viewer connection. Closing the send queue ends the
// write pump, which closes the transport after draining.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	send, known := h.viewers[conn]
	if known {
		delete(h.viewers, conn)
		close(send)
	}
	count := len(h.viewers)
	h.mu.Unlock()

	if known {
		log.Printf("[Hub] Viewer disconnected (%d total)", count)
	}
}

// ViewerCount returns the number of currently connected viewers.
func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

func (h *Hub) readPump(conn Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.Unregister(conn)
			return
		}
	}
}

// writePump is the only writer to one connection, which keeps websocket
// writes serialized per viewer without any shared lock.
func (h *Hub) writePump(conn Conn, send <-chan []byte) {
	defer conn.Close()
	for data := range send {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.Unregister(conn)
		}
	}
}

// BroadcastNewMail pushes an ingestion event for a freshly stored document.
func (h *Hub) BroadcastNewMail(doc *models.Email) {
	h.broadcast(Event{Type: EventNewMail, Document: doc})
}

// BroadcastClassified pushes a classification result for a document.
func (h *Hub) BroadcastClassified(messageID, category string) {
	h.broadcast(Event{Type: EventClassified, MessageID: messageID, Category: category})
}

// broadcast enqueues the event for every open connection. The enqueue is
// non-blocking: a viewer with a full queue is dropped on the spot.
func (h *Hub) broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logService.LogError(models.LogModuleHub, "broadcast", "Failed to encode event", map[string]interface{}{
			"type":  event.Type,
			"error": err.Error(),
		})
		return
	}

	h.mu.Lock()
	var slow []Conn
	for conn, send := range h.viewers {
		select {
		case send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	for _, conn := range slow {
		send := h.viewers[conn]
		delete(h.viewers, conn)
		close(send)
	}
	h.mu.Unlock()

	if len(slow) > 0 {
		log.Printf("[Hub] Dropped %d slow viewer connection(s) during broadcast", len(slow))
	}
}
