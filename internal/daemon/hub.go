package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// ModeMessage is pushed to every stream of a document when its mode changes,
// and once on connect.
type ModeMessage struct {
	Type       string `json:"type"`
	DocumentID string `json:"documentId"`
	Editable   bool   `json:"editable"`
}

const msgMode = "mode"

// Hub fans mode changes out to the WebSocket streams of each document.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]map[*streamConn]struct{}
	closed bool
	logger *slog.Logger
}

type streamConn struct {
	docID string
	send  chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[string]map[*streamConn]struct{}),
		logger: logger,
	}
}

func (h *Hub) register(docID string) *streamConn {
	c := &streamConn{docID: docID, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.send)
		return c
	}
	if h.conns[docID] == nil {
		h.conns[docID] = make(map[*streamConn]struct{})
	}
	h.conns[docID][c] = struct{}{}
	return c
}

func (h *Hub) unregister(c *streamConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.conns[c.docID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.conns, c.docID)
	}
}

// Broadcast sends the current mode of docID to its streams. A stream whose
// buffer is full is dropped.
func (h *Hub) Broadcast(docID string, editable bool) {
	data, err := json.Marshal(ModeMessage{Type: msgMode, DocumentID: docID, Editable: editable})
	if err != nil {
		h.logger.Error("failed to encode mode message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns[docID] {
		select {
		case c.send <- data:
		default:
			delete(h.conns[docID], c)
			close(c.send)
			h.logger.Warn("dropped slow mode stream", "document_id", docID)
		}
	}
}

// Clients returns the number of open streams for docID.
func (h *Hub) Clients(docID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[docID])
}

// Close ends every stream. Later registrations are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, conns := range h.conns {
		for c := range conns {
			close(c.send)
		}
		delete(h.conns, id)
	}
}

func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowed {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// serve upgrades the request and pumps mode messages until either side
// closes. The first message carries the current mode.
func (h *Hub) serve(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, docID string, editable bool) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "document_id", docID, "error", err)
		return
	}

	c := h.register(docID)
	first, _ := json.Marshal(ModeMessage{Type: msgMode, DocumentID: docID, Editable: editable})
	select {
	case c.send <- first:
	default:
	}

	go h.writePump(ws, c)
	go h.readPump(ws, c)
}

func (h *Hub) readPump(ws *websocket.Conn, c *streamConn) {
	defer func() {
		h.unregister(c)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only listen; reads exist to notice the close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("mode stream closed", "document_id", c.docID, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(ws *websocket.Conn, c *streamConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
