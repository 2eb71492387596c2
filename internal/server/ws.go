package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

const (
	// clientBuffer is how many events a slow client may fall behind before
	// events to it are dropped.
	clientBuffer = 64

	writeWait = 5 * time.Second

	// maxFrameMessage bounds one tracker frame on /api/frames.
	maxFrameMessage = 1 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Event types sent over /api/events.
const (
	EventDetection = "detection"
	EventTraining  = "training"
)

// Event is one message on the events socket.
type Event struct {
	Type      string           `json:"type"`
	Detection *app.Detection   `json:"detection,omitempty"`
	Training  *gesture.Session `json:"training,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// EventsHandler broadcasts detections and training updates via WebSocket.
type EventsHandler struct {
	logger      *zap.SugaredLogger
	clients     map[*client]bool
	unsubscribe []func()
	mu          sync.RWMutex
}

// NewEventsHandler creates a new EventsHandler subscribed to a.
func NewEventsHandler(a *app.App, logger *zap.SugaredLogger) *EventsHandler {
	h := &EventsHandler{
		logger:  logger,
		clients: make(map[*client]bool),
	}
	h.unsubscribe = []func(){
		a.Subscribe(func(d app.Detection) {
			h.broadcast(Event{Type: EventDetection, Detection: &d})
		}),
		a.SubscribeTraining(func(s gesture.Session) {
			h.broadcast(Event{Type: EventTraining, Training: &s})
		}),
	}
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go c.writeLoop()

	defer h.remove(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *EventsHandler) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast queues ev for every connected client. It never blocks the frame
// loop or the training timers that deliver events.
func (h *EventsHandler) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorw("failed to encode event", "type", ev.Type, "error", err)
		return
	}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Debugw("event client lagging, dropping event", "type", ev.Type)
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the engine and disconnects every client.
func (h *EventsHandler) Close() {
	for _, fn := range h.unsubscribe {
		fn()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.conn.Close()
			return
		}
	}
}

// FramesHandler accepts landmark frames pushed by a tracker over WebSocket,
// one JSON frame per message, and feeds them to the engine.
type FramesHandler struct {
	app    *app.App
	config detector.Config
	logger *zap.SugaredLogger
}

// NewFramesHandler creates a new FramesHandler feeding a.
func NewFramesHandler(a *app.App, config detector.Config, logger *zap.SugaredLogger) *FramesHandler {
	return &FramesHandler{app: a, config: config, logger: logger}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *FramesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameMessage)

	h.logger.Infow("tracker connected", "remote", r.RemoteAddr)
	defer h.logger.Infow("tracker disconnected", "remote", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		frame, err := detector.DecodeFrame(data, h.config)
		if err == nil {
			err = h.app.ProcessFrame(frame)
		}
		if err != nil {
			h.logger.Debugw("skipping malformed frame", "error", err)
		}
	}
}
