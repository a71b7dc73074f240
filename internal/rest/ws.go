package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Loopback-only server; any origin may subscribe.
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans status events out to every connected websocket client. All
// client set mutation happens on the run goroutine.
type hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer, drop it.
					delete(h.clients, c)
					close(c.send)
				}
			}
		case <-h.done:
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*client]bool)
			return
		}
	}
}

func (h *hub) close() {
	close(h.done)
}

// send offers a message to the hub without blocking, in case the run
// goroutine has already exited.
func (h *hub) send(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *client) readPump(h *hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// handleEvents upgrades the connection and subscribes it to the status
// event stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("rest: websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}
	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump(s.hub)
}

type statusEvent struct {
	Event string                `json:"event"`
	Data  emulationStatusResult `json:"data"`
}

// broadcastStatus pushes an emulation status event to subscribers once
// a second until ctx is cancelled.
func (s *Server) broadcastStatus(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			status, err := s.emulationStatus()
			if err != nil {
				continue
			}
			b, err := json.Marshal(statusEvent{Event: "status", Data: status})
			if err != nil {
				continue
			}
			s.hub.send(b)
		}
	}
}
