// Package console serves the live admin views over websockets: the
// dashboard feed and the browse/edit console for places and events.
package console

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 256
)

// Client is one websocket connection in a room. Its send channel is owned
// by the hub and closed exactly once when the client leaves.
type Client struct {
	Conn *websocket.Conn
	Room string
	send chan []byte
}

func NewClient(conn *websocket.Conn, room string) *Client {
	return &Client{Conn: conn, Room: room, send: make(chan []byte, sendBuffer)}
}

type directMsg struct {
	client *Client
	data   []byte
}

type broadcastMsg struct {
	Room string
	Data []byte
}

// Hub tracks connected clients by room and is the only writer to their
// send channels.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	direct     chan directMsg
	broadcast  chan broadcastMsg
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan directMsg),
		broadcast:  make(chan broadcastMsg),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        log.Named("hub"),
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.Room] == nil {
				h.rooms[c.Room] = make(map[*Client]bool)
			}
			h.rooms[c.Room][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.drop(c)

		case m := <-h.direct:
			h.deliver(m.client, m.data)

		case m := <-h.broadcast:
			h.mu.Lock()
			clients := make([]*Client, 0, len(h.rooms[m.Room]))
			for c := range h.rooms[m.Room] {
				clients = append(clients, c)
			}
			h.mu.Unlock()
			for _, c := range clients {
				h.deliver(c, m.Data)
			}

		case <-h.quit:
			h.mu.Lock()
			for room, conns := range h.rooms {
				for c := range conns {
					close(c.send)
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return
		}
	}
}

// deliver queues data for c. A client whose buffer is full is dropped.
func (h *Hub) deliver(c *Client, data []byte) {
	h.mu.Lock()
	registered := h.rooms[c.Room][c]
	h.mu.Unlock()
	if !registered {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.Warn("dropping slow client", zap.String("room", c.Room))
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns := h.rooms[c.Room]; conns != nil && conns[c] {
		delete(conns, c)
		close(c.send)
		if len(conns) == 0 {
			delete(h.rooms, c.Room)
		}
	}
}

// Register adds c to its room. It reports false once the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Send queues data for one client. It never blocks past Stop.
func (h *Hub) Send(c *Client, data []byte) {
	select {
	case h.direct <- directMsg{client: c, data: data}:
	case <-h.quit:
	}
}

func (h *Hub) Broadcast(room string, data []byte) {
	select {
	case h.broadcast <- broadcastMsg{Room: room, Data: data}:
	case <-h.quit:
	}
}

// Count is the number of clients in room.
func (h *Hub) Count(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// Stop closes every client and waits for Run to return.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.done
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump hands every inbound message to handle until the connection
// fails, then unregisters c.
func (c *Client) readPump(h *Hub, handle func(raw []byte)) {
	defer func() {
		h.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("read failed", zap.String("room", c.Room), zap.Error(err))
			}
			return
		}
		handle(raw)
	}
}
