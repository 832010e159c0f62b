package web

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// writeTimeout bounds one frame write to a streaming client.
const writeTimeout = 10 * time.Second

// outboxSize is how far a slow client may fall behind before it is dropped.
const outboxSize = 32

// subscriber abstracts a streaming client so the hub can be tested without
// real websocket connections.
type subscriber interface {
	Send([]byte) error
	Close()
}

// hub fans committed change payloads out to the clients watching each team.
// Broadcasts only enqueue: each client drains a buffered outbox on its own
// goroutine, so a stalled peer never blocks the committing writer. A client
// whose outbox fills is dropped instead of awaited.
type hub struct {
	mu      sync.Mutex
	clients map[string]map[subscriber]*outbox
}

type outbox struct {
	ch     chan []byte
	closed bool
}

func newHub() *hub {
	return &hub{clients: make(map[string]map[subscriber]*outbox)}
}

func (h *hub) register(teamID string, c subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[teamID]; !ok {
		h.clients[teamID] = make(map[subscriber]*outbox)
	}
	box := &outbox{ch: make(chan []byte, outboxSize)}
	h.clients[teamID][c] = box
	go h.drain(teamID, c, box)
}

func (h *hub) unregister(teamID string, c subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(teamID, c)
}

// broadcast queues payload for every client of the team without waiting on
// any of them.
func (h *hub) broadcast(teamID string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[teamID]
	if !ok {
		return
	}
	for c, box := range clients {
		select {
		case box.ch <- payload:
		default:
			h.drop(teamID, c)
		}
	}
}

// drain forwards queued payloads to one client until its outbox closes or a
// send fails.
func (h *hub) drain(teamID string, c subscriber, box *outbox) {
	for payload := range box.ch {
		if err := c.Send(payload); err != nil {
			h.unregister(teamID, c)
			return
		}
	}
}

// drop removes the client and closes its outbox. Caller holds h.mu, which
// also guards against enqueueing on the closed channel.
func (h *hub) drop(teamID string, c subscriber) {
	clients, ok := h.clients[teamID]
	if !ok {
		return
	}
	box, ok := clients[c]
	if !ok {
		return
	}
	if !box.closed {
		box.closed = true
		close(box.ch)
	}
	c.Close()
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.clients, teamID)
	}
}

// wsClient wraps a websocket connection behind the subscriber interface.
// Every write carries a deadline; a peer that stops reading fails the write
// instead of holding the drain goroutine forever.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  *zap.Logger
}

func newWSClient(conn *websocket.Conn, log *zap.Logger) *wsClient {
	return &wsClient{conn: conn, log: log}
}

func (c *wsClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("websocket send failed", zap.Error(err))
		_ = c.conn.Close()
		return err
	}
	return nil
}

func (c *wsClient) Close() {
	_ = c.conn.Close()
}
