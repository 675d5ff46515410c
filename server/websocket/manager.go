package websocket

import (
	"context"
	"sync"
	"time"

	"flatnas/pkg/logger"
	"flatnas/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	EventPing = "ping"
	EventPong = "pong"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	requestTimeout = 15 * time.Second
	sendBuffer     = 64
)

// Frame is the JSON envelope of every message on the socket, for example
// {"event":"hot:fetch","data":{"type":"weibo"}}. There is no Socket.IO
// handshake or packet framing; clients speak plain WebSocket.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// HandlerFunc answers a client request. A nil frame means no reply.
type HandlerFunc func(ctx context.Context, data json.RawMessage) *Frame

// Client represents a WebSocket client connection
type Client struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan *Frame
	Manager *Manager

	done      chan struct{}
	closeOnce sync.Once
}

// Manager tracks every connected client, fans broadcasts out to all of them
// and routes client requests to registered handlers.
type Manager struct {
	clients    map[string]*Client // client id -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Frame
	handlers   map[string]HandlerFunc
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewManager creates a new WebSocket manager
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan *Frame, 256),
		handlers:   make(map[string]HandlerFunc),
		ctx:        ctx,
		cancel:     cancel,
	}

	go m.run()
	return m
}

// run handles client registration, unregistration, and message broadcasting
func (m *Manager) run() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case client := <-m.register:
			m.registerClient(client)

		case client := <-m.unregister:
			m.unregisterClient(client)

		case frame := <-m.broadcast:
			m.broadcastFrame(frame)

		case <-ticker.C:
			m.broadcastFrame(&Frame{Event: EventPing, Data: map[string]int64{"ts": time.Now().UnixMilli()}})

		case <-m.ctx.Done():
			m.closeAllClients()
			return
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.mu.Lock()
	m.clients[client.ID] = client
	total := len(m.clients)
	m.mu.Unlock()

	metrics.IncrementWebSocketClients()
	logger.WithFields(map[string]any{
		"client_id":     client.ID,
		"total_clients": total,
	}).Debug("WebSocket client registered")
}

func (m *Manager) unregisterClient(client *Client) {
	m.mu.Lock()
	_, exists := m.clients[client.ID]
	if exists {
		delete(m.clients, client.ID)
	}
	total := len(m.clients)
	m.mu.Unlock()

	if !exists {
		return
	}
	client.Close()
	metrics.DecrementWebSocketClients()
	logger.WithFields(map[string]any{
		"client_id":     client.ID,
		"total_clients": total,
	}).Debug("WebSocket client unregistered")
}

func (m *Manager) broadcastFrame(frame *Frame) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, client := range m.clients {
		if !client.enqueue(frame) {
			metrics.IncrementMessagesDropped()
			logger.WithFields(map[string]any{
				"client_id": id,
				"event":     frame.Event,
			}).Warn("Client send buffer full, dropping frame")
		}
	}
}

// Broadcast queues an event for every connected client.
func (m *Manager) Broadcast(event string, data any) {
	frame := &Frame{Event: event, Data: data}
	select {
	case m.broadcast <- frame:
		metrics.RecordBroadcast(event)
	case <-m.ctx.Done():
	default:
		metrics.IncrementMessagesDropped()
		logger.WithField("event", event).Warn("Broadcast buffer full")
	}
}

// Handle registers the handler for a client request event.
func (m *Manager) Handle(event string, fn HandlerFunc) {
	m.mu.Lock()
	m.handlers[event] = fn
	m.mu.Unlock()
}

func (m *Manager) handler(event string) (HandlerFunc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.handlers[event]
	return fn, ok
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Serve runs a connection until it closes.
func (m *Manager) Serve(conn *websocket.Conn) {
	client := NewClient(conn, m)

	select {
	case m.register <- client:
	case <-m.ctx.Done():
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump()
}

// closeAllClients closes all client connections
func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		client.Close()
		metrics.DecrementWebSocketClients()
	}
	m.clients = make(map[string]*Client)
}

// Close shuts down the manager. It is safe to call on a nil manager.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.cancel()
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:      uuid.NewString(),
		Conn:    conn,
		Send:    make(chan *Frame, sendBuffer),
		Manager: manager,
		done:    make(chan struct{}),
	}
}

func (c *Client) enqueue(frame *Frame) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

// ReadPump reads frames from the connection until it fails.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Manager.unregister <- c:
		case <-c.Manager.ctx.Done():
		}
		c.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame inboundFrame
		if err := c.Conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleFrame(frame)
	}
}

// WritePump writes queued frames and keeps the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(frame); err != nil {
				logger.WithError(err).Debug("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleFrame answers one client request. Handlers may call upstream feeds,
// so they run off the read loop.
func (c *Client) handleFrame(frame inboundFrame) {
	switch frame.Event {
	case "", EventPong:
		return
	case EventPing:
		c.enqueue(&Frame{Event: EventPong})
		return
	}

	fn, ok := c.Manager.handler(frame.Event)
	if !ok {
		logger.WithField("event", frame.Event).Debug("Ignoring unknown WebSocket event")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(c.Manager.ctx, requestTimeout)
		defer cancel()

		if reply := fn(ctx, frame.Data); reply != nil {
			if !c.enqueue(reply) {
				metrics.IncrementMessagesDropped()
			}
		}
	}()
}

// Close stops the client's write loop; the connection is closed by the pumps.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
