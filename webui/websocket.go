// Package webui provides the browser front end for the image generator.
// This file contains the WebSocketBroadcaster molecule that pushes progress
// and completion messages to connected browsers.
package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketBroadcaster is a molecule that manages WebSocket client connections
// and broadcasts messages to all connected clients.
//
// It composes:
//   - Message types (from ws_message.go atoms)
//   - Connection map for client management
//   - Broadcast channel for message distribution
//
// Thread-safe for concurrent client connections and message broadcasting.
type WebSocketBroadcaster struct {
	clients   map[*websocket.Conn]clientInfo
	clientsMu sync.RWMutex

	broadcast  chan WSMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once

	upgrader websocket.Upgrader

	pingInterval   time.Duration
	pongWait       time.Duration
	writeWait      time.Duration
	maxMessageSize int64
	sendBufferSize int

	// initialState builds the snapshot sent to each new client (optional)
	initialState func() WSMessage

	logger *zap.Logger
}

// clientInfo stores metadata about a connected client
type clientInfo struct {
	connectedAt time.Time
	remoteAddr  string
	send        chan []byte
}

// BroadcasterConfig holds configuration for the WebSocketBroadcaster
type BroadcasterConfig struct {
	// PingInterval is how often to send ping messages (default: 30s)
	PingInterval time.Duration

	// PongWait is how long to wait for pong response (default: 60s)
	PongWait time.Duration

	// WriteWait is time allowed to write a message (default: 10s)
	WriteWait time.Duration

	// MaxMessageSize is max message size from client (default: 512 bytes)
	MaxMessageSize int64

	// BroadcastBufferSize is the broadcast channel buffer (default: 256)
	BroadcastBufferSize int

	// ClientSendBufferSize is per-client send buffer (default: 256)
	ClientSendBufferSize int

	// InitialState is called for every new client; its message is sent first
	InitialState func() WSMessage

	// Logger for WebSocket operations (default: no-op)
	Logger *zap.Logger
}

// DefaultBroadcasterConfig returns the default configuration
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		PingInterval:         30 * time.Second,
		PongWait:             60 * time.Second,
		WriteWait:            10 * time.Second,
		MaxMessageSize:       512,
		BroadcastBufferSize:  256,
		ClientSendBufferSize: 256,
	}
}

// NewWebSocketBroadcaster creates a new WebSocketBroadcaster with default configuration.
// Call Start() to begin processing messages.
func NewWebSocketBroadcaster() *WebSocketBroadcaster {
	return NewWebSocketBroadcasterWithConfig(DefaultBroadcasterConfig())
}

// NewWebSocketBroadcasterWithConfig creates a new WebSocketBroadcaster with custom configuration.
// Zero fields take their defaults.
func NewWebSocketBroadcasterWithConfig(config BroadcasterConfig) *WebSocketBroadcaster {
	defaults := DefaultBroadcasterConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.PongWait <= 0 {
		config.PongWait = defaults.PongWait
	}
	if config.WriteWait <= 0 {
		config.WriteWait = defaults.WriteWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if config.BroadcastBufferSize <= 0 {
		config.BroadcastBufferSize = defaults.BroadcastBufferSize
	}
	if config.ClientSendBufferSize <= 0 {
		config.ClientSendBufferSize = defaults.ClientSendBufferSize
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &WebSocketBroadcaster{
		clients:        make(map[*websocket.Conn]clientInfo),
		broadcast:      make(chan WSMessage, config.BroadcastBufferSize),
		register:       make(chan *websocket.Conn),
		unregister:     make(chan *websocket.Conn),
		done:           make(chan struct{}),
		pingInterval:   config.PingInterval,
		pongWait:       config.PongWait,
		writeWait:      config.WriteWait,
		maxMessageSize: config.MaxMessageSize,
		sendBufferSize: config.ClientSendBufferSize,
		initialState:   config.InitialState,
		logger:         config.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-origin deployment; the page and the socket share a host.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Start runs the registration and broadcast loop until ctx is cancelled,
// then disconnects every client.
func (b *WebSocketBroadcaster) Start(ctx context.Context) {
	b.logger.Debug("broadcaster started")
	defer b.stopOnce.Do(func() { close(b.done) })

	for {
		select {
		case <-ctx.Done():
			b.logger.Debug("broadcaster stopping")
			b.closeAllClients()
			return

		case conn := <-b.register:
			b.addClient(conn)

		case conn := <-b.unregister:
			b.removeClient(conn)

		case message := <-b.broadcast:
			b.broadcastToAll(message)
		}
	}
}

// HandleConnection upgrades the request to a WebSocket and registers the
// client. Clients only receive; anything they send is discarded.
func (b *WebSocketBroadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		return
	}

	conn.SetReadLimit(b.maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(b.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(b.pongWait))
		return nil
	})

	select {
	case b.register <- conn:
	case <-b.done:
		conn.Close()
		return
	}

	go b.readPump(conn)
}

// BroadcastMessage queues msg for every connected client. It never blocks;
// when the buffer is full the message is dropped.
func (b *WebSocketBroadcaster) BroadcastMessage(msg WSMessage) {
	select {
	case b.broadcast <- msg:
	default:
		b.logger.Warn("broadcast buffer full, dropping message", zap.String("type", msg.Type))
	}
}

// ClientCount returns the current number of connected clients.
func (b *WebSocketBroadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *WebSocketBroadcaster) Close() {
	b.closeAllClients()
}

func (b *WebSocketBroadcaster) addClient(conn *websocket.Conn) {
	info := clientInfo{
		connectedAt: time.Now(),
		remoteAddr:  conn.RemoteAddr().String(),
		send:        make(chan []byte, b.sendBufferSize),
	}

	if b.initialState != nil {
		if data, err := json.Marshal(b.initialState()); err == nil {
			info.send <- data
		}
	}

	b.clientsMu.Lock()
	b.clients[conn] = info
	count := len(b.clients)
	b.clientsMu.Unlock()

	go b.writePump(conn, info.send)

	b.logger.Debug("client connected",
		zap.String("remote_addr", info.remoteAddr),
		zap.Int("clients", count))
}

func (b *WebSocketBroadcaster) removeClient(conn *websocket.Conn) {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	if info, ok := b.clients[conn]; ok {
		close(info.send)
		delete(b.clients, conn)
		b.logger.Debug("client disconnected",
			zap.String("remote_addr", info.remoteAddr),
			zap.Int("clients", len(b.clients)))
	}
}

func (b *WebSocketBroadcaster) broadcastToAll(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal broadcast message", zap.Error(err))
		return
	}

	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	for conn, info := range b.clients {
		select {
		case info.send <- data:
		default:
			// Slow client: drop it rather than stall everyone else.
			b.logger.Warn("client send buffer full, closing", zap.String("remote_addr", info.remoteAddr))
			close(info.send)
			delete(b.clients, conn)
		}
	}
}

func (b *WebSocketBroadcaster) closeAllClients() {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	for conn, info := range b.clients {
		close(info.send)
		delete(b.clients, conn)
	}
}

// readPump drains the connection so pongs and close frames are processed.
func (b *WebSocketBroadcaster) readPump(conn *websocket.Conn) {
	defer func() {
		select {
		case b.unregister <- conn:
		case <-b.done:
		}
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				b.logger.Debug("unexpected close", zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer for conn. It sends queued messages and
// periodic pings until send is closed.
func (b *WebSocketBroadcaster) writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(b.pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(b.writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				b.logger.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(b.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastProgress is a convenience wrapper for progress messages.
func (b *WebSocketBroadcaster) BroadcastProgress(data ProgressData) {
	b.BroadcastMessage(NewWSMessage(MessageTypeProgress, data))
}

// BroadcastComplete is a convenience wrapper for completion messages.
func (b *WebSocketBroadcaster) BroadcastComplete(data CompleteData) {
	b.BroadcastMessage(NewCompleteMessage(data))
}

// BroadcastError is a convenience wrapper for error messages.
func (b *WebSocketBroadcaster) BroadcastError(code, message string) {
	b.BroadcastMessage(NewErrorMessage(code, message))
}
