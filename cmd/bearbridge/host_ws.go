package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ============================================================================
// Host WebSocket: hub + per-client pumps
// ============================================================================
//
// The host side of the bridge over WebSocket (GET /bridge):
//   - Inbound text frames are raw bridge payloads and go to Bridge.Receive.
//   - Every emitted bridge event is broadcast to all connected hosts, in
//     emission order. Nothing is coalesced.
//   - A host that connects after startup first receives the loaded event, so
//     it never waits on an announcement it missed. A host that registers while
//     the loaded broadcast is still queued gets that broadcast instead, never
//     both.
//   - Slow clients are disconnected when their send buffer fills.
//
// ============================================================================

// Hub tracks connected host clients and fans out frames.
type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-encoded frames.
	broadcast  chan hubFrame
	register   chan *Client
	unregister chan *Client

	// Loaded frames enqueued but not yet delivered by Run.
	pendingGreetings atomic.Int64

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type hubFrame struct {
	msg      []byte
	greeting bool
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size. Zero means 32.
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size. Zero means 128.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan hubFrame, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("host hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("host hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			if c.greeting != nil && h.pendingGreetings.Load() == 0 {
				// Not shared yet, so the buffer is empty.
				select {
				case c.send <- c.greeting:
				default:
				}
			}
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("host connected", "client", c.id, "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case f := <-h.broadcast:
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- f.msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()
			if f.greeting {
				h.pendingGreetings.Add(-1)
			}

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// ClientCount returns the number of connected hosts.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeCloseChan(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send signals writePump to exit.
		safeCloseChan(c.send)

		h.logger.Info("host disconnected", "client", c.id, "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // ignore "close of closed channel"
	}()
	close(ch)
}

// BroadcastBytes enqueues an encoded frame for all hosts.
// It never blocks; if the hub queue is full the frame is dropped.
func (h *Hub) BroadcastBytes(msg []byte) {
	h.enqueue(hubFrame{msg: msg})
}

// BroadcastGreeting enqueues the loaded frame. Hosts registering before it is
// delivered skip their own replay.
func (h *Hub) BroadcastGreeting(msg []byte) {
	h.pendingGreetings.Add(1)
	if !h.enqueue(hubFrame{msg: msg, greeting: true}) {
		h.pendingGreetings.Add(-1)
	}
}

func (h *Hub) enqueue(f hubFrame) bool {
	select {
	case h.broadcast <- f:
		return true
	default:
		h.logger.Warn("host hub broadcast queue full, dropping frame", "bytes", len(f.msg))
		return false
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	id         string
	remoteAddr string
	logger     *slog.Logger

	// onMessage receives inbound text frames (raw bridge payloads).
	onMessage func(raw string)

	// greeting is the loaded replay sent by the hub on register, if any.
	greeting []byte
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, onMessage func(string), logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		id:         uuid.NewString(),
		remoteAddr: remoteAddr,
		logger:     logger,
		onMessage:  onMessage,
	}
}

const (
	writeWait = 5 * time.Second

	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	maxInboundFrame = 4096
)

// closeStatus extracts a websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

// writePump writes frames from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed: hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("write", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("ping", err)
				return
			}
		}
	}
}

// readPump forwards inbound text frames to the bridge and detects disconnects.
// It exits on read error, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxInboundFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	defer func() {
		if c.hub != nil {
			c.hub.unregister <- c
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.logExit("read", err)
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if kind != websocket.TextMessage {
			c.logger.Debug("host sent non-text frame; ignoring", "client", c.id, "type", kind)
			continue
		}
		if c.onMessage != nil {
			c.onMessage(string(msg))
		}
	}
}

func (c *Client) logExit(op string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("host pump exiting (close)", "op", op, "client", c.id, "code", code, "reason", text)
		return
	}
	c.logger.Info("host pump exiting", "op", op, "client", c.id, "error", err)
}

// ============================================================================
// HTTP handler
// ============================================================================

// HostServer serves the /bridge websocket.
type HostServer struct {
	logger *slog.Logger
	hub    *Hub
	bridge *Bridge

	// Used for the loaded replay on connect (through the reducer/event loop).
	events chan<- Event
}

// NewHostServer constructs the websocket side of the bridge. Start hub.Run(ctx)
// and register the returned server's handler on the HTTP router.
func NewHostServer(logger *slog.Logger, bridge *Bridge, events chan<- Event, cfg HubConfig) *HostServer {
	return &HostServer{
		logger: logger,
		hub:    NewHub(logger, cfg),
		bridge: bridge,
		events: events,
	}
}

func (s *HostServer) Hub() *Hub { return s.hub }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The host is an embedded webview on the same device; origin is not meaningful.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades and registers a host. The loaded replay rides along with
// the registration, so it is always the first frame the host sees.
func (s *HostServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	replay, haveReplay := s.loadedReplay(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("host upgrade failed", "error", err)
		return
	}

	onMessage := func(raw string) {
		if s.bridge != nil {
			s.bridge.Receive(raw)
		}
	}
	client := NewClient(s.hub, conn, r.RemoteAddr, onMessage, s.logger)

	if haveReplay {
		client.greeting = replay
	}

	s.hub.register <- client

	// Pumps outlive the request: net/http cancels r.Context() when the handler returns.
	go client.writePump(context.Background())
	go client.readPump(context.Background())
}

// loadedReplay encodes the loaded event for a late-joining host. The daemon
// emits SceneLoaded before it reads any event, so any snapshot reflects it.
func (s *HostServer) loadedReplay(ctx context.Context) ([]byte, bool) {
	if s.events == nil {
		return nil, false
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	snap, err := requestSnapshot(waitCtx, s.events)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("host snapshot request failed", "error", err)
		}
		return nil, false
	}
	if !snap.Loaded {
		return nil, false
	}

	msg, err := EncodeEvent(BridgeEvent{
		Kind:      EventLoaded,
		Message:   loadedMessage,
		Timestamp: snap.LoadedAt.UnixMilli(),
	})
	if err != nil {
		return nil, false
	}
	return msg, true
}

// requestSnapshot round-trips a RequestStateSnapshot through the daemon loop.
func requestSnapshot(ctx context.Context, events chan<- Event) (StateSnapshot, error) {
	reply := make(chan StateSnapshot, 1)

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case events <- RequestStateSnapshot{Reply: reply}:
	}

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case snap := <-reply:
		return snap, nil
	}
}
