package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"splitguard/internal/decision"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 64

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 8

	wsWriteTimeout = time.Second
)

// Broadcast event names.
const (
	EventDecision = "decision"
	EventStatus   = "status"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		logrus.WithField("origin", origin).Warn("⚠️ WebSocket connection rejected")
		RecordConnectionRejected("origin")
		return false
	},
}

type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// wsMessage is the envelope every broadcast uses.
type wsMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// WebSocketHub fans decisions and status snapshots out to overlay clients.
// It implements decision.Sink.
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	wsLimiter *WebSocketRateLimiter
	log       *logrus.Entry
}

// NewWebSocketHub creates a new hub. Run must be started before clients
// connect.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
		log:        logrus.WithField("component", "ws"),
	}
}

// Run serves registrations and broadcasts until Stop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			h.log.WithFields(logrus.Fields{"ip": client.ip, "total": count}).Info("📱 Client connected")
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.drop(conn)

		case message := <-h.broadcast:
			h.mu.RLock()
			var failed []*websocket.Conn
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range failed {
				h.drop(conn)
			}
			IncrementWSMessages()
		}
	}
}

func (h *WebSocketHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	client, ok := h.clients[conn]
	if ok {
		h.wsLimiter.Release(client.ip)
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.log.WithField("remaining", count).Info("📱 Client disconnected")
		UpdateWSConnections(count)
	}
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, client := range h.clients {
		h.wsLimiter.Release(client.ip)
		conn.Close()
	}
	clear(h.clients)
	UpdateWSConnections(0)
}

// Stop closes every client and ends Run.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast queues a message for all clients. A full queue drops it.
func (h *WebSocketHub) Broadcast(event string, data any) {
	jsonBytes, err := json.Marshal(wsMessage{Event: event, Data: data})
	if err != nil {
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Channel full, skip (backpressure)
	}
}

// Record forwards a controller decision to connected overlays.
func (h *WebSocketHub) Record(rec decision.Record) {
	if h.ClientCount() == 0 {
		return
	}
	h.Broadcast(EventDecision, rec)
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartStatusLoop pushes a status snapshot every interval while clients are
// connected. It ends with Stop.
func (h *WebSocketHub) StartStatusLoop(engine EngineInterface, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		var lastSeq uint64
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
			}
			if h.ClientCount() == 0 {
				continue
			}
			st := engine.Status()
			if st == nil || st.Sequence == lastSeq {
				continue
			}
			lastSeq = st.Sequence
			h.Broadcast(EventStatus, st)
		}
	}()
}

// HandleWebSocket upgrades the request and registers the client. Clients only
// receive; anything they send is read and discarded to detect closes.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		h.log.WithField("total", total).Warn("⚠️ WebSocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		h.log.WithField("ip", ip).Warn("⚠️ WebSocket connection rejected: per-IP limit reached")
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("WebSocket upgrade failed")
		h.wsLimiter.Release(ip)
		return
	}

	select {
	case h.register <- &wsClient{conn: conn, ip: ip}:
	case <-h.done:
		h.wsLimiter.Release(ip)
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

var _ decision.Sink = (*WebSocketHub)(nil)
