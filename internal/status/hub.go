package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	broadcastBuffer = 64
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Message is what subscribers receive for every status change.
type Message struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// Hub broadcasts status text to websocket clients connected at /ws. A new
// client immediately receives the current status.
type Hub struct {
	logger  *slog.Logger
	nowFunc func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	broadcast chan Message

	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
	current Message

	server   *http.Server
	listener net.Listener
}

// NewHub creates a Hub and starts its broadcast loop. Call Close to stop it.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		logger:    logger,
		nowFunc:   time.Now,
		ctx:       ctx,
		cancel:    cancel,
		broadcast: make(chan Message, broadcastBuffer),
		clients:   make(map[*websocket.Conn]struct{}),
	}

	h.wg.Add(1)
	go h.broadcastLoop()

	return h
}

// Handler serves /ws and /health.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/health", h.handleHealth)

	return mux
}

// ListenAndServe serves the hub on addr in the background.
func (h *Hub) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status: listening on %s: %w", addr, err)
	}

	h.listener = ln
	h.server = &http.Server{Handler: h.Handler(), ReadHeaderTimeout: 10 * time.Second}

	h.wg.Add(1)

	go func() {
		defer h.wg.Done()

		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Warn("status hub server error", slog.String("error", err.Error()))
		}
	}()

	h.logger.Info("status hub listening", slog.String("addr", ln.Addr().String()))

	return nil
}

// Addr returns the listening address, or "" before ListenAndServe.
func (h *Hub) Addr() string {
	if h.listener == nil {
		return ""
	}

	return h.listener.Addr().String()
}

// SetStatus implements queue.StatusSink. It never blocks; updates are
// dropped when subscribers fall too far behind.
func (h *Hub) SetStatus(text string) {
	msg := Message{Status: text, Time: h.nowFunc()}

	h.mu.Lock()
	h.current = msg
	h.mu.Unlock()

	select {
	case h.broadcast <- msg:
	case <-h.ctx.Done():
	default:
		h.logger.Debug("status hub: broadcast buffer full, dropping update")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Close disconnects every client and stops the server.
func (h *Hub) Close() error {
	h.cancel()

	h.mu.Lock()
	for conn := range h.clients {
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	var err error

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shutErr := h.server.Shutdown(ctx); shutErr != nil {
			err = fmt.Errorf("status: shutting down hub: %w", shutErr)
		}
	}

	h.wg.Wait()

	return err
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case msg := <-h.broadcast:
			h.send(msg)
		}
	}
}

func (h *Hub) send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("status hub: encoding message", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
	}
	h.mu.RUnlock()

	for _, conn := range clients {
		ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()

		if err != nil {
			h.logger.Debug("status hub: dropping client", slog.String("error", err.Error()))
			h.removeClient(conn)
		}
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debug("status hub: upgrade failed", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	current := h.current
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("status hub: client connected", slog.Int("clients", count))

	if data, err := json.Marshal(current); err == nil {
		ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
		_ = conn.Write(ctx, websocket.MessageText, data)
		cancel()
	}

	// Clients never send anything; reading detects disconnects.
	defer h.removeClient(conn)

	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Debug("status hub: client disconnected", slog.Int("clients", count))
	}
}

func (h *Hub) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"clients": h.ClientCount()})
}
