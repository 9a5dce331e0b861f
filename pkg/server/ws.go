package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/gorilla/websocket"
)

const (
	wsSendBuffer = 16
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsClient is one websocket connection. It only receives messages for
// entryID, or for every entry when entryID is empty.
type wsClient struct {
	conn    *websocket.Conn
	entryID string
	send    chan []byte
}

// hub fans sensor updates out to the connected websocket clients.
type hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]bool)}
}

func (h *hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast queues msg for every client following entryID. Clients whose
// buffer is full miss the message.
func (h *hub) broadcast(ctx context.Context, entryID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.entryID != "" && c.entryID != entryID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			log.Ctx(ctx).WarnContext(ctx, "websocket client buffer full, dropping message", slog.String("remote", c.conn.RemoteAddr().String()))
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects every client.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and returns once the connection is gone.
func (c *wsClient) readPump(ctx context.Context) {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Ctx(ctx).DebugContext(ctx, "websocket read error", slog.Any("error", err))
			}
			return
		}
	}
}

// handleWebsocket streams the sensors of an entry, or of every entry when no
// entryID is given. The current states are sent right after connecting and
// again after every refresh.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entryID := r.URL.Query().Get("entryID")
	if entryID != "" {
		if _, ok := s.entries.Get(entryID); !ok {
			writeJSONError(w, "entry not found", http.StatusNotFound)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		log.Ctx(ctx).WarnContext(ctx, "websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := &wsClient{
		conn:    conn,
		entryID: entryID,
		send:    make(chan []byte, wsSendBuffer),
	}
	for _, c := range s.entries.List() {
		if entryID != "" && c.Entry().ID != entryID {
			continue
		}
		msg, err := json.Marshal(s.sensorsOf(c))
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to encode sensors", slog.Any("error", err))
			continue
		}
		select {
		case client.send <- msg:
		default:
		}
	}
	s.hub.register(client)
	log.Ctx(ctx).DebugContext(ctx, "websocket client connected", slog.Int("clients", s.hub.count()))

	go client.writePump()
	client.readPump(ctx)
	s.hub.unregister(client)
}

// broadcastStates is subscribed to every coordinator and pushes the new
// sensor states of the refreshed entry to websocket clients.
func (s *Server) broadcastStates(ctx context.Context, entry types.Entry, result *types.RefreshResult) {
	c, ok := s.entries.Get(entry.ID)
	if !ok {
		return
	}
	msg, err := json.Marshal(s.sensorsOf(c))
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to encode sensors", slog.Any("error", err))
		return
	}
	s.hub.broadcast(ctx, entry.ID, msg)
}
