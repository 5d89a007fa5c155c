package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mediguard-server/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Loopback companion service, the popup connects from an extension origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

const statusWriteWait = 5 * time.Second

// StatusHub fans analysis stage events out to the websocket status stream.
// It keeps the latest event per kind so a client connecting mid-analysis
// still renders a complete badge. Slow clients are dropped, never waited on.
type StatusHub struct {
	mu      sync.Mutex
	clients map[*statusClient]struct{}
	latest  map[string]domain.StageEvent
	logger  *logrus.Logger
}

type statusClient struct {
	conn *websocket.Conn
	send chan domain.StageEvent
}

// NewStatusHub creates an empty hub.
func NewStatusHub(logger *logrus.Logger) *StatusHub {
	return &StatusHub{
		clients: make(map[*statusClient]struct{}),
		latest:  make(map[string]domain.StageEvent),
		logger:  logger,
	}
}

// Publish implements domain.StagePublisher. Never blocks.
func (h *StatusHub) Publish(event domain.StageEvent) {
	h.mu.Lock()
	h.latest[event.Kind] = event
	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			// Client is not draining, cut it loose
			delete(h.clients, client)
			close(client.send)
		}
	}
	h.mu.Unlock()
}

// Handle upgrades the request and streams events until the client goes away.
func (h *StatusHub) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Status stream upgrade failed")
		return
	}

	client := &statusClient{
		conn: conn,
		send: make(chan domain.StageEvent, 16),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	snapshot := make([]domain.StageEvent, 0, len(h.latest))
	for _, event := range h.latest {
		snapshot = append(snapshot, event)
	}
	h.mu.Unlock()

	go h.writePump(client, snapshot)
	h.readPump(client)
}

func (h *StatusHub) writePump(client *statusClient, snapshot []domain.StageEvent) {
	defer client.conn.Close()
	for _, event := range snapshot {
		if err := h.writeEvent(client, event); err != nil {
			return
		}
	}
	for event := range client.send {
		if err := h.writeEvent(client, event); err != nil {
			return
		}
	}
}

func (h *StatusHub) writeEvent(client *statusClient, event domain.StageEvent) error {
	client.conn.SetWriteDeadline(time.Now().Add(statusWriteWait))
	return client.conn.WriteJSON(event)
}

// readPump discards inbound frames and unregisters the client on close.
func (h *StatusHub) readPump(client *statusClient) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
		client.conn.Close()
	}()
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
