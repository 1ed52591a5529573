package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/storage"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	clientBuffer = 64
	writeTimeout = 10 * time.Second
)

// liveMessage сообщение потока /api/live
type liveMessage struct {
	Kind   string          `json:"kind"`
	Device int64           `json:"device"`
	Data   json.RawMessage `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub рассылает позиции и события подключенным websocket-клиентам.
// Реализует storage.Saver. Медленный клиент отключается.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*client]struct{}{},
	}
}

func (h *Hub) Save(m storage.Message) error {
	data, err := m.ToBytes()
	if err != nil {
		return err
	}
	msg, err := json.Marshal(liveMessage{Kind: m.Kind(), Device: m.Device(), Data: data})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.removeLocked(c)
		}
	}
	return nil
}

func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithField("err", err).Warn("Не удалось установить websocket-соединение")
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go h.write(cl)

	// входящие сообщения не ожидаются, чтение нужно для обработки закрытия
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithField("err", err).Debug("Websocket-соединение разорвано")
			}
			break
		}
	}

	h.mu.Lock()
	h.removeLocked(cl)
	h.mu.Unlock()
}

func (h *Hub) write(cl *client) {
	defer cl.conn.Close()
	for msg := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = cl.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout),
	)
}

func (h *Hub) removeLocked(cl *client) {
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// Count число подключенных клиентов
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for cl := range h.clients {
		h.removeLocked(cl)
	}
	return nil
}
