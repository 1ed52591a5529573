package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/protocol"
	"github.com/daniil11ru/tracker/cli/receiver/session"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// максимальный размер тела запроса от устройства
const maxBodySize = 1 << 20

// Processor обработчик декодированных позиций
type Processor interface {
	Run(ctx context.Context, position *model.Position) error
}

type Handler struct {
	Decoders  *protocol.Registry
	Sessions  *session.Registry
	Processor Processor
	Cache     *cache.Cache
}

func NewHandler(decoders *protocol.Registry, sessions *session.Registry, processor Processor, c *cache.Cache) *Handler {
	return &Handler{Decoders: decoders, Sessions: sessions, Processor: processor, Cache: c}
}

// Receive принимает сообщение HTTP-протокола. Каждый запрос считается
// отдельным соединением, сессия закрывается после ответа.
func (h *Handler) Receive(c *gin.Context) {
	decoder, err := h.Decoders.Get(c.Param("protocol"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "тело запроса слишком большое"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	replied := false
	conn := session.NewConn(c.ClientIP(), decoder.Protocol(), func(code int, text string) {
		replied = true
		c.String(code, text)
	})
	defer h.Sessions.Close(conn)

	positions, err := decoder.Decode(conn, protocol.Frame{Data: body, RawQuery: c.Request.URL.RawQuery})
	if err != nil {
		log.WithFields(log.Fields{
			"protocol": decoder.Protocol(),
			"addr":     conn.RemoteAddr,
		}).Warnf("Ошибка декодирования сообщения: %v", err)
		if !replied {
			c.Status(http.StatusBadRequest)
		}
		return
	}

	for _, p := range positions {
		// причина отказа уже записана в лог обработчиком
		_ = h.Processor.Run(c.Request.Context(), p)
	}

	if !replied {
		c.Status(http.StatusOK)
	}
}

func (h *Handler) GetPosition(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный идентификатор устройства"})
		return
	}

	position := h.Cache.GetPosition(id)
	if position == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "позиция не найдена"})
		return
	}
	c.JSON(http.StatusOK, position)
}

type deviceResponse struct {
	Device   *model.Device   `json:"device"`
	Position *model.Position `json:"position,omitempty"`
}

func (h *Handler) GetDevices(c *gin.Context) {
	states := h.Cache.Devices()
	result := make([]deviceResponse, 0, len(states))
	for _, s := range states {
		result = append(result, deviceResponse{Device: s.Device, Position: s.LastPosition})
	}
	c.JSON(http.StatusOK, result)
}
