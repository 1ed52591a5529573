package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const apiKeyHeader = "X-Api-Key"

type Controller struct {
	router *gin.Engine
	server *http.Server
}

// NewController маршруты:
//
//	POST|GET /ingest/:protocol        сообщения HTTP-протоколов
//	GET /api/devices                  устройства и последние позиции
//	GET /api/devices/:id/position     последняя позиция устройства
//	GET /api/live                     поток позиций и событий (websocket)
//
// Если apiKeys не пуст, группа /api требует заголовок X-Api-Key.
func NewController(handler *Handler, hub *Hub, apiKeys []string) *Controller {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	ingest := router.Group("/ingest")
	{
		ingest.POST(":protocol", handler.Receive)
		ingest.GET(":protocol", handler.Receive)
	}

	api := router.Group("/api", apiKeyAuth(apiKeys))
	{
		api.GET("/devices", handler.GetDevices)
		api.GET("/devices/:id/position", handler.GetPosition)
		if hub != nil {
			api.GET("/live", hub.Serve)
		}
	}

	return &Controller{router: router}
}

func (c *Controller) Handler() http.Handler {
	return c.router
}

func (c *Controller) Run(addr string) error {
	c.server = &http.Server{
		Addr:              addr,
		Handler:           c.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *Controller) Shutdown(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

func apiKeyAuth(apiKeys []string) gin.HandlerFunc {
	var keys []string
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, k)
		}
	}

	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}
		key := c.GetHeader(apiKeyHeader)
		if key == "" {
			key = c.Query("api_key")
		}
		for _, k := range keys {
			if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "неверный ключ API"})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"addr":    c.ClientIP(),
			"latency": time.Since(start),
		}).Debug("HTTP-запрос")
	}
}
