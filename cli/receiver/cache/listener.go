package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// Invalidation сообщение канала об изменении объекта в хранилище,
// например {"kind":"device","id":5}
type Invalidation struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

// InvalidationListener подписка на канал Redis с сообщениями об изменениях
type InvalidationListener struct {
	Cache   *Cache
	Client  *redis.Client
	Channel string
}

func NewInvalidationListener(c *Cache, addr, password, channel string) *InvalidationListener {
	return &InvalidationListener{
		Cache: c,
		Client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		Channel: channel,
	}
}

// Run читает канал до отмены контекста. Отмена контекста штатная остановка
// и ошибкой не считается.
func (l *InvalidationListener) Run(ctx context.Context) error {
	pubsub := l.Client.Subscribe(ctx, l.Channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("не удалось подписаться на канал %s: %v", l.Channel, err)
	}
	log.WithField("channel", l.Channel).Info("Подписка на изменения объектов")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := l.Handle(msg.Payload); err != nil {
				log.WithField("err", err).Warn("Не удалось обработать сообщение об изменении объекта")
			}
		}
	}
}

// Handle разбирает одно сообщение и сбрасывает объект в кэше
func (l *InvalidationListener) Handle(payload string) error {
	var msg Invalidation
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return fmt.Errorf("некорректное сообщение %q: %w", payload, err)
	}
	return l.Cache.Invalidate(msg.Kind, msg.ID)
}

func (l *InvalidationListener) Close() error {
	return l.Client.Close()
}
