package redis

/*
Публикация сообщений в Redis. Последняя позиция устройства дополнительно
сохраняется в хеш.

Настройки хранилища:

server = "localhost:6379"
password = ""
db = 0
channel = "tracker"
positions_key = "tracker:positions"
format = "json"
*/

import (
	"context"
	"fmt"
	"strconv"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/storage/payload"
	"github.com/go-redis/redis/v8"
)

type Connector struct {
	client       *redis.Client
	config       map[string]string
	channel      string
	positionsKey string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg
	if err := payload.CheckFormat(cfg["format"]); err != nil {
		return err
	}

	db := 0
	if cfg["db"] != "" {
		var err error
		if db, err = strconv.Atoi(cfg["db"]); err != nil {
			return fmt.Errorf("не удалось получить номер базы Redis: %v", err)
		}
	}

	c.channel = cfg["channel"]
	if c.channel == "" {
		c.channel = "tracker"
	}
	c.positionsKey = cfg["positions_key"]
	if c.positionsKey == "" {
		c.positionsKey = c.channel + ":positions"
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:     cfg["server"],
		Password: cfg["password"],
		DB:       db,
	})

	if err := c.client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("Redis недоступен: %v", err)
	}
	return nil
}

func (c *Connector) Save(msg payload.Message) error {
	innerPkg, err := payload.Encode(c.config["format"], msg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pipe := c.client.TxPipeline()
	pipe.Publish(ctx, c.channel+":"+msg.Kind(), innerPkg)
	if msg.Kind() == model.KindPosition {
		pipe.HSet(ctx, c.positionsKey, strconv.FormatInt(msg.Device(), 10), innerPkg)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("не удалось отправить сообщение в Redis: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.client.Close()
}
