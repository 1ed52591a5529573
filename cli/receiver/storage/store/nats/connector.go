package nats

/*
Публикация сообщений в NATS в тему <subject>.<тип сообщения>.

Настройки хранилища:

servers = "nats://localhost:4222"
subject = "tracker"
format = "json"
*/

import (
	"fmt"

	"github.com/daniil11ru/tracker/cli/receiver/storage/payload"
	"github.com/nats-io/nats.go"
)

type Connector struct {
	connection *nats.Conn
	config     map[string]string
	subject    string
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg
	if err = payload.CheckFormat(cfg["format"]); err != nil {
		return err
	}

	c.subject = cfg["subject"]
	if c.subject == "" {
		c.subject = "tracker"
	}

	servers := cfg["servers"]
	if servers == "" {
		servers = nats.DefaultURL
	}
	if c.connection, err = nats.Connect(servers, nats.Name("tracker-receiver")); err != nil {
		return fmt.Errorf("ошибка подключения к NATS: %v", err)
	}
	return nil
}

func (c *Connector) Save(msg payload.Message) error {
	innerPkg, err := payload.Encode(c.config["format"], msg)
	if err != nil {
		return err
	}

	if err = c.connection.Publish(c.subject+"."+msg.Kind(), innerPkg); err != nil {
		return fmt.Errorf("не удалось отправить сообщение в NATS: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if err := c.connection.Drain(); err != nil {
		c.connection.Close()
		return err
	}
	return nil
}
