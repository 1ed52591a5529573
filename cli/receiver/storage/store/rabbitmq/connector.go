package rabbitmq

/*
Публикация сообщений в обменник RabbitMQ, ключ маршрутизации равен типу
сообщения (position, event).

Настройки хранилища:

host = "localhost"
port = "5672"
user = "guest"
password = "guest"
exchange = "tracker"
exchange_type = "topic"
format = "json"
*/

import (
	"fmt"
	"sync"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/storage/payload"
	"github.com/streadway/amqp"
)

type Connector struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	config     map[string]string
	mu         sync.Mutex
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
	if c.config["exchange"] == "" {
		return fmt.Errorf("не задан обменник RabbitMQ")
	}
	exchangeType := c.config["exchange_type"]
	if exchangeType == "" {
		exchangeType = amqp.ExchangeTopic
	}

	conStr := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg["user"], cfg["password"], cfg["host"], cfg["port"])
	if c.connection, err = amqp.DialConfig(conStr, amqp.Config{Heartbeat: 10 * time.Second, Locale: "ru_RU"}); err != nil {
		return fmt.Errorf("ошибка подключения к RabbitMQ: %v", err)
	}

	if c.channel, err = c.connection.Channel(); err != nil {
		c.connection.Close()
		return fmt.Errorf("ошибка открытия канала RabbitMQ: %v", err)
	}

	if err = c.channel.ExchangeDeclare(c.config["exchange"], exchangeType, true, false, false, false, nil); err != nil {
		c.connection.Close()
		return fmt.Errorf("ошибка объявления обменника RabbitMQ: %v", err)
	}
	return nil
}

func (c *Connector) Save(msg payload.Message) error {
	innerPkg, err := payload.Encode(c.config["format"], msg)
	if err != nil {
		return err
	}

	contentType := "application/json"
	if c.config["format"] == payload.FormatMsgpack {
		contentType = "application/msgpack"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		c.config["exchange"],
		msg.Kind(),
		false,
		false,
		amqp.Publishing{
			ContentType:  contentType,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         innerPkg,
		})
	if err != nil {
		return fmt.Errorf("не удалось отправить сообщение в RabbitMQ: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if err := c.channel.Close(); err != nil {
		return err
	}
	return c.connection.Close()
}
