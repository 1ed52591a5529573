package kafka

/*
Запись сообщений в Kafka. Ключ сообщения равен идентификатору устройства,
тип сообщения передается в заголовке kind.

Настройки хранилища:

brokers = "localhost:9092,localhost:9093"
topic = "tracker"
format = "json"
*/

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/storage/payload"
	"github.com/segmentio/kafka-go"
)

type Connector struct {
	writer *kafka.Writer
	config map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg
	if err := payload.CheckFormat(cfg["format"]); err != nil {
		return err
	}

	var brokers []string
	for _, b := range strings.Split(cfg["brokers"], ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return fmt.Errorf("не заданы брокеры Kafka")
	}
	if cfg["topic"] == "" {
		return fmt.Errorf("не задан топик Kafka")
	}

	c.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg["topic"],
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return nil
}

func (c *Connector) Save(msg payload.Message) error {
	innerPkg, err := payload.Encode(c.config["format"], msg)
	if err != nil {
		return err
	}

	err = c.writer.WriteMessages(context.Background(), kafka.Message{
		Key:     []byte(strconv.FormatInt(msg.Device(), 10)),
		Value:   innerPkg,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(msg.Kind())}},
	})
	if err != nil {
		return fmt.Errorf("не удалось отправить сообщение в Kafka: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.writer.Close()
}
