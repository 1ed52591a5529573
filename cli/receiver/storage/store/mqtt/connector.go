package mqtt

/*
Публикация сообщений в MQTT в тему <topic>/<тип сообщения>/<устройство>.

Настройки хранилища:

broker = "tcp://localhost:1883"
client_id = "tracker-receiver"
user = ""
password = ""
topic = "tracker"
qos = 1
format = "json"
*/

import (
	"fmt"
	"strconv"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/storage/payload"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

type Connector struct {
	client mqtt.Client
	config map[string]string
	qos    byte
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg
	if err := payload.CheckFormat(cfg["format"]); err != nil {
		return err
	}
	if c.config["topic"] == "" {
		c.config["topic"] = "tracker"
	}

	if cfg["qos"] != "" {
		qos, err := strconv.Atoi(cfg["qos"])
		if err != nil || qos < 0 || qos > 2 {
			return fmt.Errorf("некорректный уровень QoS: %s", cfg["qos"])
		}
		c.qos = byte(qos)
	}

	clientID := cfg["client_id"]
	if clientID == "" {
		clientID = "tracker-receiver"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg["broker"]).
		SetClientID(clientID).
		SetUsername(cfg["user"]).
		SetPassword(cfg["password"]).
		SetAutoReconnect(true)

	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("ошибка подключения к MQTT: %v", token.Error())
	}
	return nil
}

func (c *Connector) Save(msg payload.Message) error {
	innerPkg, err := payload.Encode(c.config["format"], msg)
	if err != nil {
		return err
	}

	topic := fmt.Sprintf("%s/%s/%d", c.config["topic"], msg.Kind(), msg.Device())
	token := c.client.Publish(topic, c.qos, false, innerPkg)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("превышено время ожидания публикации в MQTT")
	}
	if err = token.Error(); err != nil {
		return fmt.Errorf("не удалось отправить сообщение в MQTT: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	c.client.Disconnect(250)
	return nil
}
