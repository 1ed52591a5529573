package notify

/*
Почтовые уведомления о событиях. Позиции не отправляются.

Настройки хранилища:

smtp_host = "smtp.example.com"
smtp_port = "587"
user = "robot@example.com"
password = "secret"
sender = "robot@example.com"
receivers = "ops@example.com,duty@example.com"
types = "geofenceEnter,geofenceExit,deviceOverspeed,deviceInactive"
*/

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/storage/payload"
	"github.com/nikoksr/notify"
	"github.com/nikoksr/notify/service/mail"
)

const sendTimeout = 30 * time.Second

type Connector struct {
	notifier *notify.Notify
	config   map[string]string
	types    map[string]bool
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg

	receivers := splitList(cfg["receivers"])
	if len(receivers) == 0 {
		return fmt.Errorf("не заданы получатели уведомлений")
	}
	if cfg["smtp_host"] == "" {
		return fmt.Errorf("не задан SMTP-сервер")
	}
	sender := cfg["sender"]
	if sender == "" {
		sender = cfg["user"]
	}

	c.types = map[string]bool{}
	for _, t := range splitList(cfg["types"]) {
		c.types[t] = true
	}

	mailSvc := mail.New(sender, fmt.Sprintf("%s:%s", cfg["smtp_host"], cfg["smtp_port"]))
	if cfg["user"] != "" {
		mailSvc.AuthenticateSMTP("", cfg["user"], cfg["password"], cfg["smtp_host"])
	}
	mailSvc.AddReceivers(receivers...)

	c.notifier = notify.New()
	c.notifier.UseServices(mailSvc)
	return nil
}

func (c *Connector) Save(msg payload.Message) error {
	if msg == nil {
		return fmt.Errorf("некорректная ссылка на пакет")
	}
	data, ok := msg.(*model.EventData)
	if !ok || data.Event == nil {
		return nil
	}
	if len(c.types) > 0 && !c.types[data.Event.Type] {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	subject, body := Format(data)
	if err := c.notifier.Send(ctx, subject, body); err != nil {
		return fmt.Errorf("не удалось отправить уведомление: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	return nil
}

// Format текст письма о событии
func Format(data *model.EventData) (string, string) {
	e := data.Event
	subject := fmt.Sprintf("Событие %s устройства %d", e.Type, e.DeviceID)

	var b strings.Builder
	fmt.Fprintf(&b, "Устройство: %d\n", e.DeviceID)
	fmt.Fprintf(&b, "Событие: %s\n", e.Type)
	fmt.Fprintf(&b, "Время: %s\n", e.EventTime.UTC().Format("2006-01-02 15:04:05 UTC"))
	if e.GeofenceID != 0 {
		fmt.Fprintf(&b, "Геозона: %d\n", e.GeofenceID)
	}
	if p := data.Position; p != nil {
		fmt.Fprintf(&b, "Координаты: %.6f, %.6f\n", p.Latitude, p.Longitude)
		fmt.Fprintf(&b, "Скорость: %.1f\n", p.Speed)
	}
	return subject, b.String()
}

func splitList(value string) []string {
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
