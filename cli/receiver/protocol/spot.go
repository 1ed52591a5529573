package protocol

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/session"
	log "github.com/sirupsen/logrus"
)

const SpotProtocol = "spot"

var spotTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05",
}

type spotMessage struct {
	EsnName     string `xml:"esnName"`
	MessageType string `xml:"messageType"`
	Timestamp   string `xml:"timestamp"`
	Latitude    string `xml:"latitude"`
	Longitude   string `xml:"longitude"`
}

// Spot XML-выгрузка сообщений спутниковых трекеров SPOT
type Spot struct {
	Base
}

func NewSpot(sessions *session.Registry, c *cache.Cache) *Spot {
	return &Spot{Base: Base{Name: SpotProtocol, Sessions: sessions, Cache: c}}
}

func (d *Spot) Decode(conn *session.Conn, frame Frame) ([]*model.Position, error) {
	messages, err := parseSpotMessages(frame.Data)
	if err != nil {
		conn.Respond(http.StatusBadRequest, "")
		return nil, err
	}

	var positions []*model.Position
	for _, m := range messages {
		esn := strings.TrimSpace(m.EsnName)
		if esn == "" {
			log.Debug("Сообщение SPOT пропущено: нет идентификатора устройства")
			continue
		}
		ds, err := d.deviceSession(conn, esn)
		if err != nil {
			log.WithField("esn", m.EsnName).Debug("Сообщение SPOT пропущено: устройство не опознано")
			continue
		}

		position := model.NewPosition(d.Protocol())
		position.DeviceID = ds.DeviceID

		t, err := parseSpotTime(m.Timestamp)
		if err != nil {
			conn.Respond(http.StatusBadRequest, "")
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		position.SetTime(t)

		if position.Latitude, err = strconv.ParseFloat(strings.TrimSpace(m.Latitude), 64); err != nil {
			conn.Respond(http.StatusBadRequest, "")
			return nil, fmt.Errorf("%w: широта: %v", ErrMalformedFrame, err)
		}
		if position.Longitude, err = strconv.ParseFloat(strings.TrimSpace(m.Longitude), 64); err != nil {
			conn.Respond(http.StatusBadRequest, "")
			return nil, fmt.Errorf("%w: долгота: %v", ErrMalformedFrame, err)
		}
		position.Set(model.KeyEvent, m.MessageType)

		positions = append(positions, position)
	}

	conn.Respond(http.StatusOK, "")
	return positions, nil
}

// parseSpotMessages за один проход выбирает элементы message, вложенные
// непосредственно в messageList. DTD и неизвестные сущности запрещены.
func parseSpotMessages(data []byte) ([]spotMessage, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = true
	decoder.Entity = nil

	var (
		stack    []string
		messages []spotMessage
		root     bool
	)

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}

		switch t := token.(type) {
		case xml.Directive:
			return nil, ErrUnsafeDocument
		case xml.StartElement:
			root = true
			if t.Name.Local == "message" && len(stack) > 0 && stack[len(stack)-1] == "messageList" {
				var m spotMessage
				if err := decoder.DecodeElement(&m, &t); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
				}
				messages = append(messages, m)
				continue
			}
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if !root {
		return nil, fmt.Errorf("%w: пустой документ", ErrMalformedFrame)
	}
	return messages, nil
}

func parseSpotTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range spotTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("некорректное время %q", value)
}
