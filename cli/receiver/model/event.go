package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventGeofenceEnter   = "geofenceEnter"
	EventGeofenceExit    = "geofenceExit"
	EventDeviceOverspeed = "deviceOverspeed"
	EventDeviceInactive  = "deviceInactive"
)

type Event struct {
	ID         string     `json:"id" msgpack:"id"`
	Type       string     `json:"type" msgpack:"type"`
	DeviceID   int64      `json:"deviceId" msgpack:"deviceId"`
	PositionID int64      `json:"positionId,omitempty" msgpack:"positionId"`
	GeofenceID int64      `json:"geofenceId,omitempty" msgpack:"geofenceId"`
	EventTime  time.Time  `json:"eventTime" msgpack:"eventTime"`
	Attributes Attributes `json:"attributes,omitempty" msgpack:"attributes"`
}

// NewEvent создает событие, привязанное к позиции
func NewEvent(eventType string, position *Position) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		DeviceID:   position.DeviceID,
		PositionID: position.ID,
		EventTime:  position.FixTime,
		Attributes: Attributes{},
	}
}

// NewDeviceEvent создает событие устройства без позиции
func NewDeviceEvent(eventType string, deviceID int64, at time.Time) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		DeviceID:   deviceID,
		EventTime:  at,
		Attributes: Attributes{},
	}
}

func (e *Event) Set(key string, value interface{}) {
	if e.Attributes == nil {
		e.Attributes = Attributes{}
	}
	e.Attributes.Set(key, value)
}

// EventData пара (событие, позиция) для внешних получателей.
// Position может быть nil.
type EventData struct {
	Event    *Event    `json:"event" msgpack:"event"`
	Position *Position `json:"position,omitempty" msgpack:"position"`
}

func (d *EventData) Kind() string {
	return KindEvent
}

func (d *EventData) Device() int64 {
	return d.Event.DeviceID
}

func (d *EventData) ToBytes() ([]byte, error) {
	return json.Marshal(d)
}

// OverspeedState память детектора превышения скорости между позициями.
// Нулевое Since означает, что момент начала не задан.
type OverspeedState struct {
	Active     bool
	Since      time.Time
	GeofenceID int64
}
