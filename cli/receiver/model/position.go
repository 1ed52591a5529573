package model

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	KindPosition = "position"
	KindEvent    = "event"
)

var (
	ErrNoDevice  = errors.New("позиция не привязана к устройству")
	ErrNoFixTime = errors.New("у достоверной позиции отсутствует время фиксации")
)

// Position нормализованная телеметрическая запись. Нулевое значение
// времени означает, что время не задано.
type Position struct {
	ID          int64      `json:"id" msgpack:"id"`
	DeviceID    int64      `json:"deviceId" msgpack:"deviceId"`
	Protocol    string     `json:"protocol" msgpack:"protocol"`
	ServerTime  time.Time  `json:"serverTime" msgpack:"serverTime"`
	DeviceTime  time.Time  `json:"deviceTime" msgpack:"deviceTime"`
	FixTime     time.Time  `json:"fixTime" msgpack:"fixTime"`
	Valid       bool       `json:"valid" msgpack:"valid"`
	Outdated    bool       `json:"outdated,omitempty" msgpack:"outdated"`
	Latitude    float64    `json:"latitude" msgpack:"latitude"`
	Longitude   float64    `json:"longitude" msgpack:"longitude"`
	Altitude    float64    `json:"altitude" msgpack:"altitude"`
	Speed       float64    `json:"speed" msgpack:"speed"`
	Course      float64    `json:"course" msgpack:"course"`
	Accuracy    float64    `json:"accuracy" msgpack:"accuracy"`
	Attributes  Attributes `json:"attributes" msgpack:"attributes"`
	Network     *Network   `json:"network,omitempty" msgpack:"network"`
	GeofenceIDs []int64    `json:"geofenceIds,omitempty" msgpack:"geofenceIds"`
}

func NewPosition(protocol string) *Position {
	return &Position{
		Protocol:   protocol,
		Attributes: Attributes{},
	}
}

// SetTime задает одновременно время устройства и время фиксации
func (p *Position) SetTime(t time.Time) {
	p.DeviceTime = t
	p.FixTime = t
}

func (p *Position) Set(key string, value interface{}) {
	if p.Attributes == nil {
		p.Attributes = Attributes{}
	}
	p.Attributes.Set(key, value)
}

// Validate проверяет инварианты принятой позиции
func (p *Position) Validate() error {
	if p.DeviceID == 0 {
		return ErrNoDevice
	}
	if p.Valid && p.FixTime.IsZero() {
		return ErrNoFixTime
	}
	return nil
}

func (p *Position) Copy() *Position {
	if p == nil {
		return nil
	}
	c := *p
	c.Attributes = p.Attributes.Copy()
	c.Network = p.Network.Copy()
	c.GeofenceIDs = append([]int64(nil), p.GeofenceIDs...)
	return &c
}

func (p *Position) Kind() string {
	return KindPosition
}

func (p *Position) Device() int64 {
	return p.DeviceID
}

func (p *Position) ToBytes() ([]byte, error) {
	return json.Marshal(p)
}
