package wli

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// GpsFieldNumber номер бинарного поля с GPS-блоком
const GpsFieldNumber = 52

const gpsBlockLen = 28

// GpsBlock содержимое бинарного поля 52. Значения хранятся в единицах
// протокола: координаты в 1/600000 градуса, курс в 0.1 градуса,
// пробег в футах, высота в 0.1 метра.
type GpsBlock struct {
	Reason    uint8  `json:"reason"`
	Century   uint8  `json:"century"`
	Year      uint8  `json:"year"`
	Month     uint8  `json:"month"`
	Day       uint8  `json:"day"`
	Hour      uint8  `json:"hour"`
	Minute    uint8  `json:"minute"`
	Second    uint8  `json:"second"`
	Latitude  int32  `json:"lat"`
	Longitude int32  `json:"lon"`
	Speed     uint16 `json:"speed"`
	Course    uint16 `json:"course"`
	Odometer  uint32 `json:"odometer"`
	Altitude  int32  `json:"alt"`
}

func (g *GpsBlock) Decode(content []byte) error {
	if len(content) < gpsBlockLen {
		return fmt.Errorf("неверная длина GPS-блока: %d", len(content))
	}

	buf := bytes.NewReader(content)
	header := make([]byte, 8)
	if _, err := buf.Read(header); err != nil {
		return fmt.Errorf("не удалось получить заголовок GPS-блока: %v", err)
	}
	g.Reason = header[0]
	g.Century = header[1]
	g.Year = header[2]
	g.Month = header[3]
	g.Day = header[4]
	g.Hour = header[5]
	g.Minute = header[6]
	g.Second = header[7]

	for _, v := range []interface{}{&g.Latitude, &g.Longitude, &g.Speed, &g.Course, &g.Odometer, &g.Altitude} {
		if err := binary.Read(buf, binary.BigEndian, v); err != nil {
			return fmt.Errorf("не удалось получить данные GPS-блока: %v", err)
		}
	}
	return nil
}

func (g *GpsBlock) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write([]byte{g.Reason, g.Century, g.Year, g.Month, g.Day, g.Hour, g.Minute, g.Second})

	for _, v := range []interface{}{g.Latitude, g.Longitude, g.Speed, g.Course, g.Odometer, g.Altitude} {
		if err := binary.Write(buf, binary.BigEndian, v); err != nil {
			return nil, fmt.Errorf("не удалось записать данные GPS-блока: %v", err)
		}
	}
	return buf.Bytes(), nil
}

func (g *GpsBlock) Length() uint16 {
	return gpsBlockLen
}

// Time время фиксации в UTC. Байт века не учитывается, год всегда 20yy.
func (g *GpsBlock) Time() time.Time {
	year := 2000 + int(g.Year)
	return time.Date(year,time.Month(g.Month), int(g.Day), int(g.Hour), int(g.Minute), int(g.Second), 0, time.UTC)
}

// SetTime заполняет дату и время из t
func (g *GpsBlock) SetTime(t time.Time) {
	t = t.UTC()
	g.Century = uint8(t.Year() / 100)
	g.Year = uint8(t.Year() % 100)
	g.Month = uint8(t.Month())
	g.Day = uint8(t.Day())
	g.Hour = uint8(t.Hour())
	g.Minute = uint8(t.Minute())
	g.Second = uint8(t.Second())
}
