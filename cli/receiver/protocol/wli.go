package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/session"
	"github.com/daniil11ru/tracker/libs/wli"
	log "github.com/sirupsen/logrus"
)

const WliProtocol = "wli"

const (
	fieldPower      = 246
	fieldDeviceTime = 255

	metersPerFoot  = 0.3048
	knotsPerKph    = 0.539957
	coordinateUnit = 600000.0
)

type Wli struct {
	Base
}

func NewWli(sessions *session.Registry, c *cache.Cache) *Wli {
	return &Wli{Base: Base{Name: WliProtocol, Sessions: sessions, Cache: c}}
}

// networkOffset номер первого поля сотовой сети для типа сообщения
func networkOffset(messageType uint8) int {
	switch messageType {
	case wli.TypeLastKnown:
		return 10
	case wli.TypeReport:
		return 80
	case wli.TypeCell:
		return 182
	default:
		return 35
	}
}

func (d *Wli) Decode(conn *session.Conn, frame Frame) ([]*model.Position, error) {
	pkg := wli.Packet{}
	if err := pkg.Decode(frame.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch pkg.Class {
	case wli.ClassTelemetry:
		position, err := d.decodeTelemetry(conn, &pkg)
		if err != nil || position == nil {
			return nil, err
		}
		return []*model.Position{position}, nil
	case wli.ClassRegistration:
		if _, err := d.deviceSession(conn, pkg.Identifier); err != nil {
			return nil, err
		}
		log.WithField("id", pkg.Identifier).Debug("Регистрация терминала WLI")
		return nil, nil
	default:
		log.Debugf("Пропущен кадр WLI класса %d", pkg.Class)
		return nil, nil
	}
}

func (d *Wli) decodeTelemetry(conn *session.Conn, pkg *wli.Packet) (*model.Position, error) {
	ds, err := d.deviceSession(conn)
	if err != nil {
		return nil, err
	}

	position := model.NewPosition(d.Protocol())
	position.DeviceID = ds.DeviceID
	position.Set(model.KeyIndex, pkg.Index)

	var (
		tower   model.CellTower
		hasCell bool
	)
	offset := networkOffset(pkg.Type)

	for _, f := range pkg.Fields {
		if f.Binary {
			if f.Number != wli.GpsFieldNumber {
				continue
			}
			gps := wli.GpsBlock{}
			if err := gps.Decode(f.Data); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
			}
			position.Valid = true
			position.FixTime = gps.Time()
			position.Latitude = float64(gps.Latitude) / coordinateUnit
			position.Longitude = float64(gps.Longitude) / coordinateUnit
			position.Speed = float64(gps.Speed)
			position.Course = float64(gps.Course) * 0.1
			position.Set(model.KeyOdometer, float64(gps.Odometer)*metersPerFoot)
			position.Altitude = float64(gps.Altitude) * 0.1
			continue
		}

		if rel := int(f.Number) - offset; rel >= 0 && rel < 5 {
			if err := setCellField(&tower, rel, f.Text); err != nil {
				return nil, fmt.Errorf("%w: поле %d: %v", ErrMalformedFrame, f.Number, err)
			}
			hasCell = true
			continue
		}

		switch f.Number {
		case fieldPower:
			values := strings.Split(f.Text, ",")
			if len(values) < 4 {
				return nil, fmt.Errorf("%w: поле %d содержит %d значений", ErrMalformedFrame, f.Number, len(values))
			}
			power, err := strconv.Atoi(values[2])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
			}
			battery, err := strconv.Atoi(values[3])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
			}
			position.Set(model.KeyPower, float64(power)*0.01)
			position.Set(model.KeyBattery, float64(battery)*0.01)
		case fieldDeviceTime:
			seconds, err := strconv.ParseInt(f.Text, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
			}
			position.DeviceTime = time.Unix(seconds, 0).UTC()
		}
	}

	if pkg.Type == wli.TypeLastKnown {
		d.lastLocation(position, position.DeviceTime)
	}

	if hasCell {
		position.Network = model.NewCellNetwork(tower)
	}

	if !position.Valid {
		d.lastLocation(position, position.DeviceTime)
	}

	return position, nil
}

func setCellField(tower *model.CellTower, index int, value string) error {
	if index == 3 {
		cellID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		tower.CellID = cellID
		return nil
	}

	v, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	switch index {
	case 0:
		tower.MobileCountryCode = v
	case 1:
		tower.MobileNetworkCode = v
	case 2:
		tower.LocationAreaCode = v
	case 4:
		tower.SignalStrength = v
	}
	return nil
}
