package protocol

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/session"
)

const LeafSpyProtocol = "leafspy"

const leafSpyResponse = `"status":"0"`

// LeafSpy телеметрия приложения LeafSpy в параметрах HTTP-запроса
type LeafSpy struct {
	Base
}

func NewLeafSpy(sessions *session.Registry, c *cache.Cache) *LeafSpy {
	return &LeafSpy{Base: Base{Name: LeafSpyProtocol, Sessions: sessions, Cache: c}}
}

func (d *LeafSpy) Decode(conn *session.Conn, frame Frame) ([]*model.Position, error) {
	raw := frame.RawQuery
	if raw == "" {
		raw = string(frame.Data)
	}
	params, err := url.ParseQuery(raw)
	if err != nil {
		conn.Respond(http.StatusBadRequest, "")
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	ds, err := d.deviceSession(conn, params.Get("pass"))
	if err != nil {
		conn.Respond(http.StatusBadRequest, "")
		return nil, err
	}

	position := model.NewPosition(d.Protocol())
	position.DeviceID = ds.DeviceID
	position.Valid = true

	// порядок ключей фиксирован, чтобы результат не зависел от порядка параметров
	keys := make([]string, 0, len(params))
	for key := range params {
		if key != "pass" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		// из повторов ключа берётся одно значение, наибольшее при сортировке
		values := append([]string(nil), params[key]...)
		sort.Strings(values)
		value := values[len(values)-1]
		if err := applyLeafSpyParam(position, key, value); err != nil {
			conn.Respond(http.StatusBadRequest, "")
			return nil, fmt.Errorf("%w: параметр %s: %v", ErrMalformedFrame, key, err)
		}
	}

	if position.FixTime.IsZero() {
		position.SetTime(now().UTC())
	}

	if position.Latitude == 0 && position.Longitude == 0 {
		d.lastLocation(position, position.DeviceTime)
	}

	conn.Respond(http.StatusOK, leafSpyResponse)
	return []*model.Position{position}, nil
}

func applyLeafSpyParam(position *model.Position, key, value string) error {
	var err error
	switch key {
	case "Lat":
		position.Latitude, err = strconv.ParseFloat(value, 64)
	case "Long":
		position.Longitude, err = strconv.ParseFloat(value, 64)
	case "Elv":
		position.Altitude, err = strconv.ParseFloat(value, 64)
	case "RPM":
		var rpm int
		if rpm, err = strconv.Atoi(value); err == nil {
			position.Set(model.KeyRPM, rpm)
			position.Speed = float64(rpm) / 63 * knotsPerKph
		}
	case "SOC":
		var level float64
		if level, err = strconv.ParseFloat(value, 64); err == nil {
			position.Set(model.KeyBatteryLevel, level)
		}
	case "user":
		position.Set(model.KeyDriverUniqueID, value)
	case "ChrgMode":
		var mode int
		if mode, err = strconv.Atoi(value); err == nil {
			position.Set(model.KeyCharge, mode != 0)
		}
	case "Odo":
		var odo int64
		if odo, err = strconv.ParseInt(value, 10, 64); err == nil {
			position.Set(model.KeyObdOdometer, odo*1000)
		}
	default:
		position.Set(key, coerce(value))
	}
	return err
}

// coerce приводит значение к числу, затем к логическому типу, иначе
// оставляет строку
func coerce(value string) interface{} {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}
