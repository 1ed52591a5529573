package source

import (
	"errors"

	"github.com/daniil11ru/tracker/cli/receiver/model"
)

var ErrNotFound = errors.New("объект не найден")

// Source чтение объектов из внешнего хранилища
type Source interface {
	GetDevices() ([]model.Device, error)
	GetDevice(id int64) (model.Device, error)
	GetDeviceByUniqueID(uniqueID string) (model.Device, error)
	AddDevice(d model.Device) (int64, error)

	// GetLatestPosition возвращает ErrNotFound, если устройство еще не выходило на связь
	GetLatestPosition(deviceID int64) (model.Position, error)

	GetGeofences() ([]model.Geofence, error)
	GetGeofence(id int64) (model.Geofence, error)
	GetCalendars() ([]model.Calendar, error)
	GetCalendar(id int64) (model.Calendar, error)
}
