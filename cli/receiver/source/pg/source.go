package pg

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/source"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type deviceRow struct {
	ID         int64
	UniqueID   string
	Name       string
	Status     string
	Disabled   bool
	Attributes []byte
	PositionID int64
}

type geofenceRow struct {
	ID         int64
	Name       string
	CalendarID int64
	Area       string
	Attributes []byte
}

type calendarRow struct {
	ID       int64
	Name     string
	Timezone string
	Windows  []byte
}

type linkRow struct {
	DeviceID   int64
	GeofenceID int64
}

type Source struct {
	db *gorm.DB
}

func New(dsn string) (*Source, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %v", err)
	}

	return &Source{db: db}, nil
}

const deviceColumns = "id, unique_id, name, status, disabled, attributes, position_id"

func (s *Source) GetDevices() ([]model.Device, error) {
	var rows []deviceRow
	if err := s.db.Table("device").Select(deviceColumns).Order("id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	links, err := s.deviceGeofences()
	if err != nil {
		return nil, err
	}

	devices := make([]model.Device, 0, len(rows))
	for _, r := range rows {
		d, err := r.toModel()
		if err != nil {
			log.Warnf("Пропущено устройство с ID %d: %v", r.ID, err)
			continue
		}
		d.GeofenceIDs = links[d.ID]
		devices = append(devices, d)
	}
	return devices, nil
}

func (s *Source) GetDevice(id int64) (model.Device, error) {
	return s.getDevice("id = ?", id)
}

func (s *Source) GetDeviceByUniqueID(uniqueID string) (model.Device, error) {
	return s.getDevice("unique_id = ?", uniqueID)
}

func (s *Source) getDevice(query string, arg interface{}) (model.Device, error) {
	var rows []deviceRow
	if err := s.db.Table("device").Select(deviceColumns).Where(query, arg).Limit(2).Scan(&rows).Error; err != nil {
		return model.Device{}, err
	}

	switch len(rows) {
	case 0:
		return model.Device{}, fmt.Errorf("устройство %v: %w", arg, source.ErrNotFound)
	case 1:
	default:
		return model.Device{}, fmt.Errorf("найдено несколько устройств по условию %v", arg)
	}

	d, err := rows[0].toModel()
	if err != nil {
		return model.Device{}, err
	}

	var links []linkRow
	if err := s.db.Table("device_geofence").Select("device_id, geofence_id").Where("device_id = ?", d.ID).Scan(&links).Error; err != nil {
		return model.Device{}, err
	}
	for _, l := range links {
		d.GeofenceIDs = append(d.GeofenceIDs, l.GeofenceID)
	}

	return d, nil
}

func (s *Source) AddDevice(d model.Device) (int64, error) {
	if d.UniqueID == "" {
		return 0, fmt.Errorf("идентификатор устройства не может быть пустым")
	}

	attributes, err := json.Marshal(d.Attributes)
	if err != nil {
		return 0, fmt.Errorf("ошибка сериализации атрибутов: %w", err)
	}
	if d.Status == "" {
		d.Status = model.StatusUnknown
	}

	const q = `
		INSERT INTO device (unique_id, name, status, disabled, attributes)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`
	var id int64
	if err := s.db.Raw(q, d.UniqueID, d.Name, d.Status, d.Disabled, attributes).Scan(&id).Error; err != nil {
		return 0, err
	}

	return id, nil
}

func (s *Source) GetLatestPosition(deviceID int64) (model.Position, error) {
	var data []byte
	res := s.db.Table("position").Select("data").Where("device_id = ?", deviceID).Order("id DESC").Limit(1).Scan(&data)
	if res.Error != nil {
		return model.Position{}, res.Error
	}
	if res.RowsAffected == 0 || len(data) == 0 {
		return model.Position{}, fmt.Errorf("позиция устройства %d: %w", deviceID, source.ErrNotFound)
	}

	var p model.Position
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Position{}, fmt.Errorf("ошибка разбора позиции устройства %d: %w", deviceID, err)
	}
	return p, nil
}

func (s *Source) GetGeofences() ([]model.Geofence, error) {
	var rows []geofenceRow
	if err := s.db.Table("geofence").Select("id, name, calendar_id, area, attributes").Order("id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	geofences := make([]model.Geofence, 0, len(rows))
	for _, r := range rows {
		g, err := r.toModel()
		if err != nil {
			log.Warnf("Пропущена геозона с ID %d: %v", r.ID, err)
			continue
		}
		geofences = append(geofences, g)
	}
	return geofences, nil
}

func (s *Source) GetGeofence(id int64) (model.Geofence, error) {
	var rows []geofenceRow
	if err := s.db.Table("geofence").Select("id, name, calendar_id, area, attributes").Where("id = ?", id).Scan(&rows).Error; err != nil {
		return model.Geofence{}, err
	}
	if len(rows) == 0 {
		return model.Geofence{}, fmt.Errorf("геозона с ID %d: %w", id, source.ErrNotFound)
	}
	return rows[0].toModel()
}

func (s *Source) GetCalendars() ([]model.Calendar, error) {
	var rows []calendarRow
	if err := s.db.Table("calendar").Select("id, name, timezone, windows").Order("id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	calendars := make([]model.Calendar, 0, len(rows))
	for _, r := range rows {
		c, err := r.toModel()
		if err != nil {
			log.Warnf("Пропущен календарь с ID %d: %v", r.ID, err)
			continue
		}
		calendars = append(calendars, c)
	}
	return calendars, nil
}

func (s *Source) GetCalendar(id int64) (model.Calendar, error) {
	var rows []calendarRow
	if err := s.db.Table("calendar").Select("id, name, timezone, windows").Where("id = ?", id).Scan(&rows).Error; err != nil {
		return model.Calendar{}, err
	}
	if len(rows) == 0 {
		return model.Calendar{}, fmt.Errorf("календарь с ID %d: %w", id, source.ErrNotFound)
	}
	return rows[0].toModel()
}

func (s *Source) deviceGeofences() (map[int64][]int64, error) {
	var links []linkRow
	if err := s.db.Table("device_geofence").Select("device_id, geofence_id").Scan(&links).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return map[int64][]int64{}, nil
		}
		return nil, err
	}

	result := make(map[int64][]int64)
	for _, l := range links {
		result[l.DeviceID] = append(result[l.DeviceID], l.GeofenceID)
	}
	return result, nil
}

func (r deviceRow) toModel() (model.Device, error) {
	d := model.Device{
		ID:         r.ID,
		UniqueID:   r.UniqueID,
		Name:       r.Name,
		Status:     r.Status,
		Disabled:   r.Disabled,
		PositionID: r.PositionID,
		Attributes: model.Attributes{},
	}
	if len(r.Attributes) > 0 {
		if err := json.Unmarshal(r.Attributes, &d.Attributes); err != nil {
			return d, fmt.Errorf("некорректные атрибуты устройства: %w", err)
		}
	}
	return d, nil
}

func (r geofenceRow) toModel() (model.Geofence, error) {
	g := model.Geofence{
		ID:         r.ID,
		Name:       r.Name,
		CalendarID: r.CalendarID,
		Attributes: model.Attributes{},
	}
	if len(r.Attributes) > 0 {
		if err := json.Unmarshal(r.Attributes, &g.Attributes); err != nil {
			return g, fmt.Errorf("некорректные атрибуты геозоны: %w", err)
		}
	}
	area, err := model.ParseArea(r.Area)
	if err != nil {
		return g, err
	}
	g.Area = area
	return g, nil
}

func (r calendarRow) toModel() (model.Calendar, error) {
	c := model.Calendar{ID: r.ID, Name: r.Name, Location: time.UTC}
	if r.Timezone != "" {
		loc, err := time.LoadLocation(r.Timezone)
		if err != nil {
			return c, fmt.Errorf("не удалось загрузить временную зону %s: %w", r.Timezone, err)
		}
		c.Location = loc
	}
	if len(r.Windows) > 0 {
		if err := json.Unmarshal(r.Windows, &c.Windows); err != nil {
			return c, fmt.Errorf("некорректные окна календаря: %w", err)
		}
	}
	return c, nil
}
