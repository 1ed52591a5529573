package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/source"
	cron "github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const (
	KindDevice   = "device"
	KindGeofence = "geofence"
	KindCalendar = "calendar"
	KindPosition = "position"
)

var ErrUnknownKind = errors.New("неизвестный тип объекта")

type entry struct {
	mu        sync.Mutex
	device    *model.Device
	position  *model.Position
	overspeed model.OverspeedState
}

// Cache общее состояние процесса: записи устройств и таблица объектов.
// У каждой записи устройства свой мьютекс, поэтому разные устройства
// не блокируют друг друга.
type Cache struct {
	Source source.Source

	mu      sync.RWMutex
	entries map[int64]*entry

	// карты объектов не изменяются после публикации, при обновлении
	// подменяются целиком
	objMu     sync.RWMutex
	geofences map[int64]*model.Geofence
	calendars map[int64]*model.Calendar

	cronScheduler *cron.Cron
}

func New(src source.Source) *Cache {
	return &Cache{
		Source:    src,
		entries:   map[int64]*entry{},
		geofences: map[int64]*model.Geofence{},
		calendars: map[int64]*model.Calendar{},
	}
}

func (c *Cache) getEntry(deviceID int64, create bool) *entry {
	c.mu.RLock()
	e, ok := c.entries[deviceID]
	c.mu.RUnlock()
	if ok || !create {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[deviceID]; ok {
		return e
	}
	e = &entry{}
	c.entries[deviceID] = e
	return e
}

// GetPosition возвращает копию последней принятой позиции или nil
func (c *Cache) GetPosition(deviceID int64) *model.Position {
	e := c.getEntry(deviceID, false)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position.Copy()
}

// SetPosition заменяет последнюю позицию устройства
func (c *Cache) SetPosition(deviceID int64, p *model.Position) {
	e := c.getEntry(deviceID, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = p.Copy()
}

func (c *Cache) GetDevice(deviceID int64) *model.Device {
	e := c.getEntry(deviceID, false)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.device.Copy()
}

func (c *Cache) PutDevice(d model.Device) {
	e := c.getEntry(d.ID, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.device = d.Copy()
}

func (c *Cache) GetGeofence(id int64) *model.Geofence {
	c.objMu.RLock()
	defer c.objMu.RUnlock()
	return c.geofences[id]
}

func (c *Cache) GetCalendar(id int64) *model.Calendar {
	c.objMu.RLock()
	defer c.objMu.RUnlock()
	return c.calendars[id]
}

func (c *Cache) PutGeofence(g model.Geofence) {
	c.objMu.Lock()
	defer c.objMu.Unlock()
	next := make(map[int64]*model.Geofence, len(c.geofences)+1)
	for id, v := range c.geofences {
		next[id] = v
	}
	next[g.ID] = &g
	c.geofences = next
}

func (c *Cache) PutCalendar(cal model.Calendar) {
	c.objMu.Lock()
	defer c.objMu.Unlock()
	next := make(map[int64]*model.Calendar, len(c.calendars)+1)
	for id, v := range c.calendars {
		next[id] = v
	}
	next[cal.ID] = &cal
	c.calendars = next
}

func (c *Cache) objects() (map[int64]*model.Geofence, map[int64]*model.Calendar) {
	c.objMu.RLock()
	defer c.objMu.RUnlock()
	return c.geofences, c.calendars
}

// DeviceState копия устройства и его последней позиции
type DeviceState struct {
	Device       *model.Device
	LastPosition *model.Position
}

// Devices возвращает копии всех известных устройств. Каждая запись
// блокируется только на время копирования.
func (c *Cache) Devices() []DeviceState {
	c.mu.RLock()
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	result := make([]DeviceState, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.device != nil {
			result = append(result, DeviceState{
				Device:       e.device.Copy(),
				LastPosition: e.position.Copy(),
			})
		}
		e.mu.Unlock()
	}
	return result
}

// Update выполняет fn под блокировкой записи устройства
func (c *Cache) Update(deviceID int64, fn func(*Snapshot) error) error {
	e := c.getEntry(deviceID, true)
	geofences, calendars := c.objects()

	e.mu.Lock()
	defer e.mu.Unlock()

	s := &Snapshot{
		entry:     e,
		device:    e.device.Copy(),
		last:      e.position.Copy(),
		geofences: geofences,
		calendars: calendars,
	}
	return fn(s)
}

// Load заполняет кэш из источника данных
func (c *Cache) Load() error {
	if c.Source == nil {
		return fmt.Errorf("источник данных не задан")
	}

	geofences, err := c.Source.GetGeofences()
	if err != nil {
		return fmt.Errorf("не удалось получить список геозон: %w", err)
	}
	calendars, err := c.Source.GetCalendars()
	if err != nil {
		return fmt.Errorf("не удалось получить список календарей: %w", err)
	}

	geofenceMap := make(map[int64]*model.Geofence, len(geofences))
	for i := range geofences {
		geofenceMap[geofences[i].ID] = &geofences[i]
	}
	calendarMap := make(map[int64]*model.Calendar, len(calendars))
	for i := range calendars {
		calendarMap[calendars[i].ID] = &calendars[i]
	}

	c.objMu.Lock()
	c.geofences = geofenceMap
	c.calendars = calendarMap
	c.objMu.Unlock()

	devices, err := c.Source.GetDevices()
	if err != nil {
		return fmt.Errorf("не удалось получить список устройств: %w", err)
	}

	for _, d := range devices {
		var last *model.Position
		p, err := c.Source.GetLatestPosition(d.ID)
		switch {
		case err == nil:
			last = &p
		case errors.Is(err, source.ErrNotFound):
		default:
			log.WithField("err", err).Warnf("Не удалось получить последнюю позицию устройства %d", d.ID)
		}

		e := c.getEntry(d.ID, true)
		e.mu.Lock()
		e.device = d.Copy()
		if last != nil && (e.position == nil || e.position.FixTime.Before(last.FixTime)) {
			e.position = last
		}
		e.mu.Unlock()
	}

	log.WithFields(log.Fields{
		"devices":   len(devices),
		"geofences": len(geofences),
		"calendars": len(calendars),
	}).Info("Кэш заполнен")

	return nil
}

// ScheduleRefresh периодически перезагружает кэш по cron-выражению
func (c *Cache) ScheduleRefresh(spec string, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	c.cronScheduler = cron.New(cron.WithLocation(loc))

	_, err := c.cronScheduler.AddFunc(spec, func() {
		log.Info("Запуск запланированного обновления кэша")
		if err := c.Load(); err != nil {
			log.Errorf("Ошибка обновления кэша: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("ошибка при настройке cron-задачи: %w", err)
	}

	c.cronScheduler.Start()
	log.Infof("Запланировано обновление кэша по расписанию %q", spec)
	return nil
}

func (c *Cache) Shutdown() {
	if c.cronScheduler != nil {
		c.cronScheduler.Stop()
		log.Info("Cron-планировщик кэша остановлен")
	}
}

// Invalidate перечитывает один объект из источника. Объект, которого
// больше нет в источнике, удаляется из кэша.
func (c *Cache) Invalidate(kind string, id int64) error {
	switch kind {
	case KindDevice:
		d, err := c.Source.GetDevice(id)
		if errors.Is(err, source.ErrNotFound) {
			c.mu.Lock()
			delete(c.entries, id)
			c.mu.Unlock()
			return nil
		}
		if err != nil {
			return err
		}
		c.PutDevice(d)
	case KindPosition:
		p, err := c.Source.GetLatestPosition(id)
		if errors.Is(err, source.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		e := c.getEntry(id, true)
		e.mu.Lock()
		if e.position == nil || e.position.FixTime.Before(p.FixTime) {
			e.position = &p
		}
		e.mu.Unlock()
	case KindGeofence:
		g, err := c.Source.GetGeofence(id)
		if errors.Is(err, source.ErrNotFound) {
			c.removeGeofence(id)
			return nil
		}
		if err != nil {
			return err
		}
		c.PutGeofence(g)
	case KindCalendar:
		cal, err := c.Source.GetCalendar(id)
		if errors.Is(err, source.ErrNotFound) {
			c.removeCalendar(id)
			return nil
		}
		if err != nil {
			return err
		}
		c.PutCalendar(cal)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	log.WithFields(log.Fields{"kind": kind, "id": id}).Debug("Объект кэша обновлен")
	return nil
}

func (c *Cache) removeGeofence(id int64) {
	c.objMu.Lock()
	defer c.objMu.Unlock()
	next := make(map[int64]*model.Geofence, len(c.geofences))
	for k, v := range c.geofences {
		if k != id {
			next[k] = v
		}
	}
	c.geofences = next
}

func (c *Cache) removeCalendar(id int64) {
	c.objMu.Lock()
	defer c.objMu.Unlock()
	next := make(map[int64]*model.Calendar, len(c.calendars))
	for k, v := range c.calendars {
		if k != id {
			next[k] = v
		}
	}
	c.calendars = next
}
