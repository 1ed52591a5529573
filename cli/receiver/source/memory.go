package source

import (
	"fmt"
	"sort"
	"sync"

	"github.com/daniil11ru/tracker/cli/receiver/model"
)

// Memory источник в памяти; используется в тестах и для статической
// конфигурации без базы данных
type Memory struct {
	mu        sync.RWMutex
	nextID    int64
	devices   map[int64]model.Device
	positions map[int64]model.Position
	geofences map[int64]model.Geofence
	calendars map[int64]model.Calendar
}

func NewMemory() *Memory {
	return &Memory{
		devices:   map[int64]model.Device{},
		positions: map[int64]model.Position{},
		geofences: map[int64]model.Geofence{},
		calendars: map[int64]model.Calendar{},
	}
}

func (m *Memory) PutDevice(d model.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.ID] = d
	if d.ID > m.nextID {
		m.nextID = d.ID
	}
}

func (m *Memory) PutPosition(p model.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[p.DeviceID] = p
}

func (m *Memory) PutGeofence(g model.Geofence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.geofences[g.ID] = g
}

func (m *Memory) PutCalendar(c model.Calendar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calendars[c.ID] = c
}

func (m *Memory) GetDevices() ([]model.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := make([]model.Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

func (m *Memory) GetDevice(id int64) (model.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.devices[id]
	if !ok {
		return model.Device{}, fmt.Errorf("устройство с ID %d: %w", id, ErrNotFound)
	}
	return d, nil
}

func (m *Memory) GetDeviceByUniqueID(uniqueID string) (model.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.devices {
		if d.UniqueID == uniqueID {
			return d, nil
		}
	}
	return model.Device{}, fmt.Errorf("устройство %q: %w", uniqueID, ErrNotFound)
}

func (m *Memory) AddDevice(d model.Device) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.devices {
		if existing.UniqueID == d.UniqueID {
			return 0, fmt.Errorf("устройство %q уже существует", d.UniqueID)
		}
	}
	m.nextID++
	d.ID = m.nextID
	m.devices[d.ID] = d
	return d.ID, nil
}

func (m *Memory) GetLatestPosition(deviceID int64) (model.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.positions[deviceID]
	if !ok {
		return model.Position{}, fmt.Errorf("позиция устройства %d: %w", deviceID, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) GetGeofences() ([]model.Geofence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	geofences := make([]model.Geofence, 0, len(m.geofences))
	for _, g := range m.geofences {
		geofences = append(geofences, g)
	}
	sort.Slice(geofences, func(i, j int) bool { return geofences[i].ID < geofences[j].ID })
	return geofences, nil
}

func (m *Memory) GetGeofence(id int64) (model.Geofence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.geofences[id]
	if !ok {
		return model.Geofence{}, fmt.Errorf("геозона с ID %d: %w", id, ErrNotFound)
	}
	return g, nil
}

func (m *Memory) GetCalendars() ([]model.Calendar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calendars := make([]model.Calendar, 0, len(m.calendars))
	for _, c := range m.calendars {
		calendars = append(calendars, c)
	}
	sort.Slice(calendars, func(i, j int) bool { return calendars[i].ID < calendars[j].ID })
	return calendars, nil
}

func (m *Memory) GetCalendar(id int64) (model.Calendar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.calendars[id]
	if !ok {
		return model.Calendar{}, fmt.Errorf("календарь с ID %d: %w", id, ErrNotFound)
	}
	return c, nil
}
