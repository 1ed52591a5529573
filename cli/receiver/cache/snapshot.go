package cache

import (
	"sort"

	"github.com/daniil11ru/tracker/cli/receiver/model"
)

// Snapshot согласованное представление записи устройства. Действителен
// только внутри Cache.Update.
type Snapshot struct {
	entry     *entry
	device    *model.Device
	last      *model.Position
	geofences map[int64]*model.Geofence
	calendars map[int64]*model.Calendar
	committed bool
}

// Device копия устройства, nil если устройство не загружено
func (s *Snapshot) Device() *model.Device {
	return s.device
}

// LastPosition копия последней принятой позиции на момент начала Update
func (s *Snapshot) LastPosition() *model.Position {
	return s.last
}

func (s *Snapshot) Geofence(id int64) *model.Geofence {
	return s.geofences[id]
}

func (s *Snapshot) Calendar(id int64) *model.Calendar {
	if id == 0 {
		return nil
	}
	return s.calendars[id]
}

// Geofences геозоны устройства; если у устройства нет привязок,
// возвращаются все геозоны
func (s *Snapshot) Geofences() []*model.Geofence {
	var result []*model.Geofence
	if s.device != nil && len(s.device.GeofenceIDs) > 0 {
		for _, id := range s.device.GeofenceIDs {
			if g, ok := s.geofences[id]; ok {
				result = append(result, g)
			}
		}
	} else {
		for _, g := range s.geofences {
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// IsLatest сообщает, не старше ли позиция последней принятой
func (s *Snapshot) IsLatest(p *model.Position) bool {
	return s.last == nil || !p.FixTime.Before(s.last.FixTime)
}

// Overspeed состояние детектора превышения скорости устройства
func (s *Snapshot) Overspeed() model.OverspeedState {
	return s.entry.overspeed
}

func (s *Snapshot) SetOverspeed(state model.OverspeedState) {
	s.entry.overspeed = state
}

// Commit атомарно заменяет последнюю позицию устройства
func (s *Snapshot) Commit(p *model.Position) {
	s.entry.position = p.Copy()
	s.committed = true
}

func (s *Snapshot) Committed() bool {
	return s.committed
}
