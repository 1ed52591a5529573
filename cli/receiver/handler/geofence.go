package handler

import (
	"sort"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/model"
)

// GeofenceMembership вычисляет геозоны, в которых находится позиция
type GeofenceMembership struct{}

func (GeofenceMembership) Name() string {
	return "geofence membership"
}

func (GeofenceMembership) Handle(position *model.Position, snapshot *cache.Snapshot) ([]*model.Event, error) {
	if !position.Valid {
		if last := snapshot.LastPosition(); last != nil {
			position.GeofenceIDs = append([]int64(nil), last.GeofenceIDs...)
		}
		return nil, nil
	}

	var ids []int64
	for _, g := range snapshot.Geofences() {
		if g.Contains(position.Latitude, position.Longitude) {
			ids = append(ids, g.ID)
		}
	}
	position.GeofenceIDs = ids
	return nil, nil
}

// GeofenceEvents формирует события входа и выхода из геозон
type GeofenceEvents struct{}

func (GeofenceEvents) Name() string {
	return "geofence events"
}

func (GeofenceEvents) Handle(position *model.Position, snapshot *cache.Snapshot) ([]*model.Event, error) {
	if !snapshot.IsLatest(position) {
		return nil, nil
	}

	var previous []int64
	if last := snapshot.LastPosition(); last != nil {
		previous = last.GeofenceIDs
	}

	var events []*model.Event
	for _, id := range difference(previous, position.GeofenceIDs) {
		if active(snapshot, id, position) {
			events = append(events, geofenceEvent(model.EventGeofenceExit, id, position))
		}
	}
	for _, id := range difference(position.GeofenceIDs, previous) {
		if active(snapshot, id, position) {
			events = append(events, geofenceEvent(model.EventGeofenceEnter, id, position))
		}
	}
	return events, nil
}

func geofenceEvent(eventType string, geofenceID int64, position *model.Position) *model.Event {
	e := model.NewEvent(eventType, position)
	e.GeofenceID = geofenceID
	return e
}

// active проверяет календарь геозоны на время фиксации позиции.
// Геозона без календаря активна всегда.
func active(snapshot *cache.Snapshot, geofenceID int64, position *model.Position) bool {
	g := snapshot.Geofence(geofenceID)
	if g == nil {
		return true
	}
	cal := snapshot.Calendar(g.CalendarID)
	return cal == nil || cal.CheckMoment(position.FixTime)
}

// difference элементы a, которых нет в b, по возрастанию
func difference(a, b []int64) []int64 {
	set := make(map[int64]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	var result []int64
	for _, id := range a {
		if _, ok := set[id]; !ok {
			result = append(result, id)
			set[id] = struct{}{}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
