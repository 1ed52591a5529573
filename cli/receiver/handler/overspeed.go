package handler

import (
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/model"
)

const AttributeSpeed = "speed"

// Overspeed детектор превышения скорости
type Overspeed struct {
	DefaultLimit    float64
	MinimalDuration time.Duration
}

func (o *Overspeed) Name() string {
	return "overspeed"
}

func (o *Overspeed) Handle(position *model.Position, snapshot *cache.Snapshot) ([]*model.Event, error) {
	if !snapshot.IsLatest(position) {
		return nil, nil
	}

	limit, geofenceID := o.speedLimit(position, snapshot)
	if limit <= 0 {
		return nil, nil
	}

	state, event := UpdateOverspeedState(snapshot.Overspeed(), position, limit, o.MinimalDuration, geofenceID)
	snapshot.SetOverspeed(state)
	if event == nil {
		return nil, nil
	}
	return []*model.Event{event}, nil
}

// speedLimit наименьшее ограничение среди текущих геозон, затем
// ограничение устройства, затем значение по умолчанию
func (o *Overspeed) speedLimit(position *model.Position, snapshot *cache.Snapshot) (float64, int64) {
	var limit float64
	var geofenceID int64
	for _, id := range position.GeofenceIDs {
		g := snapshot.Geofence(id)
		if g == nil {
			continue
		}
		if v, ok := g.Attributes.GetFloat(model.AttributeSpeedLimit); ok && v > 0 && (limit == 0 || v < limit) {
			limit = v
			geofenceID = id
		}
	}
	if limit > 0 {
		return limit, geofenceID
	}

	if d := snapshot.Device(); d != nil {
		if v, ok := d.Attributes.GetFloat(model.AttributeSpeedLimit); ok && v > 0 {
			return v, 0
		}
	}
	return o.DefaultLimit, 0
}

// UpdateOverspeedState переход конечного автомата превышения скорости.
// Событие возвращается только для текущего вызова.
func UpdateOverspeedState(
	state model.OverspeedState, position *model.Position, limit float64, minimalDuration time.Duration, geofenceID int64,
) (model.OverspeedState, *model.Event) {
	if position == nil {
		return state, nil
	}

	if !state.Active {
		if position.Speed > limit {
			return model.OverspeedState{Active: true, Since: position.FixTime, GeofenceID: geofenceID}, nil
		}
		return state, nil
	}

	if position.Speed <= limit {
		return model.OverspeedState{}, nil
	}

	if state.Since.IsZero() || position.FixTime.Sub(state.Since) <= minimalDuration {
		return state, nil
	}

	event := model.NewEvent(model.EventDeviceOverspeed, position)
	event.Set(AttributeSpeed, position.Speed)
	event.Set(model.KeySpeedLimit, limit)
	event.GeofenceID = state.GeofenceID

	// повторное событие только после нового непрерывного превышения
	return model.OverspeedState{Active: true}, event
}
