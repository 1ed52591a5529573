package handler

import (
	"context"
	"errors"
	"io/ioutil"
	"testing"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/geolocation"
	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/source"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

func newCache(t *testing.T) *cache.Cache {
	log.SetOutput(ioutil.Discard)

	c := cache.New(source.NewMemory())
	c.PutDevice(model.Device{ID: 1, UniqueID: "111"})
	c.PutGeofence(model.Geofence{ID: 1, Name: "A", Area: model.Circle{Latitude: 55, Longitude: 37, Radius: 1000}})
	c.PutGeofence(model.Geofence{ID: 2, Name: "B", Area: model.Circle{Latitude: 56, Longitude: 38, Radius: 1000}})
	return c
}

func apply(t *testing.T, c *cache.Cache, h Handler, p *model.Position) []*model.Event {
	var events []*model.Event
	require.NoError(t, c.Update(p.DeviceID, func(s *cache.Snapshot) error {
		var err error
		events, err = h.Handle(p, s)
		return err
	}))
	return events
}

type failing struct {
	panics bool
}

func (f failing) Name() string { return "failing" }

func (f failing) Handle(position *model.Position, snapshot *cache.Snapshot) ([]*model.Event, error) {
	if f.panics {
		panic("boom")
	}
	return nil, errors.New("ошибка")
}

type counting struct {
	calls int
}

func (c *counting) Name() string { return "counting" }

func (c *counting) Handle(position *model.Position, snapshot *cache.Snapshot) ([]*model.Event, error) {
	c.calls++
	return []*model.Event{model.NewEvent("test", position)}, nil
}

func TestChain_ContinuesAfterFailure(t *testing.T) {
	c := newCache(t)
	last := &counting{}
	chain := NewChain(failing{}, failing{panics: true}, last)

	var events []*model.Event
	require.NoError(t, c.Update(1, func(s *cache.Snapshot) error {
		events = chain.Handle(&model.Position{DeviceID: 1}, s)
		return nil
	}))

	assert.Equal(t, 1, last.calls)
	require.Len(t, events, 1)
	assert.Equal(t, "test", events[0].Type)
}

func TestGeofenceMembership(t *testing.T) {
	c := newCache(t)
	h := GeofenceMembership{}

	p := &model.Position{DeviceID: 1, Valid: true, Latitude: 55.001, Longitude: 37.001, FixTime: t0}
	apply(t, c, h, p)
	assert.Equal(t, []int64{1}, p.GeofenceIDs)

	c.SetPosition(1, &model.Position{DeviceID: 1, GeofenceIDs: []int64{2}, FixTime: t0})
	invalid := &model.Position{DeviceID: 1, Latitude: 55, Longitude: 37}
	apply(t, c, h, invalid)
	assert.Equal(t, []int64{2}, invalid.GeofenceIDs)

	far := &model.Position{DeviceID: 1, Valid: true, Latitude: 0, Longitude: 0, FixTime: t0}
	apply(t, c, h, far)
	assert.Empty(t, far.GeofenceIDs)
}

func TestGeofenceMembership_DeviceGeofences(t *testing.T) {
	c := newCache(t)
	c.PutDevice(model.Device{ID: 1, UniqueID: "111", GeofenceIDs: []int64{2}})

	p := &model.Position{DeviceID: 1, Valid: true, Latitude: 55, Longitude: 37, FixTime: t0}
	apply(t, c, GeofenceMembership{}, p)
	assert.Empty(t, p.GeofenceIDs)
}

func TestGeofenceEvents_Transition(t *testing.T) {
	c := newCache(t)
	c.SetPosition(1, &model.Position{DeviceID: 1, Valid: true, GeofenceIDs: []int64{1}, FixTime: t0})

	p := &model.Position{ID: 9, DeviceID: 1, Valid: true, GeofenceIDs: []int64{2}, FixTime: t0.Add(time.Minute)}
	events := apply(t, c, GeofenceEvents{}, p)

	require.Len(t, events, 2)
	assert.Equal(t, model.EventGeofenceExit, events[0].Type)
	assert.Equal(t, int64(1), events[0].GeofenceID)
	assert.Equal(t, model.EventGeofenceEnter, events[1].Type)
	assert.Equal(t, int64(2), events[1].GeofenceID)
	assert.Equal(t, int64(9), events[1].PositionID)
	assert.Equal(t, p.FixTime, events[1].EventTime)
}

func TestGeofenceEvents_CalendarGate(t *testing.T) {
	c := newCache(t)
	c.PutCalendar(model.Calendar{ID: 7, Windows: []model.TimeWindow{{Start: "08:00", End: "09:00"}}})
	c.PutGeofence(model.Geofence{ID: 2, Name: "B", CalendarID: 7, Area: model.Circle{Latitude: 56, Longitude: 38, Radius: 1000}})
	c.SetPosition(1, &model.Position{DeviceID: 1, Valid: true, GeofenceIDs: []int64{1}, FixTime: t0})

	p := &model.Position{DeviceID: 1, Valid: true, GeofenceIDs: []int64{2}, FixTime: t0.Add(time.Minute)}
	events := apply(t, c, GeofenceEvents{}, p)

	require.Len(t, events, 1)
	assert.Equal(t, model.EventGeofenceExit, events[0].Type)
	assert.Equal(t, int64(1), events[0].GeofenceID)
}

func TestGeofenceEvents_OutdatedPosition(t *testing.T) {
	c := newCache(t)
	c.SetPosition(1, &model.Position{DeviceID: 1, Valid: true, GeofenceIDs: []int64{1}, FixTime: t0})

	p := &model.Position{DeviceID: 1, Valid: true, GeofenceIDs: []int64{2}, FixTime: t0.Add(-time.Minute)}
	assert.Empty(t, apply(t, c, GeofenceEvents{}, p))
}

func TestUpdateOverspeedState(t *testing.T) {
	const limit = 80.0
	minimal := 60 * time.Second

	steps := []struct {
		offset time.Duration
		speed  float64
		event  bool
		active bool
	}{
		{offset: 0, speed: 90, event: false, active: true},
		{offset: 30 * time.Second, speed: 90, event: false, active: true},
		{offset: 70 * time.Second, speed: 90, event: true, active: true},
		{offset: 80 * time.Second, speed: 70, event: false, active: false},
	}

	var state model.OverspeedState
	for _, step := range steps {
		p := &model.Position{DeviceID: 1, Speed: step.speed, FixTime: t0.Add(step.offset)}

		var event *model.Event
		state, event = UpdateOverspeedState(state, p, limit, minimal, 5)

		assert.Equal(t, step.active, state.Active, "offset %v", step.offset)
		if !step.event {
			assert.Nil(t, event, "offset %v", step.offset)
			continue
		}

		require.NotNil(t, event)
		assert.Equal(t, model.EventDeviceOverspeed, event.Type)
		assert.Equal(t, int64(5), event.GeofenceID)
		assert.Equal(t, 90.0, event.Attributes[AttributeSpeed])
		assert.Equal(t, limit, event.Attributes[model.KeySpeedLimit])
		assert.True(t, state.Since.IsZero())
	}
	assert.Equal(t, model.OverspeedState{}, state)
}

func TestUpdateOverspeedState_RequiresNewExcursion(t *testing.T) {
	state := model.OverspeedState{Active: true}
	state, event := UpdateOverspeedState(state, &model.Position{Speed: 100, FixTime: t0.Add(time.Hour)}, 80, time.Second, 0)
	assert.Nil(t, event)
	assert.True(t, state.Active)
}

func TestOverspeed_Limits(t *testing.T) {
	c := newCache(t)
	c.PutDevice(model.Device{ID: 1, UniqueID: "111", Attributes: model.Attributes{model.AttributeSpeedLimit: 100.0}})
	c.PutGeofence(model.Geofence{ID: 1, Attributes: model.Attributes{model.AttributeSpeedLimit: 60.0}, Area: model.Circle{}})
	c.PutGeofence(model.Geofence{ID: 2, Attributes: model.Attributes{model.AttributeSpeedLimit: 40.0}, Area: model.Circle{}})

	h := &Overspeed{DefaultLimit: 200}
	p := &model.Position{DeviceID: 1, Speed: 50, GeofenceIDs: []int64{1, 2}, FixTime: t0}
	require.NoError(t, c.Update(1, func(s *cache.Snapshot) error {
		limit, geofenceID := h.speedLimit(p, s)
		assert.Equal(t, 40.0, limit)
		assert.Equal(t, int64(2), geofenceID)

		limit, geofenceID = h.speedLimit(&model.Position{DeviceID: 1}, s)
		assert.Equal(t, 100.0, limit)
		assert.Equal(t, int64(0), geofenceID)
		return nil
	}))

	c.PutDevice(model.Device{ID: 1, UniqueID: "111"})
	require.NoError(t, c.Update(1, func(s *cache.Snapshot) error {
		limit, _ := h.speedLimit(&model.Position{DeviceID: 1}, s)
		assert.Equal(t, 200.0, limit)
		return nil
	}))
}

func TestOverspeed_Handle(t *testing.T) {
	c := newCache(t)
	h := &Overspeed{DefaultLimit: 80, MinimalDuration: time.Minute}

	assert.Empty(t, apply(t, c, h, &model.Position{DeviceID: 1, Speed: 90, FixTime: t0}))
	c.SetPosition(1, &model.Position{DeviceID: 1, FixTime: t0})

	events := apply(t, c, h, &model.Position{DeviceID: 1, Speed: 95, FixTime: t0.Add(2 * time.Minute)})
	require.Len(t, events, 1)
	assert.Equal(t, model.EventDeviceOverspeed, events[0].Type)

	// позиция из прошлого не меняет состояние
	assert.Empty(t, apply(t, c, h, &model.Position{DeviceID: 1, Speed: 10, FixTime: t0.Add(-time.Minute)}))

	noLimit := &Overspeed{}
	assert.Empty(t, apply(t, c, noLimit, &model.Position{DeviceID: 1, Speed: 500, FixTime: t0.Add(time.Hour)}))
}

type stubProvider struct {
	location geolocation.Location
	err      error
	calls    int
}

func (s *stubProvider) Lookup(ctx context.Context, network *model.Network) (geolocation.Location, error) {
	s.calls++
	return s.location, s.err
}

func TestGeolocation_Lookup(t *testing.T) {
	provider := &stubProvider{location: geolocation.Location{Latitude: 55.7, Longitude: 37.6, Accuracy: 500}}
	g := &Geolocation{Provider: provider, ProcessInvalidPositions: true}

	p := &model.Position{
		DeviceID: 1, DeviceTime: t0, Altitude: 10, Speed: 5, Course: 90,
		Network: model.NewCellNetwork(model.CellTower{CellID: 1}),
	}
	g.Locate(context.Background(), p)

	assert.Equal(t, 1, provider.calls)
	assert.True(t, p.Valid)
	assert.Equal(t, t0, p.FixTime)
	assert.Equal(t, 55.7, p.Latitude)
	assert.Equal(t, 37.6, p.Longitude)
	assert.Equal(t, 500.0, p.Accuracy)
	assert.Zero(t, p.Altitude)
	assert.Zero(t, p.Speed)
	assert.Zero(t, p.Course)
	assert.Equal(t, true, p.Attributes[model.KeyApproximate])
	assert.NoError(t, p.Validate())
}

func TestGeolocation_Skips(t *testing.T) {
	provider := &stubProvider{err: errors.New("недоступен")}
	network := model.NewCellNetwork(model.CellTower{CellID: 1})

	tests := []struct {
		name     string
		handler  *Geolocation
		position *model.Position
		calls    int
	}{
		{
			name:     "Disabled",
			handler:  &Geolocation{Provider: provider},
			position: &model.Position{DeviceID: 1, Network: network},
		},
		{
			name:     "Valid position",
			handler:  &Geolocation{Provider: provider, ProcessInvalidPositions: true},
			position: &model.Position{DeviceID: 1, Valid: true, Network: network},
		},
		{
			name:     "No network",
			handler:  &Geolocation{Provider: provider, ProcessInvalidPositions: true},
			position: &model.Position{DeviceID: 1},
		},
		{
			name:     "Provider failure",
			handler:  &Geolocation{Provider: provider, ProcessInvalidPositions: true},
			position: &model.Position{DeviceID: 1, Network: network},
			calls:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider.calls = 0
			before := tt.position.Copy()
			tt.handler.Locate(context.Background(), tt.position)
			assert.Equal(t, tt.calls, provider.calls)
			assert.Equal(t, before, tt.position)
		})
	}
}

func TestGeolocation_Reuse(t *testing.T) {
	c := newCache(t)
	network := model.NewCellNetwork(model.CellTower{MobileCountryCode: 250, CellID: 77})
	c.SetPosition(1, &model.Position{DeviceID: 1, Valid: true, Latitude: 1, Longitude: 2, Accuracy: 30, Network: network.Copy()})

	provider := &stubProvider{}
	g := &Geolocation{Provider: provider, Cache: c, ProcessInvalidPositions: true, Reuse: true}

	p := &model.Position{DeviceID: 1, DeviceTime: t0, Network: network.Copy()}
	g.Locate(context.Background(), p)

	assert.Zero(t, provider.calls)
	assert.True(t, p.Valid)
	assert.Equal(t, 1.0, p.Latitude)
	assert.Equal(t, 2.0, p.Longitude)
	assert.Equal(t, 30.0, p.Accuracy)
}
