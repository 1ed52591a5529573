package notify

import (
	"testing"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	p := &model.Position{DeviceID: 4, Latitude: 55.75, Longitude: 37.61, Speed: 92, FixTime: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)}
	e := model.NewEvent(model.EventDeviceOverspeed, p)
	e.GeofenceID = 12

	subject, body := Format(&model.EventData{Event: e, Position: p})
	assert.Equal(t, "Событие deviceOverspeed устройства 4", subject)
	assert.Contains(t, body, "Время: 2024-05-01 08:30:00 UTC")
	assert.Contains(t, body, "Геозона: 12")
	assert.Contains(t, body, "Координаты: 55.750000, 37.610000")
}

func TestConnector_SkipsPositions(t *testing.T) {
	c := &Connector{}
	require.NoError(t, c.Init(map[string]string{
		"smtp_host": "localhost",
		"smtp_port": "2525",
		"receivers": "ops@example.com",
		"types":     model.EventDeviceInactive,
	}))

	assert.NoError(t, c.Save(&model.Position{DeviceID: 1}))
	e := model.NewDeviceEvent(model.EventGeofenceEnter, 1, time.Now())
	assert.NoError(t, c.Save(&model.EventData{Event: e}))
	assert.Error(t, c.Save(nil))
}

func TestConnector_Init(t *testing.T) {
	c := &Connector{}
	assert.Error(t, c.Init(nil))
	assert.Error(t, c.Init(map[string]string{"smtp_host": "localhost"}))
	assert.Error(t, c.Init(map[string]string{"receivers": "a@b.c"}))
}
