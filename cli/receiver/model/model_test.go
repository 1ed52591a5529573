package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_AbsentIsNotZero(t *testing.T) {
	a := Attributes{}
	a.Set(KeyOdometer, 0)

	v, ok := a.GetInt64(KeyOdometer)
	assert.True(t, ok)
	assert.Equal(t, int64(0), v)

	_, ok = a.GetFloat(KeyBatteryLevel)
	assert.False(t, ok)
	assert.False(t, a.Has(KeyBatteryLevel))
}

func TestAttributes_SetNormalizesTypes(t *testing.T) {
	a := Attributes{}
	a.Set("i", 5)
	a.Set("u", uint16(7))
	a.Set("f", float32(1.5))
	a.Set("b", true)
	a.Set("s", "text")

	assert.Equal(t, int64(5), a["i"])
	assert.Equal(t, int64(7), a["u"])
	assert.Equal(t, 1.5, a["f"])
	assert.Equal(t, true, a["b"])
	assert.Equal(t, "text", a["s"])

	f, ok := a.GetFloat("i")
	assert.True(t, ok)
	assert.Equal(t, 5.0, f)

	s, ok := a.GetString("f")
	assert.True(t, ok)
	assert.Equal(t, "1.5", s)
}

func TestPosition_Validate(t *testing.T) {
	tests := []struct {
		name     string
		position Position
		err      error
	}{
		{name: "No device", position: Position{}, err: ErrNoDevice},
		{name: "Valid without fix time", position: Position{DeviceID: 1, Valid: true}, err: ErrNoFixTime},
		{name: "Invalid without fix time", position: Position{DeviceID: 1}},
		{name: "Valid with fix time", position: Position{DeviceID: 1, Valid: true, FixTime: time.Unix(10, 0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.position.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestPosition_CopyIsIndependent(t *testing.T) {
	p := NewPosition("test")
	p.Set(KeyIndex, 1)
	p.GeofenceIDs = []int64{1}
	p.Network = NewCellNetwork(CellTower{CellID: 10})

	c := p.Copy()
	c.Set(KeyIndex, 2)
	c.GeofenceIDs[0] = 5
	c.Network.CellTowers[0].CellID = 20

	assert.Equal(t, int64(1), p.Attributes[KeyIndex])
	assert.Equal(t, int64(1), p.GeofenceIDs[0])
	assert.Equal(t, int64(10), p.Network.CellTowers[0].CellID)
}

func TestNetwork_Equal(t *testing.T) {
	a := NewCellNetwork(CellTower{MobileCountryCode: 250, MobileNetworkCode: 1, LocationAreaCode: 2, CellID: 3})
	b := NewCellNetwork(CellTower{MobileCountryCode: 250, MobileNetworkCode: 1, LocationAreaCode: 2, CellID: 3})
	c := NewCellNetwork(CellTower{MobileCountryCode: 250, MobileNetworkCode: 1, LocationAreaCode: 2, CellID: 4})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))

	var n *Network
	assert.True(t, n.Equal(nil))
}

func TestParseArea(t *testing.T) {
	area, err := ParseArea("CIRCLE (55.75 37.61, 500)")
	require.NoError(t, err)

	assert.True(t, area.Contains(55.75, 37.61))
	assert.True(t, area.Contains(55.752, 37.61))
	assert.False(t, area.Contains(55.76, 37.61))

	_, err = ParseArea("POLYGON ((1 1, 2 2, 3 3))")
	assert.Error(t, err)
	_, err = ParseArea("CIRCLE (55.75, 500)")
	assert.Error(t, err)
}

func TestCalendar_CheckMoment(t *testing.T) {
	calendar := &Calendar{
		Windows: []TimeWindow{
			{Days: []time.Weekday{time.Monday, time.Tuesday}, Start: "08:00", End: "18:00"},
			{Days: []time.Weekday{time.Friday}, Start: "22:00", End: "02:00"},
		},
	}

	tests := []struct {
		name     string
		moment   time.Time
		expected bool
	}{
		{name: "Monday inside", moment: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), expected: true},
		{name: "Monday at end", moment: time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC), expected: false},
		{name: "Wednesday", moment: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), expected: false},
		{name: "Friday night", moment: time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC), expected: true},
		{name: "Saturday after midnight", moment: time.Date(2024, 1, 6, 1, 0, 0, 0, time.UTC), expected: true},
		{name: "Saturday morning", moment: time.Date(2024, 1, 6, 3, 0, 0, 0, time.UTC), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, calendar.CheckMoment(tt.moment))
		})
	}

	var empty *Calendar
	assert.True(t, empty.CheckMoment(time.Now()))
}

func TestEventData_ToBytes(t *testing.T) {
	p := NewPosition("test")
	p.DeviceID = 3
	e := NewEvent(EventDeviceOverspeed, p)

	data := &EventData{Event: e, Position: p}
	b, err := data.ToBytes()
	require.NoError(t, err)

	assert.Contains(t, string(b), `"type":"deviceOverspeed"`)
	assert.Equal(t, KindEvent, data.Kind())
	assert.Equal(t, int64(3), data.Device())
	assert.NotEmpty(t, e.ID)
}
