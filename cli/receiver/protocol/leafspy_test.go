package protocol

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeafSpy_Mapping(t *testing.T) {
	sessions, c := setup(t)
	d := NewLeafSpy(sessions, c)
	conn, replies := newConn(LeafSpyProtocol)

	positions, err := d.Decode(conn, Frame{
		RawQuery: "pass=" + testUniqueID + "&Lat=55.75&Long=37.61&Elv=150&RPM=630&SOC=80.5&user=driver1" +
			"&ChrgMode=1&Odo=12&Gids=250&Trip=true&VIN=ABC123",
	})
	require.NoError(t, err)
	require.Len(t, positions, 1)

	p := positions[0]
	assert.Equal(t, int64(1), p.DeviceID)
	assert.True(t, p.Valid)
	assert.False(t, p.Outdated)
	assert.Equal(t, testNow, p.FixTime)
	assert.Equal(t, testNow, p.DeviceTime)
	assert.Equal(t, 55.75, p.Latitude)
	assert.Equal(t, 37.61, p.Longitude)
	assert.Equal(t, 150.0, p.Altitude)
	assert.InDelta(t, 5.39957, p.Speed, 1e-9)

	assert.Equal(t, int64(630), p.Attributes[model.KeyRPM])
	assert.Equal(t, 80.5, p.Attributes[model.KeyBatteryLevel])
	assert.Equal(t, "driver1", p.Attributes[model.KeyDriverUniqueID])
	assert.Equal(t, true, p.Attributes[model.KeyCharge])
	assert.Equal(t, int64(12000), p.Attributes[model.KeyObdOdometer])
	assert.Equal(t, 250.0, p.Attributes["Gids"])
	assert.Equal(t, true, p.Attributes["Trip"])
	assert.Equal(t, "ABC123", p.Attributes["VIN"])
	assert.False(t, p.Attributes.Has("pass"))

	require.Len(t, *replies, 1)
	assert.Equal(t, reply{code: http.StatusOK, body: `"status":"0"`}, (*replies)[0])
}

func TestLeafSpy_KeyOrderDoesNotMatter(t *testing.T) {
	sessions, c := setup(t)
	d := NewLeafSpy(sessions, c)

	params := []string{"pass=" + testUniqueID, "Lat=1.5", "Long=2.5", "RPM=100", "ChrgMode=0", "Custom=x", "rpm=5"}
	permutations := [][]int{
		{0, 1, 2, 3, 4, 5, 6},
		{6, 5, 4, 3, 2, 1, 0},
		{3, 0, 6, 1, 5, 2, 4},
	}

	var expected *model.Position
	for _, order := range permutations {
		parts := make([]string, 0, len(order))
		for _, i := range order {
			parts = append(parts, params[i])
		}

		conn, _ := newConn(LeafSpyProtocol)
		positions, err := d.Decode(conn, Frame{RawQuery: strings.Join(parts, "&")})
		require.NoError(t, err)
		require.Len(t, positions, 1)

		if expected == nil {
			expected = positions[0]
			continue
		}
		assert.Equal(t, expected, positions[0])
	}
}

func TestLeafSpy_RepeatedKeyOrderDoesNotMatter(t *testing.T) {
	sessions, c := setup(t)
	d := NewLeafSpy(sessions, c)

	var expected *model.Position
	for _, query := range []string{
		"pass=" + testUniqueID + "&Lat=1&Lat=2&Long=3&SOC=40&SOC=45",
		"pass=" + testUniqueID + "&Lat=2&SOC=45&Long=3&Lat=1&SOC=40",
	} {
		conn, _ := newConn(LeafSpyProtocol)
		positions, err := d.Decode(conn, Frame{RawQuery: query})
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, 2.0, positions[0].Latitude)

		if expected == nil {
			expected = positions[0]
			continue
		}
		assert.Equal(t, expected, positions[0])
	}
}

func TestLeafSpy_BodyWhenQueryEmpty(t *testing.T) {
	sessions, c := setup(t)
	d := NewLeafSpy(sessions, c)
	conn, _ := newConn(LeafSpyProtocol)

	positions, err := d.Decode(conn, Frame{Data: []byte("pass=200&Lat=10&Long=20")})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(2), positions[0].DeviceID)
	assert.Equal(t, 10.0, positions[0].Latitude)
}

func TestLeafSpy_ZeroCoordinatesUseLastLocation(t *testing.T) {
	sessions, c := setup(t)
	d := NewLeafSpy(sessions, c)
	c.SetPosition(1, &model.Position{DeviceID: 1, Valid: true, Latitude: 48.85, Longitude: 2.35, FixTime: time.Unix(100, 0)})
	conn, _ := newConn(LeafSpyProtocol)

	positions, err := d.Decode(conn, Frame{RawQuery: "pass=" + testUniqueID + "&Lat=0&Long=0&SOC=50"})
	require.NoError(t, err)
	require.Len(t, positions, 1)

	p := positions[0]
	assert.True(t, p.Outdated)
	assert.Equal(t, 48.85, p.Latitude)
	assert.Equal(t, 2.35, p.Longitude)
	assert.Equal(t, time.Unix(100, 0), p.FixTime)
	assert.Equal(t, testNow, p.DeviceTime)
}

func TestLeafSpy_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   error
	}{
		{name: "Missing pass", query: "Lat=1&Long=2", err: ErrUnknownDevice},
		{name: "Unknown pass", query: "pass=nope&Lat=1", err: ErrUnknownDevice},
		{name: "Broken number", query: "pass=" + testUniqueID + "&Lat=abc", err: ErrMalformedFrame},
		{name: "Broken encoding", query: "pass=%zz", err: ErrMalformedFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, c := setup(t)
			d := NewLeafSpy(sessions, c)
			conn, replies := newConn(LeafSpyProtocol)

			positions, err := d.Decode(conn, Frame{RawQuery: tt.query})
			assert.Nil(t, positions)
			assert.ErrorIs(t, err, tt.err)
			require.Len(t, *replies, 1)
			assert.Equal(t, http.StatusBadRequest, (*replies)[0].code)
		})
	}
}
