package protocol

import (
	"net/http"
	"testing"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSpotDocument = `<?xml version="1.0" encoding="UTF-8"?>
<messageList>
  <header>
    <totalCount>3</totalCount>
    <message><esnName>` + testUniqueID + `</esnName></message>
  </header>
  <message>
    <esnName>` + testUniqueID + `</esnName>
    <messageType>OK</messageType>
    <timestamp>2024-04-12T10:11:12+0000</timestamp>
    <latitude>61.5</latitude>
    <longitude>-149.9</longitude>
  </message>
  <message>
    <esnName>0-0000000</esnName>
    <messageType>TRACK</messageType>
    <timestamp>2024-04-12T10:20:00+0000</timestamp>
    <latitude>1</latitude>
    <longitude>1</longitude>
  </message>
  <message>
    <esnName>200</esnName>
    <messageType>HELP</messageType>
    <timestamp>2024-04-12T10:30:00Z</timestamp>
    <latitude>-33.9</latitude>
    <longitude>18.4</longitude>
  </message>
</messageList>`

func TestSpot_Decode(t *testing.T) {
	sessions, c := setup(t)
	d := NewSpot(sessions, c)
	conn, replies := newConn(SpotProtocol)

	positions, err := d.Decode(conn, Frame{Data: []byte(testSpotDocument)})
	require.NoError(t, err)
	require.Len(t, positions, 2)

	p := positions[0]
	assert.Equal(t, int64(1), p.DeviceID)
	assert.Equal(t, SpotProtocol, p.Protocol)
	assert.False(t, p.Valid)
	assert.Equal(t, time.Date(2024, 4, 12, 10, 11, 12, 0, time.UTC), p.FixTime)
	assert.Equal(t, p.FixTime, p.DeviceTime)
	assert.Equal(t, 61.5, p.Latitude)
	assert.Equal(t, -149.9, p.Longitude)
	assert.Equal(t, "OK", p.Attributes[model.KeyEvent])

	assert.Equal(t, int64(2), positions[1].DeviceID)
	assert.Equal(t, "HELP", positions[1].Attributes[model.KeyEvent])

	require.Len(t, *replies, 1)
	assert.Equal(t, http.StatusOK, (*replies)[0].code)
}

func TestSpot_NoKnownDevices(t *testing.T) {
	sessions, c := setup(t)
	d := NewSpot(sessions, c)
	conn, replies := newConn(SpotProtocol)

	positions, err := d.Decode(conn, Frame{Data: []byte(`<messageList><message><esnName>x</esnName></message></messageList>`)})
	assert.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, http.StatusOK, (*replies)[0].code)
}

func TestSpot_MessageWithoutIdentifierSkipped(t *testing.T) {
	sessions, c := setup(t)
	d := NewSpot(sessions, c)
	conn, replies := newConn(SpotProtocol)

	document := `<messageList>
  <message>
    <esnName>` + testUniqueID + `</esnName>
    <messageType>OK</messageType>
    <timestamp>2024-04-12T10:11:12Z</timestamp>
    <latitude>1</latitude>
    <longitude>1</longitude>
  </message>
  <message>
    <messageType>HELP</messageType>
    <timestamp>2024-04-12T10:20:00Z</timestamp>
    <latitude>5</latitude>
    <longitude>5</longitude>
  </message>
  <message>
    <esnName>  </esnName>
    <messageType>TRACK</messageType>
    <timestamp>2024-04-12T10:30:00Z</timestamp>
    <latitude>7</latitude>
    <longitude>7</longitude>
  </message>
</messageList>`

	positions, err := d.Decode(conn, Frame{Data: []byte(document)})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(1), positions[0].DeviceID)
	assert.Equal(t, 1.0, positions[0].Latitude)
	assert.Equal(t, "OK", positions[0].Attributes[model.KeyEvent])

	require.Len(t, *replies, 1)
	assert.Equal(t, http.StatusOK, (*replies)[0].code)
}

func TestSpot_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		document string
		err      error
	}{
		{
			name:     "Doctype",
			document: `<?xml version="1.0"?><!DOCTYPE messageList [<!ENTITY xxe SYSTEM "file:///etc/passwd">]><messageList></messageList>`,
			err:      ErrUnsafeDocument,
		},
		{
			name:     "Undefined entity",
			document: `<messageList><message><esnName>&xxe;</esnName></message></messageList>`,
			err:      ErrMalformedFrame,
		},
		{
			name:     "Broken markup",
			document: `<messageList><message>`,
			err:      ErrMalformedFrame,
		},
		{
			name:     "Empty body",
			document: ``,
			err:      ErrMalformedFrame,
		},
		{
			name: "Broken latitude",
			document: `<messageList><message><esnName>` + testUniqueID + `</esnName>` +
				`<timestamp>2024-04-12T10:11:12Z</timestamp><latitude>north</latitude><longitude>1</longitude></message></messageList>`,
			err: ErrMalformedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, c := setup(t)
			d := NewSpot(sessions, c)
			conn, replies := newConn(SpotProtocol)

			positions, err := d.Decode(conn, Frame{Data: []byte(tt.document)})
			assert.Nil(t, positions)
			assert.ErrorIs(t, err, tt.err)
			require.Len(t, *replies, 1)
			assert.Equal(t, http.StatusBadRequest, (*replies)[0].code)
		})
	}
}
