package main

import (
	"testing"
	"time"

	"github.com/daniil11ru/tracker/libs/wli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPackets_Mixed(t *testing.T) {
	opts := options{
		ID:     "356938035643809",
		Type:   "mixed",
		Time:   time.Date(2024, time.March, 1, 8, 30, 0, 0, time.UTC),
		Lat:    1,
		Lon:    2,
		Speed:  40,
		Course: 12.5,
		MCC:    250,
		MNC:    1,
		LAC:    7701,
		CellID: 41731,
	}

	packets, err := buildPackets(opts)
	require.NoError(t, err)
	require.Len(t, packets, 2)

	reg, err := packets[0].Encode()
	require.NoError(t, err)
	decodedReg := wli.Packet{}
	require.NoError(t, decodedReg.Decode(reg))
	assert.Equal(t, opts.ID, decodedReg.Identifier)

	tele, err := packets[1].Encode()
	require.NoError(t, err)
	decoded := wli.Packet{}
	require.NoError(t, decoded.Decode(tele))
	assert.Equal(t, uint8(wli.TypeStatus), decoded.Type)
	require.Len(t, decoded.Fields, 6)

	gps := wli.GpsBlock{}
	require.NoError(t, gps.Decode(decoded.Fields[0].Data))
	assert.Equal(t, opts.Time, gps.Time())
	assert.Equal(t, int32(600000), gps.Latitude)
	assert.Equal(t, int32(1200000), gps.Longitude)
	assert.Equal(t, uint16(125), gps.Course)

	assert.Equal(t, uint8(35), decoded.Fields[1].Number)
	assert.Equal(t, "250", decoded.Fields[1].Text)
	assert.Equal(t, "41731", decoded.Fields[4].Text)
	assert.Equal(t, "1709281800", decoded.Fields[5].Text)
}

func TestBuildPackets_Types(t *testing.T) {
	packets, err := buildPackets(options{ID: "1", Type: "reg"})
	require.NoError(t, err)
	assert.Len(t, packets, 1)

	packets, err = buildPackets(options{ID: "1", Type: "cell", Time: time.Unix(0, 0).UTC()})
	require.NoError(t, err)
	require.Len(t, packets, 2)
	assert.Len(t, packets[1].Fields, 5)

	_, err = buildPackets(options{ID: "1", Type: "auth"})
	assert.Error(t, err)
}
