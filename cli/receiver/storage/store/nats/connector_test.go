package nats

import (
	"testing"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnector_Save(t *testing.T) {
	srv := natsserver.RunRandClientPortServer()
	defer srv.Shutdown()

	sub, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	received := make(chan *nats.Msg, 2)
	_, err = sub.ChanSubscribe("tracker.>", received)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	c := &Connector{}
	require.NoError(t, c.Init(map[string]string{"servers": srv.ClientURL()}))

	p := &model.Position{DeviceID: 3, Protocol: "wli", Latitude: 10}
	require.NoError(t, c.Save(p))
	require.NoError(t, c.Save(&model.EventData{Event: model.NewEvent(model.EventGeofenceEnter, p), Position: p}))
	require.NoError(t, c.Close())

	subjects := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-received:
			subjects[msg.Subject] = true
		case <-time.After(2 * time.Second):
			t.Fatal("сообщение не получено")
		}
	}
	assert.True(t, subjects["tracker.position"])
	assert.True(t, subjects["tracker.event"])
}

func TestConnector_Init(t *testing.T) {
	c := &Connector{}
	assert.Error(t, c.Init(nil))
	assert.Error(t, c.Init(map[string]string{"format": "xml"}))
}
