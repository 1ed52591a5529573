package geolocation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_Lookup(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"location":{"lat":55.75,"lng":37.62},"accuracy":850}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "secret", 0)
	loc, err := p.Lookup(context.Background(), model.NewCellNetwork(model.CellTower{
		MobileCountryCode: 250, MobileNetworkCode: 1, LocationAreaCode: 7700, CellID: 40123,
	}))
	require.NoError(t, err)
	assert.Equal(t, Location{Latitude: 55.75, Longitude: 37.62, Accuracy: 850}, loc)

	towers, ok := received["cellTowers"].([]interface{})
	require.True(t, ok)
	require.Len(t, towers, 1)
	assert.Equal(t, 40123.0, towers[0].(map[string]interface{})["cellId"])
	assert.Equal(t, false, received["considerIp"])
}

func TestHTTPProvider_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"notFound"}}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", 0)
	_, err := p.Lookup(context.Background(), model.NewCellNetwork(model.CellTower{CellID: 1}))
	assert.Error(t, err)

	_, err = p.Lookup(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyNetwork)

	_, err = p.Lookup(context.Background(), &model.Network{})
	assert.ErrorIs(t, err, ErrEmptyNetwork)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Lookup(ctx, model.NewCellNetwork(model.CellTower{CellID: 1}))
	assert.Error(t, err)
}
