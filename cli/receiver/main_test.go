package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/config"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfig_EmptyPath(t *testing.T) {
	_, err := getConfig("")
	assert.EqualError(t, err, "не задан путь до конфига")
}

func TestGetConfig_Example(t *testing.T) {
	log.SetOutput(ioutil.Discard)

	cfg, err := getConfig("../../configs/config.test.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"wli", "leafspy", "spot"}, cfg.Protocols)
	assert.Equal(t, "logs/app_test.log", cfg.LogFilePath)
}

func TestFileHook(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Settings{
		LogFilePath:   filepath.Join(dir, "nested", "receiver.log"),
		LogMaxAgeDays: 7,
	}

	hook := newFileHook(cfg)
	_, err := os.Stat(filepath.Dir(cfg.LogFilePath))
	require.NoError(t, err, "директория логов должна быть создана")

	logger := log.New()
	logger.SetOutput(ioutil.Discard)
	logger.AddHook(hook)

	message := "UNIQUE_TEST_MESSAGE_" + time.Now().Format(time.RFC3339Nano)
	logger.Info(message)

	content, err := os.ReadFile(cfg.LogFilePath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), message))
}

func TestNewGeolocation(t *testing.T) {
	assert.Nil(t, newGeolocation(config.Settings{}, nil))

	g := newGeolocation(config.Settings{Geolocation: config.GeolocationSettings{
		URL:                     "http://localhost/geolocate",
		ProcessInvalidPositions: true,
		Reuse:                   true,
	}}, nil)
	require.NotNil(t, g)
	assert.True(t, g.ProcessInvalidPositions)
	assert.True(t, g.Reuse)
	assert.NotNil(t, g.Provider)
}

func TestNewHandlers_Order(t *testing.T) {
	chain := newHandlers(config.Settings{Overspeed: config.OverspeedSettings{DefaultLimit: 50}})

	var names []string
	for _, h := range chain {
		names = append(names, h.Name())
	}
	assert.Equal(t, []string{"geofence membership", "geofence events", "overspeed"}, names)
}
