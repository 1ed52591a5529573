package handler

import (
	"context"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/geolocation"
	"github.com/daniil11ru/tracker/cli/receiver/model"
	log "github.com/sirupsen/logrus"
)

// Geolocation определяет координаты недостоверной позиции по данным сети.
// Вызывается до блокировки записи устройства.
type Geolocation struct {
	Provider                geolocation.Provider
	Cache                   *cache.Cache
	ProcessInvalidPositions bool
	Reuse                   bool
}

func (g *Geolocation) Name() string {
	return "geolocation"
}

// Locate дополняет позицию координатами; при ошибке позиция не меняется
func (g *Geolocation) Locate(ctx context.Context, position *model.Position) {
	if !g.ProcessInvalidPositions || position.Valid || position.Network == nil {
		return
	}

	if g.Reuse && g.Cache != nil {
		last := g.Cache.GetPosition(position.DeviceID)
		if last != nil && position.Network.Equal(last.Network) {
			applyLocation(position, last.Latitude, last.Longitude, last.Accuracy)
			return
		}
	}

	if g.Provider == nil {
		return
	}

	loc, err := g.Provider.Lookup(ctx, position.Network)
	if err != nil {
		log.WithField("device", position.DeviceID).Warnf("Ошибка определения местоположения по сети: %v", err)
		return
	}
	applyLocation(position, loc.Latitude, loc.Longitude, loc.Accuracy)
}

func applyLocation(position *model.Position, latitude, longitude, accuracy float64) {
	position.Set(model.KeyApproximate, true)
	position.Valid = true
	position.FixTime = position.DeviceTime
	if position.FixTime.IsZero() {
		position.FixTime = position.ServerTime
	}
	position.Latitude = latitude
	position.Longitude = longitude
	position.Accuracy = accuracy
	position.Altitude = 0
	position.Speed = 0
	position.Course = 0
}
