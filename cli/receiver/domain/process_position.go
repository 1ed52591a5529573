package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/handler"
	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/storage"
	"github.com/sirupsen/logrus"
)

var now = time.Now

// ProcessPosition прогоняет принятую позицию через детекторы, фиксирует ее
// в кэше и передает позицию и события в хранилища
type ProcessPosition struct {
	Cache       *cache.Cache
	Geolocation *handler.Geolocation
	Handlers    handler.Chain
	Saver       storage.Saver

	// RefreshSpec cron-выражение периодической перезагрузки кэша
	RefreshSpec string
	Location    *time.Location
}

func (domain *ProcessPosition) Initialize() error {
	if err := domain.Cache.Load(); err != nil {
		return fmt.Errorf("не удалось инициализировать кэш: %w", err)
	}

	if domain.RefreshSpec == "" {
		return nil
	}

	loc := domain.Location
	if loc == nil {
		var err error
		if loc, err = time.LoadLocation("Europe/Moscow"); err != nil {
			return fmt.Errorf("не удалось загрузить временную зону Europe/Moscow: %w", err)
		}
	}
	return domain.Cache.ScheduleRefresh(domain.RefreshSpec, loc)
}

func (domain *ProcessPosition) Shutdown() {
	domain.Cache.Shutdown()
}

// Run обрабатывает одну позицию. Ошибка возвращается только для позиции,
// нарушающей инварианты; такая позиция не сохраняется.
func (domain *ProcessPosition) Run(ctx context.Context, position *model.Position) error {
	position.ServerTime = now().UTC()

	// запрос к внешнему сервису выполняется без блокировки записи устройства
	if domain.Geolocation != nil {
		domain.Geolocation.Locate(ctx, position)
	}

	if err := position.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"device":   position.DeviceID,
			"protocol": position.Protocol,
		}).Warnf("Позиция отклонена: %v", err)
		return fmt.Errorf("позиция отклонена: %w", err)
	}

	var events []*model.Event
	err := domain.Cache.Update(position.DeviceID, func(s *cache.Snapshot) error {
		events = domain.Handlers.Handle(position, s)
		if s.IsLatest(position) {
			s.Commit(position)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("не удалось обновить состояние устройства %d: %w", position.DeviceID, err)
	}

	domain.save(position)
	for _, event := range events {
		domain.save(&model.EventData{Event: event, Position: position})
	}

	logrus.WithFields(logrus.Fields{
		"device": position.DeviceID,
		"valid":  position.Valid,
		"events": len(events),
	}).Debug("Позиция обработана")
	return nil
}

func (domain *ProcessPosition) save(msg storage.Message) {
	if domain.Saver == nil {
		return
	}
	if err := domain.Saver.Save(msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"device": msg.Device(),
			"kind":   msg.Kind(),
		}).Errorf("Не удалось передать сообщение в хранилище: %v", err)
	}
}
