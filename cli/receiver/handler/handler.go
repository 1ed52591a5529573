package handler

import (
	"fmt"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/model"
	log "github.com/sirupsen/logrus"
)

// Handler детектор, применяемый к каждой принятой позиции под блокировкой
// записи устройства в кэше
type Handler interface {
	Name() string
	Handle(position *model.Position, snapshot *cache.Snapshot) ([]*model.Event, error)
}

// Chain упорядоченный набор детекторов
type Chain []Handler

func NewChain(handlers ...Handler) Chain {
	return Chain(handlers)
}

// Handle прогоняет позицию через все детекторы. Ошибка или паника одного
// детектора не прерывает цепочку.
func (c Chain) Handle(position *model.Position, snapshot *cache.Snapshot) []*model.Event {
	var events []*model.Event
	for _, h := range c {
		result, err := safeHandle(h, position, snapshot)
		if err != nil {
			log.WithFields(log.Fields{
				"handler": h.Name(),
				"device":  position.DeviceID,
			}).Errorf("Ошибка обработки позиции: %v", err)
			continue
		}
		events = append(events, result...)
	}
	return events
}

func safeHandle(h Handler, position *model.Position, snapshot *cache.Snapshot) (events []*model.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			events = nil
			err = fmt.Errorf("паника в обработчике %s: %v", h.Name(), r)
		}
	}()
	return h.Handle(position, snapshot)
}
