package storage

import (
	"errors"
	"fmt"
	"sort"

	"github.com/daniil11ru/tracker/cli/receiver/storage/payload"
	"github.com/daniil11ru/tracker/cli/receiver/storage/store/kafka"
	"github.com/daniil11ru/tracker/cli/receiver/storage/store/mqtt"
	"github.com/daniil11ru/tracker/cli/receiver/storage/store/mysql"
	"github.com/daniil11ru/tracker/cli/receiver/storage/store/nats"
	"github.com/daniil11ru/tracker/cli/receiver/storage/store/notify"
	"github.com/daniil11ru/tracker/cli/receiver/storage/store/postgresql"
	"github.com/daniil11ru/tracker/cli/receiver/storage/store/rabbitmq"
	"github.com/daniil11ru/tracker/cli/receiver/storage/store/redis"
	"github.com/daniil11ru/tracker/cli/receiver/storage/store/tarantool_queue"
	"github.com/daniil11ru/tracker/cli/receiver/storage/store/timescale"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidStorage = errors.New("storage not found")
var ErrUnknownStorage = errors.New("storage isn't support yet")

// Message позиция или событие для выходных хранилищ
type Message = payload.Message

type Store interface {
	Connector
	Saver
}

// Saver интерфейс для подключения внешних хранилищ
type Saver interface {
	// Save сохранение в хранилище
	Save(Message) error
}

// Connector интерфейс для подключения внешних хранилищ
type Connector interface {
	// Init установка соединения с хранилищем
	Init(map[string]string) error

	// Close закрытие соединения с хранилищем
	Close() error
}

// Repository набор выходных хранилищ
type Repository struct {
	storages []Saver
}

// AddStore добавляет хранилище для сохранения данных
func (r *Repository) AddStore(s Saver) {
	r.storages = append(r.storages, s)
}

// Save сохраняет данные во все установленные хранилища. Ошибка одного
// хранилища не мешает записи в остальные.
func (r *Repository) Save(m Message) error {
	var errs []error
	for _, store := range r.storages {
		if err := store.Save(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close закрывает соединения хранилищ, поддерживающих закрытие
func (r *Repository) Close() error {
	var errs []error
	for _, store := range r.storages {
		if c, ok := store.(Connector); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// newStore создает коннектор по имени хранилища
func newStore(name string) (Store, error) {
	switch name {
	case "rabbitmq":
		return &rabbitmq.Connector{}, nil
	case "postgresql":
		return &postgresql.Connector{}, nil
	case "timescale":
		return &timescale.Connector{}, nil
	case "nats":
		return &nats.Connector{}, nil
	case "tarantool_queue":
		return &tarantool_queue.Connector{}, nil
	case "redis":
		return &redis.Connector{}, nil
	case "mysql":
		return &mysql.Connector{}, nil
	case "kafka":
		return &kafka.Connector{}, nil
	case "mqtt":
		return &mqtt.Connector{}, nil
	case "notify":
		return &notify.Connector{}, nil
	}
	return nil, ErrUnknownStorage
}

// LoadStorages загружает хранилища из структуры конфига
func (r *Repository) LoadStorages(storages map[string]map[string]string) error {
	if len(storages) == 0 {
		return ErrInvalidStorage
	}

	names := make([]string, 0, len(storages))
	for name := range storages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		db, err := newStore(name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		if err := db.Init(storages[name]); err != nil {
			return fmt.Errorf("ошибка инициализации хранилища %s: %w", name, err)
		}

		r.AddStore(db)
		log.WithField("store", name).Info("Хранилище подключено")
	}
	return nil
}

// NewRepository создает пустой репозиторий
func NewRepository() *Repository {
	return &Repository{}
}
