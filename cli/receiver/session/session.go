package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/source"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var ErrUnknownDevice = errors.New("устройство не опознано")

// ReplyFunc отправляет протокольный ответ клиенту
type ReplyFunc func(code int, body string)

// DeviceSession связь соединения с устройством, живет пока открыто соединение
type DeviceSession struct {
	Key      string
	DeviceID int64
	UniqueID string
	Protocol string
	ConnID   string
}

// Conn одно физическое соединение или один HTTP-запрос
type Conn struct {
	ID         string
	RemoteAddr string
	Protocol   string

	reply   ReplyFunc
	mu      sync.Mutex
	session *DeviceSession
}

func NewConn(remoteAddr, protocol string, reply ReplyFunc) *Conn {
	return &Conn{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		Protocol:   protocol,
		reply:      reply,
	}
}

// Respond отправляет ответ, если транспорт его поддерживает
func (c *Conn) Respond(code int, body string) {
	if c.reply != nil {
		c.reply(code, body)
	}
}

func (c *Conn) Session() *DeviceSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Conn) bind(s *DeviceSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// Registry сопоставляет протокольные идентификаторы устройствам
type Registry struct {
	Source          source.Source
	Cache           *cache.Cache
	PartialMatch    bool
	RegisterUnknown bool

	mu     sync.RWMutex
	byKey  map[string]*DeviceSession
	byConn map[string]*DeviceSession
}

func NewRegistry(src source.Source, c *cache.Cache) *Registry {
	return &Registry{
		Source: src,
		Cache:  c,
		byKey:  map[string]*DeviceSession{},
		byConn: map[string]*DeviceSession{},
	}
}

// Resolve определяет устройство соединения. Без идентификаторов
// возвращается уже привязанная к соединению сессия; переданные, но
// пустые идентификаторы отклоняются.
func (r *Registry) Resolve(conn *Conn, ids ...string) (*DeviceSession, error) {
	var candidates []string
	for _, id := range ids {
		if id != "" {
			candidates = append(candidates, id)
		}
	}

	current := conn.Session()
	if len(ids) == 0 {
		if current != nil {
			return current, nil
		}
		return nil, fmt.Errorf("%w: идентификатор не передан", ErrUnknownDevice)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: пустой идентификатор", ErrUnknownDevice)
	}

	for _, id := range candidates {
		if current != nil && (current.UniqueID == id || current.Key == id) {
			return current, nil
		}
	}

	device, err := r.findDevice(candidates)
	if err != nil {
		return nil, err
	}
	if device.Disabled {
		return nil, fmt.Errorf("%w: устройство %s отключено", ErrUnknownDevice, device.UniqueID)
	}

	s := &DeviceSession{
		Key:      uuid.NewString(),
		DeviceID: device.ID,
		UniqueID: device.UniqueID,
		Protocol: conn.Protocol,
		ConnID:   conn.ID,
	}

	r.mu.Lock()
	if current != nil {
		delete(r.byKey, current.Key)
	}
	r.byKey[s.Key] = s
	r.byConn[conn.ID] = s
	r.mu.Unlock()

	conn.bind(s)
	if r.Cache != nil {
		r.Cache.PutDevice(device)
	}

	log.WithFields(log.Fields{
		"ip":       conn.RemoteAddr,
		"device":   device.ID,
		"uniqueId": device.UniqueID,
	}).Debug("Устройство опознано")

	return s, nil
}

func (r *Registry) findDevice(ids []string) (model.Device, error) {
	for _, id := range ids {
		r.mu.RLock()
		live, ok := r.byKey[id]
		r.mu.RUnlock()
		if ok {
			d, err := r.Source.GetDevice(live.DeviceID)
			if err == nil {
				return d, nil
			}
		}

		d, err := r.Source.GetDeviceByUniqueID(id)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, source.ErrNotFound) {
			return model.Device{}, fmt.Errorf("%w: ошибка поиска устройства %s: %v", ErrUnknownDevice, id, err)
		}
	}

	if r.PartialMatch {
		devices, err := r.Source.GetDevices()
		if err != nil {
			return model.Device{}, fmt.Errorf("%w: не удалось получить список устройств: %v", ErrUnknownDevice, err)
		}
		for _, id := range ids {
			matched := matchPartial(id, devices)
			if len(matched) == 1 {
				log.Debugf("Идентификатор %s сопоставлен с устройством %s", id, matched[0].UniqueID)
				return matched[0], nil
			}
			if len(matched) > 1 {
				log.Warnf("Не удалось однозначно определить устройство по идентификатору %s", id)
			}
		}
	}

	if r.RegisterUnknown {
		d := model.Device{UniqueID: ids[0], Name: ids[0], Status: model.StatusUnknown, Attributes: model.Attributes{}}
		id, err := r.Source.AddDevice(d)
		if err != nil {
			return model.Device{}, fmt.Errorf("%w: не удалось добавить устройство %s: %v", ErrUnknownDevice, ids[0], err)
		}
		d.ID = id
		log.Warnf("Не удалось найти устройство %s, было добавлено новое устройство с ID %d", ids[0], id)
		return d, nil
	}

	return model.Device{}, fmt.Errorf("%w: %v", ErrUnknownDevice, ids)
}

// Close уничтожает сессию соединения
func (r *Registry) Close(conn *Conn) {
	r.mu.Lock()
	if s, ok := r.byConn[conn.ID]; ok {
		delete(r.byKey, s.Key)
		delete(r.byConn, conn.ID)
	}
	r.mu.Unlock()

	conn.bind(nil)
}

// Count число активных сессий
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
