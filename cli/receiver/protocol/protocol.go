package protocol

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/session"
)

var now = time.Now

var (
	ErrUnknownDevice  = errors.New("устройство не опознано")
	ErrMalformedFrame = errors.New("некорректный кадр")
	ErrUnsafeDocument = errors.New("документ содержит DTD или внешние сущности")
	ErrUnknownDecoder = errors.New("протокол не поддерживается")
)

// Frame сырые данные одного сообщения. Для HTTP-протоколов RawQuery
// содержит строку запроса.
type Frame struct {
	Data     []byte
	RawQuery string
}

// Decoder преобразует кадр протокола в позиции. Пустой результат без
// ошибки означает, что позиций нет (например, регистрационный кадр).
type Decoder interface {
	Protocol() string
	Decode(conn *session.Conn, frame Frame) ([]*model.Position, error)
}

// Base общие операции декодеров
type Base struct {
	Name     string
	Sessions *session.Registry
	Cache    *cache.Cache
}

func (b *Base) Protocol() string {
	return b.Name
}

func (b *Base) deviceSession(conn *session.Conn, ids ...string) (*session.DeviceSession, error) {
	s, err := b.Sessions.Resolve(conn, ids...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownDevice, err)
	}
	return s, nil
}

// lastLocation подставляет координаты последней известной позиции
// и помечает позицию устаревшей
func (b *Base) lastLocation(p *model.Position, deviceTime time.Time) {
	if p.DeviceID == 0 {
		return
	}
	p.Outdated = true

	var last *model.Position
	if b.Cache != nil {
		last = b.Cache.GetPosition(p.DeviceID)
	}
	if last != nil {
		p.FixTime = last.FixTime
		p.Valid = last.Valid
		p.Latitude = last.Latitude
		p.Longitude = last.Longitude
		p.Altitude = last.Altitude
		p.Speed = last.Speed
		p.Course = last.Course
		p.Accuracy = last.Accuracy
	} else {
		p.FixTime = time.Unix(0, 0).UTC()
	}

	if !deviceTime.IsZero() {
		p.DeviceTime = deviceTime
	} else {
		p.DeviceTime = now().UTC()
	}
}

// Registry набор декодеров по имени протокола
type Registry struct {
	decoders map[string]Decoder
}

func NewRegistry(decoders ...Decoder) *Registry {
	r := &Registry{decoders: map[string]Decoder{}}
	for _, d := range decoders {
		r.Register(d)
	}
	return r
}

func (r *Registry) Register(d Decoder) {
	r.decoders[d.Protocol()] = d
}

func (r *Registry) Get(name string) (Decoder, error) {
	d, ok := r.decoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDecoder, name)
	}
	return d, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.decoders))
	for name := range r.decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load создает декодеры перечисленных протоколов
func Load(names []string, sessions *session.Registry, c *cache.Cache) (*Registry, error) {
	r := NewRegistry()
	for _, name := range names {
		switch name {
		case WliProtocol:
			r.Register(NewWli(sessions, c))
		case LeafSpyProtocol:
			r.Register(NewLeafSpy(sessions, c))
		case SpotProtocol:
			r.Register(NewSpot(sessions, c))
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownDecoder, name)
		}
	}
	return r, nil
}
