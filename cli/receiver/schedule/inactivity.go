package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/storage"
	cron "github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

var now = time.Now

const (
	DefaultCheckPeriod  = 15 * time.Minute
	AttributeLastUpdate = "lastUpdate"
)

// DeviceInactivity периодически ищет устройства, от которых давно не было
// позиций. Каждый запуск рассматривает интервал (предыдущий запуск, сейчас],
// поэтому повторный запуск без хода времени событий не порождает.
type DeviceInactivity struct {
	Cache       *cache.Cache
	Saver       storage.Saver
	CheckPeriod time.Duration

	mu            sync.Mutex
	lastRun       time.Time
	cronScheduler *cron.Cron
}

func NewDeviceInactivity(c *cache.Cache, saver storage.Saver, checkPeriod time.Duration) *DeviceInactivity {
	if checkPeriod <= 0 {
		checkPeriod = DefaultCheckPeriod
	}
	return &DeviceInactivity{
		Cache:       c,
		Saver:       saver,
		CheckPeriod: checkPeriod,
	}
}

// Start запускает проверку по расписанию
func (d *DeviceInactivity) Start() error {
	d.cronScheduler = cron.New()
	spec := fmt.Sprintf("@every %s", d.CheckPeriod)
	if _, err := d.cronScheduler.AddFunc(spec, func() { d.Run() }); err != nil {
		return fmt.Errorf("ошибка при настройке cron-задачи: %w", err)
	}
	d.cronScheduler.Start()
	log.Infof("Запланирована проверка неактивности устройств %q", spec)
	return nil
}

func (d *DeviceInactivity) Stop() {
	if d.cronScheduler != nil {
		<-d.cronScheduler.Stop().Done()
	}
}

// Run выполняет одну проверку и возвращает сформированные события
func (d *DeviceInactivity) Run() []*model.Event {
	current := now()

	d.mu.Lock()
	from := d.lastRun
	if from.IsZero() {
		from = current.Add(-d.CheckPeriod)
	}
	if current.After(d.lastRun) {
		d.lastRun = current
	}
	d.mu.Unlock()

	if !current.After(from) {
		return nil
	}

	var events []*model.Event
	for _, state := range d.Cache.Devices() {
		last := state.LastPosition
		if last == nil || last.FixTime.IsZero() {
			continue
		}
		if !CheckDevice(state.Device, last.FixTime, from, current) {
			continue
		}

		event := model.NewDeviceEvent(model.EventDeviceInactive, state.Device.ID, current)
		event.Set(AttributeLastUpdate, last.FixTime.UnixMilli())
		events = append(events, event)

		if d.Saver != nil {
			if err := d.Saver.Save(&model.EventData{Event: event}); err != nil {
				log.WithField("device", state.Device.ID).Errorf("Не удалось передать событие неактивности: %v", err)
			}
		}
	}

	if len(events) > 0 {
		log.WithField("count", len(events)).Info("Обнаружены неактивные устройства")
	}
	return events
}

// CheckDevice проверяет, попадает ли порог неактивности устройства в
// интервал (from, to]. При заданном периоде берется последнее повторение
// порога, не превышающее to.
func CheckDevice(device *model.Device, lastFix, from, to time.Time) bool {
	if device == nil {
		return false
	}
	start, _ := device.Attributes.GetInt64(model.AttributeDeviceInactivityStart)
	if start <= 0 {
		return false
	}

	threshold := lastFix.Add(time.Duration(start) * time.Millisecond)
	if to.Before(threshold) {
		return false
	}
	if from.Before(threshold) {
		return true
	}

	period, _ := device.Attributes.GetInt64(model.AttributeDeviceInactivityPeriod)
	if period <= 0 {
		return false
	}
	step := time.Duration(period) * time.Millisecond
	count := (to.Sub(threshold) - time.Millisecond) / step
	threshold = threshold.Add(count * step)
	return from.Before(threshold)
}
