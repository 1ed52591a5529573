package model

import (
	"fmt"
	"time"
)

// TimeWindow еженедельное окно: дни недели и интервал времени суток
// [Start, End). Если End раньше Start, окно переходит через полночь.
type TimeWindow struct {
	Days  []time.Weekday `json:"days" yaml:"days"`
	Start string         `json:"start" yaml:"start"`
	End   string         `json:"end" yaml:"end"`
}

type Calendar struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Location *time.Location `json:"-"`
	Windows  []TimeWindow   `json:"windows"`
}

// CheckMoment проверяет, попадает ли момент хотя бы в одно окно календаря
func (c *Calendar) CheckMoment(t time.Time) bool {
	if c == nil {
		return true
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	minute := local.Hour()*60 + local.Minute()

	for _, w := range c.Windows {
		start, err := parseClock(w.Start)
		if err != nil {
			continue
		}
		end, err := parseClock(w.End)
		if err != nil {
			continue
		}

		if start <= end {
			if minute >= start && minute < end && hasDay(w.Days, local.Weekday()) {
				return true
			}
			continue
		}

		// окно через полночь: хвост после полуночи относится к предыдущему дню
		if minute >= start && hasDay(w.Days, local.Weekday()) {
			return true
		}
		if minute < end && hasDay(w.Days, (local.Weekday()+6)%7) {
			return true
		}
	}
	return false
}

func hasDay(days []time.Weekday, d time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, day := range days {
		if day == d {
			return true
		}
	}
	return false
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("некорректное время %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
