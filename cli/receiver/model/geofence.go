package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const earthRadiusMeters = 6371000.0

// Geometry область геозоны. Проверка попадания точки выполняется
// внешним вычислителем геометрии.
type Geometry interface {
	Contains(latitude, longitude float64) bool
}

type Geofence struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	CalendarID int64      `json:"calendarId"`
	Attributes Attributes `json:"attributes"`
	Area       Geometry   `json:"-"`
}

func (g *Geofence) Contains(latitude, longitude float64) bool {
	if g == nil || g.Area == nil {
		return false
	}
	return g.Area.Contains(latitude, longitude)
}

// Circle окружность с центром в точке и радиусом в метрах
type Circle struct {
	Latitude  float64
	Longitude float64
	Radius    float64
}

func (c Circle) Contains(latitude, longitude float64) bool {
	return DistanceMeters(c.Latitude, c.Longitude, latitude, longitude) <= c.Radius
}

// ParseArea разбирает описание области вида "CIRCLE (lat lon, radius)"
func ParseArea(area string) (Geometry, error) {
	s := strings.TrimSpace(area)
	if !strings.HasPrefix(strings.ToUpper(s), "CIRCLE") {
		return nil, fmt.Errorf("неподдерживаемый тип области: %q", area)
	}
	s = strings.TrimSpace(s[len("CIRCLE"):])
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("некорректное описание окружности: %q", area)
	}
	center := strings.Fields(parts[0])
	if len(center) != 2 {
		return nil, fmt.Errorf("некорректный центр окружности: %q", area)
	}

	lat, err := strconv.ParseFloat(center[0], 64)
	if err != nil {
		return nil, fmt.Errorf("некорректная широта центра: %w", err)
	}
	lon, err := strconv.ParseFloat(center[1], 64)
	if err != nil {
		return nil, fmt.Errorf("некорректная долгота центра: %w", err)
	}
	radius, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("некорректный радиус: %w", err)
	}

	return Circle{Latitude: lat, Longitude: lon, Radius: radius}, nil
}

// DistanceMeters расстояние между точками по формуле гаверсинусов
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
