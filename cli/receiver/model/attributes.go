package model

import "strconv"

// Общеизвестные ключи атрибутов позиции
const (
	KeyAlarm          = "alarm"
	KeyBatteryLevel   = "batteryLevel"
	KeyBattery        = "battery"
	KeyOdometer       = "odometer"
	KeyObdOdometer    = "obdOdometer"
	KeyIndex          = "index"
	KeyEvent          = "event"
	KeyRPM            = "rpm"
	KeyCharge         = "charge"
	KeyDriverUniqueID = "driverUniqueId"
	KeyPower          = "power"
	KeySpeedLimit     = "speedLimit"
	KeyApproximate    = "approximate"
)

// Attributes набор скалярных атрибутов. Значения хранятся как float64,
// int64, bool или string; отсутствие ключа отличается от нулевого значения.
type Attributes map[string]interface{}

// Set нормализует значение к одному из скалярных типов. Значения других
// типов сохраняются в строковом виде.
func (a Attributes) Set(key string, value interface{}) {
	switch v := value.(type) {
	case int:
		a[key] = int64(v)
	case int8:
		a[key] = int64(v)
	case int16:
		a[key] = int64(v)
	case int32:
		a[key] = int64(v)
	case int64:
		a[key] = v
	case uint8:
		a[key] = int64(v)
	case uint16:
		a[key] = int64(v)
	case uint32:
		a[key] = int64(v)
	case uint64:
		a[key] = int64(v)
	case float32:
		a[key] = float64(v)
	case float64, bool, string:
		a[key] = v
	default:
		a[key] = fmtValue(v)
	}
}

func (a Attributes) Get(key string) (interface{}, bool) {
	v, ok := a[key]
	return v, ok
}

func (a Attributes) Has(key string) bool {
	_, ok := a[key]
	return ok
}

func (a Attributes) GetFloat(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func (a Attributes) GetInt64(key string) (int64, bool) {
	switch v := a[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func (a Attributes) GetBool(key string) (bool, bool) {
	switch v := a[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	return false, false
}

func (a Attributes) GetString(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmtValue(v), true
}

// Copy возвращает независимую копию набора
func (a Attributes) Copy() Attributes {
	if a == nil {
		return nil
	}
	c := make(Attributes, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

func fmtValue(v interface{}) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	case interface{ String() string }:
		return t.String()
	}
	return ""
}
