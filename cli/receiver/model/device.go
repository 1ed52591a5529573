package model

const (
	StatusUnknown = "unknown"
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Атрибуты устройства, которые читают обработчики событий
const (
	AttributeSpeedLimit             = "speedLimit"
	AttributeDeviceInactivityStart  = "deviceInactivityStart"
	AttributeDeviceInactivityPeriod = "deviceInactivityPeriod"
)

type Device struct {
	ID          int64      `json:"id"`
	UniqueID    string     `json:"uniqueId"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Disabled    bool       `json:"disabled"`
	Attributes  Attributes `json:"attributes"`
	PositionID  int64      `json:"positionId"`
	GeofenceIDs []int64    `json:"geofenceIds,omitempty"`
}

func (d *Device) GetStatus() string {
	if d.Status == "" {
		return StatusOffline
	}
	return d.Status
}

func (d *Device) Copy() *Device {
	if d == nil {
		return nil
	}
	c := *d
	c.Attributes = d.Attributes.Copy()
	c.GeofenceIDs = append([]int64(nil), d.GeofenceIDs...)
	return &c
}
