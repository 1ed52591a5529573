package model

// CellTower параметры базовой станции сотовой сети
type CellTower struct {
	MobileCountryCode int   `json:"mobileCountryCode" msgpack:"mobileCountryCode"`
	MobileNetworkCode int   `json:"mobileNetworkCode" msgpack:"mobileNetworkCode"`
	LocationAreaCode  int   `json:"locationAreaCode" msgpack:"locationAreaCode"`
	CellID            int64 `json:"cellId" msgpack:"cellId"`
	SignalStrength    int   `json:"signalStrength,omitempty" msgpack:"signalStrength"`
}

type WifiAccessPoint struct {
	MacAddress     string `json:"macAddress" msgpack:"macAddress"`
	SignalStrength int    `json:"signalStrength,omitempty" msgpack:"signalStrength"`
	Channel        int    `json:"channel,omitempty" msgpack:"channel"`
}

// Network сетевая подсказка для грубого определения местоположения
type Network struct {
	HomeMobileCountryCode int               `json:"homeMobileCountryCode,omitempty" msgpack:"homeMobileCountryCode"`
	RadioType             string            `json:"radioType,omitempty" msgpack:"radioType"`
	CellTowers            []CellTower       `json:"cellTowers,omitempty" msgpack:"cellTowers"`
	WifiAccessPoints      []WifiAccessPoint `json:"wifiAccessPoints,omitempty" msgpack:"wifiAccessPoints"`
}

func NewCellNetwork(tower CellTower) *Network {
	return &Network{CellTowers: []CellTower{tower}}
}

func (n *Network) Equal(other *Network) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.HomeMobileCountryCode != other.HomeMobileCountryCode || n.RadioType != other.RadioType {
		return false
	}
	if len(n.CellTowers) != len(other.CellTowers) || len(n.WifiAccessPoints) != len(other.WifiAccessPoints) {
		return false
	}
	for i := range n.CellTowers {
		if n.CellTowers[i] != other.CellTowers[i] {
			return false
		}
	}
	for i := range n.WifiAccessPoints {
		if n.WifiAccessPoints[i] != other.WifiAccessPoints[i] {
			return false
		}
	}
	return true
}

func (n *Network) Copy() *Network {
	if n == nil {
		return nil
	}
	c := *n
	c.CellTowers = append([]CellTower(nil), n.CellTowers...)
	c.WifiAccessPoints = append([]WifiAccessPoint(nil), n.WifiAccessPoints...)
	return &c
}
