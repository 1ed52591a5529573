package geolocation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/model"
)

var ErrEmptyNetwork = errors.New("нет данных сети для определения местоположения")

// Location результат определения местоположения по сети
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Provider внешний сервис определения местоположения
type Provider interface {
	Lookup(ctx context.Context, network *model.Network) (Location, error)
}

type request struct {
	*model.Network
	ConsiderIP bool `json:"considerIp"`
}

type response struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// HTTPProvider клиент API, совместимого с Google Geolocation
type HTTPProvider struct {
	URL    string
	Key    string
	Client *http.Client
}

func NewHTTPProvider(endpoint, key string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		URL:    endpoint,
		Key:    key,
		Client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Lookup(ctx context.Context, network *model.Network) (Location, error) {
	if network == nil || (len(network.CellTowers) == 0 && len(network.WifiAccessPoints) == 0) {
		return Location{}, ErrEmptyNetwork
	}

	body, err := json.Marshal(request{Network: network})
	if err != nil {
		return Location{}, fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	endpoint := p.URL
	if p.Key != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return Location{}, fmt.Errorf("некорректный адрес сервиса: %w", err)
		}
		q := u.Query()
		q.Set("key", p.Key)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Location{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("сервис геолокации недоступен: %w", err)
	}
	defer resp.Body.Close()

	var result response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Location{}, fmt.Errorf("некорректный ответ сервиса геолокации: %w", err)
	}
	if result.Error != nil {
		return Location{}, fmt.Errorf("ошибка сервиса геолокации %d: %s", result.Error.Code, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("сервис геолокации вернул статус %d", resp.StatusCode)
	}

	return Location{
		Latitude:  result.Location.Lat,
		Longitude: result.Location.Lng,
		Accuracy:  result.Accuracy,
	}, nil
}
