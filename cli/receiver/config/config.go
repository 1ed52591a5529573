package config

/*
Описание конфигурационного файла

Перед разбором файла загружаются переменные окружения из .env (если есть),
ссылки вида ${VAR} в файле подставляются из окружения.

	host, port            адрес TCP-сервера бинарных протоколов
	conn_ttl              время ожидания данных от соединения, секунд
	white_list            разрешенные адреса (a.b.c.d или a.b.*), пустой список разрешает всех
	api_address           адрес HTTP-сервера (прием HTTP-протоколов и API)
	api_keys              ключи доступа к API
	protocols             включенные декодеры
	database              URL PostgreSQL с устройствами и геозонами (postgres://...)
	migrations_path       путь к миграциям (file://...), пустой отключает миграции
	devices               сопоставление устройств
	geolocation           определение местоположения по сотовой сети
	overspeed             превышение скорости
	inactivity            проверка неактивности устройств
	cache                 перезагрузка и инвалидация кэша
	workers, queue_size   пул записи в хранилища
	storage               хранилища (см. storage/store)
*/

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"gopkg.in/yaml.v2"
)

const (
	defaultConnTTL         = 10
	defaultWorkers         = 4
	defaultQueueSize       = 1000
	defaultInactivityCheck = 900
	defaultTimeZone        = "Europe/Moscow"
	defaultRefreshCron     = "0 3 * * *"
	defaultProtocol        = "wli"
)

type DevicesSettings struct {
	PartialMatch    bool `yaml:"partial_match"`
	RegisterUnknown bool `yaml:"register_unknown"`
}

type GeolocationSettings struct {
	URL                     string `yaml:"url"`
	Key                     string `yaml:"key"`
	Timeout                 int    `yaml:"timeout"`
	ProcessInvalidPositions bool   `yaml:"process_invalid_positions"`
	Reuse                   bool   `yaml:"reuse"`
}

func (g GeolocationSettings) Enabled() bool {
	return g.URL != ""
}

func (g GeolocationSettings) GetTimeout() time.Duration {
	return time.Duration(g.Timeout) * time.Second
}

type OverspeedSettings struct {
	// DefaultLimit в узлах, 0 отключает ограничение по умолчанию
	DefaultLimit    float64 `yaml:"default_limit"`
	MinimalDuration int     `yaml:"minimal_duration"`
}

func (o OverspeedSettings) GetMinimalDuration() time.Duration {
	return time.Duration(o.MinimalDuration) * time.Second
}

type InactivitySettings struct {
	Enabled     bool `yaml:"enabled"`
	CheckPeriod int  `yaml:"check_period"`
}

func (i InactivitySettings) GetCheckPeriod() time.Duration {
	return time.Duration(i.CheckPeriod) * time.Second
}

type InvalidationSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Channel  string `yaml:"channel"`
}

type CacheSettings struct {
	RefreshCron  string               `yaml:"refresh_cron"`
	TimeZone     string               `yaml:"time_zone"`
	Invalidation InvalidationSettings `yaml:"invalidation"`
}

type Settings struct {
	Host           string                       `yaml:"host"`
	Port           string                       `yaml:"port"`
	ConnTTL        int                          `yaml:"conn_ttl"`
	WhiteList      []string                     `yaml:"white_list"`
	ApiAddress     string                       `yaml:"api_address"`
	ApiKeys        []string                     `yaml:"api_keys"`
	Protocols      []string                     `yaml:"protocols"`
	Database       string                       `yaml:"database"`
	MigrationsPath string                       `yaml:"migrations_path"`
	Devices        DevicesSettings              `yaml:"devices"`
	Geolocation    GeolocationSettings          `yaml:"geolocation"`
	Overspeed      OverspeedSettings            `yaml:"overspeed"`
	Inactivity     InactivitySettings           `yaml:"inactivity"`
	Cache          CacheSettings                `yaml:"cache"`
	Workers        int                          `yaml:"workers"`
	QueueSize      int                          `yaml:"queue_size"`
	LogLevel       string                       `yaml:"log_level"`
	LogFilePath    string                       `yaml:"log_file_path"`
	LogMaxAgeDays  int                          `yaml:"log_max_age_days"`
	Store          map[string]map[string]string `yaml:"storage"`
}

func (s *Settings) GetEmptyConnTTL() time.Duration {
	return time.Duration(s.ConnTTL) * time.Second
}

func (s *Settings) GetListenAddress() string {
	return s.Host + ":" + s.Port
}

func (s *Settings) GetLocation() (*time.Location, error) {
	return time.LoadLocation(s.Cache.TimeZone)
}

func (s *Settings) GetLogLevel() log.Level {
	var lvl log.Level

	switch s.LogLevel {
	case "DEBUG":
		lvl = log.DebugLevel
	case "INFO":
		lvl = log.InfoLevel
	case "WARN":
		lvl = log.WarnLevel
	case "ERROR":
		lvl = log.ErrorLevel
	default:
		lvl = log.InfoLevel
	}
	return lvl
}

func New(confPath string) (Settings, error) {
	c := Settings{}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return c, fmt.Errorf("ошибка чтения .env: %w", err)
	}

	data, err := os.ReadFile(confPath)
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &c)
	if err != nil {
		return c, err
	}

	if c.ConnTTL <= 0 {
		c.ConnTTL = defaultConnTTL
	}
	if len(c.Protocols) == 0 {
		c.Protocols = []string{defaultProtocol}
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Inactivity.CheckPeriod <= 0 {
		c.Inactivity.CheckPeriod = defaultInactivityCheck
	}
	if c.Cache.RefreshCron == "" {
		c.Cache.RefreshCron = defaultRefreshCron
	}
	if c.Cache.TimeZone == "" {
		c.Cache.TimeZone = defaultTimeZone
	}

	if c.Overspeed.DefaultLimit < 0 {
		log.Errorf("Некорректное ограничение скорости по умолчанию (%v), ограничение отключено", c.Overspeed.DefaultLimit)
		c.Overspeed.DefaultLimit = 0
	}
	if c.Overspeed.MinimalDuration < 0 {
		log.Errorf("Некорректная минимальная длительность превышения (%d), используется 0", c.Overspeed.MinimalDuration)
		c.Overspeed.MinimalDuration = 0
	}

	if _, err := c.GetLocation(); err != nil {
		return c, fmt.Errorf("некорректная временная зона %s: %w", c.Cache.TimeZone, err)
	}

	return c, nil
}
