package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/daniil11ru/tracker/cli/receiver/api"
	"github.com/daniil11ru/tracker/cli/receiver/cache"
	"github.com/daniil11ru/tracker/cli/receiver/config"
	"github.com/daniil11ru/tracker/cli/receiver/domain"
	"github.com/daniil11ru/tracker/cli/receiver/geolocation"
	"github.com/daniil11ru/tracker/cli/receiver/handler"
	"github.com/daniil11ru/tracker/cli/receiver/protocol"
	"github.com/daniil11ru/tracker/cli/receiver/schedule"
	"github.com/daniil11ru/tracker/cli/receiver/server"
	"github.com/daniil11ru/tracker/cli/receiver/session"
	"github.com/daniil11ru/tracker/cli/receiver/source/pg"
	"github.com/daniil11ru/tracker/cli/receiver/storage"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFilePath := ""
	flag.StringVar(&configFilePath, "c", "", "путь до конфигурационного файла")
	flag.Parse()
	config, err := getConfig(configFilePath)
	if err != nil {
		log.Fatalf("Не удалось получить конфиг: %v", err)
		return
	}

	configureLogging(config)

	if config.MigrationsPath != "" {
		if err := applyMigrations(config); err != nil {
			log.Fatalf("Не удалось применить миграции: %v", err)
			return
		}
	}

	src, err := pg.New(config.Database)
	if err != nil {
		log.Fatalf("Не удалось инициализировать источник данных: %v", err)
		return
	}

	c := cache.New(src)
	sessions := session.NewRegistry(src, c)
	sessions.PartialMatch = config.Devices.PartialMatch
	sessions.RegisterUnknown = config.Devices.RegisterUnknown

	decoders, err := protocol.Load(config.Protocols, sessions, c)
	if err != nil {
		log.Fatalf("Не удалось загрузить декодеры: %v", err)
		return
	}

	repo := storage.NewRepository()
	if err := repo.LoadStorages(config.Store); err != nil {
		log.Fatalf("Не удалось подключить хранилища: %v", err)
		return
	}
	hub := api.NewHub()
	repo.AddStore(hub)
	asyncRepo := storage.NewAsyncRepository(repo, config.QueueSize, config.Workers)

	location, err := config.GetLocation()
	if err != nil {
		log.Fatalf("Не удалось загрузить временную зону: %v", err)
		return
	}

	processPosition := &domain.ProcessPosition{
		Cache:       c,
		Geolocation: newGeolocation(config, c),
		Handlers:    newHandlers(config),
		Saver:       asyncRepo,
		RefreshSpec: config.Cache.RefreshCron,
		Location:    location,
	}
	if err := processPosition.Initialize(); err != nil {
		log.Fatalf("Не удалось инициализировать обработку позиций: %v", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if inv := config.Cache.Invalidation; inv.Addr != "" {
		listener := cache.NewInvalidationListener(c, inv.Addr, inv.Password, inv.Channel)
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.WithField("err", err).Error("Подписка на изменения объектов завершилась с ошибкой")
			}
			_ = listener.Close()
		}()
	}

	var inactivity *schedule.DeviceInactivity
	if config.Inactivity.Enabled {
		inactivity = schedule.NewDeviceInactivity(c, asyncRepo, config.Inactivity.GetCheckPeriod())
		if err := inactivity.Start(); err != nil {
			log.Fatalf("Не удалось запланировать проверку неактивности: %v", err)
			return
		}
	}

	var srv *server.Server
	if decoder, err := decoders.Get(protocol.WliProtocol); err == nil {
		srv = server.New(config.GetListenAddress(), config.GetEmptyConnTTL(), decoder, sessions, processPosition)
		srv.SetWhiteList(config.WhiteList)
		go func() {
			if err := srv.Run(); err != nil {
				log.Fatalf("Не удалось запустить сервер на %s: %v", config.GetListenAddress(), err)
			}
		}()
	}

	var controller *api.Controller
	if config.ApiAddress != "" {
		controller = api.NewController(api.NewHandler(decoders, sessions, processPosition, c), hub, config.ApiKeys)
		go func() {
			log.Infof("Запуск API на %s", config.ApiAddress)
			if err := controller.Run(config.ApiAddress); err != nil {
				log.Fatalf("Не удалось запустить API: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Info("Остановка приемника")

	if srv != nil {
		if err := srv.Stop(); err != nil {
			log.WithField("err", err).Warn("Ошибка остановки сервера")
		}
	}
	if controller != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := controller.Shutdown(shutdownCtx); err != nil {
			log.WithField("err", err).Warn("Ошибка остановки API")
		}
		cancel()
	}
	if inactivity != nil {
		inactivity.Stop()
	}
	processPosition.Shutdown()
	asyncRepo.Close()
	_ = hub.Close()
	if err := repo.Close(); err != nil {
		log.WithField("err", err).Warn("Ошибка закрытия хранилищ")
	}
}

func getConfig(configFilePath string) (config.Settings, error) {
	var c config.Settings
	var err error

	if configFilePath == "" {
		return c, errors.New("не задан путь до конфига")
	}

	c, err = config.New(configFilePath)
	if err != nil {
		return c, fmt.Errorf("ошибка парсинга конфига: %v", err)
	}

	return c, nil
}

func configureLogging(config config.Settings) {
	log.SetLevel(config.GetLogLevel())

	consoleFmt := &log.TextFormatter{ForceColors: true, FullTimestamp: false}
	log.SetFormatter(consoleFmt)
	log.SetOutput(os.Stdout)

	if config.LogFilePath != "" {
		log.AddHook(newFileHook(config))
	}
}

func newFileHook(config config.Settings) *lfshook.LfsHook {
	logDir := filepath.Dir(config.LogFilePath)
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
			log.Fatalf("Не получилось создать директорию для логов: %v", err)
		}
	}

	lumberjackLogger := &lumberjack.Logger{
		Filename:   config.LogFilePath,
		MaxSize:    100,
		MaxBackups: 366,
		MaxAge:     config.LogMaxAgeDays,
		Compress:   true,
	}

	fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
	return lfshook.NewHook(lfshook.WriterMap{
		log.PanicLevel: lumberjackLogger,
		log.FatalLevel: lumberjackLogger,
		log.ErrorLevel: lumberjackLogger,
		log.WarnLevel:  lumberjackLogger,
		log.InfoLevel:  lumberjackLogger,
		log.DebugLevel: lumberjackLogger,
		log.TraceLevel: lumberjackLogger,
	}, fileFmt)
}

// newGeolocation nil, если определение местоположения не настроено
func newGeolocation(config config.Settings, c *cache.Cache) *handler.Geolocation {
	if !config.Geolocation.Enabled() {
		return nil
	}
	return &handler.Geolocation{
		Provider:                geolocation.NewHTTPProvider(config.Geolocation.URL, config.Geolocation.Key, config.Geolocation.GetTimeout()),
		Cache:                   c,
		ProcessInvalidPositions: config.Geolocation.ProcessInvalidPositions,
		Reuse:                   config.Geolocation.Reuse,
	}
}

func newHandlers(config config.Settings) handler.Chain {
	return handler.NewChain(
		handler.GeofenceMembership{},
		handler.GeofenceEvents{},
		&handler.Overspeed{
			DefaultLimit:    config.Overspeed.DefaultLimit,
			MinimalDuration: config.Overspeed.GetMinimalDuration(),
		},
	)
}

func applyMigrations(config config.Settings) error {
	m, err := migrate.New(
		config.MigrationsPath,
		config.Database,
	)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Info("Нет новых миграций для применения")
			return nil
		}
		return fmt.Errorf("ошибка применения миграций: %v", err)
	}

	log.Info("Миграции успешно применены")
	return nil
}
