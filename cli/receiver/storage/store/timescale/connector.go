package timescale

/*
Пакетная запись позиций в гипертаблицу TimescaleDB через COPY.

Настройки хранилища:

host = "localhost"
port = "5432"
user = "postgres"
password = "postgres"
database = "tracker"
table = "position_history"
max_conns = 10
batch_size = 500
flush_interval = 5
*/

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/storage/payload"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var columns = []string{
	"fix_time",
	"device_id",
	"protocol",
	"valid",
	"latitude",
	"longitude",
	"altitude",
	"speed",
	"course",
	"attributes",
}

type Connector struct {
	pool      *pgxpool.Pool
	config    map[string]string
	table     string
	batchSize int

	mu    sync.Mutex
	batch [][]interface{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg

	c.table = cfg["table"]
	if c.table == "" {
		c.table = "position_history"
	}

	var err error
	c.batchSize, err = intOrDefault(cfg["batch_size"], 500)
	if err != nil {
		return fmt.Errorf("не удалось получить batch_size: %v", err)
	}
	maxConns, err := intOrDefault(cfg["max_conns"], 10)
	if err != nil {
		return fmt.Errorf("не удалось получить max_conns: %v", err)
	}
	flushInterval, err := intOrDefault(cfg["flush_interval"], 5)
	if err != nil {
		return fmt.Errorf("не удалось получить flush_interval: %v", err)
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg["user"], cfg["password"], cfg["host"], cfg["port"], cfg["database"], maxConns)

	ctx, cancel := context.WithCancel(context.Background())
	c.pool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		cancel()
		return fmt.Errorf("ошибка подключения к TimescaleDB: %v", err)
	}
	if err = c.pool.Ping(ctx); err != nil {
		cancel()
		c.pool.Close()
		return fmt.Errorf("TimescaleDB недоступен: %v", err)
	}

	c.cancel = cancel
	c.wg.Add(1)
	go c.flushLoop(ctx, time.Duration(flushInterval)*time.Second)
	return nil
}

// Save буферизует позицию; события в историю не пишутся
func (c *Connector) Save(msg payload.Message) error {
	if msg == nil {
		return fmt.Errorf("некорректная ссылка на пакет")
	}
	p, ok := msg.(*model.Position)
	if !ok {
		return nil
	}

	attributes, err := json.Marshal(p.Attributes)
	if err != nil {
		return fmt.Errorf("ошибка сериализации атрибутов: %v", err)
	}

	c.mu.Lock()
	c.batch = append(c.batch, []interface{}{
		p.FixTime,
		p.DeviceID,
		p.Protocol,
		p.Valid,
		p.Latitude,
		p.Longitude,
		p.Altitude,
		p.Speed,
		p.Course,
		string(attributes),
	})
	full := len(c.batch) >= c.batchSize
	c.mu.Unlock()

	if full {
		return c.flush(context.Background())
	}
	return nil
}

func (c *Connector) flushLoop(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.flush(ctx); err != nil {
				log.WithField("err", err).Error("Ошибка записи пакета позиций в TimescaleDB")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Connector) flush(ctx context.Context) error {
	c.mu.Lock()
	rows := c.batch
	c.batch = nil
	c.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	if _, err := c.pool.CopyFrom(ctx, pgx.Identifier{c.table}, columns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("не удалось записать пакет из %d позиций: %v", len(rows), err)
	}
	return nil
}

func (c *Connector) Close() error {
	c.cancel()
	c.wg.Wait()
	err := c.flush(context.Background())
	c.pool.Close()
	return err
}

func intOrDefault(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	return strconv.Atoi(value)
}
