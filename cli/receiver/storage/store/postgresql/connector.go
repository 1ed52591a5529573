package postgresql

/*
Настройки, которые могут (а не которые – должны) быть в конфиге для подключения хранилища:

host = "localhost"
port = "5432"
user = "postgres"
password = "postgres"
database = "tracker"
sslmode = "disable"
position_table = "position"
event_table = "event"
data_field = "data"
*/

import (
	"database/sql"
	"fmt"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/storage/payload"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

type Connector struct {
	connection *sql.DB
	config     map[string]string
	tables     map[string]string
	dataField  string
}

func (c *Connector) Init(cfg map[string]string) error {
	var (
		err error
	)
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg
	c.tables = map[string]string{
		model.KindPosition: valueOrDefault(cfg["position_table"], "position"),
		model.KindEvent:    valueOrDefault(cfg["event_table"], "event"),
	}

	c.dataField = cfg["data_field"]
	if c.dataField == "" {
		log.Warn("Ключ 'data_field' не найден в конфигурации хранилища. Используется значение по умолчанию 'data'.")
		c.dataField = "data"
	}

	connStr := fmt.Sprintf("dbname=%s host=%s port=%s user=%s password=%s sslmode=%s",
		c.config["database"], c.config["host"], c.config["port"], c.config["user"], c.config["password"], c.config["sslmode"])
	if c.connection, err = sql.Open("postgres", connStr); err != nil {
		return fmt.Errorf("ошибка подключения к PostgreSQL: %v", err)
	}

	if err = c.connection.Ping(); err != nil {
		return fmt.Errorf("PostgreSQL недоступен: %v", err)
	}
	return err
}

// Save записывает JSON-представление сообщения; колонка jsonb не
// допускает других форматов
func (c *Connector) Save(msg payload.Message) error {
	innerPkg, err := payload.Encode(payload.FormatJSON, msg)
	if err != nil {
		return err
	}

	table, ok := c.tables[msg.Kind()]
	if !ok {
		return fmt.Errorf("неизвестный тип сообщения: %s", msg.Kind())
	}

	insertQuery := fmt.Sprintf("INSERT INTO %s (device_id, %s) VALUES ($1, $2)", table, c.dataField)
	if _, err = c.connection.Exec(insertQuery, msg.Device(), innerPkg); err != nil {
		return fmt.Errorf("не удалось вставить запись: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.connection.Close()
}

func valueOrDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
