package mysql

/*
Настройки хранилища:

host = "localhost"
port = "3306"
user = "root"
password = "pass"
database = "tracker"
position_table = "position"
event_table = "event"
*/

import (
	"database/sql"
	"fmt"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/storage/payload"
	"github.com/go-sql-driver/mysql"
)

type Connector struct {
	connection *sql.DB
	config     map[string]string
	tables     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg
	c.tables = map[string]string{
		model.KindPosition: cfg["position_table"],
		model.KindEvent:    cfg["event_table"],
	}
	if c.tables[model.KindPosition] == "" {
		c.tables[model.KindPosition] = "position"
	}
	if c.tables[model.KindEvent] == "" {
		c.tables[model.KindEvent] = "event"
	}

	dsn := mysql.Config{
		User:                 cfg["user"],
		Passwd:               cfg["password"],
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%s", cfg["host"], cfg["port"]),
		DBName:               cfg["database"],
		ParseTime:            true,
		AllowNativePasswords: true,
	}
	if c.connection, err = sql.Open("mysql", dsn.FormatDSN()); err != nil {
		return fmt.Errorf("ошибка подключения к MySQL: %v", err)
	}
	if err = c.connection.Ping(); err != nil {
		return fmt.Errorf("MySQL недоступен: %v", err)
	}
	return nil
}

func (c *Connector) Save(msg payload.Message) error {
	innerPkg, err := payload.Encode(payload.FormatJSON, msg)
	if err != nil {
		return err
	}

	table, ok := c.tables[msg.Kind()]
	if !ok {
		return fmt.Errorf("неизвестный тип сообщения: %s", msg.Kind())
	}

	insertQuery := fmt.Sprintf("INSERT INTO %s (device_id, data) VALUES (?, ?)", table)
	if _, err = c.connection.Exec(insertQuery, msg.Device(), innerPkg); err != nil {
		return fmt.Errorf("не удалось вставить запись: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.connection.Close()
}
