package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/daniil11ru/tracker/libs/wli"
)

/*
Генератор кадров WLI.

Отправляет на приемник регистрационный кадр и, в зависимости от типа,
телеметрический кадр с GPS-блоком и/или полями сотовой сети.

Usage:
  -id string
    	Идентификатор терминала (обязательно)
  -type string
    	Тип отправки: reg, gps, cell, mixed (по умолчанию mixed)
  -time string
    	Метка времени в формате RFC 3339, по умолчанию текущее время
  -lat float
    	Широта
  -lon float
    	Долгота
  -speed int
    	Скорость
  -course float
    	Курс, градусов
  -mcc, -mnc, -lac, -cid int
    	Параметры базовой станции
  -server string
    	Адрес приемника в формате <ip>:<port> (по умолчанию "localhost:5030")

Example

```
./packet-gen -id 356938035643809 -lat 55.75 -lon 37.61 -mcc 250 -mnc 1 -lac 7701 -cid 41731 -server localhost:5030
```
*/

const (
	coordinateUnit = 600000.0
	cellOffset     = 35
)

type options struct {
	ID       string
	Type     string
	Time     time.Time
	Lat, Lon float64
	Speed    int
	Course   float64
	MCC, MNC int
	LAC      int
	CellID   int64
	Index    uint16
}

func main() {
	opts := options{}
	ts := ""
	server := ""

	flag.StringVar(&opts.ID, "id", "", "Идентификатор терминала (обязательно)")
	flag.StringVar(&opts.Type, "type", "mixed", "Тип отправки: reg, gps, cell, mixed")
	flag.StringVar(&ts, "time", "", "Метка времени в формате RFC 3339")
	flag.Float64Var(&opts.Lat, "lat", 0, "Широта")
	flag.Float64Var(&opts.Lon, "lon", 0, "Долгота")
	flag.IntVar(&opts.Speed, "speed", 0, "Скорость")
	flag.Float64Var(&opts.Course, "course", 0, "Курс, градусов")
	flag.IntVar(&opts.MCC, "mcc", 0, "Код страны базовой станции")
	flag.IntVar(&opts.MNC, "mnc", 0, "Код сети базовой станции")
	flag.IntVar(&opts.LAC, "lac", 0, "Код локальной зоны")
	flag.Int64Var(&opts.CellID, "cid", 0, "Идентификатор соты")
	flag.StringVar(&server, "server", "localhost:5030", "Адрес приемника в формате <ip>:<port>")

	flag.Parse()

	if opts.ID == "" {
		fmt.Println("Требуется идентификатор терминала, смотрите помощь (-h)")
		os.Exit(1)
	}

	opts.Time = time.Now().UTC()
	if ts != "" {
		timestamp, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			fmt.Println("Ошибка парсинга метки времени: ", err)
			os.Exit(1)
		}
		opts.Time = timestamp.UTC()
	}

	packets, err := buildPackets(opts)
	if err != nil {
		fmt.Println("Ошибка формирования кадров: ", err)
		os.Exit(1)
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", server)
	if err != nil {
		fmt.Println("Ошибка преобразования адреса: ", err)
		os.Exit(1)
	}

	conn, err := net.DialTCP("tcp", nil, tcpAddr)
	if err != nil {
		fmt.Println("Ошибка соединения: ", err)
		os.Exit(1)
	}
	defer conn.Close()

	for _, pkg := range packets {
		sendBytes, err := pkg.Encode()
		if err != nil {
			fmt.Println("Ошибка кодирования кадра: ", err)
			os.Exit(1)
		}
		if _, err = conn.Write(sendBytes); err != nil {
			fmt.Println("Ошибка записи на сервер: ", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Отправлено кадров: %d\n", len(packets))
}

// buildPackets регистрационный кадр и телеметрия выбранного типа
func buildPackets(opts options) ([]*wli.Packet, error) {
	packets := []*wli.Packet{{Class: wli.ClassRegistration, Identifier: opts.ID}}

	var fields []wli.Field
	switch opts.Type {
	case "reg":
		return packets, nil
	case "gps":
		gps, err := gpsField(opts)
		if err != nil {
			return nil, err
		}
		fields = append(fields, gps)
	case "cell":
		fields = append(fields, cellFields(opts)...)
	case "mixed":
		gps, err := gpsField(opts)
		if err != nil {
			return nil, err
		}
		fields = append(fields, gps)
		fields = append(fields, cellFields(opts)...)
	default:
		return nil, fmt.Errorf("неверный тип %q, используйте reg, gps, cell или mixed", opts.Type)
	}

	fields = append(fields, wli.Field{Number: 255, Text: strconv.FormatInt(opts.Time.Unix(), 10)})

	packets = append(packets, &wli.Packet{
		Class:  wli.ClassTelemetry,
		Index:  opts.Index,
		Type:   wli.TypeStatus,
		Fields: fields,
	})
	return packets, nil
}

func gpsField(opts options) (wli.Field, error) {
	t := opts.Time
	block := wli.GpsBlock{
		Century:   uint8(t.Year() / 100),
		Year:      uint8(t.Year() % 100),
		Month:     uint8(t.Month()),
		Day:       uint8(t.Day()),
		Hour:      uint8(t.Hour()),
		Minute:    uint8(t.Minute()),
		Second:    uint8(t.Second()),
		Latitude:  int32(opts.Lat * coordinateUnit),
		Longitude: int32(opts.Lon * coordinateUnit),
		Speed:     uint16(opts.Speed),
		Course:    uint16(opts.Course * 10),
	}
	data, err := block.Encode()
	if err != nil {
		return wli.Field{}, err
	}
	return wli.Field{Number: wli.GpsFieldNumber, Binary: true, Data: data}, nil
}

// cellFields поля сотовой сети сообщения статуса
func cellFields(opts options) []wli.Field {
	values := []string{
		strconv.Itoa(opts.MCC),
		strconv.Itoa(opts.MNC),
		strconv.Itoa(opts.LAC),
		strconv.FormatInt(opts.CellID, 10),
	}
	fields := make([]wli.Field, 0, len(values))
	for i, v := range values {
		fields = append(fields, wli.Field{Number: uint8(cellOffset + i), Text: v})
	}
	return fields
}
