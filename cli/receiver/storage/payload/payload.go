package payload

import (
	"fmt"

	"gopkg.in/vmihailenco/msgpack.v2"
)

const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Message запись, передаваемая во внешние хранилища
type Message interface {
	ToBytes() ([]byte, error)
	Kind() string
	Device() int64
}

// CheckFormat проверяет значение ключа format из настроек хранилища
func CheckFormat(format string) error {
	switch format {
	case "", FormatJSON, FormatMsgpack:
		return nil
	}
	return fmt.Errorf("неизвестный формат сериализации: %s", format)
}

// Encode сериализует сообщение в заданном формате, по умолчанию JSON
func Encode(format string, msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("некорректная ссылка на пакет")
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case "", FormatJSON:
		data, err = msg.ToBytes()
	case FormatMsgpack:
		data, err = msgpack.Marshal(msg)
	default:
		return nil, fmt.Errorf("неизвестный формат сериализации: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации пакета: %v", err)
	}
	return data, nil
}
