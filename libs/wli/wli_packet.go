package wli

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	STX = 0x02
	ETX = 0x03

	// Delimiter разделитель после номера поля и после бинарного значения.
	// Текстовое значение завершается нулевым байтом.
	Delimiter  = ','
	BinaryMark = 0xFF

	ClassTelemetry    = '1'
	ClassRegistration = '2'

	RegistrationPrefix = "wli:"

	headerLen    = 10
	MaxFrameSize = 4096
)

// Типы телеметрических сообщений
const (
	TypeLastKnown = 0xE4
	TypeStatus    = 0xC9
	TypeReport    = 0xCB
	TypeCell      = 0x1E
)

var ErrMalformed = errors.New("некорректный пакет WLI")

// Field одно поле телеметрического сообщения
type Field struct {
	Number uint8  `json:"number"`
	Binary bool   `json:"binary"`
	Data   []byte `json:"data,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Packet кадр WLI вместе с STX и ETX
type Packet struct {
	Class    uint8   `json:"class"`
	Index    uint16  `json:"index"`
	Length   uint16  `json:"length"`
	Checksum uint16  `json:"checksum"`
	Type     uint8   `json:"type"`
	Fields   []Field `json:"fields,omitempty"`

	// Identifier идентификатор из регистрационного кадра без префикса
	Identifier string `json:"identifier,omitempty"`
}

func (p *Packet) Decode(content []byte) error {
	if len(content) < 3 || content[0] != STX {
		return fmt.Errorf("%w: отсутствует начало кадра", ErrMalformed)
	}
	p.Class = content[1]

	switch p.Class {
	case ClassTelemetry:
		return p.decodeTelemetry(content)
	case ClassRegistration:
		id := string(content[2 : len(content)-1])
		if !strings.HasPrefix(id, RegistrationPrefix) {
			return fmt.Errorf("%w: идентификатор без префикса %q", ErrMalformed, RegistrationPrefix)
		}
		p.Identifier = id[len(RegistrationPrefix):]
		return nil
	default:
		return nil
	}
}

func (p *Packet) decodeTelemetry(content []byte) error {
	if len(content) < headerLen {
		return fmt.Errorf("%w: неверная длина заголовка: %d", ErrMalformed, len(content))
	}
	p.Index = binary.BigEndian.Uint16(content[2:4])
	p.Length = binary.BigEndian.Uint16(content[4:6])
	p.Checksum = binary.BigEndian.Uint16(content[6:8])
	p.Type = content[8]

	buf := bytes.NewReader(content[headerLen:])
	p.Fields = nil

	// последний байт кадра - ETX
	for buf.Len() > 1 {
		var f Field
		number, err := buf.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: не удалось получить номер поля: %v", ErrMalformed, err)
		}
		f.Number = number
		if _, err = buf.ReadByte(); err != nil {
			return fmt.Errorf("%w: не удалось получить разделитель поля %d", ErrMalformed, number)
		}

		mark, err := buf.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: поле %d без значения", ErrMalformed, number)
		}

		if mark == BinaryMark {
			var length uint16
			if err = binary.Read(buf, binary.BigEndian, &length); err != nil {
				return fmt.Errorf("%w: не удалось получить длину поля %d", ErrMalformed, number)
			}
			f.Binary = true
			f.Data = make([]byte, length)
			if _, err = io.ReadFull(buf, f.Data); err != nil {
				return fmt.Errorf("%w: поле %d короче заявленной длины %d", ErrMalformed, number, length)
			}
			if _, err = buf.ReadByte(); err != nil {
				return fmt.Errorf("%w: отсутствует разделитель после поля %d", ErrMalformed, number)
			}
		} else {
			if err = buf.UnreadByte(); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			rest := content[len(content)-buf.Len():]
			end := bytes.IndexByte(rest, 0)
			if end < 0 {
				return fmt.Errorf("%w: текстовое поле %d не завершено", ErrMalformed, number)
			}
			f.Text = string(rest[:end])
			if _, err = buf.Seek(int64(end+1), io.SeekCurrent); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
		}

		p.Fields = append(p.Fields, f)
	}

	return nil
}

func (p *Packet) Encode() ([]byte, error) {
	result := new(bytes.Buffer)
	result.WriteByte(STX)
	result.WriteByte(p.Class)

	switch p.Class {
	case ClassTelemetry:
		body, err := p.encodeFields()
		if err != nil {
			return nil, err
		}
		p.Length = uint16(len(body))
		p.Checksum = checksum(body)

		header := make([]byte, 8)
		binary.BigEndian.PutUint16(header[0:2], p.Index)
		binary.BigEndian.PutUint16(header[2:4], p.Length)
		binary.BigEndian.PutUint16(header[4:6], p.Checksum)
		header[6] = p.Type
		header[7] = Delimiter
		result.Write(header)
		result.Write(body)
	case ClassRegistration:
		result.WriteString(RegistrationPrefix + p.Identifier)
	default:
		return nil, fmt.Errorf("неизвестный класс кадра: %d", p.Class)
	}

	result.WriteByte(ETX)
	return result.Bytes(), nil
}

func (p *Packet) encodeFields() ([]byte, error) {
	body := new(bytes.Buffer)
	for _, f := range p.Fields {
		body.WriteByte(f.Number)
		body.WriteByte(Delimiter)
		if f.Binary {
			if len(f.Data) > 0xFFFF {
				return nil, fmt.Errorf("слишком длинное бинарное поле %d: %d", f.Number, len(f.Data))
			}
			body.WriteByte(BinaryMark)
			_ = binary.Write(body, binary.BigEndian, uint16(len(f.Data)))
			body.Write(f.Data)
			body.WriteByte(Delimiter)
		} else {
			if strings.IndexByte(f.Text, 0) >= 0 || (len(f.Text) > 0 && f.Text[0] == BinaryMark) {
				return nil, fmt.Errorf("недопустимое текстовое значение поля %d", f.Number)
			}
			body.WriteString(f.Text)
			body.WriteByte(0)
		}
	}
	return body.Bytes(), nil
}

// Field возвращает первое поле с указанным номером
func (p *Packet) Field(number uint8) (Field, bool) {
	for _, f := range p.Fields {
		if f.Number == number {
			return f, true
		}
	}
	return Field{}, false
}

func checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// ReadFrame читает из потока один кадр от STX до ETX. Длина
// телеметрического кадра берется из заголовка, поэтому бинарные поля
// могут содержать байт ETX.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == STX {
			break
		}
	}

	class, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	if class == ClassTelemetry {
		frame := make([]byte, headerLen)
		frame[0] = STX
		frame[1] = class
		if _, err = io.ReadFull(r, frame[2:]); err != nil {
			return nil, err
		}
		length := int(binary.BigEndian.Uint16(frame[4:6]))
		if headerLen+length+1 > MaxFrameSize {
			return nil, fmt.Errorf("%w: длина кадра %d превышает допустимую", ErrMalformed, length)
		}
		rest := make([]byte, length+1)
		if _, err = io.ReadFull(r, rest); err != nil {
			return nil, err
		}
		if rest[length] != ETX {
			return nil, fmt.Errorf("%w: отсутствует конец кадра", ErrMalformed)
		}
		return append(frame, rest...), nil
	}

	frame := []byte{STX, class}
	for len(frame) < MaxFrameSize {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		frame = append(frame, b)
		if b == ETX {
			return frame, nil
		}
	}
	return nil, fmt.Errorf("%w: кадр длиннее %d байт", ErrMalformed, MaxFrameSize)
}
