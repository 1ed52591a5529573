package session

import (
	"math/bits"
	"strconv"

	"github.com/daniil11ru/tracker/cli/receiver/model"
)

// Частичное сопоставление: терминалы часто передают только часть IMEI,
// усеченную по десятичным разрядам или по байтам.

func byteWidth(n uint64) int {
	if n == 0 {
		return 1
	}
	return (bits.Len64(n) + 7) / 8
}

func digitWidth(n uint64) int {
	width := 1
	for n >= 10 {
		n /= 10
		width++
	}
	return width
}

func hasBytePrefix(part, whole uint64, n int) bool {
	width := byteWidth(whole)
	if n >= width {
		return part == whole
	}
	shift := uint(width-n) * 8
	mask := uint64(1)<<(uint(n)*8) - 1
	return part == (whole>>shift)&mask
}

func hasByteSuffix(part, whole uint64, n int) bool {
	if n >= byteWidth(whole) {
		return part == whole
	}
	return part == whole&(uint64(1)<<(uint(n)*8)-1)
}

func hasDigitPrefix(part, whole uint64, n int) bool {
	div := uint64(1)
	for i := digitWidth(whole); i > n; i-- {
		div *= 10
	}
	return part == whole/div
}

func hasDigitSuffix(part, whole uint64, n int) bool {
	mod := uint64(1)
	for i := 0; i < n; i++ {
		mod *= 10
	}
	return part == whole%mod
}

// isPartOf сообщает, является ли part префиксом или суффиксом whole
// в десятичной или байтовой записи
func isPartOf(part, whole uint64) bool {
	nb := byteWidth(part)
	nd := digitWidth(part)

	return hasByteSuffix(part, whole, nb) || hasBytePrefix(part, whole, nb) ||
		hasDigitSuffix(part, whole, nd) || hasDigitPrefix(part, whole, nd)
}

// matchPartial возвращает устройства, числовой идентификатор которых
// содержит id как префикс или суффикс
func matchPartial(id string, devices []model.Device) []model.Device {
	part, err := strconv.ParseUint(id, 10, 64)
	if err != nil || part == 0 {
		return nil
	}

	var result []model.Device
	for _, d := range devices {
		whole, err := strconv.ParseUint(d.UniqueID, 10, 64)
		if err != nil {
			continue
		}
		if isPartOf(part, whole) {
			result = append(result, d)
		}
	}
	return result
}
