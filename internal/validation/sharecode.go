// Package validation содержит функции генерации и проверки кодов.
package validation

import (
	"crypto/rand"
	"fmt"
	"time"
)

const shareCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ShareCodeLength — длина кода раздачи реферальной карты.
const ShareCodeLength = 8

// NewShareCode генерирует случайный код раздачи из заглавных букв и цифр.
// Уникальность кода гарантируется не генерацией, а уникальным индексом
// в хранилище: при коллизии код генерируется заново.
func NewShareCode() (string, error) {
	buf := make([]byte, ShareCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = shareCodeAlphabet[int(b)%len(shareCodeAlphabet)]
	}
	return string(buf), nil
}

// IsValidShareCode проверяет формат кода раздачи.
func IsValidShareCode(code string) bool {
	if len(code) != ShareCodeLength {
		return false
	}
	for _, ch := range code {
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return false
		}
	}
	return true
}

// NewOrderNo генерирует номер заказа: префикс ORD, миллисекундная метка
// времени и шесть случайных символов.
func NewOrderNo() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = shareCodeAlphabet[int(b)%len(shareCodeAlphabet)]
	}
	return fmt.Sprintf("ORD%d%s", time.Now().UnixMilli(), string(buf)), nil
}
