// Package validation проверяет пользовательский ввод одинаково на клиенте
// и на сервере.
package validation

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalid любое значение, не прошедшее проверку. Конкретная причина в *Error.
var ErrInvalid = errors.New("invalid value")

// Error описывает, какое поле и почему не прошло проверку
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return e.Field + " " + e.Reason
}

// Is позволяет проверять ошибку через errors.Is(err, ErrInvalid)
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field, reason string) error {
	return &Error{Field: field, Reason: reason}
}

const (
	MinUsernameLen    = 3
	MaxUsernameLen    = 32
	MinPasswordLen    = 8
	MaxPasswordBytes  = 72 // ограничение bcrypt
	MaxDisplayNameLen = 64
	MaxTripNameLen    = 100
)

// usernamePattern латиница, цифры и "_.-"; первый символ буква или цифра
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.\-]*$`)

// ValidateUsername проверяет логин пользователя
func ValidateUsername(username string) error {
	switch n := len(username); {
	case n == 0:
		return invalid("username", "cannot be empty")
	case n < MinUsernameLen:
		return invalid("username", "must be at least "+strconv.Itoa(MinUsernameLen)+" characters long")
	case n > MaxUsernameLen:
		return invalid("username", "must not exceed "+strconv.Itoa(MaxUsernameLen)+" characters")
	}
	if !usernamePattern.MatchString(username) {
		return invalid("username", "may contain only latin letters, digits, '_', '.' and '-' and must start with a letter or digit")
	}
	return nil
}

// ValidatePassword проверяет длину пароля в символах и в байтах
func ValidatePassword(password string) error {
	if password == "" {
		return invalid("password", "cannot be empty")
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return invalid("password", "must be at least "+strconv.Itoa(MinPasswordLen)+" characters long")
	}
	if len(password) > MaxPasswordBytes {
		return invalid("password", "must not exceed "+strconv.Itoa(MaxPasswordBytes)+" bytes")
	}
	return nil
}

// ValidateDisplayName проверяет отображаемое имя. Пустое имя допустимо,
// тогда участники видят username.
func ValidateDisplayName(name string) error {
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return invalid("display name", "must not exceed "+strconv.Itoa(MaxDisplayNameLen)+" characters")
	}
	if name != strings.TrimSpace(name) {
		return invalid("display name", "must not start or end with spaces")
	}
	return nil
}

// ValidateTripName проверяет название поездки
func ValidateTripName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("trip name", "cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxTripNameLen {
		return invalid("trip name", "must not exceed "+strconv.Itoa(MaxTripNameLen)+" characters")
	}
	return nil
}
