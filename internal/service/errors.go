package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pribylovaa/go-task-manager/internal/storage"
)

// FieldError — нарушение ограничения конкретного поля запроса.
// Field совпадает с именем поля во внешнем JSON (camelCase).
type FieldError struct {
	Field   string
	Message string
}

// ValidationError собирает все нарушения входных данных запроса.
// errors.Is(err, ErrInvalidArgument) для неё истинно.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// validator накапливает нарушения, чтобы вернуть их одной ошибкой.
type validator struct {
	fields []FieldError
}

func (v *validator) check(ok bool, field, message string) {
	if !ok {
		v.fields = append(v.fields, FieldError{Field: field, Message: message})
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}

	return &ValidationError{Fields: v.fields}
}

func invalidField(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// storageErr переводит storage.ErrNotFound в ErrNotFound сервиса, остальное оборачивает как есть.
func storageErr(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, err)
}
